package localdrv

import "sync"

// syncManager binds 1-4 channels so their transmits start simultaneously
// (§4.4). Staged buffers accumulate until FlushSync fires them together;
// a member whose turn comes without a prior stage is simply skipped on
// that flush.
type syncManager struct {
	mu      sync.Mutex
	members map[channelKey]bool
	staged  map[channelKey][]byte
}

func newSyncManager(members [][2]int) *syncManager {
	sm := &syncManager{
		members: make(map[channelKey]bool, len(members)),
		staged:  make(map[channelKey][]byte),
	}
	for _, m := range members {
		sm.members[channelKey{m[0], m[1]}] = true
	}
	return sm
}

func (sm *syncManager) holds(pin, index int) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.members[channelKey{pin, index}]
}

func (sm *syncManager) stage(pin, index int, buf []byte) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.staged[channelKey{pin, index}] = buf
}

func (sm *syncManager) remove(pin, index int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	key := channelKey{pin, index}
	delete(sm.members, key)
	delete(sm.staged, key)
}

// drain returns and clears every currently staged buffer.
func (sm *syncManager) drain() map[channelKey][]byte {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := sm.staged
	sm.staged = make(map[channelKey][]byte)
	return out
}
