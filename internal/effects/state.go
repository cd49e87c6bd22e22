// Package effects implements the closed registry of per-frame render
// functions (§4.8): WLED-style procedural effects and LEDFx-style
// audio-reactive effects, sharing per-(effect,sink,length) state buckets,
// gradients/palettes and audio metrics via a common render Context.
package effects

import "sync"

// BucketKey identifies a stateful effect's persistent storage (§3).
type BucketKey struct {
	Effect string
	SinkID string
	Length int
}

// StateStore holds per-effect state buckets, sized on first use and
// recreated on length change, retained for the process lifetime (§3
// lifecycle). Safe for concurrent use.
type StateStore struct {
	mu      sync.Mutex
	buckets map[BucketKey][]float64
}

func NewStateStore() *StateStore {
	return &StateStore{buckets: make(map[BucketKey][]float64)}
}

// Bucket returns the float64 slice of size n for key, creating or
// recreating (zeroed) it if absent or sized differently.
func (s *StateStore) Bucket(key BucketKey, n int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if ok && len(b) == n {
		return b
	}
	b = make([]float64, n)
	s.buckets[key] = b
	return b
}
