// Package scheduler implements the fixed-rate output loop of §4.9: per
// tick it buckets bindings by (effect, led_count, audio_flag), renders
// once per bucket via a frame cache, post-processes per sink and
// dispatches to the local driver or the DDP transmitter, driving the DDP
// sink session manager's activation/deactivation edges along the way.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lumenbridge/lumenbridge/internal/audiostate"
	"github.com/lumenbridge/lumenbridge/internal/config"
	"github.com/lumenbridge/lumenbridge/internal/ddp"
	"github.com/lumenbridge/lumenbridge/internal/ddpsession"
	"github.com/lumenbridge/lumenbridge/internal/effects"
	"github.com/lumenbridge/lumenbridge/internal/fbpool"
	"github.com/lumenbridge/lumenbridge/internal/localdrv"
	"github.com/lumenbridge/lumenbridge/internal/logx"
)

const (
	maxFrameCacheEntries = 10
	frameCacheClearEvery = 10 // ticks
	sessionSweepEvery    = 5 * time.Second
	audioSyncMaxSleep    = 50 * time.Millisecond
	audioSyncLeadUs      = 5000 // 5ms

	// maPerLEDFull is a ballpark per-LED current draw at brightness 255,
	// used by the auto-power-limit derate below (no exact chipset current
	// model is specified; this is a conservative WS2812-class estimate).
	maPerLEDFull      = 60.0
	thermalThresholdC = 70.0
	thermalMaxC       = 85.0
	thermalMaxDerate  = 0.7
)

// ThermalProvider reports the controller's current temperature, when a
// sensor is wired (supplemental "temperature-aware brightness throttle",
// SPEC_FULL.md §3). ok is false when no reading is available.
type ThermalProvider func() (celsius float64, ok bool)

// ConfigProvider hands the scheduler a read-only snapshot each tick
// (§3's "scheduler holds a read-only snapshot per tick").
type ConfigProvider func() *config.Snapshot

// Scheduler owns the frame cache, the rolling DDP sequence counter and
// the tick loop. The frame cache, sequence counter, thermal provider,
// start time and dropped-frame count are guarded by mu (§5); the tick
// counters, sweep time and active-address set are used only by the tick
// loop.
type Scheduler struct {
	mu         sync.Mutex
	frameCache map[frameCacheKey][]byte
	bufs       *fbpool.Pool
	ddpSeq     byte

	cfg      ConfigProvider
	renderer *effects.Renderer
	audio    *audiostate.Store
	local    *localdrv.Driver
	ddpTx    *ddp.Transmitter
	session  *ddpsession.Manager
	log      *logx.Logger

	thermal ThermalProvider

	tickCount     int64
	frameIndex    int64
	lastSweep     time.Time
	activeAddrs   map[string]bool
	startedAt     time.Time
	droppedFrames int64
}

// SetThermalProvider wires an optional temperature sensor the scheduler
// consults each tick to derate global_brightness (supplemental feature,
// not present in spec.md's own scheduler description).
func (s *Scheduler) SetThermalProvider(p ThermalProvider) {
	s.mu.Lock()
	s.thermal = p
	s.mu.Unlock()
}

// Stats reports the running totals the heartbeat/observability layer reads.
type Stats struct {
	UptimeSeconds float64
	ActiveSinks   int
	DroppedFrames int64
}

// Stats returns a point-in-time snapshot of scheduler health counters.
func (s *Scheduler) Stats(snap *config.Snapshot) Stats {
	active := 0
	if snap != nil {
		for _, ls := range snap.LocalSinks {
			if ls.Enabled {
				active++
			}
		}
		for _, rs := range snap.RemoteSinks {
			if rs.Active {
				active++
			}
		}
	}
	s.mu.Lock()
	dropped := s.droppedFrames
	started := s.startedAt
	s.mu.Unlock()
	uptime := 0.0
	if !started.IsZero() {
		uptime = time.Since(started).Seconds()
	}
	return Stats{UptimeSeconds: uptime, ActiveSinks: active, DroppedFrames: dropped}
}

type frameCacheKey struct {
	effect     string
	ledCount   int
	frameIndex int64
}

func New(cfg ConfigProvider, renderer *effects.Renderer, audio *audiostate.Store, local *localdrv.Driver, ddpTx *ddp.Transmitter, session *ddpsession.Manager, log *logx.Logger) *Scheduler {
	return &Scheduler{
		frameCache:  make(map[frameCacheKey][]byte),
		bufs:        fbpool.New(),
		cfg:         cfg,
		renderer:    renderer,
		audio:       audio,
		local:       local,
		ddpTx:       ddpTx,
		session:     session,
		log:         log,
		activeAddrs: make(map[string]bool),
	}
}

// Run drives the tick loop until ctx is cancelled, restoring every active
// remote sink before returning (§5's cancellation semantics).
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.lastSweep = s.startedAt

	for {
		select {
		case <-ctx.Done():
			s.session.RestoreAll()
			return ctx.Err()
		default:
		}

		snap := s.cfg()
		if snap == nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		tickStart := time.Now()
		s.audioSyncWait(ctx, snap)
		s.tick(snap)

		s.tickCount++
		if s.tickCount%frameCacheClearEvery == 0 {
			s.mu.Lock()
			s.frameCache = make(map[frameCacheKey][]byte)
			s.mu.Unlock()
			s.bufs.ClearAll()
		}
		if time.Since(s.lastSweep) >= sessionSweepEvery {
			s.sweepSessions(snap)
			s.lastSweep = time.Now()
		}

		s.frameIndex++

		budget := time.Second / time.Duration(clampFPS(snap.TargetFPS))
		elapsed := time.Since(tickStart)
		if elapsed < budget {
			select {
			case <-ctx.Done():
				s.session.RestoreAll()
				return ctx.Err()
			case <-time.After(budget - elapsed):
			}
		} else {
			s.mu.Lock()
			s.droppedFrames++
			s.mu.Unlock()
		}
	}
}

func clampFPS(fps int) int {
	if fps <= 0 {
		return 60
	}
	if fps > 240 {
		return 240
	}
	return fps
}

// audioSyncWait implements §4.9 step 1: if any enabled audio-linked
// binding exists and the metrics timestamp implies playback is still in
// the future, sleep up to 50ms to stay aligned.
func (s *Scheduler) audioSyncWait(ctx context.Context, snap *config.Snapshot) {
	anyAudioLinked := false
	for _, b := range snap.Bindings {
		if !b.Enabled {
			continue
		}
		if ea, ok := s.effectFor(snap, b.SinkID); ok && ea.AudioLink {
			anyAudioLinked = true
			break
		}
	}
	if !anyAudioLinked {
		return
	}

	m := s.audio.Snapshot()
	if m.TimestampUs == 0 {
		return
	}
	targetRenderTime := time.UnixMicro(m.TimestampUs - audioSyncLeadUs)
	now := time.Now()
	if !targetRenderTime.After(now) {
		return
	}
	sleep := targetRenderTime.Sub(now)
	if sleep > audioSyncMaxSleep {
		sleep = audioSyncMaxSleep
	}
	select {
	case <-ctx.Done():
	case <-time.After(sleep):
	}
}

// effectFor resolves the effect assignment for a sink id across local,
// remote and composite sinks.
func (s *Scheduler) effectFor(snap *config.Snapshot, sinkID string) (config.EffectAssignment, bool) {
	for _, ls := range snap.LocalSinks {
		if ls.ID == sinkID {
			return ls.Effect, true
		}
	}
	for _, rs := range snap.RemoteSinks {
		if rs.ID == sinkID {
			return rs.Effect, true
		}
	}
	for _, c := range snap.Composites {
		if c.ID == sinkID {
			return c.Effect, true
		}
	}
	return config.EffectAssignment{}, false
}

type renderJob struct {
	sinkKind   string // "local", "remote", "composite"
	sinkID     string
	ledCount   int
	effect     config.EffectAssignment
	local      *config.LocalSink
	remote     *config.RemoteSink
	composite  *config.VirtualComposite
}

// tick implements §4.9 steps 2-4: bucket by (effect, led_count,
// audio_flag), render once per bucket, post-process and dispatch per
// sink.
func (s *Scheduler) tick(snap *config.Snapshot) {
	jobs := s.collectJobs(snap)

	type bucketKey struct {
		effect    string
		ledCount  int
		audioFlag bool
	}
	buckets := make(map[bucketKey][]renderJob)
	for _, j := range jobs {
		k := bucketKey{j.effect.Effect, j.ledCount, j.effect.AudioLink}
		buckets[k] = append(buckets[k], j)
	}

	elapsed := time.Since(s.startedAt).Seconds()
	brightness := s.effectiveBrightness(snap, jobs)

	for bk, bucketJobs := range buckets {
		raw := s.renderBucket(bk.effect, bk.ledCount, bucketJobs[0], snap, elapsed, brightness)
		for _, j := range bucketJobs {
			s.dispatch(j, raw, snap)
		}
	}

	s.updateSessionEdges(snap)
}

// effectiveBrightness applies the temperature-aware throttle and the
// auto-power-limit derate on top of the configured global_brightness
// (SUPPLEMENTED in SPEC_FULL.md §3, grounded on the original firmware's
// temperature_monitor.cpp and config.cpp's auto_power_limit flag).
func (s *Scheduler) effectiveBrightness(snap *config.Snapshot, jobs []renderJob) byte {
	b := float64(clamp255(snap.GlobalBrightness))

	s.mu.Lock()
	thermal := s.thermal
	s.mu.Unlock()
	if thermal != nil {
		if c, ok := thermal(); ok && c > thermalThresholdC {
			over := c - thermalThresholdC
			span := thermalMaxC - thermalThresholdC
			if over > span {
				over = span
			}
			b *= 1 - (over/span)*thermalMaxDerate
		}
	}

	if snap.AutoPowerLimit && snap.GlobalCurrentMA > 0 {
		totalLEDs := 0
		for _, j := range jobs {
			totalLEDs += j.ledCount
		}
		estimatedMA := float64(totalLEDs) * maPerLEDFull * b / 255.0
		if estimatedMA > float64(snap.GlobalCurrentMA) {
			b *= float64(snap.GlobalCurrentMA) / estimatedMA
		}
	}

	return byte(clamp255(int(b)))
}

func (s *Scheduler) collectJobs(snap *config.Snapshot) []renderJob {
	enabledSinks := make(map[string]bool)
	for _, b := range snap.Bindings {
		if b.Enabled {
			enabledSinks[b.SinkID] = true
		}
	}
	// An empty bindings list means every sink renders (no explicit gating
	// configured), matching a fresh config with no binding records yet.
	gate := len(snap.Bindings) > 0

	var jobs []renderJob
	for i := range snap.LocalSinks {
		ls := &snap.LocalSinks[i]
		if !ls.Enabled || (gate && !enabledSinks[ls.ID]) {
			continue
		}
		jobs = append(jobs, renderJob{sinkKind: "local", sinkID: ls.ID, ledCount: ls.Length, effect: ls.Effect, local: ls})
	}
	for i := range snap.RemoteSinks {
		rs := &snap.RemoteSinks[i]
		if !rs.Active || (gate && !enabledSinks[rs.ID]) {
			continue
		}
		jobs = append(jobs, renderJob{sinkKind: "remote", sinkID: rs.ID, ledCount: rs.LEDCount, effect: rs.Effect, remote: rs})
	}
	for i := range snap.Composites {
		c := &snap.Composites[i]
		if !c.Enabled || (gate && !enabledSinks[c.ID]) {
			continue
		}
		total := 0
		for _, m := range c.Members {
			total += m.Length
		}
		jobs = append(jobs, renderJob{sinkKind: "composite", sinkID: c.ID, ledCount: total, effect: c.Effect, composite: c})
	}
	return jobs
}

// renderBucket consults the frame cache, rendering once per
// (effect, led_count, frame_index) and fanning out the raw RGB buffer
// across every sink in the bucket (P10). The rendered pixels are copied
// into a framebuffer pool entry (§4.3) keyed by (effect, led_count), so
// repeated buckets across frames reuse one owned cache/output buffer; the
// effect function itself still allocates its own output buffer per render.
func (s *Scheduler) renderBucket(effect string, ledCount int, sample renderJob, snap *config.Snapshot, elapsed float64, brightness byte) []byte {
	key := frameCacheKey{effect: effect, ledCount: ledCount, frameIndex: s.frameIndex}

	s.mu.Lock()
	if cached, ok := s.frameCache[key]; ok {
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	rendered := s.renderer.Render(sample.sinkID, sample.effect, ledCount, s.frameIndex, elapsed, clampFPS(snap.TargetFPS), brightness)

	bufKey := fmt.Sprintf("%s:%d", effect, ledCount)
	buf := s.bufs.Get(bufKey, ledCount, 1)
	copy(buf, rendered)

	s.mu.Lock()
	if len(s.frameCache) >= maxFrameCacheEntries {
		s.frameCache = make(map[frameCacheKey][]byte)
	}
	s.frameCache[key] = buf
	s.mu.Unlock()

	return buf
}

func clamp255(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// dispatch applies per-sink post-processing (not cached, §4.9 step 3)
// and hands the result to the local driver, DDP transmitter, or both
// (sliced) for a composite.
func (s *Scheduler) dispatch(j renderJob, raw []byte, snap *config.Snapshot) {
	switch j.sinkKind {
	case "local":
		s.dispatchLocal(j.local, raw, 0, j.ledCount, snap)
	case "remote":
		s.dispatchRemote(j.remote, raw, snap)
	case "composite":
		offset := 0
		for _, m := range j.composite.Members {
			s.dispatchCompositeMember(m, raw, offset, snap)
			offset += m.Length
		}
	}
}

// dispatchLocal hands the raw RGB slice to the local driver, which owns
// color order, gamma and RGBW extraction per the channel's init-time
// settings (§4.4) — post-processing happens once, inside Driver.Render,
// not duplicated here.
func (s *Scheduler) dispatchLocal(ls *config.LocalSink, raw []byte, startPixel, length int, snap *config.Snapshot) {
	if err := s.local.Render(ls.Pin, ls.Channel, raw[startPixel*3:(startPixel+length)*3], 0, length); err != nil {
		s.log.Warn("scheduler: local render failed", "sink", ls.ID, "err", err)
	}
}

func (s *Scheduler) dispatchRemote(rs *config.RemoteSink, raw []byte, snap *config.Snapshot) {
	s.mu.Lock()
	seq := s.ddpSeq + 1
	if seq < 1 || seq > 15 {
		seq = 1
	}
	s.ddpSeq = seq
	s.mu.Unlock()

	port := snap.DDPPort
	if port <= 0 {
		port = 4048
	}
	ok, err := s.ddpTx.Send(rs.Address, port, raw, 0, seq)
	if !ok {
		s.log.Warn("scheduler: ddp send failed", "sink", rs.ID, "addr", rs.Address, "err", err)
	}
}

func (s *Scheduler) dispatchCompositeMember(m config.CompositeMember, raw []byte, offset int, snap *config.Snapshot) {
	for i := range snap.LocalSinks {
		if snap.LocalSinks[i].ID == m.SinkID {
			s.dispatchLocal(&snap.LocalSinks[i], raw, offset, m.Length, snap)
			return
		}
	}
	for i := range snap.RemoteSinks {
		if snap.RemoteSinks[i].ID == m.SinkID {
			slice := raw[offset*3 : (offset+m.Length)*3]
			s.dispatchRemote(&snap.RemoteSinks[i], slice, snap)
			return
		}
	}
}

// updateSessionEdges implements §4.9 step 5's per-tick edges: arm live
// mode on inactive->active, track the active set for periodic sweep.
func (s *Scheduler) updateSessionEdges(snap *config.Snapshot) {
	anyEnabled := false
	for _, rs := range snap.RemoteSinks {
		if !rs.Active {
			continue
		}
		anyEnabled = true
		if !s.activeAddrs[rs.Address] {
			s.session.Activate(rs.Address)
			s.activeAddrs[rs.Address] = true
		}
	}
	if !anyEnabled && len(s.activeAddrs) > 0 {
		s.session.RestoreAll()
		s.activeAddrs = make(map[string]bool)
	}
}

// sweepSessions implements the ~5s housekeeping sweep: any active
// address no longer backed by an enabled remote sink is restored.
func (s *Scheduler) sweepSessions(snap *config.Snapshot) {
	enabled := make(map[string]bool)
	for _, rs := range snap.RemoteSinks {
		if rs.Active {
			enabled[rs.Address] = true
		}
	}
	s.session.Housekeeping(enabled)
	for addr := range s.activeAddrs {
		if !enabled[addr] {
			delete(s.activeAddrs, addr)
		}
	}
}
