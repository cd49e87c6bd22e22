package audio

import (
	"testing"
	"time"
)

// P7 — Audio jitter-buffer invariant: steady state stays within [min,max],
// and a deliberate overfill converges back within the window.
func TestJitterBufferConvergesAfterOverfill(t *testing.T) {
	sampleRate := 44100
	channels := 2
	latencyMs := 100
	jb := newJitterBuffer(sampleRate, channels, latencyMs)

	// Fill to steady-state latency.
	steadyFrames := latencyMs * sampleRate / 1000
	jb.Append(make([]int16, steadyFrames*channels))

	now := time.Now()
	jb.lastNudge = now
	jb.samplesSinceNudge = int64(steadyFrames)
	jb.Nudge(now.Add(10 * time.Millisecond))

	if jb.bufferedMs() < jb.minMs || jb.bufferedMs() > jb.maxMs {
		t.Fatalf("expected steady state within window, got %v (min=%v max=%v)", jb.bufferedMs(), jb.minMs, jb.maxMs)
	}

	// Deliberate 200ms overfill.
	overfillFrames := 200 * sampleRate / 1000
	jb.samples = append(jb.samples, make([]int16, overfillFrames*channels)...)
	// The overfill goes straight into samples, bypassing Append and its 1-second cap.
	if jb.bufferedMs() <= jb.maxMs {
		t.Fatalf("test setup: expected overfill above max, got %v", jb.bufferedMs())
	}

	deadline := now.Add(1100 * time.Millisecond)
	tick := now
	converged := false
	for tick.Before(deadline) {
		tick = tick.Add(10 * time.Millisecond)
		jb.samplesSinceNudge = int64(10 * sampleRate / 1000 * channels / channels) // drift counter reads nominal arrival; no samples are appended
		jb.Nudge(tick)
		if jb.bufferedMs() >= jb.minMs && jb.bufferedMs() <= jb.maxMs {
			converged = true
			break
		}
	}
	if !converged {
		t.Fatalf("jitter buffer did not converge within 1s after overfill, ended at %v", jb.bufferedMs())
	}
}

func TestJitterBufferPadsWhenUnderfilled(t *testing.T) {
	jb := newJitterBuffer(44100, 1, 100)
	jb.Append([]int16{100, 200, 300})
	jb.padTailDuplicate(100)
	if jb.bufferedMs() < 100 {
		t.Fatalf("expected padding to reach target latency, got %v", jb.bufferedMs())
	}
}

func TestJitterBufferCapsAtOneSecond(t *testing.T) {
	jb := newJitterBuffer(1000, 1, 100)
	jb.Append(make([]int16, 5000)) // 5 seconds worth
	if jb.frames() > jb.capacityFrames() {
		t.Fatalf("expected buffer capped at capacity, got %d frames", jb.frames())
	}
}
