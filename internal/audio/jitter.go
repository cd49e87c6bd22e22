package audio

import "time"

// jitterBuffer is the bounded FIFO between network PCM arrival and
// analysis, sized at one second of stereo audio, with PLL-style drift
// nudging toward a configured latency window (§4.6).
type jitterBuffer struct {
	samples    []int16 // interleaved if stereo
	channels   int
	sampleRate int

	targetLatencyMs int
	minMs, maxMs    float64

	samplesSinceNudge int64
	lastNudge         time.Time
}

func newJitterBuffer(sampleRate, channels, targetLatencyMs int) *jitterBuffer {
	return &jitterBuffer{
		channels:        channels,
		sampleRate:      sampleRate,
		targetLatencyMs: targetLatencyMs,
		minMs:           float64(targetLatencyMs - 12),
		maxMs:           float64(targetLatencyMs + 12),
		lastNudge:       time.Now(),
	}
}

// capacityFrames is one second of audio, in frames (a "frame" here = one
// sample per channel).
func (j *jitterBuffer) capacityFrames() int {
	return j.sampleRate
}

// frames returns the number of buffered sample-frames (per-channel).
func (j *jitterBuffer) frames() int {
	if j.channels <= 0 {
		return 0
	}
	return len(j.samples) / j.channels
}

func (j *jitterBuffer) bufferedMs() float64 {
	return float64(j.frames()) * 1000.0 / float64(j.sampleRate)
}

// Append adds incoming interleaved PCM samples, dropping the oldest frames
// if the one-second cap would be exceeded.
func (j *jitterBuffer) Append(samples []int16) {
	j.samples = append(j.samples, samples...)
	j.samplesSinceNudge += int64(len(samples) / max(1, j.channels))

	capFrames := j.capacityFrames()
	if j.frames() > capFrames {
		excessFrames := j.frames() - capFrames
		j.dropFront(excessFrames)
	}
}

func (j *jitterBuffer) dropFront(nFrames int) {
	if nFrames <= 0 {
		return
	}
	nSamples := nFrames * j.channels
	if nSamples >= len(j.samples) {
		j.samples = j.samples[:0]
		return
	}
	j.samples = j.samples[nSamples:]
}

// padTailDuplicate appends duplicated copies of the last frame until the
// buffer reaches targetMs.
func (j *jitterBuffer) padTailDuplicate(targetMs float64) {
	if j.frames() == 0 || j.channels <= 0 {
		return
	}
	last := j.samples[len(j.samples)-j.channels:]
	for j.bufferedMs() < targetMs {
		tail := make([]int16, j.channels)
		copy(tail, last)
		j.samples = append(j.samples, tail...)
	}
}

// Nudge runs the 10ms PLL-style drift corrector (§4.6): compare observed
// vs. expected sample arrival since the last nudge, pop one sample if
// running fast by more than 2%, and separately converge the buffered
// duration toward [min,max] by trimming or padding.
func (j *jitterBuffer) Nudge(now time.Time) {
	elapsed := now.Sub(j.lastNudge)
	if elapsed <= 0 {
		return
	}
	expected := elapsed.Seconds() * float64(j.sampleRate)
	observed := float64(j.samplesSinceNudge)
	if expected > 0 {
		drift := (observed - expected) / expected
		if drift > 0.02 {
			j.dropFront(1)
		}
		// negative drift (running slow): no trim applied.
	}
	j.samplesSinceNudge = 0
	j.lastNudge = now

	buffered := j.bufferedMs()
	if buffered > j.maxMs {
		excessFrames := j.frames() / 4
		j.dropFront(excessFrames)
	} else if buffered < j.minMs {
		j.padTailDuplicate(float64(j.targetLatencyMs))
	}
}

// HasWindow reports whether at least fftSize samples per channel are
// available and the buffered duration is not below min (§4.6 analysis
// frame precondition).
func (j *jitterBuffer) HasWindow(fftSize int) bool {
	return j.frames() >= fftSize && j.bufferedMs() >= j.minMs
}

// TakeWindow copies out the first fftSize frames (not consumed; consumers
// call ConsumeWindow separately once processed) as mono-summed float64
// samples: stereo input is L+R averaged, mono passes through, and per-
// channel L2 energy is accumulated alongside the conversion (§4.6 step 2).
func (j *jitterBuffer) TakeWindow(fftSize int) (mono []float64, energyL, energyR float64) {
	mono = make([]float64, fftSize)
	if j.channels == 2 {
		for i := 0; i < fftSize; i++ {
			l := float64(j.samples[i*2]) / 32768.0
			r := float64(j.samples[i*2+1]) / 32768.0
			energyL += l * l
			energyR += r * r
			mono[i] = (l + r) / 2
		}
	} else {
		for i := 0; i < fftSize; i++ {
			s := float64(j.samples[i]) / 32768.0
			energyL += s * s
			mono[i] = s
		}
		energyR = energyL
	}
	return mono, energyL, energyR
}

// ConsumeWindow drops the fftSize frames just analyzed from the front.
func (j *jitterBuffer) ConsumeWindow(fftSize int) {
	j.dropFront(fftSize)
}
