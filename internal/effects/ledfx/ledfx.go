// Package ledfx implements the time-driven, audio-reactive effect family
// of §4.8: effects are functions of wall-clock elapsed time and an audio
// modulation scalar (AudioMod, derived from the configured band/profile),
// rather than a frame counter.
package ledfx

import (
	"math"
	"math/rand"

	"github.com/lumenbridge/lumenbridge/internal/effects/render"
)

// RenderFunc is the LEDFx-style effect signature. The bucket is used for
// per-pixel persistent state (ripple centers, matrix drop positions, etc);
// its meaning is effect-specific, unlike wled's plain heat/envelope use.
type RenderFunc func(p render.Params, bucket []float64) []byte

var Registry = map[string]RenderFunc{
	"fire":       Fire,
	"matrix":     Matrix,
	"waves":      Waves,
	"plasma":     Plasma,
	"rippleflow": RippleFlow,
	"rain":       Rain,
	"aura":       Aura,
	"hyperspace": Hyperspace,
}

func logical(i, n int, p render.Params) int {
	return render.ReverseIndex(i, n, p.Reverse)
}

// mod blends a base animation speed with AudioMod so audio-reactive
// effects visibly speed up/brighten on energy, per §4.8 step 7.
func mod(base, audioMod float64) float64 {
	return base * (0.4 + 1.2*audioMod)
}

// Fire is a time-driven variant of the wled cooling/sparking automaton
// where sparking rate tracks AudioMod instead of a fixed intensity knob.
func Fire(p render.Params, heat []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	n := len(heat)
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	cooling := 25.0
	sparking := 40.0 + 180.0*p.AudioMod

	for i := 0; i < n; i++ {
		heat[i] -= rng.Float64() * cooling / 255.0 * 2
		if heat[i] < 0 {
			heat[i] = 0
		}
	}
	for i := n - 1; i >= 2; i-- {
		heat[i] = (heat[i-1] + heat[i-2] + heat[i-2]) / 3.0
	}
	if rng.Float64()*255 < sparking {
		idx := rng.Intn(minInt(7, n))
		heat[idx] += (160 + rng.Float64()*95) / 255.0
		if heat[idx] > 1 {
			heat[idx] = 1
		}
	}
	for i := 0; i < n; i++ {
		c := fireColor(heat[i])
		c = render.ScaleBrightness(c, p.Brightness)
		render.SetPixel(buf, logical(i, n, p), c)
	}
	return buf
}

func fireColor(h float64) [3]byte {
	t := h * 3
	switch {
	case t < 1:
		return [3]byte{byte(255 * t), 0, 0}
	case t < 2:
		return [3]byte{255, byte(255 * (t - 1)), 0}
	default:
		v := t - 2
		if v > 1 {
			v = 1
		}
		return [3]byte{255, 255, byte(255 * v)}
	}
}

// Matrix lights a random pixel as a "rain" drop, spawning drops more often
// as AudioMod rises; every pixel fades by 15% per frame. Bucket holds
// per-pixel brightness. Drops fade in place and do not move along the
// strip.
func Matrix(p render.Params, bucket []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	n := len(bucket)
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	for i := range bucket {
		bucket[i] *= 0.85
	}
	spawnProb := 0.02 + 0.2*p.AudioMod
	if rng.Float64() < spawnProb {
		bucket[rng.Intn(n)] = 1.0
	}
	for i := 0; i < n; i++ {
		c := render.ScaleBrightness([3]byte{0, 255, 60}, byte(255*bucket[i]))
		render.SetPixel(buf, logical(i, n, p), c)
	}
	return buf
}

// Waves renders a travelling sine gradient whose speed and amplitude are
// modulated by AudioMod.
func Waves(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	speed := mod(1.0, p.AudioMod)
	t := p.ElapsedSeconds * speed
	for i := 0; i < p.LEDCount; i++ {
		phase := float64(i)/float64(p.LEDCount)*2*math.Pi + t
		hue := math.Mod((math.Sin(phase)+1)/2*360, 360)
		v := 0.4 + 0.6*p.AudioMod
		c := render.ScaleBrightness(render.HSV(hue, 1, v), p.Brightness)
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

// Plasma renders a scrolling two-layer hue gradient, distinct from Waves'
// single travelling sine: two gradients of different spatial frequency and
// direction sum into a drifting, colorful wash, with AudioMod driving both
// scroll speed and brightness floor.
func Plasma(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	speed := mod(0.8, p.AudioMod)
	t := p.ElapsedSeconds * speed
	for i := 0; i < p.LEDCount; i++ {
		x := float64(i) / float64(p.LEDCount)
		a := math.Sin(x*4*math.Pi + t)
		b := math.Sin(x*7*math.Pi - t*1.3)
		hue := math.Mod((a+b+2)/4*360, 360)
		v := 0.35 + 0.5*p.AudioMod
		c := render.ScaleBrightness(render.HSV(hue, 1, v), p.Brightness)
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

// MaxRipples is the number of concurrent ripples RippleFlow keeps. Each
// ripple packs a spawn time and origin index into two bucket slots, and
// one final slot holds the previous frame's AudioMod for beat-edge
// detection (bucket sized 2*MaxRipples+1,
// [time, origin, time, origin, ..., lastAudioMod]).
const MaxRipples = 4

// RippleFlow spawns a new ripple center at a random position whenever
// AudioMod crosses the beat threshold (S4: beat-triggered spawn), and
// renders each active ripple as an expanding, fading ring.
func RippleFlow(p render.Params, bucket []float64) []byte {
	if len(bucket) < 2*MaxRipples+1 {
		bucket = append(bucket, make([]float64, 2*MaxRipples+1-len(bucket))...)
	}
	buf := render.NewBuffer(p.LEDCount)
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	lastAudioMod := bucket[2*MaxRipples]
	beatEdge := p.AudioMod > 0.6 && lastAudioMod <= 0.6
	bucket[2*MaxRipples] = p.AudioMod

	if beatEdge {
		slot := int(p.ElapsedSeconds*1000) % MaxRipples
		bucket[slot*2] = p.ElapsedSeconds
		bucket[slot*2+1] = float64(rng.Intn(p.LEDCount))
	}

	for i := 0; i < p.LEDCount; i++ {
		intensity := 0.0
		for r := 0; r < MaxRipples; r++ {
			spawnT := bucket[r*2]
			origin := bucket[r*2+1]
			if spawnT == 0 {
				continue
			}
			age := p.ElapsedSeconds - spawnT
			if age < 0 || age > 2.0 {
				continue
			}
			radius := age * float64(p.LEDCount) / 2.0
			d := math.Abs(float64(i) - origin)
			ringDist := math.Abs(d - radius)
			if ringDist < 2.0 {
				fade := 1.0 - age/2.0
				v := (1.0 - ringDist/2.0) * fade
				if v > intensity {
					intensity = v
				}
			}
		}
		c := render.ScaleBrightness(p.C1, byte(255*intensity))
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

// Rain spawns individual droplets at a rate driven by AudioMod, each
// fading linearly; bucket holds per-pixel brightness.
func Rain(p render.Params, bucket []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	n := len(bucket)
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	for i := range bucket {
		bucket[i] -= 0.05
		if bucket[i] < 0 {
			bucket[i] = 0
		}
	}
	drops := int(1 + 4*p.AudioMod)
	for d := 0; d < drops; d++ {
		if rng.Float64() < 0.3+0.5*p.AudioMod {
			bucket[rng.Intn(n)] = 1.0
		}
	}
	for i := 0; i < n; i++ {
		c := render.ScaleBrightness(p.C2, byte(255*bucket[i]))
		render.SetPixel(buf, logical(i, n, p), c)
	}
	return buf
}

// Aura is a slow, low-frequency breathing glow whose brightness floor and
// ceiling both track AudioMod; on silence the trough of the cycle reaches
// full dark.
func Aura(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	phase := p.ElapsedSeconds * 0.6
	base := 0.3 + 0.3*math.Sin(phase)
	v := base + 0.4*p.AudioMod
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	c := render.ScaleBrightness(p.C1, byte(255*v))
	for i := 0; i < p.LEDCount; i++ {
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

// Hyperspace lights random pixels as "stars" that fade at a rate driven by
// AudioMod. Stars fade in place: they do not move, and nothing streaks
// outward from the center.
func Hyperspace(p render.Params, bucket []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	n := len(bucket)
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	speed := mod(0.3, p.AudioMod)
	for i := range bucket {
		bucket[i] -= speed * 0.02
	}
	if rng.Float64() < 0.1+0.3*p.AudioMod {
		bucket[rng.Intn(n)] = 1.0
	}
	for i := 0; i < n; i++ {
		v := bucket[i]
		if v < 0 {
			v = 0
		}
		c := render.ScaleBrightness([3]byte{255, 255, 255}, byte(255*v))
		render.SetPixel(buf, logical(i, n, p), c)
	}
	return buf
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
