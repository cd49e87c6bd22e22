// Package wled implements the counter-driven procedural effect family of
// §4.8: a common integer counter advances each frame, independent of
// audio. Every function is pure given Params and its state bucket.
package wled

import (
	"math"
	"math/rand"

	"github.com/lumenbridge/lumenbridge/internal/effects/render"
)

// RenderFunc is the WLED-style effect signature: given render params and a
// persistent float64 bucket (sized to LEDCount, used by stateful effects
// like Fire2012/Meteor/Twinkle), return a 3*LEDCount RGB buffer.
type RenderFunc func(p render.Params, bucket []float64) []byte

var Registry = map[string]RenderFunc{
	"solid":        Solid,
	"blink":        Blink,
	"breathe":      Breathe,
	"colorloop":    ColorLoop,
	"rainbow":      Rainbow,
	"colorwipe":    ColorWipe,
	"theaterchase": TheaterChase,
	"chase":        TheaterChase,
	"running":      RunningSine,
	"sine":         RunningSine,
	"twinkle":      Twinkle,
	"sparkle":      Sparkle,
	"strobe":       Strobe,
	"gradient":     Gradient,
	"scanner":      Scanner,
	"larson":       Scanner,
	"meteor":       Meteor,
	"comet":        Comet,
	"plasma":       Plasma,
	"pride":        Pride,
	"fire2012":     Fire2012,
}

func logical(i, n int, p render.Params) int {
	return render.ReverseIndex(i, n, p.Reverse)
}

func Solid(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	c := render.ScaleBrightness(p.C1, p.Brightness)
	for i := 0; i < p.LEDCount; i++ {
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

func Blink(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	period := int64(256-int(p.Speed)) + 1
	on := (counter>>8)%period < period/2
	c := [3]byte{}
	if on {
		c = render.ScaleBrightness(p.C1, p.Brightness)
	}
	for i := 0; i < p.LEDCount; i++ {
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

func Breathe(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	phase := float64(counter) / 128.0
	atten := 0.5 + 0.5*math.Sin(phase)
	c := render.ScaleBrightness(p.C1, byte(float64(p.Brightness)*atten))
	for i := 0; i < p.LEDCount; i++ {
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

func ColorLoop(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	hue := float64((counter >> 2) & 0xFF) * 360.0 / 256.0
	c := render.ScaleBrightness(render.HSV(hue, 1, 1), p.Brightness)
	for i := 0; i < p.LEDCount; i++ {
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

func Rainbow(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	hueOffset := float64((counter >> 2) & 0xFF)
	for i := 0; i < p.LEDCount; i++ {
		hue := math.Mod(hueOffset+float64(i)*256.0/float64(p.LEDCount), 256) * 360.0 / 256.0
		c := render.ScaleBrightness(render.HSV(hue, 1, 1), p.Brightness)
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

func ColorWipe(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	lit := int(counter/4) % (p.LEDCount + 1)
	for i := 0; i < p.LEDCount; i++ {
		c := [3]byte{}
		if i < lit {
			c = render.ScaleBrightness(p.C1, p.Brightness)
		}
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

func TheaterChase(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	phase := int(counter/8) % 3
	for i := 0; i < p.LEDCount; i++ {
		c := [3]byte{}
		if (i+phase)%3 == 0 {
			c = render.ScaleBrightness(p.C1, p.Brightness)
		}
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

func RunningSine(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	for i := 0; i < p.LEDCount; i++ {
		phase := float64(i)/float64(p.LEDCount)*2*math.Pi + float64(counter)/32.0
		atten := 0.5 + 0.5*math.Sin(phase)
		c := render.ScaleBrightness(p.C1, byte(float64(p.Brightness)*atten))
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

// Twinkle spawns per-LED envelopes with probability intensity/4 per frame,
// decaying existing envelopes (bucket holds envelope levels 0..1).
func Twinkle(p render.Params, bucket []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	prob := float64(p.Intensity) / 4.0 / 255.0
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	for i := 0; i < p.LEDCount; i++ {
		if bucket[i] <= 0.01 && rng.Float64() < prob {
			bucket[i] = 1.0
		}
		atten := bucket[i]
		c := render.ScaleBrightness(p.C1, byte(float64(p.Brightness)*atten))
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
		bucket[i] *= 0.92
	}
	return buf
}

func Sparkle(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	idx := rng.Intn(p.LEDCount)
	c := render.ScaleBrightness(p.C1, p.Brightness)
	render.SetPixel(buf, logical(idx, p.LEDCount, p), c)
	return buf
}

func Strobe(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	cycleFrames := int64(256-int(p.Speed))/8 + 2
	onFrames := int64(p.Intensity)/32 + 1
	if onFrames >= cycleFrames {
		onFrames = cycleFrames - 1
	}
	on := p.FrameIndex%cycleFrames < onFrames
	c := [3]byte{}
	if on {
		c = render.ScaleBrightness(p.C1, p.Brightness)
	}
	for i := 0; i < p.LEDCount; i++ {
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

func Gradient(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	shift := float64(counter) / 16.0
	for i := 0; i < p.LEDCount; i++ {
		t := math.Mod((float64(i)+shift)/float64(p.LEDCount), 1.0)
		c := lerpColor(p.C1, p.C2, t)
		c = render.ScaleBrightness(c, p.Brightness)
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

func lerpColor(a, b [3]byte, t float64) [3]byte {
	return [3]byte{
		byte(float64(a[0]) + (float64(b[0])-float64(a[0]))*t),
		byte(float64(a[1]) + (float64(b[1])-float64(a[1]))*t),
		byte(float64(a[2]) + (float64(b[2])-float64(a[2]))*t),
	}
}

// Scanner bounces a band of width 1+intensity/32 back and forth with a
// triangle attenuation profile (§4.8).
func Scanner(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	width := 1 + int(p.Intensity)/32
	n := p.LEDCount
	period := int64(2 * (n - 1))
	if period <= 0 {
		period = 1
	}
	pos := int(counter / 4 % period)
	if pos >= n {
		pos = int(period) - pos
	}
	for i := 0; i < n; i++ {
		d := i - pos
		if d < 0 {
			d = -d
		}
		atten := 0.0
		if d < width {
			atten = 1.0 - float64(d)/float64(width)
		}
		c := render.ScaleBrightness(p.C1, byte(float64(p.Brightness)*atten))
		render.SetPixel(buf, logical(i, n, p), c)
	}
	return buf
}

// Meteor draws a head of size 1+intensity/32 with a random-jitter decaying
// trail, using the bucket as the persistent trail brightness (§4.8).
func Meteor(p render.Params, bucket []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	n := p.LEDCount
	headSize := 1 + int(p.Intensity)/32
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	decay := 0.2 + 0.6*rng.Float64()
	for i := range bucket {
		bucket[i] *= (1 - decay*0.1)
	}
	headPos := int(counter/4) % n
	for k := 0; k < headSize; k++ {
		idx := (headPos + k) % n
		bucket[idx] = 1.0
	}
	for i := 0; i < n; i++ {
		c := render.ScaleBrightness(p.C1, byte(float64(p.Brightness)*bucket[i]))
		render.SetPixel(buf, logical(i, n, p), c)
	}
	return buf
}

// Comet is a linear fade of 20/255 per frame with a moving head.
func Comet(p render.Params, bucket []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	counter := render.Counter(p.FrameIndex, p.Speed)
	n := p.LEDCount
	for i := range bucket {
		bucket[i] -= 20.0 / 255.0
		if bucket[i] < 0 {
			bucket[i] = 0
		}
	}
	headPos := int(counter/4) % n
	bucket[headPos] = 1.0
	for i := 0; i < n; i++ {
		c := render.ScaleBrightness(p.C1, byte(float64(p.Brightness)*bucket[i]))
		render.SetPixel(buf, logical(i, n, p), c)
	}
	return buf
}

func Plasma(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	t := float64(p.FrameIndex) * (0.02 + float64(p.Speed)/255.0*0.08)
	for i := 0; i < p.LEDCount; i++ {
		x := float64(i)
		v := math.Sin(x/8.0+t) + math.Sin(x/4.0-t*1.3) + math.Sin((x+t*10)/6.0)
		hue := math.Mod((v+3)/6*360, 360)
		c := render.ScaleBrightness(render.HSV(hue, 1, 1), p.Brightness)
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

func Pride(p render.Params, _ []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	t := float64(p.FrameIndex) / 60.0
	for i := 0; i < p.LEDCount; i++ {
		x := float64(i) / float64(p.LEDCount)
		hue := math.Mod(360*x+60*math.Sin(t)+120*math.Sin(t*0.37), 360)
		if hue < 0 {
			hue += 360
		}
		c := render.ScaleBrightness(render.HSV(hue, 1, 1), p.Brightness)
		render.SetPixel(buf, logical(i, p.LEDCount, p), c)
	}
	return buf
}

// Fire2012 is the classic cooling/sparking cellular automaton, with
// cooling=20+speed/3, sparking=50+intensity*2/3, 3-tap upward diffusion
// (§4.8). The bucket holds per-cell heat in [0,1].
func Fire2012(p render.Params, heat []float64) []byte {
	buf := render.NewBuffer(p.LEDCount)
	n := len(heat)
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	cooling := 20.0 + float64(p.Speed)/3.0
	sparking := 50.0 + float64(p.Intensity)*2.0/3.0

	// Cooling is scaled inversely by pixel count (original_source
	// wled_effects.cpp's esp_random() % (((COOLING*10)/pixels)+2)) so a long
	// strip cools far slower per-cell than a short one, matching Fire2012's
	// expected visual balance instead of burning out immediately.
	coolRange := int(cooling)*10/n + 2
	for i := 0; i < n; i++ {
		cool := float64(rng.Intn(coolRange)) / 255.0
		heat[i] -= cool
		if heat[i] < 0 {
			heat[i] = 0
		}
	}
	for i := n - 1; i >= 2; i-- {
		heat[i] = (heat[i-1] + heat[i-2] + heat[i-2]) / 3.0
	}
	if rng.Float64()*255 < sparking {
		idx := rng.Intn(min(7, n))
		heat[idx] += (160 + rng.Float64()*95) / 255.0
		if heat[idx] > 1 {
			heat[idx] = 1
		}
	}
	for i := 0; i < n; i++ {
		c := heatColor(heat[i])
		c = render.ScaleBrightness(c, p.Brightness)
		render.SetPixel(buf, logical(i, n, p), c)
	}
	return buf
}

func heatColor(h float64) [3]byte {
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

