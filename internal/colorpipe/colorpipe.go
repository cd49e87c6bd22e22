// Package colorpipe implements the pure pixel-processing operations of
// §4.1: gamma correction, RGB<->RGBW extraction, HSV<->RGB conversion and
// chipset color-order permutation. All operations are total functions —
// no allocation beyond the caller-supplied destination buffer, no errors.
package colorpipe

import "math"

// Order names the closed set of channel permutations a chipset expects.
type Order int

const (
	GRB Order = iota
	RGB
	BRG
	RBG
	GBR
	BGR
	GRBW
	RGBW
	BRGW
	RBGW
	GBRW
	BGRW
	WRGB
	WGRB
)

// ParseOrder resolves a color-order name to its Order, falling back to
// GRB (3-channel) or GRBW (4-channel) for any name outside the closed set.
func ParseOrder(name string, bytesPerPixel int) Order {
	orders := map[string]Order{
		"GRB": GRB, "RGB": RGB, "BRG": BRG, "RBG": RBG, "GBR": GBR, "BGR": BGR,
		"GRBW": GRBW, "RGBW": RGBW, "BRGW": BRGW, "RBGW": RBGW, "GBRW": GBRW, "BGRW": BGRW,
		"WRGB": WRGB, "WGRB": WGRB,
	}
	if o, ok := orders[name]; ok {
		return o
	}
	if bytesPerPixel >= 4 {
		return GRBW
	}
	return GRB
}

var gammaTables = map[float64]*[256]byte{}

func init() {
	for _, g := range []float64{2.2, 2.4, 2.8} {
		var t [256]byte
		for v := 0; v < 256; v++ {
			t[v] = computeGamma(byte(v), g)
		}
		gammaTables[g] = &t
	}
}

func computeGamma(v byte, gamma float64) byte {
	if v == 0 {
		return 0
	}
	if v == 255 {
		return 255
	}
	f := math.Round(255.0 * math.Pow(float64(v)/255.0, gamma))
	if f < 0 {
		f = 0
	}
	if f > 255 {
		f = 255
	}
	return byte(f)
}

// Gamma applies the gamma curve to v. If gamma matches one of the
// precomputed tables (2.2, 2.4, 2.8 within ±0.01) a table lookup is used;
// otherwise it is computed directly. 0 and 255 always map to themselves.
func Gamma(v byte, gamma float64) byte {
	if v == 0 {
		return 0
	}
	if v == 255 {
		return 255
	}
	for g, t := range gammaTables {
		if math.Abs(g-gamma) <= 0.01 {
			return t[v]
		}
	}
	return computeGamma(v, gamma)
}

// RGBToRGBW extracts a white channel via the min-channel rule: w = min(r,g,b),
// and each color channel has w subtracted, saturating at 0.
func RGBToRGBW(r, g, b byte) (rOut, gOut, bOut, w byte) {
	w = r
	if g < w {
		w = g
	}
	if b < w {
		w = b
	}
	return r - w, g - w, b - w, w
}

// HSVToRGB converts h in [0,360), s,v in [0,1] to 8-bit RGB.
func HSVToRGB(h, s, v float64) (r, g, b byte) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}
	return to8(rf + m), to8(gf + m), to8(bf + m)
}

func to8(f float64) byte {
	v := math.Round(f * 255)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}

// RGBToHSV converts 8-bit RGB to h in [0,360), s,v in [0,1].
func RGBToHSV(r, g, b byte) (h, s, v float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min
	v = max
	if max == 0 {
		s = 0
	} else {
		s = delta / max
	}
	switch {
	case delta == 0:
		h = 0
	case max == rf:
		h = 60 * math.Mod((gf-bf)/delta, 6)
	case max == gf:
		h = 60 * ((bf-rf)/delta + 2)
	default:
		h = 60 * ((rf-gf)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

// permTables[order][i] gives the source index that feeds dst[i].
var permTables = map[Order][4]int{
	GRB:  {1, 0, 2, 3},
	RGB:  {0, 1, 2, 3},
	BRG:  {2, 0, 1, 3},
	RBG:  {0, 2, 1, 3},
	GBR:  {1, 2, 0, 3},
	BGR:  {2, 1, 0, 3},
	GRBW: {1, 0, 2, 3},
	RGBW: {0, 1, 2, 3},
	BRGW: {2, 0, 1, 3},
	RBGW: {0, 2, 1, 3},
	GBRW: {1, 2, 0, 3},
	BGRW: {2, 1, 0, 3},
	WRGB: {3, 0, 1, 2},
	WGRB: {3, 1, 0, 2},
}

func table(order Order) [4]int {
	if t, ok := permTables[order]; ok {
		return t
	}
	return permTables[GRB]
}

// Permute writes src (always stored R,G,B[,W]) into dst according to order.
// dst must be at least len(src) bytes.
func Permute(src []byte, dst []byte, order Order) {
	t := table(order)
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = src[t[i]]
	}
}

// InversePermute undoes a prior Permute(src, permuted, order): given the
// permuted bytes, it reconstructs the original R,G,B[,W] ordering into dst.
func InversePermute(permuted []byte, dst []byte, order Order) {
	t := table(order)
	n := len(permuted)
	for i := 0; i < n; i++ {
		dst[t[i]] = permuted[i]
	}
}

// ProcessPixel runs the composite per-pixel operation: RGB->RGBW (when
// bytesPerPixel==4), then gamma (color channels with gammaColor, W with
// gammaBrightness, if applyGamma), then color-order permutation into dst.
func ProcessPixel(srcRGB [3]byte, dst []byte, order Order, bytesPerPixel int, gammaColor, gammaBrightness float64, applyGamma bool) {
	var work [4]byte
	if bytesPerPixel >= 4 {
		r, g, b, w := RGBToRGBW(srcRGB[0], srcRGB[1], srcRGB[2])
		work[0], work[1], work[2], work[3] = r, g, b, w
	} else {
		work[0], work[1], work[2] = srcRGB[0], srcRGB[1], srcRGB[2]
	}
	if applyGamma {
		work[0] = Gamma(work[0], gammaColor)
		work[1] = Gamma(work[1], gammaColor)
		work[2] = Gamma(work[2], gammaColor)
		if bytesPerPixel >= 4 {
			work[3] = Gamma(work[3], gammaBrightness)
		}
	}
	Permute(work[:bytesPerPixel], dst, order)
}
