package colorpipe

import (
	"testing"

	"pgregory.net/rapid"
)

var allOrders3 = []Order{GRB, RGB, BRG, RBG, GBR, BGR}
var allOrders4 = []Order{GRBW, RGBW, BRGW, RBGW, GBRW, BGRW, WRGB, WGRB}

// P1 — Color permutation is involutive via InversePermute.
func TestPermuteInvolution3(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		order := allOrders3[rapid.IntRange(0, len(allOrders3)-1).Draw(rt, "o")]
		src := [3]byte{
			byte(rapid.IntRange(0, 255).Draw(rt, "r")),
			byte(rapid.IntRange(0, 255).Draw(rt, "g")),
			byte(rapid.IntRange(0, 255).Draw(rt, "b")),
		}
		var dst, back [3]byte
		Permute(src[:], dst[:], order)
		InversePermute(dst[:], back[:], order)
		if back != src {
			rt.Fatalf("round-trip failed for order %v: src=%v back=%v", order, src, back)
		}
	})
}

func TestPermuteInvolution4(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		order := allOrders4[rapid.IntRange(0, len(allOrders4)-1).Draw(rt, "o")]
		src := [4]byte{
			byte(rapid.IntRange(0, 255).Draw(rt, "r")),
			byte(rapid.IntRange(0, 255).Draw(rt, "g")),
			byte(rapid.IntRange(0, 255).Draw(rt, "b")),
			byte(rapid.IntRange(0, 255).Draw(rt, "w")),
		}
		var dst, back [4]byte
		Permute(src[:], dst[:], order)
		InversePermute(dst[:], back[:], order)
		if back != src {
			rt.Fatalf("round-trip failed for order %v: src=%v back=%v", order, src, back)
		}
	})
}

// P2 — Gamma monotonicity and boundaries.
func TestGammaMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		gamma := rapid.Float64Range(0.1, 4.0).Draw(rt, "gamma")
		if Gamma(0, gamma) != 0 {
			rt.Fatalf("gamma(0,%v) != 0", gamma)
		}
		if Gamma(255, gamma) != 255 {
			rt.Fatalf("gamma(255,%v) != 255", gamma)
		}
		var prev byte
		for v := 1; v <= 255; v++ {
			cur := Gamma(byte(v), gamma)
			if cur < prev {
				rt.Fatalf("gamma not monotonic at v=%d: prev=%d cur=%d", v, prev, cur)
			}
			prev = cur
		}
	})
}

// P3 — RGB->RGBW round trip with exact sum property.
func TestRGBToRGBWSumProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := byte(rapid.IntRange(0, 255).Draw(rt, "r"))
		g := byte(rapid.IntRange(0, 255).Draw(rt, "g"))
		b := byte(rapid.IntRange(0, 255).Draw(rt, "b"))
		rp, gp, bp, w := RGBToRGBW(r, g, b)

		min := r
		if g < min {
			min = g
		}
		if b < min {
			min = b
		}
		if w != min {
			rt.Fatalf("w=%d want %d", w, min)
		}
		if rp+w != r || gp+w != g || bp+w != b {
			rt.Fatalf("sum property violated: r=%d g=%d b=%d -> rp=%d gp=%d bp=%d w=%d", r, g, b, rp, gp, bp, w)
		}
	})
}

func TestParseOrderFallback(t *testing.T) {
	if ParseOrder("bogus", 3) != GRB {
		t.Fatalf("expected GRB fallback for 3ch")
	}
	if ParseOrder("bogus", 4) != GRBW {
		t.Fatalf("expected GRBW fallback for 4ch")
	}
	if ParseOrder("RGBW", 4) != RGBW {
		t.Fatalf("expected RGBW")
	}
}

func TestHSVRGBRoundTripApprox(t *testing.T) {
	r, g, b := HSVToRGB(210, 0.8, 0.9)
	h, s, v := RGBToHSV(r, g, b)
	if h < 205 || h > 215 {
		t.Fatalf("hue drifted too far: %v", h)
	}
	if s < 0.7 || s > 0.9 {
		t.Fatalf("sat drifted too far: %v", s)
	}
	if v < 0.85 || v > 0.95 {
		t.Fatalf("val drifted too far: %v", v)
	}
}
