// Package localdrv implements the local pixel driver of §4.4: a timed
// one-wire/SPI pulse encoder per output channel, modeled the way the
// teacher's cm108.go models a fixed hardware register table driving a
// small state machine, adapted here to per-chipset timing rows instead
// of PTT bit masks.
package localdrv

import "github.com/lumenbridge/lumenbridge/internal/colorpipe"

// Chipset is one row of the closed timing table (§4.4, §6.2). Timings are
// in 100 ns units at the nominal 10 MHz symbol clock.
type Chipset struct {
	Name           string
	SupportsRGBW   bool
	SPI            bool
	T0H, T0L       int
	T1H, T1L       int
	ResetDuration  int
	DefaultOrder   colorpipe.Order
	BytesPerPixel  int
}

var chipsets = map[string]Chipset{
	"WS2811":     {"WS2811", false, false, 5, 20, 12, 13, 500, colorpipe.GRB, 3},
	"WS2812B":    {"WS2812B", false, false, 4, 8, 8, 4, 500, colorpipe.GRB, 3},
	"WS2813":     {"WS2813", false, false, 4, 8, 8, 4, 3000, colorpipe.GRB, 3},
	"WS2815":     {"WS2815", false, false, 3, 9, 9, 3, 2800, colorpipe.GRB, 3},
	"SK6812":     {"SK6812", false, false, 3, 9, 6, 6, 800, colorpipe.GRB, 3},
	"SK6812-RGBW": {"SK6812-RGBW", true, false, 3, 9, 6, 6, 800, colorpipe.GRBW, 4},
	"SK9822":     {"SK9822", false, true, 0, 0, 0, 0, 0, colorpipe.BGR, 4},
	"APA102":     {"APA102", false, true, 0, 0, 0, 0, 0, colorpipe.BGR, 4},
	"TM1814":     {"TM1814", true, false, 3, 9, 9, 3, 1000, colorpipe.WRGB, 4},
	"TM1829":     {"TM1829", false, false, 3, 9, 9, 3, 500, colorpipe.GRB, 3},
	"TM1914":     {"TM1914", false, false, 3, 9, 9, 3, 500, colorpipe.GRB, 3},
}

// Lookup resolves a chipset name, falling back to WS2812B for unknown
// names (the closed set is shipped with the binary, §4.4).
func Lookup(name string) Chipset {
	if c, ok := chipsets[name]; ok {
		return c
	}
	return chipsets["WS2812B"]
}
