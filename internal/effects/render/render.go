package render

import (
	"fmt"
	"math/rand"

	"github.com/lumenbridge/lumenbridge/internal/colorpipe"
)

// Params are the per-call render inputs (§4.8's abstract render
// signature). Effects are pure functions of these plus their bucket.
type Params struct {
	LEDCount         int
	FrameIndex        int64
	GlobalBrightness byte
	FPS              int
	Gradient         string
	C1, C2, C3       [3]byte
	Brightness       byte
	AudioMod         float64 // 0..1, only meaningful for LEDFx-style
	Speed            byte    // 0..255
	Intensity        byte    // 0..255
	Reverse          bool
	ElapsedSeconds   float64 // time since scheduler start, LEDFx-style clock
	Rand             *rand.Rand
}

// ParseHexColor parses a "#RRGGBB" or "RRGGBB" string, defaulting to black
// on malformed input (effects are total functions; no errors escape them).
func ParseHexColor(s string) [3]byte {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return [3]byte{}
	}
	var r, g, b int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return [3]byte{}
	}
	return [3]byte{byte(r), byte(g), byte(b)}
}

// Counter computes the WLED-style integer counter of §4.8/§GLOSSARY:
// frame_index * (1 + speed/16).
func Counter(frameIndex int64, speed byte) int64 {
	return frameIndex * (1 + int64(speed)/16)
}

// ReverseIndex maps a logical pixel position to its physical index when
// Params.Reverse is set.
func ReverseIndex(i, n int, reverse bool) int {
	if !reverse {
		return i
	}
	return n - 1 - i
}

// ScaleBrightness applies an 8-bit brightness factor (0-255) to an RGB
// triple.
func ScaleBrightness(c [3]byte, brightness byte) [3]byte {
	f := float64(brightness) / 255.0
	return [3]byte{
		byte(float64(c[0]) * f),
		byte(float64(c[1]) * f),
		byte(float64(c[2]) * f),
	}
}

func HSV(h, s, v float64) [3]byte {
	r, g, b := colorpipe.HSVToRGB(h, s, v)
	return [3]byte{r, g, b}
}

func NewBuffer(n int) []byte {
	return make([]byte, 3*n)
}

func SetPixel(buf []byte, i int, c [3]byte) {
	off := i * 3
	if off+3 > len(buf) {
		return
	}
	buf[off] = c[0]
	buf[off+1] = c[1]
	buf[off+2] = c[2]
}
