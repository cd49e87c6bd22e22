package audio

import (
	"math"
	"testing"
)

func TestMagnitudeSpectrumDetectsPureTone(t *testing.T) {
	n := 1024
	sampleRate := 44100.0
	toneHz := 1000.0
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * toneHz * float64(i) / sampleRate)
	}
	win := hannWindow(n)
	windowed := make([]float64, n)
	for i := range samples {
		windowed[i] = samples[i] * win[i]
	}
	mag := magnitudeSpectrum(windowed)
	if len(mag) != n/2 {
		t.Fatalf("expected %d bins, got %d", n/2, len(mag))
	}

	expectedBin := int(toneHz * float64(n) / sampleRate)
	peakBin := 0
	peakVal := 0.0
	for i, v := range mag {
		if v > peakVal {
			peakVal = v
			peakBin = i
		}
	}
	if diff := peakBin - expectedBin; diff < -2 || diff > 2 {
		t.Fatalf("expected peak near bin %d, got %d", expectedBin, peakBin)
	}
}

func TestHannWindowEndpoints(t *testing.T) {
	w := hannWindow(8)
	if w[0] > 0.01 {
		t.Fatalf("expected near-zero at window start, got %v", w[0])
	}
	mid := w[4]
	if mid < 0.9 {
		t.Fatalf("expected near-peak at window middle, got %v", mid)
	}
}
