// Package audio implements the analyzer of §4.6: PCM ingest, jitter
// buffer with PLL-style drift control, windowed FFT, band energies, beat
// detection and tempo estimation, publishing into an audiostate.Store.
package audio

import "math"

// hannWindow returns a precomputed Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n <= 1 {
		if n == 1 {
			w[0] = 1
		}
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// fftRadix2 computes an in-place iterative radix-2 Cooley-Tukey FFT. len(re)
// must be a power of two. im is the imaginary component, zeroed for a
// real-valued input frame.
func fftRadix2(re, im []float64) {
	n := len(re)
	if n <= 1 {
		return
	}

	// bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		angleStep := -2 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				angle := angleStep * float64(k)
				wr, wi := math.Cos(angle), math.Sin(angle)
				i0, i1 := start+k, start+k+half
				tr := re[i1]*wr - im[i1]*wi
				ti := re[i1]*wi + im[i1]*wr
				re[i1] = re[i0] - tr
				im[i1] = im[i0] - ti
				re[i0] += tr
				im[i0] += ti
			}
		}
	}
}

// magnitudeSpectrum runs an FFT over windowed samples and returns the
// first fftSize/2 magnitudes normalized by 1/fftSize (§4.6 step 4).
func magnitudeSpectrum(windowed []float64) []float64 {
	n := len(windowed)
	re := append([]float64(nil), windowed...)
	im := make([]float64, n)
	fftRadix2(re, im)

	half := n / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = math.Hypot(re[i], im[i]) / float64(n)
	}
	return mag
}
