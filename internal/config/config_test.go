package config

import "testing"

func TestClampFFTSize(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 64},
		{63, 64},
		{65, 64},
		{128, 128},
		{1000, 512},
		{4096, 4096},
		{9000, 4096},
	}
	for _, c := range cases {
		a := Audio{FFTSize: c.in}
		a.ClampFFTSize()
		if a.FFTSize != c.want {
			t.Errorf("ClampFFTSize(%d) = %d, want %d", c.in, a.FFTSize, c.want)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	s := &Snapshot{}
	s.applyDefaults()
	if s.TargetFPS != 60 {
		t.Errorf("expected default FPS 60, got %d", s.TargetFPS)
	}
	if s.DDPPort != 4048 {
		t.Errorf("expected default DDP port 4048, got %d", s.DDPPort)
	}
	if s.Audio.FFTSize != 1024 {
		t.Errorf("expected default fft size 1024, got %d", s.Audio.FFTSize)
	}
}

func TestApplyDefaultsClampsHighFPS(t *testing.T) {
	s := &Snapshot{TargetFPS: 500}
	s.applyDefaults()
	if s.TargetFPS != 240 {
		t.Errorf("expected clamp to 240, got %d", s.TargetFPS)
	}
}
