package ledfx

import (
	"math/rand"
	"testing"

	"github.com/lumenbridge/lumenbridge/internal/effects/render"
)

func baseParams(n int) render.Params {
	return render.Params{
		LEDCount:   n,
		Brightness: 255,
		FPS:        60,
		C1:         [3]byte{255, 0, 0},
		C2:         [3]byte{0, 0, 255},
		Rand:       rand.New(rand.NewSource(7)),
	}
}

func TestAuraBrightensWithAudioMod(t *testing.T) {
	p := baseParams(5)
	p.ElapsedSeconds = 0
	p.AudioMod = 0
	quiet := Aura(p, nil)
	p.AudioMod = 1
	loud := Aura(p, nil)
	if loud[0] <= quiet[0] {
		t.Fatalf("expected louder audio to brighten aura: quiet=%d loud=%d", quiet[0], loud[0])
	}
}

// S4 — a beat (AudioMod crossing the trigger threshold) spawns a new
// ripple center in RippleFlow.
func TestRippleFlowSpawnsOnBeatEdge(t *testing.T) {
	p := baseParams(40)
	bucket := make([]float64, 2*MaxRipples+1)

	p.ElapsedSeconds = 1.0
	p.AudioMod = 0.1
	RippleFlow(p, bucket)

	anySpawned := false
	for r := 0; r < MaxRipples; r++ {
		if bucket[r*2] != 0 {
			anySpawned = true
		}
	}
	if anySpawned {
		t.Fatalf("did not expect a spawn before crossing the beat threshold")
	}

	p.ElapsedSeconds = 1.1
	p.AudioMod = 0.9
	RippleFlow(p, bucket)

	anySpawned = false
	for r := 0; r < MaxRipples; r++ {
		if bucket[r*2] != 0 {
			anySpawned = true
		}
	}
	if !anySpawned {
		t.Fatalf("expected a ripple to spawn when audio mod crosses the beat threshold")
	}
}

func TestFireHeatStaysBounded(t *testing.T) {
	p := baseParams(30)
	heat := make([]float64, 30)
	for i := 0; i < 500; i++ {
		p.AudioMod = 0.5
		Fire(p, heat)
		for j, h := range heat {
			if h < 0 || h > 1 {
				t.Fatalf("heat[%d] out of bounds: %v", j, h)
			}
		}
	}
}

func TestRegistryContainsAllNamedEffects(t *testing.T) {
	names := []string{"fire", "matrix", "waves", "plasma", "rippleflow", "rain", "aura", "hyperspace"}
	for _, n := range names {
		if _, ok := Registry[n]; !ok {
			t.Errorf("missing registry entry for %q", n)
		}
	}
}
