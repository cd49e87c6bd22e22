package engineselect

import "testing"

// S6 — Engine selection scenarios from spec §8.
func TestScenarioEngineSelection(t *testing.T) {
	cases := []struct {
		name      string
		audioLink bool
		want      Engine
	}{
		{"Rain", true, LEDFx},
		{"Rain", false, LEDFx},
		{"Rainbow", true, WLED},
		{"Zzz", true, WLED},
		{"Zzz", false, WLED},
	}
	for _, c := range cases {
		got := SelectEngine(c.name, c.audioLink)
		if got != c.want {
			t.Errorf("SelectEngine(%q, %v) = %v, want %v", c.name, c.audioLink, got, c.want)
		}
	}
}

func TestLookupNameNormalization(t *testing.T) {
	a := Lookup("Ripple Flow")
	b := Lookup("ripple_flow")
	c := Lookup("rippleflow")
	if a != b || b != c {
		t.Fatalf("expected normalized lookups to agree: %+v %+v %+v", a, b, c)
	}
	if a.DefaultEngine != LEDFx {
		t.Fatalf("expected ripple flow to default to ledfx, got %v", a.DefaultEngine)
	}
}
