package audiostate

import "testing"

func TestPublishClamps(t *testing.T) {
	s := NewStore()
	s.Publish(Metrics{Energy: 3.0, Bass: -1, Beat: 2.0})
	m := s.Snapshot()
	if m.Energy != 1.5 {
		t.Errorf("expected energy clamped to 1.5, got %v", m.Energy)
	}
	if m.Bass != 0 {
		t.Errorf("expected bass clamped to 0, got %v", m.Bass)
	}
	if m.Beat != 1.5 {
		t.Errorf("expected beat clamped to 1.5, got %v", m.Beat)
	}
}

func TestBandValueScalarsAndComposites(t *testing.T) {
	s := NewStore()
	s.Publish(Metrics{Energy: 0.5, Bass: 0.4, Mid: 0.3, Treble: 0.2, Beat: 0.6, TempoBPM: 120})
	if v := s.BandValue("energy"); v != 0.5 {
		t.Errorf("energy = %v", v)
	}
	if v := s.BandValue("bass"); v != 0.4 {
		t.Errorf("bass = %v", v)
	}
	if v := s.BandValue("tempo_bpm"); v != 120 {
		t.Errorf("tempo_bpm = %v", v)
	}
	if v := s.BandValue("unknown_band"); v != 0 {
		t.Errorf("unknown band should be 0, got %v", v)
	}
}

func TestCustomEnergyEmptySpectrum(t *testing.T) {
	s := NewStore()
	if v := s.CustomEnergy(100, 200); v != 0 {
		t.Errorf("expected 0 for empty spectrum, got %v", v)
	}
}

func TestSetRunningOverride(t *testing.T) {
	s := NewStore()
	s.SetConfiguredRunning(true)
	if !s.Running() {
		t.Fatal("expected running")
	}
	s.SetRunning(false)
	if s.Running() {
		t.Fatal("expected force-disabled")
	}
	s.SetRunning(true)
	if !s.Running() {
		t.Fatal("expected running again")
	}
}
