package fbpool

import "testing"

func TestGetCreatesAndReuses(t *testing.T) {
	p := New()
	b1 := p.Get("a", 4, 4)
	if len(b1) != 3*4*4 {
		t.Fatalf("expected %d bytes, got %d", 3*4*4, len(b1))
	}
	b1[0] = 42
	b2 := p.Get("a", 4, 4)
	if b2[0] != 42 {
		t.Fatalf("expected shared buffer to be reused")
	}
}

func TestGetRecreatesOnDimensionChange(t *testing.T) {
	p := New()
	b1 := p.Get("a", 4, 4)
	b1[0] = 42
	b2 := p.Get("a", 8, 8)
	if len(b2) != 3*8*8 {
		t.Fatalf("expected resized buffer")
	}
	if b2[0] != 0 {
		t.Fatalf("expected fresh zeroed buffer on dimension change")
	}
}

func TestPixelOutOfBoundsReturnsNil(t *testing.T) {
	p := New()
	p.Get("a", 4, 4)
	if px := p.Pixel("a", 10, 10); px != nil {
		t.Fatalf("expected nil for out-of-bounds pixel")
	}
	if px := p.Pixel("missing", 0, 0); px != nil {
		t.Fatalf("expected nil for missing key")
	}
	if px := p.Pixel("a", 0, 0); px == nil || len(px) != 3 {
		t.Fatalf("expected 3-byte pixel slice")
	}
}

func TestClearAll(t *testing.T) {
	p := New()
	b := p.Get("a", 2, 2)
	b[0] = 5
	p.ClearAll()
	if b[0] != 0 {
		t.Fatalf("expected cleared buffer")
	}
}
