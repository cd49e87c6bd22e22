package localdrv

import (
	"bufio"
	"math/rand"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/lumenbridge/lumenbridge/internal/effects/render"
	"github.com/lumenbridge/lumenbridge/internal/effects/wled"
	"github.com/warthog618/go-gpiocdev"
)

type fakeLine struct {
	closed bool
	values []int
}

func (f *fakeLine) SetValue(v int) error {
	f.values = append(f.values, v)
	return nil
}
func (f *fakeLine) Close() error {
	f.closed = true
	return nil
}

func fakeRequester(lines map[int]*fakeLine) LineRequester {
	return func(chipName string, offset int, opts ...gpiocdev.ReqOption) (gpioLine, error) {
		l := &fakeLine{}
		lines[offset] = l
		return l, nil
	}
}

func newTestDriver() (*Driver, map[int]*fakeLine) {
	lines := make(map[int]*fakeLine)
	d := New("gpiochip0")
	d.requestLine = fakeRequester(lines)
	return d, lines
}

func TestInitReusesSameChannel(t *testing.T) {
	d, _ := newTestDriver()
	if err := d.Init(18, 0, "WS2812B", "GRB", 2.2, 2.2, true, false); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := d.Init(18, 0, "WS2812B", "GRB", 2.2, 2.2, true, false); err != nil {
		t.Fatalf("reinit: %v", err)
	}
	if len(d.channels) != 1 {
		t.Fatalf("expected 1 channel after reinit, got %d", len(d.channels))
	}
}

func TestRenderRejectsUndersizedInput(t *testing.T) {
	d, _ := newTestDriver()
	_ = d.Init(18, 0, "WS2812B", "GRB", 2.2, 2.2, true, false)
	err := d.Render(18, 0, []byte{1, 2, 3}, 0, 5)
	if err == nil {
		t.Fatal("expected error for undersized input")
	}
}

func TestRenderTransmitsAndGrowsBuffer(t *testing.T) {
	d, lines := newTestDriver()
	_ = d.Init(18, 0, "WS2812B", "GRB", 2.2, 2.2, true, false)

	rgb := make([]byte, 30)
	for i := range rgb {
		rgb[i] = 128
	}
	if err := d.Render(18, 0, rgb, 0, 10); err != nil {
		t.Fatalf("render: %v", err)
	}
	line := lines[18]
	if len(line.values) != 2 {
		t.Fatalf("expected 2 SetValue calls (bits, reset), got %d", len(line.values))
	}
	if got := len(d.channels[channelKey{18, 0}].buf); got != 30 {
		t.Fatalf("expected owned buffer grown to 30 bytes (10 px x 3), got %d", got)
	}
}

func TestDeinitReleasesLine(t *testing.T) {
	d, lines := newTestDriver()
	_ = d.Init(18, 0, "WS2812B", "GRB", 2.2, 2.2, true, false)
	if err := d.Deinit(18, 0); err != nil {
		t.Fatalf("deinit: %v", err)
	}
	if !lines[18].closed {
		t.Fatal("expected line to be closed")
	}
	if len(d.channels) != 0 {
		t.Fatal("expected channel removed after deinit")
	}
}

func TestSyncGroupTransmitsTogether(t *testing.T) {
	d, lines := newTestDriver()
	_ = d.Init(18, 0, "WS2812B", "GRB", 2.2, 2.2, true, false)
	_ = d.Init(19, 0, "WS2812B", "GRB", 2.2, 2.2, true, false)
	if err := d.InitSync([][2]int{{18, 0}, {19, 0}}); err != nil {
		t.Fatalf("init sync: %v", err)
	}

	rgb := make([]byte, 9)
	_ = d.Render(18, 0, rgb, 0, 3)
	_ = d.Render(19, 0, rgb, 0, 3)

	if len(lines[18].values) != 0 || len(lines[19].values) != 0 {
		t.Fatal("expected staged transmits to not fire before FlushSync")
	}

	if err := d.FlushSync(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(lines[18].values) != 2 || len(lines[19].values) != 2 {
		t.Fatal("expected both channels to pulse after FlushSync")
	}
}

// The debug harness mirrors a logic-analyzer tap: a pty pair stands in for
// an external monitor reading the driver's transmit log line-by-line.
func TestPulseDebugHarnessOverPTY(t *testing.T) {
	ptmx, pts, err := pty.Open()
	if err != nil {
		t.Fatalf("pty.Open: %v", err)
	}
	defer ptmx.Close()
	defer pts.Close()

	d, _ := newTestDriver()
	d.Debug = pts
	_ = d.Init(18, 0, "WS2812B", "GRB", 2.2, 2.2, true, false)

	done := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(ptmx)
		if scanner.Scan() {
			done <- scanner.Text()
		} else {
			done <- ""
		}
	}()

	rgb := make([]byte, 9)
	if err := d.Render(18, 0, rgb, 0, 3); err != nil {
		t.Fatalf("render: %v", err)
	}

	select {
	case line := <-done:
		if line == "" {
			t.Fatal("expected a debug line from the driver")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debug output over pty")
	}
}

// S3 — local Fire 2012 heat drift: over many frames the heat vector's
// leading cells trend upward from the upward-diffusion pass.
func TestFire2012HeatDriftsUpward(t *testing.T) {
	heat := make([]float64, 60)
	p := render.Params{
		LEDCount:   60,
		Brightness: 255,
		Speed:      120,
		Intensity:  200,
		Rand:       rand.New(rand.NewSource(99)),
	}
	for frame := int64(0); frame < 500; frame++ {
		p.FrameIndex = frame
		wled.Fire2012(p, heat)
	}
	if heat[0] < heat[2] {
		t.Fatalf("expected upward heat drift heat[0]>=heat[2], got %v vs %v", heat[0], heat[2])
	}
}
