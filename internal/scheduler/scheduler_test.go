package scheduler

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/lumenbridge/lumenbridge/internal/audiostate"
	"github.com/lumenbridge/lumenbridge/internal/config"
	"github.com/lumenbridge/lumenbridge/internal/ddp"
	"github.com/lumenbridge/lumenbridge/internal/ddpsession"
	"github.com/lumenbridge/lumenbridge/internal/effects"
	"github.com/lumenbridge/lumenbridge/internal/localdrv"
	"github.com/lumenbridge/lumenbridge/internal/logx"
)

func testLogger() *logx.Logger { return logx.New(io.Discard, logx.LevelError) }

// S1 — single remote rainbow at 240 LEDs fits in one datagram.
func TestScenarioSingleRemoteRainbow(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	cfg := &config.Snapshot{
		DriverKind:       config.DriverMixed,
		TargetFPS:        60,
		GlobalBrightness: 255,
		DDPPort:          conn.LocalAddr().(*net.UDPAddr).Port,
		RemoteSinks: []config.RemoteSink{{
			ID: "r1", Address: "127.0.0.1", Port: conn.LocalAddr().(*net.UDPAddr).Port,
			LEDCount: 240, Active: true,
			Effect: config.EffectAssignment{Effect: "rainbow", Speed: 128, Brightness: 255},
		}},
	}

	audioStore := audiostate.NewStore()
	renderer := effects.NewRenderer(audioStore)
	ddpTx := ddp.NewTransmitter()
	session := ddpsession.NewManager(&noopHTTP{}, testLogger())

	sched := New(func() *config.Snapshot { return cfg }, renderer, audioStore, nil, ddpTx, session, testLogger())
	sched.tick(cfg)

	buf := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected a datagram: %v", err)
	}
	if n != 14+720 {
		t.Fatalf("expected 14+720=734 bytes, got %d", n)
	}
	flags := buf[0]
	if flags != 0x41 {
		t.Fatalf("expected flags=0x41, got 0x%02x", flags)
	}
	seq := buf[1]
	if seq != 1 {
		t.Fatalf("expected seq=1, got %d", seq)
	}
	offset := binary.BigEndian.Uint32(buf[8:12])
	length := binary.BigEndian.Uint16(buf[12:14])
	if offset != 0 || length != 720 {
		t.Fatalf("expected offset=0 length=720, got offset=%d length=%d", offset, length)
	}
}

// S2 — 800 LEDs (2400 payload bytes) chunks into two datagrams.
func TestScenarioChunkedFrame(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	cfg := &config.Snapshot{
		TargetFPS: 60, GlobalBrightness: 255, DDPPort: port,
		RemoteSinks: []config.RemoteSink{{
			ID: "r1", Address: "127.0.0.1", Port: port, LEDCount: 800, Active: true,
			Effect: config.EffectAssignment{Effect: "solid", Brightness: 255, Color1: "#ffffff"},
		}},
	}

	audioStore := audiostate.NewStore()
	renderer := effects.NewRenderer(audioStore)
	ddpTx := ddp.NewTransmitter()
	session := ddpsession.NewManager(&noopHTTP{}, testLogger())
	sched := New(func() *config.Snapshot { return cfg }, renderer, audioStore, nil, ddpTx, session, testLogger())
	sched.tick(cfg)

	readOne := func() []byte {
		buf := make([]byte, 2048)
		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return buf[:n]
	}
	d1 := readOne()
	d2 := readOne()
	if d1[0] != 0x40 || d2[0] != 0x41 {
		t.Fatalf("expected flags 0x40 then 0x41, got 0x%02x then 0x%02x", d1[0], d2[0])
	}
	if d1[1] != 1 || d2[1] != 2 {
		t.Fatalf("expected seq 1 then 2, got %d then %d", d1[1], d2[1])
	}
	if len(d1)-14 != 1440 || len(d2)-14 != 960 {
		t.Fatalf("expected payload lengths 1440 then 960, got %d then %d", len(d1)-14, len(d2)-14)
	}
}

// P6 — frame budget: at a modest FPS the scheduler completes ticks fast
// enough that it would sustain >=0.95*F ticks/second for a cheap effect.
func TestFrameBudgetMeetsTarget(t *testing.T) {
	cfg := &config.Snapshot{
		TargetFPS: 60, GlobalBrightness: 255,
		LocalSinks: []config.LocalSink{{
			ID: "l1", Pin: 0, Channel: 0, Chipset: "WS2812B", ColorOrder: "GRB",
			Length: 100, Enabled: true,
			Effect: config.EffectAssignment{Effect: "solid", Brightness: 255, Color1: "#ff0000"},
		}},
	}
	audioStore := audiostate.NewStore()
	renderer := effects.NewRenderer(audioStore)
	local := localdrv.New("gpiochip0")
	ddpTx := ddp.NewTransmitter()
	session := ddpsession.NewManager(&noopHTTP{}, testLogger())
	sched := New(func() *config.Snapshot { return cfg }, renderer, audioStore, local, ddpTx, session, testLogger())

	start := time.Now()
	const n = 30
	for i := 0; i < n; i++ {
		sched.tick(cfg)
	}
	elapsed := time.Since(start)
	perTick := elapsed / n
	if perTick > 16*time.Millisecond {
		t.Fatalf("tick too slow for 60fps budget: %v/tick", perTick)
	}
}

type noopHTTP struct{}

func (noopHTTP) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{Body: io.NopCloser(bytes.NewReader([]byte(`{"on":true}`)))}, nil
}
