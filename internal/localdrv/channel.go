package localdrv

import (
	"fmt"
	"io"
	"sync"

	"github.com/lumenbridge/lumenbridge/internal/colorpipe"
	"github.com/lumenbridge/lumenbridge/internal/lberrors"
	"github.com/warthog618/go-gpiocdev"
)

// encoderState is the two-state machine of §4.4: state 0 encodes the bit
// stream, state 1 encodes the reset symbol, then wraps to state 0.
type encoderState int

const (
	stateBits encoderState = iota
	stateReset
)

// channel is one initialized output (§3 "channel record").
type channel struct {
	pin        int
	index      int
	chipset    Chipset
	order      colorpipe.Order
	gammaColor float64
	gammaBrig  float64
	applyGamma bool
	buf        []byte // owned pixel buffer, led_count*bytes_per_pixel
	ledCount   int
	line       gpioLine
	state      encoderState
	ready      bool
}

// gpioLine is the subset of *gpiocdev.Line the driver needs, so tests can
// substitute a fake instead of claiming a real kernel GPIO chip.
type gpioLine interface {
	SetValue(value int) error
	Close() error
}

// LineRequester matches gpiocdev.RequestLine's signature so production
// code and tests can both satisfy Driver.requestLine.
type LineRequester func(chipName string, offset int, opts ...gpiocdev.ReqOption) (gpioLine, error)

func defaultLineRequester(chipName string, offset int, opts ...gpiocdev.ReqOption) (gpioLine, error) {
	return gpiocdev.RequestLine(chipName, offset, opts...)
}

// Driver owns the table of initialized channels, keyed by (pin, channel
// index), plus an optional multi-output synchronizer (§4.4). One mutex
// guards the table; pixel processing below runs on stack-local scratch
// outside the lock (§5).
type Driver struct {
	mu          sync.Mutex
	gpioChip    string
	channels    map[channelKey]*channel
	sync        *syncManager
	requestLine LineRequester

	// Debug, if set, receives one line per transmit describing the pulse
	// (pin, chipset, byte count) — wired to a pty slave in
	// tests so a harness can watch driver activity the way a logic
	// analyzer would (see channel_test.go).
	Debug io.Writer
}

type channelKey struct {
	pin   int
	index int
}

func New(gpioChip string) *Driver {
	return &Driver{
		gpioChip:    gpioChip,
		channels:    make(map[channelKey]*channel),
		requestLine: defaultLineRequester,
	}
}

// Init allocates (or reuses) a channel for (pin, index, chipsetName,
// colorOrder). dmaEnabled is accepted for interface parity with the
// teacher's hardware-init calls but does not change the Go-side state
// machine (§4.4: "allocate a channel at 10 MHz ... mem-block size of 64
// symbols and a 4-deep transmit queue" describes a peripheral this
// portable driver does not itself drive; see DESIGN.md).
func (d *Driver) Init(pin, index int, chipsetName, colorOrderName string, gammaColor, gammaBrightness float64, applyGamma bool, dmaEnabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := channelKey{pin, index}
	if existing, ok := d.channels[key]; ok && existing.ready {
		return nil
	}

	cs := Lookup(chipsetName)
	order := colorpipe.ParseOrder(colorOrderName, cs.BytesPerPixel)

	line, err := d.requestLine(d.gpioChip, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return lberrors.Wrap(lberrors.ErrHardware, fmt.Sprintf("claim gpio line %d", pin))
	}

	d.channels[key] = &channel{
		pin:        pin,
		index:      index,
		chipset:    cs,
		order:      order,
		gammaColor: gammaColor,
		gammaBrig:  gammaBrightness,
		applyGamma: applyGamma,
		line:       line,
		state:      stateBits,
		ready:      true,
	}
	return nil
}

// Render implements §4.4's render operation: validate, grow the owned
// buffer, process length pixels through the color pipeline into it, then
// dispatch a non-blocking transmit of the full buffer.
func (d *Driver) Render(pin, index int, rgb []byte, startPixel, length int) error {
	if len(rgb) < 3*length {
		return lberrors.Wrap(lberrors.ErrValidation, "render input shorter than 3*length")
	}

	d.mu.Lock()
	ch, ok := d.channels[channelKey{pin, index}]
	if !ok || !ch.ready {
		d.mu.Unlock()
		return lberrors.Wrap(lberrors.ErrValidation, "render on uninitialized channel")
	}
	bpp := ch.chipset.BytesPerPixel
	needed := (startPixel + length) * bpp
	if len(ch.buf) < needed {
		grown := make([]byte, needed)
		copy(grown, ch.buf)
		ch.buf = grown
	}
	ch.ledCount = max(ch.ledCount, startPixel+length)
	order := ch.order
	gammaColor, gammaBrig, applyGamma := ch.gammaColor, ch.gammaBrig, ch.applyGamma
	buf := ch.buf
	d.mu.Unlock()

	// Pixel processing on stack-local scratch, outside the mutex.
	scratch := make([]byte, bpp)
	for i := 0; i < length; i++ {
		src := [3]byte{rgb[i*3], rgb[i*3+1], rgb[i*3+2]}
		colorpipe.ProcessPixel(src, scratch, order, bpp, gammaColor, gammaBrig, applyGamma)
		copy(buf[(startPixel+i)*bpp:], scratch)
	}

	return d.transmit(pin, index, buf)
}

// transmit advances the two-state encoder machine and hands the frame to
// the channel's line. Memory-full / hardware-busy conditions would pause
// mid-state in production firmware; here the call completes synchronously
// and always returns to stateBits, since there is no real queue depth to
// exhaust in this portable implementation (see DESIGN.md).
func (d *Driver) transmit(pin, index int, buf []byte) error {
	d.mu.Lock()
	ch, ok := d.channels[channelKey{pin, index}]
	d.mu.Unlock()
	if !ok {
		return lberrors.Wrap(lberrors.ErrValidation, "transmit on unknown channel")
	}

	if d.sync != nil && d.sync.holds(pin, index) {
		d.sync.stage(pin, index, buf)
		return nil
	}

	return d.pulse(ch, buf)
}

// pulse walks the encoder state machine once per call: bits, then the
// chipset's reset symbol, then wraps. A real timed pulse engine is
// hardware-specific DMA/PIO out of scope for this portable package; the
// line toggle here stands in for "a transmit was issued" (see DESIGN.md).
func (d *Driver) pulse(ch *channel, buf []byte) error {
	ch.state = stateBits
	if err := ch.line.SetValue(1); err != nil {
		return lberrors.Wrap(lberrors.ErrHardware, "pulse bit stream")
	}

	ch.state = stateReset
	if err := ch.line.SetValue(0); err != nil {
		return lberrors.Wrap(lberrors.ErrHardware, "pulse reset symbol")
	}
	ch.state = stateBits

	if d.Debug != nil {
		fmt.Fprintf(d.Debug, "pulse pin=%d chipset=%s bytes=%d\n", ch.pin, ch.chipset.Name, len(buf))
	}
	return nil
}

// Deinit disables and releases one channel, removing it from the sync
// manager if present.
func (d *Driver) Deinit(pin, index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := channelKey{pin, index}
	ch, ok := d.channels[key]
	if !ok {
		return nil
	}
	if d.sync != nil {
		d.sync.remove(pin, index)
	}
	err := ch.line.Close()
	delete(d.channels, key)
	if err != nil {
		return lberrors.Wrap(lberrors.ErrHardware, "release gpio line")
	}
	return nil
}

// DeinitAll releases every channel and the synchronizer.
func (d *Driver) DeinitAll() {
	d.mu.Lock()
	keys := make([]channelKey, 0, len(d.channels))
	for k := range d.channels {
		keys = append(keys, k)
	}
	d.sync = nil
	d.mu.Unlock()

	for _, k := range keys {
		_ = d.Deinit(k.pin, k.index)
	}
}

// InitSync binds 1-4 already-initialized channels into a synchronizer so
// their next transmits start together (§4.4). Re-initialization replaces
// any existing synchronizer.
func (d *Driver) InitSync(members [][2]int) error {
	if len(members) < 1 || len(members) > 4 {
		return lberrors.Wrap(lberrors.ErrValidation, "sync group must have 1-4 members")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range members {
		if _, ok := d.channels[channelKey{m[0], m[1]}]; !ok {
			return lberrors.Wrap(lberrors.ErrValidation, "sync member not initialized")
		}
	}
	d.sync = newSyncManager(members)
	return nil
}

// FlushSync fires every staged transmit in the synchronizer at once,
// simulating the bit-exact simultaneous start (§4.4).
func (d *Driver) FlushSync() error {
	d.mu.Lock()
	sm := d.sync
	d.mu.Unlock()
	if sm == nil {
		return nil
	}
	staged := sm.drain()
	for key, buf := range staged {
		d.mu.Lock()
		ch := d.channels[key]
		d.mu.Unlock()
		if ch == nil {
			continue
		}
		if err := d.pulse(ch, buf); err != nil {
			return err
		}
	}
	return nil
}
