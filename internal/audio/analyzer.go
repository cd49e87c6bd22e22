package audio

import (
	"context"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/lumenbridge/lumenbridge/internal/audiostate"
	"github.com/lumenbridge/lumenbridge/internal/config"
	"github.com/lumenbridge/lumenbridge/internal/logx"
)

const (
	chunkSamples   = 2048 // fixed ingest chunk, int16 samples
	nudgeInterval  = 10 * time.Millisecond
	reconnectDelay = 1500 * time.Millisecond
)

type bandDef struct {
	lo, hi, weight float64
}

var bassBands = []bandDef{{20, 60, 6}, {60, 120, 5}, {120, 250, 4}}
var midBands = []bandDef{{250, 500, 3}, {500, 1000, 2.8}, {1000, 2000, 2.5}}
var trebleBands = []bandDef{{2000, 4000, 2.2}, {4000, 8000, 2.0}, {8000, 12000, 1.8}}

// Analyzer connects to a configured PCM source and continuously publishes
// audio metrics into a Store (§4.6). It runs on a dedicated goroutine; the
// spec's "pinned to CPU 1, elevated priority" affinity has no portable Go
// equivalent and is noted as an open question resolution in DESIGN.md.
type Analyzer struct {
	sourceKind config.AudioSourceKind
	pcm        config.PCMSource
	lineIn     config.LineInputSource
	sr         int
	fft        int
	stereo     bool

	store  *audiostate.Store
	log    *logx.Logger

	window []float64
	windowLen int

	beats *beatDetector
}

func NewAnalyzer(cfg config.Audio, store *audiostate.Store, log *logx.Logger) *Analyzer {
	return &Analyzer{
		sourceKind: cfg.SourceKind,
		pcm:        cfg.PCM,
		lineIn:     cfg.LineInput,
		sr:         cfg.SampleRate,
		fft:        cfg.FFTSize,
		stereo:     cfg.Stereo,
		store:      store,
		log:        log,
		beats:      newBeatDetector(),
	}
}

// Run blocks, reconnecting on failure, until ctx is cancelled (§5
// cancellation semantics: cooperative flag checked at loop tops). The
// source kind (§6.3) selects between the network PCM path and the
// portaudio local-capture fallback; both feed the same jitter buffer.
func (a *Analyzer) Run(ctx context.Context) error {
	switch a.sourceKind {
	case config.AudioSourceDirectPCM:
		if !a.pcm.Enabled {
			return nil
		}
	case config.AudioSourceLineInput:
		if !a.lineIn.Enabled {
			return nil
		}
	default:
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		var err error
		if a.sourceKind == config.AudioSourceLineInput {
			err = a.runLineInput(ctx)
		} else {
			err = a.runOnce(ctx)
		}
		if err != nil {
			a.store.SetRunning(false) // §7: drive effects onto the fallback oscillator
			a.log.Warn("audio source connection lost", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(reconnectDelay):
			}
			continue
		}
		return nil
	}
}

func (a *Analyzer) runOnce(ctx context.Context) error {
	network := "tcp"
	if a.pcm.PreferUDP {
		network = "udp"
	}
	addr := fmt.Sprintf("%s:%d", a.pcm.Host, a.pcm.Port)
	conn, err := net.Dial(network, addr)
	if err != nil {
		return fmt.Errorf("connecting to pcm source %s: %w", addr, err)
	}
	defer conn.Close()
	a.store.SetRunning(true)

	channels := 1
	if a.stereo {
		channels = 2
	}
	jb := newJitterBuffer(a.sr, channels, a.pcm.LatencyMs)

	nudgeTicker := time.NewTicker(nudgeInterval)
	defer nudgeTicker.Stop()

	readBuf := make([]byte, chunkSamples*2*channels)

	readDone := make(chan error, 1)
	samplesCh := make(chan []int16, 4)

	go func() {
		for {
			n, rerr := readFull(conn, readBuf)
			if rerr != nil {
				readDone <- rerr
				return
			}
			samples := bytesToInt16(readBuf[:n])
			select {
			case samplesCh <- samples:
			case <-ctx.Done():
				readDone <- nil
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readDone:
			if err != nil {
				return fmt.Errorf("reading pcm: %w", err)
			}
			return nil
		case samples := <-samplesCh:
			jb.Append(samples)
		case now := <-nudgeTicker.C:
			jb.Nudge(now)
		}

		for jb.HasWindow(a.fft) {
			a.analyzeFrame(jb, time.Now())
		}
	}
}

// runLineInput opens a portaudio input stream on the configured device
// (falling back to the system default when DeviceName is empty) and feeds
// its callback buffers into the same jitter buffer the network path uses,
// so §4.6's analysis loop below is identical regardless of source kind.
func (a *Analyzer) runLineInput(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	dev, err := a.findInputDevice()
	if err != nil {
		return err
	}

	channels := 1
	if a.stereo {
		channels = 2
	}
	const framesPerBuffer = 512

	samplesCh := make(chan []int16, 4)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  time.Duration(a.lineIn.LatencyMs) * time.Millisecond,
		},
		SampleRate:      float64(a.sr),
		FramesPerBuffer: framesPerBuffer,
	}

	callback := func(in []int16) {
		cp := make([]int16, len(in))
		copy(cp, in)
		select {
		case samplesCh <- cp:
		default:
			// jitter buffer consumer is behind; drop this chunk (§4.6
			// prefers bounded latency over buffering every sample).
		}
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return fmt.Errorf("opening portaudio stream on %q: %w", dev.Name, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("starting portaudio stream: %w", err)
	}
	defer stream.Stop()
	a.store.SetRunning(true)

	jb := newJitterBuffer(a.sr, channels, a.lineIn.LatencyMs)
	nudgeTicker := time.NewTicker(nudgeInterval)
	defer nudgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case samples := <-samplesCh:
			jb.Append(samples)
		case now := <-nudgeTicker.C:
			jb.Nudge(now)
		}

		for jb.HasWindow(a.fft) {
			a.analyzeFrame(jb, time.Now())
		}
	}
}

// findInputDevice resolves the configured device name to a portaudio
// device, or the host API's default input device when DeviceName is empty.
func (a *Analyzer) findInputDevice() (*portaudio.DeviceInfo, error) {
	if a.lineIn.DeviceName == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("resolving default input device: %w", err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating audio devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == a.lineIn.DeviceName && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", a.lineIn.DeviceName)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}

func (a *Analyzer) analyzeFrame(jb *jitterBuffer, frameTimestamp time.Time) {
	mono, energyL, energyR := jb.TakeWindow(a.fft)
	bufferedMs := jb.bufferedMs()
	jb.ConsumeWindow(a.fft)

	if a.windowLen != a.fft {
		a.window = hannWindow(a.fft)
		a.windowLen = a.fft
	}
	windowed := make([]float64, a.fft)
	for i, s := range mono {
		windowed[i] = s * a.window[i]
	}

	mag := magnitudeSpectrum(windowed)

	bass := weightedBandAverage(mag, a.sr, a.fft, bassBands) / 3
	mid := weightedBandAverage(mag, a.sr, a.fft, midBands) / 3
	treble := weightedBandAverage(mag, a.sr, a.fft, trebleBands) / 3
	bass = clampPt5(bass)
	mid = clampPt5(mid)
	treble = clampPt5(treble)

	n := float64(len(mono))
	energy := sqrtClamp((energyL + energyR) / n)
	energyLNorm := sqrtClamp(energyL / n)
	energyRNorm := sqrtClamp(energyR / n)

	envelope, bpm := a.beats.Update(frameTimestamp, energy, bass)

	m := audiostate.Metrics{
		Energy:      energy,
		EnergyLeft:  energyLNorm,
		EnergyRight: energyRNorm,
		Bass:        bass,
		Mid:         mid,
		Treble:      treble,
		Beat:        envelope,
		TempoBPM:    bpm,
		Magnitude:   mag,
		SampleRate:  a.sr,
		TimestampUs: frameTimestamp.UnixMicro() + int64(bufferedMs*1000),
		ProcessedUs: time.Now().UnixMicro(),
	}
	a.store.Publish(m)
}

func weightedBandAverage(mag []float64, sampleRate, fftSize int, bands []bandDef) float64 {
	var total float64
	for _, band := range bands {
		binLo := int(band.lo * float64(fftSize) / float64(sampleRate))
		binHi := int(band.hi * float64(fftSize) / float64(sampleRate))
		if binLo < 0 {
			binLo = 0
		}
		if binHi > len(mag) {
			binHi = len(mag)
		}
		if binLo >= binHi {
			continue
		}
		var sum float64
		for i := binLo; i < binHi; i++ {
			sum += mag[i]
		}
		avg := sum / float64(binHi-binLo)
		total += avg * band.weight
	}
	return total
}

func sqrtClamp(v float64) float64 {
	if v < 0 {
		v = 0
	}
	r := math.Sqrt(v)
	if r > 1 {
		r = 1
	}
	return r
}

func clampPt5(v float64) float64 {
	if v > 1.5 {
		return 1.5
	}
	if v < 0 {
		return 0
	}
	return v
}
