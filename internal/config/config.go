// Package config holds the decoded configuration snapshot consumed by the
// core (§6.3). The HTTP/JSON configuration service, persistent store and
// schema migration that produce this snapshot are out of scope (§1); this
// package only models the decoded shape and its YAML encoding, matching
// the teacher's deviceid.go pattern of a single gopkg.in/yaml.v3 decode of
// an externally-owned data file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type DriverKind string

const (
	DriverNone  DriverKind = "none"
	DriverLocal DriverKind = "local"
	DriverMixed DriverKind = "mixed"
)

type AudioSourceKind string

const (
	AudioSourceNone      AudioSourceKind = "none"
	AudioSourceDirectPCM AudioSourceKind = "direct-pcm-stream"
	AudioSourceLineInput AudioSourceKind = "line-input"
)

// Direction of a WLED-style effect's scan.
type Direction string

const (
	Forward Direction = "forward"
	Reverse Direction = "reverse"
)

// ReactiveMode names the LEDFx-style audio reactive preset (§4.8 step 2).
type ReactiveMode string

const (
	ReactiveFull   ReactiveMode = "full"
	ReactiveKick   ReactiveMode = "kick"
	ReactiveBass   ReactiveMode = "bass"
	ReactiveMids   ReactiveMode = "mids"
	ReactiveTreble ReactiveMode = "treble"
)

// AudioChannel selects which channel energy feeds the audio modulation path.
type AudioChannel string

const (
	ChannelMix   AudioChannel = "mix"
	ChannelLeft  AudioChannel = "left"
	ChannelRight AudioChannel = "right"
)

// EffectAssignment binds an effect name to its parameters (§3).
type EffectAssignment struct {
	Effect              string       `yaml:"effect"`
	Speed               int          `yaml:"speed"`      // 0-255
	Intensity           int          `yaml:"intensity"`  // 0-255
	Brightness          int          `yaml:"brightness"` // 0-255
	BrightnessOverride  *int         `yaml:"brightness_override,omitempty"`
	Direction           Direction    `yaml:"direction"`
	Color1              string       `yaml:"color1"`
	Color2              string       `yaml:"color2"`
	Color3              string       `yaml:"color3"`
	Palette             string       `yaml:"palette,omitempty"`
	Gradient            string       `yaml:"gradient,omitempty"`
	BlendMode           string       `yaml:"blend_mode,omitempty"`
	AudioLink           bool         `yaml:"audio_link"`
	AudioProfile        string       `yaml:"audio_profile,omitempty"`
	AudioChannel        AudioChannel `yaml:"audio_channel"`
	ReactiveMode        ReactiveMode `yaml:"reactive_mode"`
	CustomBandMinHz     float64      `yaml:"custom_band_min_hz,omitempty"`
	CustomBandMaxHz     float64      `yaml:"custom_band_max_hz,omitempty"`
	SelectedBands       []string     `yaml:"selected_bands,omitempty"`
	BandGainLow         float64      `yaml:"band_gain_low"`
	BandGainMid         float64      `yaml:"band_gain_mid"`
	BandGainHigh        float64      `yaml:"band_gain_high"`
	AmplitudeScale      float64      `yaml:"amplitude_scale"`
	BrightnessCompress  float64      `yaml:"brightness_compress"`
	BeatResponse        bool         `yaml:"beat_response"`
	AttackMs            int          `yaml:"attack_ms"`
	ReleaseMs           int          `yaml:"release_ms"`
	GammaColor          float64      `yaml:"gamma_color"`
	GammaBrightness     float64      `yaml:"gamma_brightness"`
	ApplyGamma          bool         `yaml:"apply_gamma"`
}

// LocalSink is a locally-driven hardware output channel (§3).
type LocalSink struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	StartIndex  int     `yaml:"start_index"`
	Length      int     `yaml:"length"`
	RenderOrder int     `yaml:"render_order"`
	Pin         int     `yaml:"pin"`
	Channel     int     `yaml:"channel"`
	Chipset     string  `yaml:"chipset"`
	ColorOrder  string  `yaml:"color_order"`
	Enabled     bool    `yaml:"enabled"`
	Reverse     bool    `yaml:"reverse"`
	Mirror      bool    `yaml:"mirror"`
	MatrixW     int     `yaml:"matrix_w,omitempty"`
	MatrixH     int     `yaml:"matrix_h,omitempty"`
	Serpentine  bool    `yaml:"serpentine,omitempty"`
	Vertical    bool    `yaml:"vertical,omitempty"`
	PowerCapMA  int     `yaml:"power_cap_ma,omitempty"`
	GammaColor  float64 `yaml:"gamma_color"`
	GammaBright float64 `yaml:"gamma_brightness"`
	ApplyGamma  bool    `yaml:"apply_gamma"`
	Effect      EffectAssignment `yaml:"effect"`
}

// RemoteSink is a DDP-addressable networked node (§3).
type RemoteSink struct {
	ID             string           `yaml:"id"`
	Name           string           `yaml:"name"`
	Address        string           `yaml:"address"`
	Port           int              `yaml:"port"`
	LEDCount       int              `yaml:"led_count"`
	SegmentCount   int              `yaml:"segment_count"`
	Active         bool             `yaml:"active"`
	AutoDiscovered bool             `yaml:"auto_discovered"`
	MatrixW        int              `yaml:"matrix_w,omitempty"`
	MatrixH        int              `yaml:"matrix_h,omitempty"`
	Serpentine     bool             `yaml:"serpentine,omitempty"`
	Vertical       bool             `yaml:"vertical,omitempty"`
	LastSeenUnixMs int64            `yaml:"-"`
	Effect         EffectAssignment `yaml:"effect"`
}

// CompositeMember references a start offset/length slice of another sink.
type CompositeMember struct {
	SinkID string `yaml:"sink_id"`
	Start  int    `yaml:"start"`
	Length int    `yaml:"length"`
}

// VirtualComposite addresses an ordered list of members as one ribbon (§3).
type VirtualComposite struct {
	ID      string             `yaml:"id"`
	Name    string             `yaml:"name"`
	Enabled bool               `yaml:"enabled"`
	Members []CompositeMember  `yaml:"members"`
	Effect  EffectAssignment   `yaml:"effect"`
}

// PCMSource configures the network PCM ingest path (§6.3).
type PCMSource struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	LatencyMs int    `yaml:"latency_ms"`
	PreferUDP bool   `yaml:"prefer_udp"`
}

// LineInputSource configures the local-capture fallback path (§6.3): a
// portaudio device opened in-process instead of a network PCM socket.
type LineInputSource struct {
	Enabled    bool   `yaml:"enabled"`
	DeviceName string `yaml:"device_name"`
	LatencyMs  int    `yaml:"latency_ms"`
}

// Audio settings (§6.3).
type Audio struct {
	SourceKind  AudioSourceKind `yaml:"source_kind"`
	SampleRate  int             `yaml:"sample_rate"`
	FrameMs     int             `yaml:"frame_duration_ms"`
	FFTSize     int             `yaml:"fft_size"`
	Stereo      bool            `yaml:"stereo"`
	Sensitivity float64         `yaml:"sensitivity"`
	PCM         PCMSource       `yaml:"pcm"`
	LineInput   LineInputSource `yaml:"line_input"`
}

// ClampFFTSize rounds FFTSize down to the nearest power of two, clamped to
// [64, 4096], matching §6.3's "fft_size (>=64, clamped to powers of two
// <=4096)".
func (a *Audio) ClampFFTSize() {
	n := a.FFTSize
	if n < 64 {
		n = 64
	}
	if n > 4096 {
		n = 4096
	}
	p := 64
	for p*2 <= n {
		p *= 2
	}
	a.FFTSize = p
}

// Binding pairs a sink (by id) with an effect assignment plus transport
// flags (§3).
type Binding struct {
	SinkID           string `yaml:"sink_id"`
	DirectStream     bool   `yaml:"direct_stream"`
	TargetFPSOverride int   `yaml:"target_fps_override,omitempty"`
	Enabled          bool   `yaml:"enabled"`
}

// Snapshot is the full decoded configuration consumed by the scheduler.
type Snapshot struct {
	DriverKind        DriverKind         `yaml:"driver_kind"`
	TargetFPS         int                `yaml:"target_fps"`
	GlobalCurrentMA   int                `yaml:"global_current_ma"`
	GlobalBrightness  int                `yaml:"global_brightness"`
	SupplyVoltage     float64            `yaml:"supply_voltage"`
	SupplyWatts       float64            `yaml:"supply_watts"`
	AutoPowerLimit    bool               `yaml:"auto_power_limit"`
	ParallelOutputs   int                `yaml:"parallel_outputs"`
	DMAEnabled        bool               `yaml:"dma_enabled"`
	DDPPort           int                `yaml:"ddp_port"`
	LocalSinks        []LocalSink        `yaml:"local_sinks"`
	RemoteSinks       []RemoteSink       `yaml:"remote_sinks"`
	Composites        []VirtualComposite `yaml:"composites"`
	Audio             Audio              `yaml:"audio"`
	Bindings          []Binding          `yaml:"bindings"`
}

// Load decodes a YAML snapshot from path, applying defaults the way the
// teacher's config layer leaves unspecified numeric fields at their zero
// value and the caller fills in sane defaults afterward.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding config %q: %w", path, err)
	}
	s.applyDefaults()
	return &s, nil
}

func (s *Snapshot) applyDefaults() {
	if s.TargetFPS <= 0 {
		s.TargetFPS = 60
	}
	if s.TargetFPS > 240 {
		s.TargetFPS = 240
	}
	if s.DDPPort <= 0 {
		s.DDPPort = 4048
	}
	if s.Audio.FFTSize == 0 {
		s.Audio.FFTSize = 1024
	}
	s.Audio.ClampFFTSize()
}
