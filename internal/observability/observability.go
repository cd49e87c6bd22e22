// Package observability implements the read-only outputs of §6.4 plus the
// supplemental heartbeat/thermal status and rotating diagnostic snapshots
// named in SPEC_FULL.md §3. It owns no state of its own beyond what it
// reads from the other packages' stores (§6.5: nothing is persisted here).
package observability

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/lumenbridge/lumenbridge/internal/audiostate"
	"github.com/lumenbridge/lumenbridge/internal/config"
	"github.com/lumenbridge/lumenbridge/internal/ddp"
	"github.com/lumenbridge/lumenbridge/internal/logx"
)

// AudioDiagnostics is §6.4's audio_diagnostics output.
type AudioDiagnostics struct {
	Source     string `json:"source"`
	SampleRate int    `json:"sample_rate"`
	Stereo     bool   `json:"stereo"`
	Running    bool   `json:"running"`
}

// AudioMetrics is §6.4's audio_metrics output: §3's snapshot, with the
// magnitude spectrum optionally omitted for size.
type AudioMetrics struct {
	Energy      float64   `json:"energy"`
	EnergyLeft  float64   `json:"energy_left"`
	EnergyRight float64   `json:"energy_right"`
	Bass        float64   `json:"bass"`
	Mid         float64   `json:"mid"`
	Treble      float64   `json:"treble"`
	Beat        float64   `json:"beat"`
	TempoBPM    float64   `json:"tempo_bpm"`
	Magnitude   []float64 `json:"magnitude,omitempty"`
	SampleRate  int       `json:"sample_rate"`
}

// DDPStats is §6.4's ddp_stats output.
type DDPStats struct {
	TxBytes uint64 `json:"tx_bytes"`
	RxBytes uint64 `json:"rx_bytes"`
}

// LocalDriverStatus is §6.4's local_driver_status output.
type LocalDriverStatus struct {
	Initialized     bool `json:"initialized"`
	TargetFPS       int  `json:"target_fps"`
	SegmentCount    int  `json:"segment_count"`
	GlobalCurrentMA int  `json:"global_current_ma"`
	GlobalBrightness int `json:"global_brightness"`
	Enabled         bool `json:"enabled"`
}

// ThermalStatus is the supplemental temperature-aware throttle readout
// (SPEC_FULL.md §3, grounded on original_source's temperature_monitor.cpp).
type ThermalStatus struct {
	CelsiusKnown bool    `json:"celsius_known"`
	Celsius      float64 `json:"celsius,omitempty"`
	Throttling   bool    `json:"throttling"`
}

// Collector assembles the §6.4 outputs plus supplemental diagnostics from
// the other packages' live stores; it is a read-only view, never a writer.
type Collector struct {
	audio *audiostate.Store
	ddpTx *ddp.Transmitter
}

func NewCollector(audio *audiostate.Store, ddpTx *ddp.Transmitter) *Collector {
	return &Collector{audio: audio, ddpTx: ddpTx}
}

func (c *Collector) AudioDiagnostics(sourceKind config.AudioSourceKind, sampleRate int, stereo bool) AudioDiagnostics {
	return AudioDiagnostics{
		Source:     string(sourceKind),
		SampleRate: sampleRate,
		Stereo:     stereo,
		Running:    c.audio.Running(),
	}
}

// AudioMetricsSnapshot returns §6.4's audio_metrics; includeMagnitude
// controls whether the (potentially large) spectrum is attached.
func (c *Collector) AudioMetricsSnapshot(includeMagnitude bool) AudioMetrics {
	m := c.audio.Snapshot()
	out := AudioMetrics{
		Energy: m.Energy, EnergyLeft: m.EnergyLeft, EnergyRight: m.EnergyRight,
		Bass: m.Bass, Mid: m.Mid, Treble: m.Treble,
		Beat: m.Beat, TempoBPM: m.TempoBPM, SampleRate: m.SampleRate,
	}
	if includeMagnitude {
		out.Magnitude = m.Magnitude
	}
	return out
}

func (c *Collector) DDPStatsSnapshot() DDPStats {
	tx, rx := c.ddpTx.Stats.Snapshot()
	return DDPStats{TxBytes: tx, RxBytes: rx}
}

// LocalDriverStatusSnapshot reports the aggregate local-output posture
// from a decoded snapshot (no hardware probing beyond what's already
// known from config + the driver's own Init bookkeeping is in scope
// here — see localdrv.Driver for the live channel table).
func LocalDriverStatusSnapshot(snap *config.Snapshot, initialized bool) LocalDriverStatus {
	enabled := false
	for _, ls := range snap.LocalSinks {
		if ls.Enabled {
			enabled = true
			break
		}
	}
	return LocalDriverStatus{
		Initialized:      initialized,
		TargetFPS:        snap.TargetFPS,
		SegmentCount:     len(snap.LocalSinks),
		GlobalCurrentMA:  snap.GlobalCurrentMA,
		GlobalBrightness: snap.GlobalBrightness,
		Enabled:          enabled,
	}
}

// Thermal evaluates a raw temperature reading against the derate
// thresholds the scheduler applies (kept here so observability and the
// scheduler agree on what "throttling" means).
func Thermal(celsius float64, ok bool) ThermalStatus {
	if !ok {
		return ThermalStatus{}
	}
	return ThermalStatus{CelsiusKnown: true, Celsius: celsius, Throttling: celsius > 70.0}
}

// SnapshotWriter periodically writes a JSON diagnostic snapshot to a
// strftime-patterned rotating file path, mirroring the teacher's
// telemetry.go/waypoint.go timestamped-filename idiom.
type SnapshotWriter struct {
	pattern *strftime.Strftime
	log     *logx.Logger
}

// NewSnapshotWriter compiles pathPattern (an strftime pattern, e.g.
// "/var/log/lumenbridge/snapshot-%Y%m%d-%H%M%S.json").
func NewSnapshotWriter(pathPattern string, log *logx.Logger) (*SnapshotWriter, error) {
	f, err := strftime.New(pathPattern)
	if err != nil {
		return nil, fmt.Errorf("compiling snapshot path pattern %q: %w", pathPattern, err)
	}
	return &SnapshotWriter{pattern: f, log: log}, nil
}

// Write renders v as JSON to the pattern's path for the current time.
func (w *SnapshotWriter) Write(v any) error {
	path := w.pattern.FormatString(time.Now())
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		w.log.Warn("observability: snapshot write failed", "path", path, "err", err)
		return err
	}
	return nil
}
