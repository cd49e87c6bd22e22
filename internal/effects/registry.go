package effects

import (
	"math"
	"math/rand"
	"strings"

	"github.com/lumenbridge/lumenbridge/internal/audiostate"
	"github.com/lumenbridge/lumenbridge/internal/config"
	"github.com/lumenbridge/lumenbridge/internal/effects/ledfx"
	"github.com/lumenbridge/lumenbridge/internal/effects/render"
	"github.com/lumenbridge/lumenbridge/internal/effects/wled"
	"github.com/lumenbridge/lumenbridge/internal/engineselect"
	"github.com/lumenbridge/lumenbridge/internal/envelope"
)

// Renderer ties the effect registries, per-bucket state and audio
// modulation pipeline together into the single entry point the scheduler
// calls once per (sink, frame) (§4.8, §4.9).
type Renderer struct {
	State    *StateStore
	Envelope *envelope.Store
	Audio    *audiostate.Store
	rng      *rand.Rand
}

func NewRenderer(audio *audiostate.Store) *Renderer {
	return &Renderer{
		State:    NewStateStore(),
		Envelope: envelope.NewStore(),
		Audio:    audio,
		rng:      rand.New(rand.NewSource(1)),
	}
}

// Render produces one frame's RGB buffer for sinkID, dispatching to the
// wled or ledfx registry per §4.8's engine-selection rule and, for
// audio-linked assignments, computing the smoothed audio modulation
// scalar (band selection -> gains -> amplitude scale -> compress ->
// attack/release envelope) before calling the effect function.
func (r *Renderer) Render(sinkID string, ea config.EffectAssignment, ledCount int, frameIndex int64, elapsedSeconds float64, fps int, globalBrightness byte) []byte {
	name := strings.ToLower(ea.Effect)
	engine := engineselect.SelectEngine(name, ea.AudioLink)

	audioMod := 0.0
	if ea.AudioLink {
		audioMod = r.computeAudioMod(sinkID, ea, fps, elapsedSeconds)
	}

	p := render.Params{
		LEDCount:         ledCount,
		FrameIndex:       frameIndex,
		GlobalBrightness: globalBrightness,
		FPS:              fps,
		Gradient:         ea.Gradient,
		C1:               render.ParseHexColor(ea.Color1),
		C2:               render.ParseHexColor(ea.Color2),
		C3:               render.ParseHexColor(ea.Color3),
		Brightness:       clampByte(ea.Brightness, ea.BrightnessOverride),
		AudioMod:         audioMod,
		Speed:            clamp255(ea.Speed),
		Intensity:        clamp255(ea.Intensity),
		Reverse:          ea.Direction == config.Reverse,
		ElapsedSeconds:   elapsedSeconds,
		Rand:             r.rng,
	}

	key := BucketKey{Effect: name, SinkID: sinkID, Length: ledCount}

	switch engine {
	case engineselect.LEDFx:
		fn, ok := ledfx.Registry[name]
		if !ok {
			fn = ledfx.Registry["waves"]
		}
		bucket := r.State.Bucket(key, bucketSizeFor(name, ledCount))
		return fn(p, bucket)
	default:
		fn, ok := wled.Registry[name]
		if !ok {
			fn = wled.Registry["solid"]
		}
		bucket := r.State.Bucket(key, ledCount)
		return fn(p, bucket)
	}
}

// bucketSizeFor gives rippleflow's fixed ring-buffer state enough room
// regardless of strip length (§4.8's per-effect state shapes vary).
func bucketSizeFor(name string, ledCount int) int {
	if name == "rippleflow" {
		return 2*ledfx.MaxRipples + 1
	}
	return ledCount
}

func clamp255(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func clampByte(v int, override *int) byte {
	if override != nil {
		v = *override
	}
	return clamp255(v)
}

// computeAudioMod implements §4.8's audio modulation path step by step:
// resolve the reactive feature, apply the beat multiplier, the
// audio-profile gain and clamp mapping, amplitude scale and brightness
// compression, a second beat multiplier for beat_response, then smooth
// the result through the attack/release envelope (§4.11). When the audio
// source is unavailable, §7 requires audio-reactive effects to keep
// animating off an internal oscillator rather than go static.
func (r *Renderer) computeAudioMod(sinkID string, ea config.EffectAssignment, fps int, elapsedSeconds float64) float64 {
	var feature, beat float64
	if r.Audio != nil && r.Audio.Running() {
		m := r.Audio.Snapshot()
		feature = r.reactiveFeature(ea, m)
		beat = m.Beat
	} else {
		feature = audiostate.FallbackEnergy(elapsedSeconds)
		beat = audiostate.FallbackBeat(elapsedSeconds)
	}

	weighted := feature * (0.6 + beat*0.4) // steps 2-3

	gain := profileGain(ea.AudioProfile)
	audioMod := clamp01(0.4 + weighted*0.8*gain) // step 4

	scale := ea.AmplitudeScale
	if scale == 0 {
		scale = 1 // unset amplitude_scale means unscaled
	}
	audioMod *= scale
	if ea.BrightnessCompress > 0 {
		audioMod = math.Pow(audioMod, 1/(1+ea.BrightnessCompress)) // step 5
	}

	if ea.BeatResponse {
		audioMod *= 0.6 + beat*0.4 // step 6
	}

	attack := ea.AttackMs
	if attack <= 0 {
		attack = 10
	}
	release := ea.ReleaseMs
	if release <= 0 {
		release = 200
	}

	key := envelope.Key{DeviceID: sinkID, Segment: 0, EffectName: ea.Effect}
	return r.Envelope.Smooth(key, audioMod, fps, attack, release) // step 7
}

// profileGain implements §4.8 step 4's audio-profile gain table.
func profileGain(profile string) float64 {
	switch profile {
	case "ledfx_energy":
		return 1.1
	case "ledfx_tempo":
		return 1.05
	default:
		return 1.0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// reactiveFeature implements §4.8 step 1 (channel energy selection) and
// step 2 (selected bands / custom band / reactive-mode preset).
func (r *Renderer) reactiveFeature(ea config.EffectAssignment, m audiostate.Metrics) float64 {
	if len(ea.SelectedBands) > 0 {
		sum := 0.0
		for _, b := range ea.SelectedBands {
			sum += r.Audio.BandValue(b)
		}
		return sum / float64(len(ea.SelectedBands))
	}

	if ea.CustomBandMinHz > 0 && ea.CustomBandMaxHz > ea.CustomBandMinHz {
		return r.Audio.CustomEnergy(ea.CustomBandMinHz, ea.CustomBandMaxHz)
	}

	energy := channelEnergy(ea.AudioChannel, m)
	switch ea.ReactiveMode {
	case config.ReactiveKick:
		return m.Bass*1.2*0.7 + m.Beat*0.3
	case config.ReactiveBass:
		return m.Bass * gainOrOne(ea.BandGainLow)
	case config.ReactiveMids:
		return m.Mid * gainOrOne(ea.BandGainMid)
	case config.ReactiveTreble:
		return m.Treble * gainOrOne(ea.BandGainHigh)
	default: // config.ReactiveFull and unset
		return energy*0.4 + m.Mid*0.25 + m.Bass*0.2 + m.Treble*0.15
	}
}

// channelEnergy picks step 1's source energy (mix/left/right).
func channelEnergy(ch config.AudioChannel, m audiostate.Metrics) float64 {
	switch ch {
	case config.ChannelLeft:
		return m.EnergyLeft
	case config.ChannelRight:
		return m.EnergyRight
	default:
		return m.Energy
	}
}

func gainOrOne(g float64) float64 {
	if g == 0 {
		return 1
	}
	return g
}
