// Package engineselect implements the effect-engine selector of §4.12: a
// read-only metadata table mapping effect names to their default engine
// and audio capability, shipped with the binary.
package engineselect

import "strings"

type Engine string

const (
	WLED  Engine = "wled"
	LEDFx Engine = "ledfx"
)

type Category string

const (
	CategorySolidColor Category = "solid"
	CategoryAnimated    Category = "animated"
	CategoryAudio       Category = "audio"
)

// Meta is one row of the metadata table (§4.8's "engine selection" table).
type Meta struct {
	AudioReactive       bool
	SupportsAudioToggle bool
	DefaultEngine       Engine
	Category            Category

	// AudioVariant overrides the engine used when audio_link is true, for
	// the handful of names (e.g. "plasma") that bind a distinct LEDFx-style
	// implementation instead of just toggling their WLED one. Zero value
	// means "no override, use the DefaultEngine rule below".
	AudioVariant Engine
}

var table = map[string]Meta{
	// WLED-style, non audio-reactive by default.
	"solid":    {false, false, WLED, CategorySolidColor, ""},
	"blink":    {false, true, WLED, CategoryAnimated, ""},
	"breathe":  {false, true, WLED, CategoryAnimated, ""},
	"colorloop": {false, true, WLED, CategoryAnimated, ""},
	"rainbow":  {false, true, WLED, CategoryAnimated, ""},
	"colorwipe": {false, true, WLED, CategoryAnimated, ""},
	"theaterchase": {false, true, WLED, CategoryAnimated, ""},
	"chase":    {false, true, WLED, CategoryAnimated, ""},
	"running":  {false, true, WLED, CategoryAnimated, ""},
	"sine":     {false, true, WLED, CategoryAnimated, ""},
	"twinkle":  {false, true, WLED, CategoryAnimated, ""},
	"sparkle":  {false, true, WLED, CategoryAnimated, ""},
	"strobe":   {false, true, WLED, CategoryAnimated, ""},
	"gradient": {false, true, WLED, CategoryAnimated, ""},
	"scanner":  {false, true, WLED, CategoryAnimated, ""},
	"larson":   {false, true, WLED, CategoryAnimated, ""},
	"meteor":   {false, true, WLED, CategoryAnimated, ""},
	"comet":    {false, true, WLED, CategoryAnimated, ""},
	// plasma is the one name that binds two genuinely distinct
	// implementations: WLED's sum-of-three-sines by default, but LEDFx's
	// scrolling-gradient variant when audio_link is on (§4.8).
	"plasma":   {false, true, WLED, CategoryAnimated, LEDFx},
	"pride":    {false, true, WLED, CategoryAnimated, ""},
	"fire2012": {false, true, WLED, CategoryAnimated, ""},

	// LEDFx-style, audio-reactive by default.
	"fire":     {true, true, LEDFx, CategoryAudio, ""},
	"matrix":   {true, true, LEDFx, CategoryAudio, ""},
	"waves":    {true, true, LEDFx, CategoryAudio, ""},
	"rippleflow": {true, true, LEDFx, CategoryAudio, ""},
	"rain":     {true, true, LEDFx, CategoryAudio, ""},
	"aura":     {true, true, LEDFx, CategoryAudio, ""},
	"hyperspace": {true, true, LEDFx, CategoryAudio, ""},
}

// normalize lowercases and strips spaces/underscores so "Ripple Flow",
// "ripple_flow" and "rippleflow" all resolve to the same row.
func normalize(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, "-", "")
	return name
}

// Lookup resolves an effect name to its metadata, with substring fallback
// both ways (case-insensitive). Unknown names default to WLED, non audio
// reactive.
func Lookup(name string) Meta {
	key := normalize(name)
	if m, ok := table[key]; ok {
		return m
	}
	for k, m := range table {
		if strings.Contains(key, k) || strings.Contains(k, key) {
			return m
		}
	}
	return Meta{DefaultEngine: WLED, Category: CategoryAnimated}
}

// SelectEngine implements §4.8's engine-selection rule: if audio_link is
// false, use the effect's default engine. If audio_link is true and the row
// names an explicit AudioVariant, use that; otherwise if the default engine
// is WLED, stay WLED (its own audio-reactive variant applies); otherwise
// resolve to LEDFx.
func SelectEngine(name string, audioLink bool) Engine {
	m := Lookup(name)
	if !audioLink {
		return m.DefaultEngine
	}
	if m.AudioVariant != "" {
		return m.AudioVariant
	}
	if m.DefaultEngine == WLED {
		return WLED
	}
	return LEDFx
}
