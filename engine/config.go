package engine

import (
	"fmt"

	"github.com/cwbudde/algo-fxhost/dsp/effectchain"
	"github.com/cwbudde/algo-fxhost/dsp/effects/pitch"
	"github.com/cwbudde/algo-fxhost/dsp/param"
)

// Sync modes.
const (
	SyncDirty  = "dirty"
	SyncAlways = "always"
)

// Degraded modes.
const (
	DegradedSilence     = "silence"
	DegradedPassThrough = "pass-through"
)

// PitchConfig holds the initial controls of one output channel's shifter.
type PitchConfig struct {
	Shift     float64 `mapstructure:"shift"`
	Window    float64 `mapstructure:"window"`
	Crossfade float64 `mapstructure:"crossfade"`
}

// Config describes an engine. Field tags follow the keys read by the fxhost
// command.
type Config struct {
	// ModulePath is the wasm module to host. Empty runs the pitch stage only.
	ModulePath string `mapstructure:"module"`
	// Mix is one of "sum", "replace" or "pass-through".
	Mix string `mapstructure:"mix"`
	// Degraded is what a failed module emits: "silence" or "pass-through".
	Degraded string `mapstructure:"degraded"`
	// ParamPrefix is prepended to module control labels.
	ParamPrefix string `mapstructure:"param_prefix"`
	// Sync is "dirty" (push changed values) or "always" (push every block).
	Sync string `mapstructure:"sync"`

	Channels   int `mapstructure:"channels"`
	SampleRate int `mapstructure:"sample_rate"`
	BlockSize  int `mapstructure:"block_size"`

	// Pitch enables one shifter per output channel.
	Pitch bool `mapstructure:"pitch"`
	// PitchChannels holds per-channel defaults; missing channels use the
	// shifter defaults.
	PitchChannels []PitchConfig `mapstructure:"pitch_channels"`

	// MemoryLimitPages caps module memory in 64 KiB pages; 0 keeps the
	// runtime default.
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages"`
}

// DefaultConfig returns a stereo configuration with the octave-down left,
// octave-up right pitch pair.
func DefaultConfig() Config {
	return Config{
		Mix:         effectchain.MixSum.String(),
		Degraded:    DegradedSilence,
		ParamPrefix: param.DefaultPrefix,
		Sync:        SyncDirty,
		Channels:    2,
		SampleRate:  48000,
		BlockSize:   512,
		Pitch:       true,
		PitchChannels: []PitchConfig{
			{Shift: -12, Window: pitch.DefaultWindow, Crossfade: pitch.DefaultCrossfade},
			{Shift: 12, Window: pitch.DefaultWindow, Crossfade: pitch.DefaultCrossfade},
		},
	}
}

type resolved struct {
	mix        effectchain.MixPolicy
	degraded   effectchain.Degraded
	syncAlways bool
}

func (c Config) resolve() (resolved, error) {
	var r resolved

	mix, err := effectchain.ParseMixPolicy(c.Mix)
	if err != nil {
		return r, fmt.Errorf("engine: %w", err)
	}
	r.mix = mix

	switch c.Degraded {
	case DegradedSilence, "":
		r.degraded = effectchain.DegradedSilence
	case DegradedPassThrough:
		r.degraded = effectchain.DegradedPassThrough
	default:
		return r, fmt.Errorf("engine: unknown degraded mode %q", c.Degraded)
	}

	switch c.Sync {
	case SyncDirty, "":
	case SyncAlways:
		r.syncAlways = true
	default:
		return r, fmt.Errorf("engine: unknown sync mode %q", c.Sync)
	}

	if c.Channels <= 0 {
		return r, fmt.Errorf("engine: channels must be > 0: %d", c.Channels)
	}
	return r, nil
}

// pitchDefaults returns the initial controls of channel ch.
func (c Config) pitchDefaults(ch int) PitchConfig {
	p := PitchConfig{Shift: pitch.DefaultShift, Window: pitch.DefaultWindow, Crossfade: pitch.DefaultCrossfade}
	if ch < len(c.PitchChannels) {
		q := c.PitchChannels[ch]
		p.Shift = q.Shift
		if q.Window > 0 {
			p.Window = q.Window
		}
		if q.Crossfade > 0 {
			p.Crossfade = q.Crossfade
		}
	}
	return p
}
