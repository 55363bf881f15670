package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cwbudde/algo-fxhost/engine"
)

const envPrefix = "FXHOST"

var rootCmd = &cobra.Command{
	Use:           "fxhost",
	Short:         "Host a wasm DSP module followed by a delay-line pitch shifter",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	addConfigFlags(rootCmd)
	rootCmd.PersistentFlags().StringArray("set", nil, "parameter override id=value in the parameter's own range (repeatable)")
}

// addConfigFlags registers the persistent flags read by loadConfig.
func addConfigFlags(cmd *cobra.Command) {
	def := engine.DefaultConfig()
	f := cmd.PersistentFlags()

	f.String("config", "", "config file (yaml, toml or json)")
	f.String("log-level", "info", "log level: debug, info, warn, error")

	f.String("module", def.ModulePath, "wasm module compiled with the Faust wasm backend")
	f.String("mix", def.Mix, "mix policy: sum, replace or pass-through")
	f.String("degraded", def.Degraded, "output of a failed module: silence or pass-through")
	f.String("param-prefix", def.ParamPrefix, "host id prefix of module controls")
	f.String("sync", def.Sync, "parameter sync: dirty or always")
	f.Int("channels", def.Channels, "output channels")
	f.Int("sample-rate", def.SampleRate, "sample rate in Hz when no input file sets it")
	f.Int("block-size", def.BlockSize, "frames per processing block")
	f.Bool("pitch", def.Pitch, "run one pitch shifter per output channel")
	f.Uint32("memory-limit-pages", def.MemoryLimitPages, "module memory limit in 64 KiB pages (0 = runtime default)")
}

// configKeys maps config keys to persistent flag names.
var configKeys = map[string]string{
	"module":             "module",
	"mix":                "mix",
	"degraded":           "degraded",
	"param_prefix":       "param-prefix",
	"sync":               "sync",
	"channels":           "channels",
	"sample_rate":        "sample-rate",
	"block_size":         "block-size",
	"pitch":              "pitch",
	"memory_limit_pages": "memory-limit-pages",
}

// loadConfig merges defaults, the optional config file, FXHOST_* variables
// and flags, in increasing priority.
func loadConfig(cmd *cobra.Command) (engine.Config, error) {
	v := viper.New()

	def := engine.DefaultConfig()
	v.SetDefault("module", def.ModulePath)
	v.SetDefault("mix", def.Mix)
	v.SetDefault("degraded", def.Degraded)
	v.SetDefault("param_prefix", def.ParamPrefix)
	v.SetDefault("sync", def.Sync)
	v.SetDefault("channels", def.Channels)
	v.SetDefault("sample_rate", def.SampleRate)
	v.SetDefault("block_size", def.BlockSize)
	v.SetDefault("pitch", def.Pitch)
	v.SetDefault("memory_limit_pages", def.MemoryLimitPages)
	v.SetDefault("pitch_channels", []map[string]any{
		{"shift": def.PitchChannels[0].Shift, "window": def.PitchChannels[0].Window, "crossfade": def.PitchChannels[0].Crossfade},
		{"shift": def.PitchChannels[1].Shift, "window": def.PitchChannels[1].Window, "crossfade": def.PitchChannels[1].Crossfade},
	})

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, flag := range configKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return engine.Config{}, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return engine.Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg engine.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return engine.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a console logger at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel
	return cfg.Build()
}

func loggerFor(cmd *cobra.Command) (*zap.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return newLogger(level)
}

type override struct {
	id    string
	value float64
}

func parseOverrides(specs []string) ([]override, error) {
	out := make([]override, 0, len(specs))
	for _, s := range specs {
		id, raw, ok := strings.Cut(s, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("parameter override %q: want id=value", s)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter override %q: %w", s, err)
		}
		out = append(out, override{id: id, value: v})
	}
	return out, nil
}

func applyOverrides(cmd *cobra.Command, e *engine.Engine) error {
	specs, _ := cmd.Flags().GetStringArray("set")
	overrides, err := parseOverrides(specs)
	if err != nil {
		return err
	}
	for _, o := range overrides {
		if err := e.SetPlain(o.id, o.value); err != nil {
			return err
		}
	}
	return nil
}
