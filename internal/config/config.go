// Package config loads the bundlelower command-line configuration.
package config

import (
	"bytes"
	stderrors "errors"
	"os"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"

	"github.com/wippyai/bundle-lower/bundles"
	"github.com/wippyai/bundle-lower/errors"
)

const (
	// ColorAuto colors output only when stdout is a terminal.
	ColorAuto ColorMode = "auto"
	// ColorAlways forces colored output.
	ColorAlways ColorMode = "always"
	// ColorNever disables colored output.
	ColorNever ColorMode = "never"

	// FormatConsole is zap's human-readable encoding.
	FormatConsole LogFormat = "console"
	// FormatJSON is zap's JSON encoding.
	FormatJSON LogFormat = "json"
)

// ColorMode selects when output is styled.
type ColorMode string

// LogFormat selects the log encoding.
type LogFormat string

// Config is the full CLI configuration.
type Config struct {
	Lower  Lower  `toml:"lower"`
	Verify Verify `toml:"verify"`
	Log    Log    `toml:"log"`
	Output Output `toml:"output"`
}

// Lower configures the lowering pass.
type Lower struct {
	// MaxCleanupIterations bounds the cleanup worklist; 0 is automatic.
	MaxCleanupIterations int  `toml:"max_cleanup_iterations"`
	SkipCleanup          bool `toml:"skip_cleanup"`
}

// Verify selects which checks run around the pass.
type Verify struct {
	Input         bool `toml:"input"`
	Output        bool `toml:"output"`
	LinearBundles bool `toml:"linear_bundles"`
}

// Log configures the zap logger.
type Log struct {
	Level  string    `toml:"level"`
	Format LogFormat `toml:"format"`
}

// Output configures terminal rendering.
type Output struct {
	Color ColorMode `toml:"color"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Verify: Verify{Input: true, Output: true},
		Log:    Log{Level: "warn", Format: FormatConsole},
		Output: Output{Color: ColorAuto},
	}
}

// Load reads a TOML file over the defaults. Keys missing from the file
// keep their default; unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "reading "+path)
	}
	return Parse(data)
}

// Parse decodes TOML configuration over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if stderrors.As(err, &strict) {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Detail("unknown configuration keys:\n%s", strict.String()).
				Build()
		}
		var decode *toml.DecodeError
		if stderrors.As(err, &decode) {
			row, _ := decode.Position()
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Line(row).
				Cause(err).
				Build()
		}
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decoding configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs error
	if c.Lower.MaxCleanupIterations < 0 {
		errs = multierr.Append(errs, invalid("lower.max_cleanup_iterations", c.Lower.MaxCleanupIterations))
	}
	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		errs = multierr.Append(errs, invalid("log.format", c.Log.Format))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = multierr.Append(errs, invalid("log.level", c.Log.Level))
	}
	switch c.Output.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		errs = multierr.Append(errs, invalid("output.color", c.Output.Color))
	}
	return errs
}

// Pass returns the lowering options of c.
func (c *Config) Pass() bundles.Config {
	return bundles.Config{
		MaxCleanupIterations: c.Lower.MaxCleanupIterations,
		SkipCleanup:          c.Lower.SkipCleanup,
	}
}

func invalid(key string, value any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Location(key).
		Detail("invalid value %v", value).
		Build()
}
