package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/drunlade/go-rft/log"
	"github.com/drunlade/go-rft/netsim"
	"github.com/drunlade/go-rft/rft"
)

// Config represents an rft.yaml configuration file.
// Values act as defaults for command flags; flags always override them.
type Config struct {
	FrameSize   int      `yaml:"frame_size"`
	Timeout     Duration `yaml:"timeout"`
	MaxRetries  int      `yaml:"max_retries"`
	IdleTimeout Duration `yaml:"idle_timeout"`
	Linger      Duration `yaml:"linger"`
	Trailer     bool     `yaml:"trailer"`
	OutputDir   string   `yaml:"output_dir"`

	Log      LogConfig      `yaml:"log"`
	Simulate SimulateConfig `yaml:"simulate"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SimulateConfig holds fault injection rates applied to outgoing datagrams.
type SimulateConfig struct {
	Drop      float64 `yaml:"drop"`
	Corrupt   float64 `yaml:"corrupt"`
	Duplicate float64 `yaml:"duplicate"`
	Reorder   float64 `yaml:"reorder"`
	Seed      int64   `yaml:"seed"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "100ms", "5s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "100ms" or "1m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		FrameSize:   rft.DefaultFrameSize,
		Timeout:     Duration{100 * time.Millisecond},
		MaxRetries:  300,
		IdleTimeout: Duration{10 * time.Second},
		Linger:      Duration{time.Second},
		Trailer:     false,
		OutputDir:   ".",
		Log: LogConfig{
			Level:  "info",
			Format: log.FormatConsole,
		},
	}
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.FrameSize < rft.MinFrameSize || c.FrameSize > rft.MaxFrameSize {
		errs = append(errs, fmt.Errorf("frame_size %d outside [%d, %d]", c.FrameSize, rft.MinFrameSize, rft.MaxFrameSize))
	}
	if c.Timeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", c.Timeout.Duration))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries))
	}
	if c.IdleTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("idle_timeout must not be negative, got %v", c.IdleTimeout.Duration))
	}
	if c.Linger.Duration < 0 {
		errs = append(errs, fmt.Errorf("linger must not be negative, got %v", c.Linger.Duration))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", log.FormatConsole, log.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", log.FormatConsole, log.FormatJSON, c.Log.Format))
	}
	if err := c.Rates().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SessionConfig converts c into a protocol session configuration.
func (c *Config) SessionConfig() *rft.Config {
	sc := rft.DefaultConfig()
	sc.FrameSize = c.FrameSize
	sc.Timeout = c.Timeout.Duration
	sc.MaxRetries = c.MaxRetries
	sc.IdleTimeout = c.IdleTimeout.Duration
	sc.Linger = c.Linger.Duration
	sc.Trailer = c.Trailer
	sc.Dir = c.OutputDir
	return sc
}

// Rates returns the configured fault injection rates.
func (c *Config) Rates() netsim.Rates {
	return netsim.Rates{
		Drop:      c.Simulate.Drop,
		Corrupt:   c.Simulate.Corrupt,
		Duplicate: c.Simulate.Duplicate,
		Reorder:   c.Simulate.Reorder,
	}
}
