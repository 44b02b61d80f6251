// Package cmd provides the commands behind the rftsend and rftrecv binaries.
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/drunlade/go-rft/cli/config"
)

// Exit codes shared by both binaries.
const (
	exitSuccess        = 0
	exitTransferFailed = 1
	exitUsage          = 2
)

// commonFlags are accepted by both binaries.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to YAML config file",
			EnvVars: []string{"RFT_CONFIG"},
		},
		&cli.IntFlag{
			Name:  "frame-size",
			Usage: "Frame size in bytes; must match the peer",
		},
		&cli.BoolFlag{
			Name:  "trailer",
			Usage: "Send (or verify) an END unit carrying size and digest",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: console or json",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress the progress line",
		},
		&cli.Float64Flag{
			Name:  "simulate-drop",
			Usage: "Probability of dropping an outgoing datagram",
		},
		&cli.Float64Flag{
			Name:  "simulate-corrupt",
			Usage: "Probability of corrupting an outgoing datagram",
		},
		&cli.Float64Flag{
			Name:  "simulate-duplicate",
			Usage: "Probability of duplicating an outgoing datagram",
		},
		&cli.Float64Flag{
			Name:  "simulate-reorder",
			Usage: "Probability of delaying an outgoing datagram behind the next one",
		},
		&cli.Int64Flag{
			Name:  "simulate-seed",
			Usage: "Seed for fault injection",
		},
	}
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then flags that were set explicitly.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("frame-size") {
		cfg.FrameSize = c.Int("frame-size")
	}
	if c.IsSet("trailer") {
		cfg.Trailer = c.Bool("trailer")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("simulate-drop") {
		cfg.Simulate.Drop = c.Float64("simulate-drop")
	}
	if c.IsSet("simulate-corrupt") {
		cfg.Simulate.Corrupt = c.Float64("simulate-corrupt")
	}
	if c.IsSet("simulate-duplicate") {
		cfg.Simulate.Duplicate = c.Float64("simulate-duplicate")
	}
	if c.IsSet("simulate-reorder") {
		cfg.Simulate.Reorder = c.Float64("simulate-reorder")
	}
	if c.IsSet("simulate-seed") {
		cfg.Simulate.Seed = c.Int64("simulate-seed")
	}

	// Command-specific flags; lookups of undefined flags report unset.
	if c.IsSet("timeout") {
		cfg.Timeout = config.Duration{Duration: c.Duration("timeout")}
	}
	if c.IsSet("max-retries") {
		cfg.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("output-dir") {
		cfg.OutputDir = c.String("output-dir")
	}
	if c.IsSet("idle-timeout") {
		cfg.IdleTimeout = config.Duration{Duration: c.Duration("idle-timeout")}
	}
	if c.IsSet("linger") {
		cfg.Linger = config.Duration{Duration: c.Duration("linger")}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// usageError reports a bad invocation with the usage exit code.
func usageError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), exitUsage)
}
