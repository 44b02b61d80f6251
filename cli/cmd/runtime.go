package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/drunlade/go-rft/cli/config"
	"github.com/drunlade/go-rft/log"
	"github.com/drunlade/go-rft/netsim"
	"github.com/drunlade/go-rft/rft"
)

// ExitErrHandler prints the error message and exits with the code carried
// by cli.Exit errors, or 1 for anything else.
func ExitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitTransferFailed)
}

// newLogger builds the transfer logger writing to the app's error writer.
func newLogger(c *cli.Context, cfg *config.Config, role, peer string) (*log.Logger, error) {
	return log.NewLogger(log.NewTransferMeta(role, peer), log.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
}

// wrapConn layers fault injection and datagram tracing over a socket.
// The returned netsim.Conn is nil when no fault is configured.
func wrapConn(conn rft.Conn, cfg *config.Config, logger *log.SugaredLogger, name string) (rft.Conn, *netsim.Conn) {
	var sim *netsim.Conn
	if rates := cfg.Rates(); !rates.Zero() {
		sim = netsim.Wrap(conn, netsim.RandomPolicy(rates, cfg.Simulate.Seed))
		conn = sim
		logger.Warn("simulating faults: drop=%v corrupt=%v duplicate=%v reorder=%v seed=%d",
			rates.Drop, rates.Corrupt, rates.Duplicate, rates.Reorder, cfg.Simulate.Seed)
	}
	if level, _ := log.ParseLevel(cfg.Log.Level); level == zapcore.DebugLevel {
		conn = rft.NewLoggingConn(conn, logger, name)
	}
	return conn, sim
}

// resultFields flattens a transfer result for structured logging.
func resultFields(res *rft.Result, sim *netsim.Conn) map[string]any {
	fields := map[string]any{
		"name":        res.Name,
		"bytes":       res.Bytes,
		"units":       res.Units,
		"duration_ms": res.Duration.Milliseconds(),
		"blake2b":     res.DigestHex(),
		"stats":       res.Stats,
	}
	if sim != nil {
		fields["simulated"] = sim.Counters()
	}
	return fields
}
