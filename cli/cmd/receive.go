package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/drunlade/go-rft/rft"
)

// ReceiveApp returns the rftrecv application.
func ReceiveApp() *cli.App {
	return &cli.App{
		Name:      "rftrecv",
		Usage:     "Receive one file reliably over UDP",
		ArgsUsage: "<port>",
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:  "bind",
				Usage: "Local address to listen on",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory for the received file",
			},
			&cli.DurationFlag{
				Name:  "idle-timeout",
				Usage: "Stop once the transfer has been silent this long (0 = until interrupted)",
			},
			&cli.DurationFlag{
				Name:  "linger",
				Usage: "Keep acknowledging duplicates this long after a verified END unit",
			},
		),
		Action:          receiveAction,
		HideHelpCommand: true,
	}
}

func receiveAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("usage: %s [flags] <port>", c.App.Name)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return usageError("%v", err)
	}
	port, err := parsePort(c.Args().First())
	if err != nil {
		return usageError("%v", err)
	}
	if info, err := os.Stat(cfg.OutputDir); err != nil || !info.IsDir() {
		return usageError("output directory %s is not usable", cfg.OutputDir)
	}

	local := &net.UDPAddr{Port: port}
	if bind := c.String("bind"); bind != "" {
		ip := net.ParseIP(bind)
		if ip == nil {
			return usageError("invalid bind address %q", bind)
		}
		local.IP = ip
	}

	logger, err := newLogger(c, cfg, "receiver", local.String())
	if err != nil {
		return usageError("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	udp, err := net.ListenUDP("udp", local)
	if err != nil {
		return cli.Exit(fmt.Sprintf("listen on %s: %v", local, err), exitTransferFailed)
	}
	defer udp.Close()

	sugar := logger.Sugar()
	conn, sim := wrapConn(udp, cfg, sugar, "receiver")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progress := newProgressLine(c.App.ErrWriter, c.Bool("quiet"))
	session := rft.NewSession(conn, nil,
		rft.WithConfig(cfg.SessionConfig()),
		rft.WithLogger(sugar),
		rft.WithCallbacks(progress.callbacks()),
	)

	res, err := session.ReceiveFile(ctx)
	switch {
	case err == nil:
	case rft.IsCancelled(err) && res.Units > 0:
		// Without a trailer or idle timeout an interrupt is the normal end.
		progress.finish()
		logger.Warn("receive interrupted", map[string]any{"name": res.Name, "bytes": res.Bytes})
	default:
		logger.Error("transfer failed", map[string]any{"error": err.Error()})
		return cli.Exit(fmt.Sprintf("receive: %v", err), exitTransferFailed)
	}

	logger.Info("transfer complete", resultFields(res, sim))
	return nil
}
