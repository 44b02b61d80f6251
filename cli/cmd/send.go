package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/drunlade/go-rft/rft"
)

// SendApp returns the rftsend application.
func SendApp() *cli.App {
	return &cli.App{
		Name:      "rftsend",
		Usage:     "Send one file reliably over UDP",
		ArgsUsage: "<host> <port> <file> <remote-name>",
		Flags: append(commonFlags(),
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Retransmission timeout",
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Retransmissions of one unit before giving up (0 = unlimited)",
			},
		),
		Action:          sendAction,
		HideHelpCommand: true,
	}
}

func sendAction(c *cli.Context) error {
	if c.NArg() != 4 {
		return usageError("usage: %s [flags] <host> <port> <file> <remote-name>", c.App.Name)
	}
	host, portArg, localPath, remoteName := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2), c.Args().Get(3)

	cfg, err := loadConfig(c)
	if err != nil {
		return usageError("%v", err)
	}
	port, err := parsePort(portArg)
	if err != nil {
		return usageError("%v", err)
	}
	if remoteName == "" || len(remoteName) > rft.MaxPayload(cfg.FrameSize) {
		return usageError("remote name must be 1 to %d bytes", rft.MaxPayload(cfg.FrameSize))
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return usageError("cannot read %s: %v", localPath, err)
	}
	if !info.Mode().IsRegular() {
		return usageError("%s is not a regular file", localPath)
	}
	remote, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return usageError("cannot resolve %s: %v", host, err)
	}

	logger, err := newLogger(c, cfg, "sender", remote.String())
	if err != nil {
		return usageError("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	udp, err := net.ListenUDP("udp", nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open socket: %v", err), exitTransferFailed)
	}
	defer udp.Close()

	sugar := logger.Sugar()
	conn, sim := wrapConn(udp, cfg, sugar, "sender")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progress := newProgressLine(c.App.ErrWriter, c.Bool("quiet"))
	session := rft.NewSession(conn, remote,
		rft.WithConfig(cfg.SessionConfig()),
		rft.WithLogger(sugar),
		rft.WithCallbacks(progress.callbacks()),
	)

	res, err := session.SendFile(ctx, localPath, remoteName)
	if err != nil {
		logger.Error("transfer failed", map[string]any{"file": localPath, "error": err.Error()})
		return cli.Exit(fmt.Sprintf("send %s: %v", localPath, err), exitTransferFailed)
	}

	logger.Info("transfer complete", resultFields(res, sim))
	return nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}
