package rft

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	path "path/filepath"
	"time"
)

// Session wires a datagram channel to files on disk.
// Each SendFile or ReceiveFile call runs one transfer with fresh state.
type Session struct {
	conn   Conn
	remote net.Addr

	config    *Config
	callbacks *Callbacks
	logger    Logger
	stats     *Stats
}

// Config holds session configuration shared by both directions.
type Config struct {
	FrameSize  int
	Timeout    time.Duration
	MaxRetries int

	IdleTimeout time.Duration
	Linger      time.Duration
	Trailer     bool

	// Dir is where received files are created.
	Dir string

	ProgressInterval time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		FrameSize:        DefaultFrameSize,
		Timeout:          100 * time.Millisecond,
		MaxRetries:       0,
		IdleTimeout:      0,
		Linger:           time.Second,
		Trailer:          false,
		Dir:              ".",
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the session configuration.
func WithConfig(config *Config) Option {
	return func(s *Session) {
		s.config = config
	}
}

// WithCallbacks sets the session callbacks.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(s *Session) {
		s.callbacks = callbacks
	}
}

// WithLogger sets a logger for protocol debugging.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithStats collects counters into stats instead of a per-transfer Stats.
func WithStats(stats *Stats) Option {
	return func(s *Session) {
		s.stats = stats
	}
}

// NewSession creates a session on conn. remote is the receiver's address
// and is only used for sending.
func NewSession(conn Conn, remote net.Addr, opts ...Option) *Session {
	s := &Session{
		conn:   conn,
		remote: remote,
		config: DefaultConfig(),
		logger: NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendFile transmits the local file at localPath under remoteName.
func (s *Session) SendFile(ctx context.Context, localPath, remoteName string) (*Result, error) {
	if s.remote == nil {
		return nil, NewError(ErrConfig, "session has no remote address")
	}

	var (
		src  io.ReadCloser
		size int64
		err  error
	)
	if s.callbacks != nil && s.callbacks.OnFileOpen != nil {
		src, size, err = s.callbacks.OnFileOpen(localPath)
		if err != nil {
			err = WrapError(ErrIO, "open "+localPath, err)
		}
	} else {
		src, size, err = openFile(localPath)
	}
	if err != nil {
		return nil, err
	}
	defer src.Close()

	sender := NewSender(s.conn, s.remote, &SenderConfig{
		FrameSize:        s.config.FrameSize,
		Timeout:          s.config.Timeout,
		MaxRetries:       s.config.MaxRetries,
		Trailer:          s.config.Trailer,
		ProgressInterval: s.config.ProgressInterval,
		Logger:           s.logger,
		Callbacks:        s.callbacks,
		Stats:            s.stats,
	})
	return sender.SendFile(ctx, remoteName, src, size)
}

// ReceiveFile serves one incoming transfer.
func (s *Session) ReceiveFile(ctx context.Context) (*Result, error) {
	receiver := NewReceiver(s.conn, &ReceiverConfig{
		FrameSize:        s.config.FrameSize,
		Dir:              s.config.Dir,
		IdleTimeout:      s.config.IdleTimeout,
		Trailer:          s.config.Trailer,
		Linger:           s.config.Linger,
		ProgressInterval: s.config.ProgressInterval,
		Logger:           s.logger,
		Callbacks:        s.callbacks,
		Stats:            s.stats,
	})
	return receiver.Receive(ctx)
}

// openFile opens a regular file for sending and reports its size.
func openFile(name string) (io.ReadCloser, int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, 0, WrapError(ErrIO, "open source", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, WrapError(ErrIO, "stat source", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, 0, NewError(ErrConfig, fmt.Sprintf("%s is not a regular file", name))
	}
	return f, info.Size(), nil
}

// SanitizeName reduces a peer-supplied destination name to a base name.
func SanitizeName(name string) (string, error) {
	base := path.Base(path.Clean("/" + path.FromSlash(name)))
	switch base {
	case "", ".", "..", string(path.Separator):
		return "", NewError(ErrProtocol, fmt.Sprintf("invalid destination name %q", name))
	}
	return base, nil
}

// createFile creates or truncates the destination file inside dir.
func createFile(dir, name string) (io.WriteCloser, error) {
	base, err := SanitizeName(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path.Join(dir, base), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, WrapError(ErrIO, "create destination", err)
	}
	return f, nil
}
