// Package log provides structured logging with transfer context.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for structured records such as
//     transfer summaries
//   - SugaredLogger: printf-style logging that satisfies rft.Logger and is
//     handed to the protocol state machines
//
// Every entry carries the transfer_id, role and peer of the transfer.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// TransferMeta identifies the transfer a logger reports on.
type TransferMeta struct {
	TransferID string
	Role       string // "sender" or "receiver"
	Peer       string
}

// NewTransferMeta returns meta with a fresh random transfer ID.
func NewTransferMeta(role, peer string) TransferMeta {
	return TransferMeta{
		TransferID: uuid.NewString(),
		Role:       role,
		Peer:       peer,
	}
}

// Options selects level, encoding and destination.
type Options struct {
	Level  string
	Format string
	Output io.Writer // defaults to os.Stderr
}

// Logger provides structured logging with transfer context.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging with transfer context.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// ParseLevel converts a level name (debug, info, warn, error) to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// NewLogger creates a logger for one transfer.
func NewLogger(meta TransferMeta, opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	var encoder zapcore.Encoder
	switch opts.Format {
	case "", FormatConsole:
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)

	fields := []zap.Field{zap.String("transfer_id", meta.TransferID)}
	if meta.Role != "" {
		fields = append(fields, zap.String("role", meta.Role))
	}
	if meta.Peer != "" {
		fields = append(fields, zap.String("peer", meta.Peer))
	}

	return &Logger{zap: zap.New(core).With(fields...)}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, toFields(fields)...)
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, toFields(fields)...)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, toFields(fields)...)
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, toFields(fields)...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger sharing this logger's core and context.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

func toFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// Debug logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debug(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Info logs an info message with printf-style formatting.
func (s *SugaredLogger) Info(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warn logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warn(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Error logs an error message with printf-style formatting.
func (s *SugaredLogger) Error(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
