package rft

import (
	"fmt"
	"net"
	"time"
)

// Logger interface for protocol logging
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// NoopLogger does nothing
type NoopLogger struct{}

func (NoopLogger) Debug(format string, args ...interface{}) {}
func (NoopLogger) Info(format string, args ...interface{})  {}
func (NoopLogger) Warn(format string, args ...interface{})  {}
func (NoopLogger) Error(format string, args ...interface{}) {}

// FormatFrameLog describes a raw datagram for logging. Frames and replies are
// told apart by size; content is truncated to 64 bytes.
func FormatFrameLog(direction string, buf []byte) string {
	if !Verify(buf) {
		return fmt.Sprintf("%s %d bytes (checksum invalid)", direction, len(buf))
	}

	if len(buf) == ReplySize {
		r, _ := DecodeReply(buf)
		return fmt.Sprintf("%s %s seq=%d", direction, r.Status, r.Sequence)
	}

	f, err := DecodeFrame(buf)
	if err != nil {
		return fmt.Sprintf("%s %d bytes (%v)", direction, len(buf), err)
	}
	msg := fmt.Sprintf("%s %s seq=%d len=%d", direction, f.Kind, f.Sequence, f.Length)
	if f.Kind == KindName {
		msg += fmt.Sprintf(", name=%q", f.Payload)
	} else if len(f.Payload) > 0 {
		if len(f.Payload) > 64 {
			msg += fmt.Sprintf(", data=%q...[truncated]", f.Payload[:64])
		} else {
			msg += fmt.Sprintf(", data=%q", f.Payload)
		}
	}
	return msg
}

// LoggingConn wraps a Conn and logs every datagram at debug level.
type LoggingConn struct {
	conn   Conn
	logger Logger
	name   string
}

func NewLoggingConn(conn Conn, logger Logger, name string) *LoggingConn {
	return &LoggingConn{
		conn:   conn,
		logger: logger,
		name:   name,
	}
}

func (lc *LoggingConn) ReadFrom(p []byte) (int, net.Addr, error) {
	n, addr, err := lc.conn.ReadFrom(p)
	if err != nil {
		if !isDeadline(err) {
			lc.logger.Error("%s: read error: %v", lc.name, err)
		}
		return n, addr, err
	}
	lc.logger.Debug("%s: %s from %v", lc.name, FormatFrameLog("recv", p[:n]), addr)
	return n, addr, err
}

func (lc *LoggingConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	n, err := lc.conn.WriteTo(p, addr)
	if err != nil {
		lc.logger.Error("%s: write error: %v", lc.name, err)
		return n, err
	}
	lc.logger.Debug("%s: %s to %v", lc.name, FormatFrameLog("send", p), addr)
	return n, err
}

func (lc *LoggingConn) SetReadDeadline(t time.Time) error {
	return lc.conn.SetReadDeadline(t)
}
