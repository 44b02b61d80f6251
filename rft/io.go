package rft

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Conn is the datagram channel consumed by the sender and receiver.
// *net.UDPConn and any net.PacketConn satisfy it.
type Conn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	SetReadDeadline(t time.Time) error
}

// isDeadline reports whether err is an expired read deadline.
func isDeadline(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// writeDatagram sends buf as a single datagram.
func writeDatagram(conn Conn, buf []byte, addr net.Addr) error {
	n, err := conn.WriteTo(buf, addr)
	if err != nil {
		return WrapError(ErrIO, "send datagram", err)
	}
	if n != len(buf) {
		return NewError(ErrIO, fmt.Sprintf("short send: %d of %d bytes", n, len(buf)))
	}
	return nil
}

// interruptOnDone moves the read deadline to now once ctx is done so that a
// blocked ReadFrom returns. The returned function stops the watch.
func interruptOnDone(ctx context.Context, conn Conn) func() bool {
	return context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
}

// cancelled converts a done context into a transfer error.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return WrapError(ErrCancelled, "transfer cancelled", err)
	}
	return nil
}
