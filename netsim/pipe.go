// Package netsim provides datagram channels for exercising transfer
// protocols: an in-memory pipe and a wrapper that drops, corrupts,
// duplicates or reorders outgoing datagrams.
package netsim

import (
	"net"
	"os"
	"sync"
	"time"
)

// QueueSize is the number of datagrams an endpoint buffers before further
// datagrams are dropped, as a full socket buffer would.
const QueueSize = 1024

// Addr names an in-memory endpoint.
type Addr string

func (a Addr) Network() string { return "mem" }
func (a Addr) String() string  { return string(a) }

type datagram struct {
	data []byte
	from net.Addr
}

// Endpoint is one side of an in-memory datagram pipe. Everything written to
// an endpoint arrives at its peer regardless of the destination address.
// Endpoint is safe for concurrent use.
type Endpoint struct {
	addr Addr
	in   chan datagram
	peer *Endpoint

	mu       sync.Mutex
	deadline time.Time
	wake     chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

// Pipe returns two connected endpoints with the given addresses.
func Pipe(a, b string) (*Endpoint, *Endpoint) {
	ea := newEndpoint(Addr(a))
	eb := newEndpoint(Addr(b))
	ea.peer = eb
	eb.peer = ea
	return ea, eb
}

func newEndpoint(addr Addr) *Endpoint {
	return &Endpoint{
		addr:   addr,
		in:     make(chan datagram, QueueSize),
		wake:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// ReadFrom blocks for the next datagram, the read deadline or Close.
func (e *Endpoint) ReadFrom(p []byte) (int, net.Addr, error) {
	for {
		e.mu.Lock()
		deadline, wake := e.deadline, e.wake
		e.mu.Unlock()

		var (
			timer   *time.Timer
			expired <-chan time.Time
		)
		if !deadline.IsZero() {
			d := time.Until(deadline)
			if d <= 0 {
				return 0, nil, os.ErrDeadlineExceeded
			}
			timer = time.NewTimer(d)
			expired = timer.C
		}

		select {
		case dg := <-e.in:
			stopTimer(timer)
			return copy(p, dg.data), dg.from, nil
		case <-expired:
			return 0, nil, os.ErrDeadlineExceeded
		case <-wake:
			// deadline changed
			stopTimer(timer)
		case <-e.closed:
			stopTimer(timer)
			return 0, nil, net.ErrClosed
		}
	}
}

// WriteTo queues a copy of p at the peer. A full queue drops the datagram.
func (e *Endpoint) WriteTo(p []byte, _ net.Addr) (int, error) {
	select {
	case <-e.closed:
		return 0, net.ErrClosed
	default:
	}

	dg := datagram{data: append([]byte(nil), p...), from: e.addr}
	select {
	case e.peer.in <- dg:
	default:
	}
	return len(p), nil
}

// SetReadDeadline sets the deadline for pending and future reads.
// The zero value disables the deadline.
func (e *Endpoint) SetReadDeadline(t time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deadline = t
	close(e.wake)
	e.wake = make(chan struct{})
	return nil
}

// LocalAddr returns the endpoint address.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.addr
}

// Close unblocks pending reads. Further reads and writes fail.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() { close(e.closed) })
	return nil
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
