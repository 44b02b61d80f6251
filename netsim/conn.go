package netsim

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// PacketConn is the subset of net.PacketConn that Conn wraps.
type PacketConn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	SetReadDeadline(t time.Time) error
}

// Counters records what a Conn did to outgoing datagrams.
type Counters struct {
	Delivered  int64
	Dropped    int64
	Corrupted  int64
	Duplicated int64
	Reordered  int64
}

type held struct {
	data []byte
	addr net.Addr
}

// Conn injects faults into the datagrams written through it. Reads pass
// through untouched; wrap both ends to disturb both directions.
//
// A reordered datagram is held back and sent right after the next datagram
// written. If nothing else is written it is never sent.
type Conn struct {
	PacketConn

	mu     sync.Mutex
	policy Policy
	held   *held

	delivered, dropped, corrupted, duplicated, reordered atomic.Int64
}

// Wrap returns conn with policy applied to every write.
func Wrap(conn PacketConn, policy Policy) *Conn {
	return &Conn{PacketConn: conn, policy: policy}
}

// WriteTo applies the policy to p. Dropped datagrams report success.
func (c *Conn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	action := Deliver
	if c.policy != nil {
		action = c.policy.Decide(p)
	}

	switch action {
	case Drop:
		c.dropped.Add(1)
		return len(p), nil

	case Corrupt:
		c.corrupted.Add(1)
		bad := append([]byte(nil), p...)
		if len(bad) > 0 {
			bad[len(bad)/2] ^= 0x01
		}
		if _, err := c.send(bad, addr); err != nil {
			return 0, err
		}
		return len(p), nil

	case Duplicate:
		c.duplicated.Add(1)
		if _, err := c.send(p, addr); err != nil {
			return 0, err
		}
		return c.send(p, addr)

	case Reorder:
		c.reordered.Add(1)
		prev := c.held
		c.held = &held{data: append([]byte(nil), p...), addr: addr}
		if prev != nil {
			if _, err := c.PacketConn.WriteTo(prev.data, prev.addr); err != nil {
				return 0, err
			}
		}
		return len(p), nil

	default:
		return c.send(p, addr)
	}
}

// send writes p and then any held datagram.
func (c *Conn) send(p []byte, addr net.Addr) (int, error) {
	n, err := c.PacketConn.WriteTo(p, addr)
	if err != nil {
		return n, err
	}
	c.delivered.Add(1)
	if h := c.held; h != nil {
		c.held = nil
		if _, err := c.PacketConn.WriteTo(h.data, h.addr); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Counters returns what the Conn has done so far.
func (c *Conn) Counters() Counters {
	return Counters{
		Delivered:  c.delivered.Load(),
		Dropped:    c.dropped.Load(),
		Corrupted:  c.corrupted.Load(),
		Duplicated: c.duplicated.Load(),
		Reordered:  c.reordered.Load(),
	}
}
