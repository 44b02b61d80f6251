package rft

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/drunlade/go-rft/netsim"
)

// rftTestSuite carries helpers shared by the protocol suites.
type rftTestSuite struct {
	suite.Suite
}

func (suite *rftTestSuite) handleTestError(err error) {
	suite.Require().NoError(err)
}

func (suite *rftTestSuite) frame(frameSize int, seq uint32, kind Kind, payload []byte) []byte {
	buf, err := EncodeFrame(frameSize, seq, kind, payload)
	suite.handleTestError(err)
	return buf
}

func (suite *rftTestSuite) decodeReply(buf []byte) Reply {
	suite.Require().True(Verify(buf), "reply fails verification")
	r, err := DecodeReply(buf)
	suite.handleTestError(err)
	return r
}

// repeatData returns n bytes cycling through the alphabet.
func repeatData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = 'A' + byte(i%26)
	}
	return data
}

// memSink is an in-memory destination file.
type memSink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes int
	closed bool
}

func (s *memSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return s.buf.Write(p)
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

var errDiskFull = errors.New("disk full")

// failingSink rejects every write.
type failingSink struct {
	closed bool
}

func (s *failingSink) Write([]byte) (int, error) { return 0, errDiskFull }
func (s *failingSink) Close() error              { s.closed = true; return nil }

// recordingConn captures replies written by a receiver.
type recordingConn struct {
	replies [][]byte
	addrs   []net.Addr
}

func (c *recordingConn) ReadFrom([]byte) (int, net.Addr, error) {
	return 0, nil, errors.New("recordingConn: not readable")
}

func (c *recordingConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.replies = append(c.replies, append([]byte(nil), p...))
	c.addrs = append(c.addrs, addr)
	return len(p), nil
}

func (c *recordingConn) SetReadDeadline(time.Time) error { return nil }

// scriptedPeer answers frames arriving at an endpoint with a handler, the
// way a receiver would, and records everything it saw.
type scriptedPeer struct {
	conn *netsim.Endpoint

	mu     sync.Mutex
	frames []Frame
	raw    [][]byte
	done   chan struct{}
}

// peerHandler returns the replies to send for the n-th received frame.
type peerHandler func(n int, f Frame) [][]byte

func startPeer(conn *netsim.Endpoint, handler peerHandler) *scriptedPeer {
	p := &scriptedPeer{conn: conn, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		buf := make([]byte, MaxFrameSize)
		for n := 0; ; n++ {
			k, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			raw := append([]byte(nil), buf[:k]...)
			f, err := DecodeFrame(raw)
			if err != nil || !Verify(raw) {
				continue
			}
			p.mu.Lock()
			p.frames = append(p.frames, f)
			p.raw = append(p.raw, raw)
			p.mu.Unlock()
			for _, reply := range handler(n, f) {
				_, _ = conn.WriteTo(reply, addr)
			}
		}
	}()
	return p
}

func (p *scriptedPeer) stop() {
	_ = p.conn.Close()
	<-p.done
}

func (p *scriptedPeer) received() ([]Frame, [][]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Frame(nil), p.frames...), append([][]byte(nil), p.raw...)
}

// ackAll acknowledges every frame.
func ackAll(_ int, f Frame) [][]byte {
	return [][]byte{EncodeReply(f.Sequence, StatusAck)}
}
