package rft

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// SenderState is the position of a Sender in its state machine.
type SenderState int

const (
	// StateAwaitingTransmit: the next unit is ready to be sent.
	StateAwaitingTransmit SenderState = iota
	// StateAwaitingAck: one frame is outstanding and the timer is armed.
	StateAwaitingAck
	// StateDone: the source is exhausted and every unit was acknowledged.
	StateDone
	// StateFailed: the transfer was aborted.
	StateFailed
)

func (s SenderState) String() string {
	switch s {
	case StateAwaitingTransmit:
		return "awaiting-transmit"
	case StateAwaitingAck:
		return "awaiting-ack"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SenderConfig holds configuration for a sender.
type SenderConfig struct {
	// FrameSize is the fixed size of every frame. Both ends must agree.
	FrameSize int

	// Timeout is the retransmission timer.
	Timeout time.Duration

	// MaxRetries bounds retransmissions of a single unit. 0 retries forever.
	MaxRetries int

	// Trailer appends an End unit carrying size and digest.
	Trailer bool

	ProgressInterval time.Duration
	Logger           Logger
	Callbacks        *Callbacks
	Stats            *Stats
}

// DefaultSenderConfig returns a default sender configuration.
func DefaultSenderConfig() *SenderConfig {
	return &SenderConfig{
		FrameSize:        DefaultFrameSize,
		Timeout:          100 * time.Millisecond,
		MaxRetries:       0,
		Trailer:          false,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Result summarizes a finished transfer on either end.
type Result struct {
	Name     string
	Bytes    int64
	Units    uint32 // acknowledged (or delivered) units, name included
	Digest   []byte
	Duration time.Duration
	Stats    Snapshot
}

// DigestHex returns the content digest as a hex string.
func (r *Result) DigestHex() string {
	return hex.EncodeToString(r.Digest)
}

// Sender transmits one file as a sequence of stop-and-wait units.
// A Sender is single-use and not safe for concurrent use.
type Sender struct {
	conn   Conn
	remote net.Addr

	frameSize  int
	timeout    time.Duration
	maxRetries int
	trailer    bool

	logger    Logger
	callbacks *Callbacks
	stats     *Stats
	progress  *ProgressTracker

	state SenderState
	seq   uint32
	reply []byte
}

// NewSender creates a sender that transmits to remote over conn.
func NewSender(conn Conn, remote net.Addr, config *SenderConfig) *Sender {
	if config == nil {
		config = DefaultSenderConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = NoopLogger{}
	}
	stats := config.Stats
	if stats == nil {
		stats = NewStats()
	}
	callbacks := mergeCallbacks(config.Callbacks)

	return &Sender{
		conn:       conn,
		remote:     remote,
		frameSize:  config.FrameSize,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		trailer:    config.Trailer,
		logger:     logger,
		callbacks:  callbacks,
		stats:      stats,
		progress:   NewProgressTracker(callbacks.OnProgress, config.ProgressInterval),
		state:      StateAwaitingTransmit,
		reply:      make([]byte, max(config.FrameSize, ReplySize)),
	}
}

// State returns the current state.
func (s *Sender) State() SenderState {
	return s.state
}

// Stats returns the sender's counters.
func (s *Sender) Stats() *Stats {
	return s.stats
}

// SendFile transmits name followed by the content of r.
//
// size is the number of bytes r will produce, or -1 if unknown. When size is
// known, r is read up to size bytes and a shorter source is an error.
func (s *Sender) SendFile(ctx context.Context, name string, r io.Reader, size int64) (*Result, error) {
	result, err := s.sendFile(ctx, name, r, size)
	if err != nil {
		s.state = StateFailed
		s.logger.Error("send %q failed at seq %d: %v", name, s.seq, err)
		s.callbacks.OnError(err, "send file")
		return nil, err
	}
	return result, nil
}

func (s *Sender) sendFile(ctx context.Context, name string, r io.Reader, size int64) (*Result, error) {
	if s.state != StateAwaitingTransmit || s.seq != 0 {
		return nil, NewError(ErrProtocol, fmt.Sprintf("sender already used (state %s)", s.state))
	}
	if err := checkFrameSize(s.frameSize); err != nil {
		return nil, err
	}
	if s.timeout <= 0 {
		return nil, NewError(ErrConfig, "retransmission timeout must be positive")
	}
	if name == "" {
		return nil, NewError(ErrConfig, "empty destination name")
	}
	if len(name) > MaxPayload(s.frameSize) {
		return nil, NewError(ErrConfig, fmt.Sprintf("destination name of %d bytes exceeds frame capacity %d",
			len(name), MaxPayload(s.frameSize)))
	}

	s.logger.Info("sending %q (%d bytes) to %v, frame=%d timeout=%v", name, size, s.remote, s.frameSize, s.timeout)
	s.callbacks.OnFileStart(name, size)
	s.progress.Start(name, size)

	if err := s.transmit(ctx, KindName, []byte(name)); err != nil {
		return nil, err
	}

	src := r
	if size >= 0 {
		src = io.LimitReader(r, size)
	}
	digest := newDigest()
	chunk := make([]byte, MaxPayload(s.frameSize))
	var sent int64

	for {
		n, err := io.ReadFull(src, chunk)
		if n > 0 {
			digest.Write(chunk[:n])
			if err := s.transmit(ctx, KindData, chunk[:n]); err != nil {
				return nil, err
			}
			sent += int64(n)
			s.stats.Add(CounterBytesSent, int64(n))
			s.progress.Add(int64(n))
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, WrapError(ErrIO, "read source", err)
		}
	}

	if size >= 0 && sent != size {
		return nil, NewError(ErrIO, fmt.Sprintf("source ended after %d of %d bytes", sent, size))
	}

	sum := digest.Sum(nil)
	if s.trailer {
		payload, err := EncodeTrailer(Trailer{Size: sent, Digest: sum})
		if err != nil {
			return nil, err
		}
		if err := s.transmit(ctx, KindEnd, payload); err != nil {
			return nil, err
		}
	}

	s.state = StateDone
	duration := s.progress.Complete()
	s.callbacks.OnFileComplete(name, sent, duration)

	result := &Result{
		Name:     name,
		Bytes:    sent,
		Units:    s.seq,
		Digest:   sum,
		Duration: duration,
		Stats:    s.stats.Snapshot(),
	}
	s.logger.Info("sent %q: %d bytes in %d units, %d retransmissions, %v, blake2b=%s",
		name, sent, result.Units, result.Stats.Retransmissions, duration, result.DigestHex())
	return result, nil
}

// transmit sends one unit and blocks until it is acknowledged.
func (s *Sender) transmit(ctx context.Context, kind Kind, payload []byte) error {
	seq := s.seq
	frame, err := EncodeFrame(s.frameSize, seq, kind, payload)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := cancelled(ctx); err != nil {
			return err
		}
		if s.maxRetries > 0 && attempt > s.maxRetries {
			return NewSequenceError(ErrRetriesExhausted,
				fmt.Sprintf("no acknowledgment after %d transmissions", attempt), seq)
		}

		if err := writeDatagram(s.conn, frame, s.remote); err != nil {
			return err
		}
		s.stats.Inc(CounterFramesSent)
		if attempt == 0 {
			s.callbacks.event(EventFrameSent, seq, kind.String())
		} else {
			s.stats.Inc(CounterRetransmissions)
			s.callbacks.event(EventRetransmit, seq, kind.String())
		}
		s.state = StateAwaitingAck

		acked, err := s.awaitAck(seq)
		if err != nil {
			return err
		}
		if acked {
			s.seq++
			s.state = StateAwaitingTransmit
			return nil
		}
	}
}

// awaitAck waits for one reply or timer expiry and reports whether it was
// the Ack for seq. Every other outcome means the frame must be resent.
func (s *Sender) awaitAck(seq uint32) (bool, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return false, WrapError(ErrIO, "arm retransmission timer", err)
	}

	n, _, err := s.conn.ReadFrom(s.reply)
	if err != nil {
		if isDeadline(err) {
			s.stats.Inc(CounterTimeouts)
			s.callbacks.event(EventTimeout, seq, "")
			s.logger.Debug("timeout waiting for ACK %d, resending", seq)
			return false, nil
		}
		return false, WrapError(ErrIO, "receive reply", err)
	}

	buf := s.reply[:n]
	if n < ReplySize || !Verify(buf) {
		s.stats.Inc(CounterCorruptReplies)
		s.callbacks.event(EventCorrupt, seq, "reply")
		s.logger.Debug("reply for %d corrupted, resending", seq)
		return false, nil
	}

	reply, err := DecodeReply(buf)
	if err != nil {
		return false, err
	}

	switch {
	case reply.Status == StatusAck && reply.Sequence == seq:
		s.stats.Inc(CounterAcksReceived)
		s.callbacks.event(EventAckReceived, seq, "")
		return true, nil
	case reply.Status == StatusAck:
		s.stats.Inc(CounterStaleAcks)
		s.logger.Debug("stale ACK %d while waiting for %d, resending", reply.Sequence, seq)
	case reply.Status == StatusNak:
		s.stats.Inc(CounterNaksReceived)
		s.callbacks.event(EventNakReceived, reply.Sequence, "")
		s.logger.Debug("NAK %d while waiting for %d, resending", reply.Sequence, seq)
	default:
		s.stats.Inc(CounterCorruptReplies)
		s.logger.Debug("reply with unknown status %d, resending", reply.Status)
	}
	return false, nil
}
