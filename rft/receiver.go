package rft

import (
	"context"
	"fmt"
	"hash"
	"io"
	"net"
	"strings"
	"time"
)

// ReceiverConfig holds configuration for a receiver.
type ReceiverConfig struct {
	// FrameSize is the fixed size of every frame. Both ends must agree.
	FrameSize int

	// Dir is where the destination file is created.
	Dir string

	// IdleTimeout ends the transfer once no datagram arrived for this long
	// after the name unit was delivered. 0 waits until cancelled.
	IdleTimeout time.Duration

	// Trailer enables End unit verification and completion.
	Trailer bool

	// Linger keeps answering duplicates for this long after the End unit,
	// in case the final Ack was lost.
	Linger time.Duration

	ProgressInterval time.Duration
	Logger           Logger
	Callbacks        *Callbacks
	Stats            *Stats
}

// DefaultReceiverConfig returns a default receiver configuration.
func DefaultReceiverConfig() *ReceiverConfig {
	return &ReceiverConfig{
		FrameSize:        DefaultFrameSize,
		Dir:              ".",
		IdleTimeout:      0,
		Trailer:          false,
		Linger:           time.Second,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Receiver accepts one file and answers every frame with an Ack or a Nak.
// A Receiver is single-use and not safe for concurrent use.
type Receiver struct {
	conn Conn

	frameSize   int
	dir         string
	idleTimeout time.Duration
	trailer     bool
	linger      time.Duration

	logger    Logger
	callbacks *Callbacks
	stats     *Stats
	progress  *ProgressTracker

	// Transfer state
	expected    uint32
	name        string
	sink        io.WriteCloser
	digest      hash.Hash
	written     int64
	started     time.Time
	finished    bool
	lingerUntil time.Time

	buf []byte
}

// NewReceiver creates a receiver reading frames from conn.
func NewReceiver(conn Conn, config *ReceiverConfig) *Receiver {
	if config == nil {
		config = DefaultReceiverConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = NoopLogger{}
	}
	stats := config.Stats
	if stats == nil {
		stats = NewStats()
	}
	dir := config.Dir
	if dir == "" {
		dir = "."
	}
	callbacks := mergeCallbacks(config.Callbacks)

	return &Receiver{
		conn:        conn,
		frameSize:   config.FrameSize,
		dir:         dir,
		idleTimeout: config.IdleTimeout,
		trailer:     config.Trailer,
		linger:      config.Linger,
		logger:      logger,
		callbacks:   callbacks,
		stats:       stats,
		progress:    NewProgressTracker(callbacks.OnProgress, config.ProgressInterval),
		digest:      newDigest(),
		// one spare byte so oversized datagrams are not silently truncated to a valid size
		buf: make([]byte, max(config.FrameSize, HeaderSize)+1),
	}
}

// Expected returns the next sequence number the receiver will deliver.
func (r *Receiver) Expected() uint32 {
	return r.expected
}

// Stats returns the receiver's counters.
func (r *Receiver) Stats() *Stats {
	return r.stats
}

// Receive serves frames until the transfer ends.
//
// It returns when ctx is cancelled (ErrCancelled), when the idle timeout
// expires after the transfer started, when a verified End unit was delivered
// and the linger period passed, or on a fatal error. The returned Result
// always describes what was delivered so far.
func (r *Receiver) Receive(ctx context.Context) (*Result, error) {
	if err := checkFrameSize(r.frameSize); err != nil {
		return r.result(), err
	}

	stop := interruptOnDone(ctx, r.conn)
	defer stop()

	r.logger.Info("waiting for transfer, frame=%d dir=%s", r.frameSize, r.dir)

	for {
		if err := r.armDeadline(); err != nil {
			return r.fail(err)
		}
		// checked after arming so a concurrent interrupt cannot be overwritten
		if ctx.Err() != nil {
			return r.stopped(ctx)
		}

		n, addr, err := r.conn.ReadFrom(r.buf)
		if err != nil {
			if ctx.Err() != nil {
				return r.stopped(ctx)
			}
			if !isDeadline(err) {
				return r.fail(WrapError(ErrIO, "receive datagram", err))
			}
			if r.finished {
				return r.result(), nil
			}
			if r.idleTimeout > 0 && r.expected > 0 {
				r.logger.Info("no datagram for %v, closing %q", r.idleTimeout, r.name)
				if err := r.finish(); err != nil {
					return r.fail(err)
				}
				return r.result(), nil
			}
			continue
		}

		if err := r.handleDatagram(r.buf[:n], addr); err != nil {
			return r.fail(err)
		}
		if r.finished && r.linger <= 0 {
			return r.result(), nil
		}
	}
}

func (r *Receiver) armDeadline() error {
	var deadline time.Time
	switch {
	case r.finished:
		deadline = r.lingerUntil
	case r.idleTimeout > 0 && r.expected > 0:
		deadline = time.Now().Add(r.idleTimeout)
	}
	if err := r.conn.SetReadDeadline(deadline); err != nil {
		return WrapError(ErrIO, "set read deadline", err)
	}
	return nil
}

// handleDatagram applies one datagram to the receiver state and replies.
func (r *Receiver) handleDatagram(buf []byte, addr net.Addr) error {
	if len(buf) < HeaderSize {
		r.stats.Inc(CounterMalformedDropped)
		r.logger.Debug("dropping %d-byte datagram from %v", len(buf), addr)
		return nil
	}
	r.stats.Inc(CounterFramesReceived)

	if !Verify(buf) {
		r.stats.Inc(CounterCorruptFrames)
		r.callbacks.event(EventCorrupt, r.expected, "frame")
		r.logger.Debug("corrupt frame from %v, NAK %d", addr, r.expected)
		return r.reply(addr, r.expected, StatusNak)
	}
	f, err := DecodeFrame(buf)
	if err != nil {
		r.stats.Inc(CounterCorruptFrames)
		r.logger.Debug("undecodable frame from %v: %v", addr, err)
		return r.reply(addr, r.expected, StatusNak)
	}

	switch {
	case f.Sequence == r.expected && !r.finished:
		if err := r.deliver(f); err != nil {
			return err
		}
		r.expected++
		r.callbacks.event(EventFrameDelivered, f.Sequence, f.Kind.String())
		return r.reply(addr, f.Sequence, StatusAck)

	case r.expected > 0 && f.Sequence == r.expected-1:
		r.stats.Inc(CounterDuplicates)
		r.callbacks.event(EventDuplicate, f.Sequence, "")
		r.logger.Debug("duplicate frame %d, re-ACK", f.Sequence)
		return r.reply(addr, f.Sequence, StatusAck)

	default:
		r.stats.Inc(CounterOutOfOrder)
		r.callbacks.event(EventOutOfOrder, f.Sequence, "")
		r.logger.Debug("frame %d out of order, NAK %d", f.Sequence, r.expected)
		return r.reply(addr, r.expected, StatusNak)
	}
}

// deliver consumes the payload of the expected frame.
func (r *Receiver) deliver(f Frame) error {
	if f.Sequence == 0 {
		return r.open(strings.TrimSpace(string(f.Payload)))
	}
	if f.Kind == KindEnd {
		if !r.trailer {
			r.logger.Debug("ignoring END unit %d, trailer verification disabled", f.Sequence)
			return nil
		}
		t, err := DecodeTrailer(f.Payload)
		if err != nil {
			return err
		}
		if err := t.Check(r.written, r.digest.Sum(nil)); err != nil {
			return err
		}
		r.logger.Info("trailer verified: %d bytes", t.Size)
		if err := r.finish(); err != nil {
			return err
		}
		r.lingerUntil = time.Now().Add(r.linger)
		return nil
	}

	n, err := r.sink.Write(f.Payload)
	if err == nil && n < len(f.Payload) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &Error{Type: ErrIO, Message: "write " + r.name, Sequence: int64(f.Sequence), Err: err}
	}
	r.digest.Write(f.Payload)
	r.written += int64(n)
	r.stats.Add(CounterBytesWritten, int64(n))
	r.progress.Add(int64(n))
	return nil
}

// open creates the sink for the destination name carried by unit 0.
func (r *Receiver) open(name string) error {
	var (
		sink io.WriteCloser
		err  error
	)
	if r.callbacks.OnFileCreate != nil {
		sink, err = r.callbacks.OnFileCreate(name)
		if err != nil {
			err = WrapError(ErrIO, "create "+name, err)
		}
	} else {
		sink, err = createFile(r.dir, name)
	}
	if err != nil {
		return err
	}

	r.name = name
	r.sink = sink
	r.started = time.Now()
	r.logger.Info("receiving %q", name)
	r.callbacks.OnFileStart(name, -1)
	r.progress.Start(name, -1)
	return nil
}

// finish closes the sink after a complete transfer.
func (r *Receiver) finish() error {
	r.finished = true
	if r.sink == nil {
		return nil
	}
	sink := r.sink
	r.sink = nil
	if err := sink.Close(); err != nil {
		return WrapError(ErrIO, "close "+r.name, err)
	}

	duration := r.progress.Complete()
	r.callbacks.OnFileComplete(r.name, r.written, duration)
	s := r.stats.Snapshot()
	r.logger.Info("received %q: %d bytes, %d duplicates, %d corrupt, %v",
		r.name, r.written, s.Duplicates, s.CorruptFrames, duration)
	return nil
}

func (r *Receiver) reply(addr net.Addr, seq uint32, status Status) error {
	if err := writeDatagram(r.conn, EncodeReply(seq, status), addr); err != nil {
		return err
	}
	if status == StatusAck {
		r.stats.Inc(CounterAcksSent)
	} else {
		r.stats.Inc(CounterNaksSent)
	}
	return nil
}

// stopped ends a receive interrupted by ctx. Cancellation after a verified
// End unit is not an error.
func (r *Receiver) stopped(ctx context.Context) (*Result, error) {
	if r.finished {
		return r.result(), nil
	}
	r.closeSink()
	return r.result(), cancelled(ctx)
}

func (r *Receiver) fail(err error) (*Result, error) {
	r.closeSink()
	r.logger.Error("receive failed at seq %d: %v", r.expected, err)
	r.callbacks.OnError(err, "receive file")
	return r.result(), err
}

func (r *Receiver) closeSink() {
	if r.sink == nil {
		return
	}
	if err := r.sink.Close(); err != nil {
		r.logger.Warn("close %q: %v", r.name, err)
	}
	r.sink = nil
}

func (r *Receiver) result() *Result {
	var d time.Duration
	if !r.started.IsZero() {
		d = time.Since(r.started)
	}
	return &Result{
		Name:     r.name,
		Bytes:    r.written,
		Units:    r.expected,
		Digest:   r.digest.Sum(nil),
		Duration: d,
		Stats:    r.stats.Snapshot(),
	}
}

// String describes the receiver position for logs.
func (r *Receiver) String() string {
	return fmt.Sprintf("receiver(expected=%d, name=%q, written=%d)", r.expected, r.name, r.written)
}
