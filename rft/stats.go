package rft

import "sync"

// Counter identifies one protocol counter.
type Counter int

const (
	// Sender side
	CounterFramesSent Counter = iota
	CounterRetransmissions
	CounterTimeouts
	CounterCorruptReplies
	CounterNaksReceived
	CounterStaleAcks
	CounterAcksReceived
	CounterBytesSent

	// Receiver side
	CounterFramesReceived
	CounterMalformedDropped
	CounterCorruptFrames
	CounterDuplicates
	CounterOutOfOrder
	CounterAcksSent
	CounterNaksSent
	CounterBytesWritten

	numCounters
)

// Snapshot is an immutable point-in-time view of a Stats.
type Snapshot struct {
	FramesSent      int64
	Retransmissions int64
	Timeouts        int64
	CorruptReplies  int64
	NaksReceived    int64
	StaleAcks       int64
	AcksReceived    int64
	BytesSent       int64

	FramesReceived   int64
	MalformedDropped int64
	CorruptFrames    int64
	Duplicates       int64
	OutOfOrder       int64
	AcksSent         int64
	NaksSent         int64
	BytesWritten     int64
}

// Stats accumulates counters for one endpoint. It is safe for concurrent
// use and all methods accept a nil receiver.
type Stats struct {
	mu     sync.Mutex
	values [numCounters]int64
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{}
}

// Inc adds one to c.
func (s *Stats) Inc(c Counter) {
	s.Add(c, 1)
}

// Add adds n to c.
func (s *Stats) Add(c Counter, n int64) {
	if s == nil || c < 0 || c >= numCounters {
		return
	}
	s.mu.Lock()
	s.values[c] += n
	s.mu.Unlock()
}

// Get returns the current value of c.
func (s *Stats) Get(c Counter) int64 {
	if s == nil || c < 0 || c >= numCounters {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[c]
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	v := s.values
	s.mu.Unlock()

	return Snapshot{
		FramesSent:      v[CounterFramesSent],
		Retransmissions: v[CounterRetransmissions],
		Timeouts:        v[CounterTimeouts],
		CorruptReplies:  v[CounterCorruptReplies],
		NaksReceived:    v[CounterNaksReceived],
		StaleAcks:       v[CounterStaleAcks],
		AcksReceived:    v[CounterAcksReceived],
		BytesSent:       v[CounterBytesSent],

		FramesReceived:   v[CounterFramesReceived],
		MalformedDropped: v[CounterMalformedDropped],
		CorruptFrames:    v[CounterCorruptFrames],
		Duplicates:       v[CounterDuplicates],
		OutOfOrder:       v[CounterOutOfOrder],
		AcksSent:         v[CounterAcksSent],
		NaksSent:         v[CounterNaksSent],
		BytesWritten:     v[CounterBytesWritten],
	}
}
