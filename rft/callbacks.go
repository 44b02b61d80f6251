package rft

import (
	"io"
	"time"
)

// Callbacks provides hooks for transfer events.
// All callbacks are optional - nil callbacks use default behavior.
type Callbacks struct {
	// OnFileStart is called once the destination name is known.
	// size is -1 on the receiving side, where it is not known up front.
	OnFileStart func(name string, size int64)

	// OnProgress is called periodically during a transfer.
	// total is -1 when unknown; rate is in bytes per second.
	OnProgress func(name string, transferred, total int64, rate float64)

	// OnFileComplete is called when a transfer finishes successfully.
	OnFileComplete func(name string, bytesTransferred int64, duration time.Duration)

	// OnError is called when a transfer fails.
	// context describes where the error occurred.
	OnError func(err error, context string)

	// OnEvent is called for protocol events (debugging/logging).
	OnEvent func(event Event)

	// OnFileOpen opens the local source file (sender).
	// If nil, the file is opened from disk.
	OnFileOpen func(path string) (io.ReadCloser, int64, error)

	// OnFileCreate creates the destination sink (receiver).
	// If nil, the file is created inside the configured directory.
	OnFileCreate func(name string) (io.WriteCloser, error)
}

// Event represents a protocol event for logging/debugging.
type Event struct {
	Type      EventType
	Sequence  uint32
	Message   string
	Timestamp time.Time
}

// EventType categorizes protocol events.
type EventType int

const (
	EventFrameSent EventType = iota
	EventRetransmit
	EventAckReceived
	EventNakReceived
	EventTimeout
	EventCorrupt
	EventFrameDelivered
	EventDuplicate
	EventOutOfOrder
)

func (t EventType) String() string {
	switch t {
	case EventFrameSent:
		return "frame_sent"
	case EventRetransmit:
		return "retransmit"
	case EventAckReceived:
		return "ack_received"
	case EventNakReceived:
		return "nak_received"
	case EventTimeout:
		return "timeout"
	case EventCorrupt:
		return "corrupt"
	case EventFrameDelivered:
		return "frame_delivered"
	case EventDuplicate:
		return "duplicate"
	case EventOutOfOrder:
		return "out_of_order"
	default:
		return "unknown"
	}
}

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnFileStart:    func(string, int64) {},
		OnProgress:     func(string, int64, int64, float64) {},
		OnFileComplete: func(string, int64, time.Duration) {},
		OnError:        func(error, string) {},
		OnEvent:        func(Event) {},
	}
}

// mergeCallbacks merges user callbacks with defaults.
// User callbacks override defaults, nil callbacks use defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	result := defaultCallbacks()
	if user == nil {
		return result
	}

	if user.OnFileStart != nil {
		result.OnFileStart = user.OnFileStart
	}
	if user.OnProgress != nil {
		result.OnProgress = user.OnProgress
	}
	if user.OnFileComplete != nil {
		result.OnFileComplete = user.OnFileComplete
	}
	if user.OnError != nil {
		result.OnError = user.OnError
	}
	if user.OnEvent != nil {
		result.OnEvent = user.OnEvent
	}

	// File operations (nil means use default)
	result.OnFileOpen = user.OnFileOpen
	result.OnFileCreate = user.OnFileCreate

	return result
}

func (c *Callbacks) event(t EventType, seq uint32, msg string) {
	c.OnEvent(Event{Type: t, Sequence: seq, Message: msg, Timestamp: time.Now()})
}
