// Package rft implements a reliable stop-and-wait file transfer protocol
// over an unreliable datagram channel.
//
// A transfer moves exactly one file. The sender first transmits a name unit
// (sequence 0) carrying the destination file name, then one data unit per
// chunk of file content. Every unit is a fixed-size frame protected by a
// CRC-32 checksum; the receiver answers each frame with a fixed-size Ack or
// Nak reply. Only one frame is ever outstanding, and it is retransmitted
// until the matching Ack arrives.
//
// The package provides the frame codec, the Sender and Receiver state
// machines, and a Session that wires them to files on disk.
package rft

// Wire sizes
const (
	// DefaultFrameSize is the total size of every frame on the wire.
	DefaultFrameSize = 1000

	// MinFrameSize leaves room for the header plus a file name or trailer.
	MinFrameSize = 128

	// MaxFrameSize is the largest UDP payload over IPv4.
	MaxFrameSize = 65507

	// ReplySize is the total size of every Ack/Nak reply.
	ReplySize = 16

	// HeaderSize is the number of bytes in front of frame content.
	HeaderSize = 20
)

// Field offsets within frames and replies
const (
	offChecksum = 0  // 8 bytes, CRC-32 widened to 64 bits
	offSequence = 8  // 4 bytes
	offKind     = 12 // 4 bytes, frames only
	offStatus   = 12 // 4 bytes, replies only
	offLength   = 16 // 4 bytes, frames only
	offContent  = 20
)

// Kind discriminates frame payloads.
type Kind uint32

const (
	// KindName carries the destination file name (always sequence 0).
	KindName Kind = 1

	// KindData carries a contiguous chunk of file content.
	KindData Kind = 2

	// KindEnd carries the transfer trailer. Only sent when the trailer
	// extension is enabled.
	KindEnd Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindName:
		return "NAME"
	case KindData:
		return "DATA"
	case KindEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// Status discriminates replies.
type Status uint32

const (
	StatusAck Status = 1
	StatusNak Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusAck:
		return "ACK"
	case StatusNak:
		return "NAK"
	default:
		return "UNKNOWN"
	}
}
