package rft

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Frame is the decoded view of a sender-to-receiver datagram.
type Frame struct {
	Sequence uint32
	Kind     Kind
	Length   uint32

	// Payload aliases the decoded buffer; copy it before the buffer is reused.
	Payload []byte
}

// Reply is the decoded view of a receiver-to-sender datagram.
type Reply struct {
	Sequence uint32
	Status   Status
}

// MaxPayload returns the content capacity of a frame of the given size.
func MaxPayload(frameSize int) int {
	return frameSize - HeaderSize
}

// checkFrameSize validates a configured frame size.
func checkFrameSize(frameSize int) error {
	if frameSize < MinFrameSize || frameSize > MaxFrameSize {
		return NewError(ErrConfig, fmt.Sprintf("frame size %d outside [%d, %d]", frameSize, MinFrameSize, MaxFrameSize))
	}
	return nil
}

// checksum computes the CRC-32 over everything after the checksum field.
func checksum(buf []byte) uint64 {
	return uint64(crc32.ChecksumIEEE(buf[offSequence:]))
}

// seal writes the checksum of buf into its placeholder.
func seal(buf []byte) {
	binary.BigEndian.PutUint64(buf[offChecksum:offSequence], checksum(buf))
}

// EncodeFrame builds a sealed frame of exactly frameSize bytes.
//
// Layout:
//
//	checksum[0:8] sequence[8:12] kind[12:16] length[16:20] content[20:frameSize]
//
// Content beyond len(payload) is zero.
func EncodeFrame(frameSize int, seq uint32, kind Kind, payload []byte) ([]byte, error) {
	if err := checkFrameSize(frameSize); err != nil {
		return nil, err
	}
	if len(payload) > MaxPayload(frameSize) {
		return nil, NewSequenceError(ErrInvalidFrame,
			fmt.Sprintf("payload of %d bytes exceeds capacity %d", len(payload), MaxPayload(frameSize)), seq)
	}

	buf := make([]byte, frameSize)
	binary.BigEndian.PutUint32(buf[offSequence:], seq)
	binary.BigEndian.PutUint32(buf[offKind:], uint32(kind))
	binary.BigEndian.PutUint32(buf[offLength:], uint32(len(payload)))
	copy(buf[offContent:], payload)
	seal(buf)
	return buf, nil
}

// EncodeReply builds a sealed ReplySize-byte reply.
func EncodeReply(seq uint32, status Status) []byte {
	buf := make([]byte, ReplySize)
	binary.BigEndian.PutUint32(buf[offSequence:], seq)
	binary.BigEndian.PutUint32(buf[offStatus:], uint32(status))
	seal(buf)
	return buf
}

// Verify reports whether the stored checksum of buf matches its content.
// Buffers shorter than a reply cannot hold a header and are never valid.
func Verify(buf []byte) bool {
	if len(buf) < ReplySize {
		return false
	}
	return binary.BigEndian.Uint64(buf[offChecksum:offSequence]) == checksum(buf)
}

// DecodeFrame extracts frame fields. Call Verify first.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, NewError(ErrInvalidFrame, fmt.Sprintf("frame of %d bytes shorter than header", len(buf)))
	}
	f := Frame{
		Sequence: binary.BigEndian.Uint32(buf[offSequence:]),
		Kind:     Kind(binary.BigEndian.Uint32(buf[offKind:])),
		Length:   binary.BigEndian.Uint32(buf[offLength:]),
	}
	if uint64(f.Length) > uint64(len(buf)-offContent) {
		return Frame{}, NewSequenceError(ErrInvalidFrame,
			fmt.Sprintf("length %d overruns %d content bytes", f.Length, len(buf)-offContent), f.Sequence)
	}
	f.Payload = buf[offContent : offContent+int(f.Length)]
	return f, nil
}

// DecodeReply extracts reply fields. Call Verify first.
func DecodeReply(buf []byte) (Reply, error) {
	if len(buf) < ReplySize {
		return Reply{}, NewError(ErrInvalidFrame, fmt.Sprintf("reply of %d bytes shorter than %d", len(buf), ReplySize))
	}
	return Reply{
		Sequence: binary.BigEndian.Uint32(buf[offSequence:]),
		Status:   Status(binary.BigEndian.Uint32(buf[offStatus:])),
	}, nil
}
