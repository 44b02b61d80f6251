package rft

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

// DigestSize is the length of content digests.
const DigestSize = blake2b.Size256

// Trailer is the payload of the End unit. It lets the receiver detect the
// end of the transfer and confirm that it wrote exactly what was read.
type Trailer struct {
	Size   int64  `msgpack:"size"`
	Digest []byte `msgpack:"digest"`
}

// newDigest returns the running content digest used on both ends.
func newDigest() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only possible with an oversized key
		panic(err)
	}
	return h
}

// EncodeTrailer serializes t for an End unit payload.
func EncodeTrailer(t Trailer) ([]byte, error) {
	b, err := msgpack.Marshal(&t)
	if err != nil {
		return nil, WrapError(ErrInvalidFrame, "encode trailer", err)
	}
	return b, nil
}

// DecodeTrailer parses an End unit payload.
func DecodeTrailer(payload []byte) (Trailer, error) {
	var t Trailer
	if err := msgpack.Unmarshal(payload, &t); err != nil {
		return Trailer{}, WrapError(ErrProtocol, "decode trailer", err)
	}
	if len(t.Digest) != DigestSize {
		return Trailer{}, NewError(ErrProtocol, fmt.Sprintf("trailer digest has %d bytes, want %d", len(t.Digest), DigestSize))
	}
	return t, nil
}

// Check compares the trailer against what was actually delivered.
func (t Trailer) Check(size int64, digest []byte) error {
	if t.Size != size {
		return NewError(ErrIntegrity, fmt.Sprintf("received %d bytes, sender reported %d", size, t.Size))
	}
	if !bytes.Equal(t.Digest, digest) {
		return NewError(ErrIntegrity, fmt.Sprintf("digest %s, sender reported %s",
			hex.EncodeToString(digest), hex.EncodeToString(t.Digest)))
	}
	return nil
}
