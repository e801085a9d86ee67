package protocol

import (
	"encoding/binary"
	"io"
	"time"
)

// Handshake constants. The scramble is deliberately weak: it only weeds out
// peers that don't speak this protocol before any frame is accepted. The
// exact constants (including the 56-bit nibble mask) are a wire contract
// with existing clients and must not change.
const (
	handshakeXorIn  = 0xDEADBEEFC0DECAFE
	handshakeMask   = 0x00F0F0F0F0F0F0F0
	handshakeXorOut = 0xC0DEFACE12345678
)

// Scramble computes the expected handshake reply for a challenge.
func Scramble(x uint64) uint64 {
	out := x ^ handshakeXorIn
	out = (out&handshakeMask)>>4 | (out&handshakeMask)<<4
	return out ^ handshakeXorOut
}

// NewChallenge returns a fresh handshake challenge derived from the clock.
func NewChallenge() uint64 {
	return uint64(time.Now().UnixNano())
}

// WriteHandshake writes the 8-byte little-endian handshake value.
func WriteHandshake(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadHandshake reads the 8-byte little-endian handshake value.
func ReadHandshake(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
