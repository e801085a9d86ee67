package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

var ErrStringTooLong = errors.New("string exceeds maximum length")

// incomplete maps short reads onto ErrIncompleteBody so that a truncated
// body always surfaces the same way regardless of which field ran out.
func incomplete(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrIncompleteBody
	}
	return err
}

// WriteUint8 writes a single byte
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// ReadUint8 reads a single byte
func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, incomplete(err)
	}
	return buf[0], nil
}

// WriteUint32 writes a 32-bit unsigned integer in little-endian
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint32 reads a 32-bit unsigned integer in little-endian
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, incomplete(err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteUint64 writes a 64-bit unsigned integer in little-endian
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint64 reads a 64-bit unsigned integer in little-endian
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, incomplete(err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteBool writes a boolean as a single byte (0x00 or 0x01)
func WriteBool(w io.Writer, v bool) error {
	if v {
		return WriteUint8(w, 0x01)
	}
	return WriteUint8(w, 0x00)
}

// ReadBool reads a boolean from a single byte
func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadUint8(r)
	if err != nil {
		return false, err
	}
	return b != 0x00, nil
}

// WriteString writes a length-prefixed byte string.
// Format: [Length (uint32 LE)][Data (N raw bytes)]. No NUL terminator and
// no UTF-8 validation; semantic limits belong to the dispatcher.
func WriteString(w io.Writer, s string) error {
	data := []byte(s)
	if len(data) > MaxBodySize {
		return ErrStringTooLong
	}

	if err := WriteUint32(w, uint32(len(data))); err != nil {
		return err
	}
	if len(data) > 0 {
		_, err := w.Write(data)
		return err
	}
	return nil
}

// ReadString reads a length-prefixed byte string
func ReadString(r io.Reader) (string, error) {
	length, err := ReadUint32(r)
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	if length > MaxBodySize {
		return "", ErrStringTooLong
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", incomplete(err)
	}
	return string(data), nil
}
