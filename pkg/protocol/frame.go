package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	// HeaderSize is the fixed size of the frame header: kind (4 bytes) +
	// total_size (4 bytes), both little-endian.
	HeaderSize = 8

	// MaxBodySize is the maximum body the codec will accept (64 KiB).
	// Kind-specific caps (direct message text, history payloads) are
	// enforced by the dispatcher on top of this.
	MaxBodySize = 64 * 1024
)

var (
	ErrBodyTooLarge       = errors.New("frame body exceeds maximum size")
	ErrInvalidFrameLength = errors.New("frame total_size smaller than header")

	// ErrIncompleteBody is returned when a typed read runs past the end of
	// a frame body, or when the transport delivers fewer bytes than the
	// header promised.
	ErrIncompleteBody = errors.New("incomplete frame body")
)

// Frame is a single protocol frame: a kind tag and an opaque body.
// On the wire: [kind:u32le][total_size:u32le][body], with
// total_size == HeaderSize + len(body).
type Frame struct {
	Kind uint32
	Body []byte
}

// EncodeFrame writes a frame to the writer.
func EncodeFrame(w io.Writer, f *Frame) error {
	if len(f.Body) > MaxBodySize {
		return ErrBodyTooLarge
	}

	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], f.Kind)
	binary.LittleEndian.PutUint32(header[4:8], uint32(HeaderSize+len(f.Body)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(f.Body) > 0 {
		_, err := w.Write(f.Body)
		return err
	}
	return nil
}

// DecodeFrame reads a frame from the reader.
func DecodeFrame(r io.Reader) (*Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	kind := binary.LittleEndian.Uint32(header[0:4])
	totalSize := binary.LittleEndian.Uint32(header[4:8])

	if totalSize < HeaderSize {
		return nil, ErrInvalidFrameLength
	}
	bodySize := totalSize - HeaderSize
	if bodySize > MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	body := make([]byte, bodySize)
	if bodySize > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, ErrIncompleteBody
			}
			return nil, err
		}
	}

	return &Frame{Kind: kind, Body: body}, nil
}

// NewFrame builds a frame for a payload message.
func NewFrame(kind uint32, msg interface{ Encode() ([]byte, error) }) (*Frame, error) {
	body, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	return &Frame{Kind: kind, Body: body}, nil
}

// EncodeMessage encodes a frame to a byte slice.
func EncodeMessage(kind uint32, body []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := EncodeFrame(buf, &Frame{Kind: kind, Body: body}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMessage decodes a frame from a byte slice.
func DecodeMessage(data []byte) (*Frame, error) {
	return DecodeFrame(bytes.NewReader(data))
}
