package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"
)

// Wire layout of one frame, all integers big-endian:
//
//	[type:int16][fieldCount:int16]
//	  { [fieldLen:int16][fieldBody:fieldLen UTF-16 code units] }*
//
// fieldLen counts UTF-16 code units, so a field body occupies 2*fieldLen
// bytes on the wire.

var (
	// ErrMalformedFrame indicates the stream can no longer be trusted:
	// a negative count or length, or the peer closed mid-frame.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownMessageType indicates a structurally valid frame with a
	// type code outside the protocol. The decoder consumes the whole
	// frame, so the connection remains usable.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrFieldTooLong is returned by the encoder when a field exceeds
	// the capacity of the int16 length prefix.
	ErrFieldTooLong = errors.New("field exceeds maximum encodable length")
)

// scratchSize is deliberately small relative to the maximum field size;
// both codec halves must work through the scratch buffer in chunks.
const scratchSize = 512

// Encoder writes messages to a byte stream in wire format.
type Encoder struct {
	w       io.Writer
	scratch [scratchSize]byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes m as a single frame. Encoding is deterministic: the same
// message always produces the same bytes.
func (e *Encoder) Encode(m *Message) error {
	if len(m.Fields) > math.MaxInt16 {
		return fmt.Errorf("%w: %d fields", ErrFieldTooLong, len(m.Fields))
	}

	binary.BigEndian.PutUint16(e.scratch[0:2], uint16(m.Type))
	binary.BigEndian.PutUint16(e.scratch[2:4], uint16(len(m.Fields)))
	if _, err := e.w.Write(e.scratch[:4]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}

	for _, field := range m.Fields {
		if err := e.writeField(field); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeField(field string) error {
	units := utf16.Encode([]rune(field))
	if len(units) > math.MaxInt16 {
		return fmt.Errorf("%w: %d code units", ErrFieldTooLong, len(units))
	}

	binary.BigEndian.PutUint16(e.scratch[:2], uint16(len(units)))
	if _, err := e.w.Write(e.scratch[:2]); err != nil {
		return fmt.Errorf("writing field length: %w", err)
	}

	// Flush the body through the scratch buffer so that fields of any
	// size can be written without allocating proportionally.
	written := 0
	for written < len(units) {
		n := 0
		for written < len(units) && n+2 <= scratchSize {
			binary.BigEndian.PutUint16(e.scratch[n:n+2], units[written])
			n += 2
			written++
		}
		if _, err := e.w.Write(e.scratch[:n]); err != nil {
			return fmt.Errorf("writing field body: %w", err)
		}
	}
	return nil
}

// Decoder reads messages from a byte stream in wire format.
type Decoder struct {
	r       io.Reader
	scratch [scratchSize]byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads the next frame. A clean peer close at a frame boundary is
// reported as io.EOF; a close in the middle of a frame is a malformed
// frame. Frames with an unrecognized type code are consumed fully and
// reported as ErrUnknownMessageType so the caller can answer the peer and
// keep reading.
func (d *Decoder) Decode() (*Message, error) {
	header, err := d.readUint16(true)
	if err != nil {
		return nil, err
	}
	msgType := MessageType(header)

	count, err := d.readInt16("field count")
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		field, err := d.readField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}

	if !Known(msgType) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, int16(msgType))
	}
	return &Message{Type: msgType, Fields: fields}, nil
}

func (d *Decoder) readField() (string, error) {
	length, err := d.readInt16("field length")
	if err != nil {
		return "", err
	}

	units := make([]uint16, 0, length)
	remaining := int(length) * 2
	for remaining > 0 {
		n := remaining
		if n > scratchSize {
			n = scratchSize
		}
		if _, err := io.ReadFull(d.r, d.scratch[:n]); err != nil {
			return "", fmt.Errorf("%w: stream closed mid-field", ErrMalformedFrame)
		}
		for i := 0; i < n; i += 2 {
			units = append(units, binary.BigEndian.Uint16(d.scratch[i:i+2]))
		}
		remaining -= n
	}
	return string(utf16.Decode(units)), nil
}

// readInt16 reads a count or length value, rejecting negative values.
func (d *Decoder) readInt16(what string) (int16, error) {
	raw, err := d.readUint16(false)
	if err != nil {
		return 0, err
	}
	v := int16(raw)
	if v < 0 {
		return 0, fmt.Errorf("%w: negative %s %d", ErrMalformedFrame, what, v)
	}
	return v, nil
}

// readUint16 reads two bytes. When atFrameStart is set, a clean EOF before
// the first byte is passed through as io.EOF to signal a normal disconnect.
func (d *Decoder) readUint16(atFrameStart bool) (uint16, error) {
	_, err := io.ReadFull(d.r, d.scratch[:2])
	switch {
	case err == io.EOF && atFrameStart:
		return 0, io.EOF
	case err != nil:
		return 0, fmt.Errorf("%w: stream closed mid-frame", ErrMalformedFrame)
	}
	return binary.BigEndian.Uint16(d.scratch[:2]), nil
}

// Marshal encodes m into a standalone byte slice, suitable for sending as
// a notification datagram.
func Marshal(m *Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a single frame from a standalone byte slice.
func Unmarshal(data []byte) (*Message, error) {
	return NewDecoder(bytes.NewReader(data)).Decode()
}
