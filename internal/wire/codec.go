package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// DefaultMaxFrameSize is the ceiling on a declared frame length applied
// by Decoder when one isn't set explicitly. A peer announcing a larger
// frame is almost certainly desynchronized or malicious; we reject it
// before allocating anything.
const DefaultMaxFrameSize uint32 = 16 * 1024 * 1024

const lengthPrefixSize = 4

// Encoder writes length-prefixed frames to an underlying writer. It
// owns a single reusable scratch buffer and must only ever be driven
// by one goroutine at a time; in this module the handshake's header
// send and then the event loop are its only writers.
type Encoder struct {
	w       io.Writer
	scratch []byte
}

// NewEncoder wraps w. Every EncodeMessage/EncodeHeader call results in
// exactly one Write on w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// EncodeMessage serializes and writes a Message frame.
func (e *Encoder) EncodeMessage(m Message) error {
	return e.encode(toEnvelope(m))
}

// EncodeHeader serializes and writes a Header frame. Valid only as the
// very first frame sent on a stream.
func (e *Encoder) EncodeHeader(h Header) error {
	return e.encode(h)
}

func (e *Encoder) encode(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: serialize frame: %w", err)
	}

	e.scratch = e.scratch[:0]
	e.scratch = append(e.scratch, 0, 0, 0, 0)
	e.scratch = append(e.scratch, payload...)
	binary.LittleEndian.PutUint32(e.scratch[:lengthPrefixSize], uint32(len(payload)))

	if _, err := e.w.Write(e.scratch); err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	return nil
}

// Decoder reads length-prefixed frames from an underlying reader. Like
// Encoder it owns its own scratch buffer and must only be driven by one
// goroutine; this module always dedicates a single reader goroutine to
// a Decoder.
type Decoder struct {
	r            io.Reader
	scratch      []byte
	maxFrameSize uint32
}

// NewDecoder wraps r with the default frame-size ceiling.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, maxFrameSize: DefaultMaxFrameSize}
}

// SetMaxFrameSize overrides the default ceiling on a declared frame
// length. Mostly useful for tests exercising the oversize-rejection
// path without allocating DefaultMaxFrameSize-sized buffers.
func (d *Decoder) SetMaxFrameSize(n uint32) {
	d.maxFrameSize = n
}

// DecodeMessage reads and deserializes one Message frame.
func (d *Decoder) DecodeMessage() (Message, error) {
	payload, err := d.readFrame()
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("wire: deserialize message: %w", err)
	}
	return fromEnvelope(env)
}

// DecodeHeader reads and deserializes one Header frame. Valid only as
// the very first frame read from a stream.
func (d *Decoder) DecodeHeader() (Header, error) {
	payload, err := d.readFrame()
	if err != nil {
		return Header{}, err
	}
	var h Header
	if err := json.Unmarshal(payload, &h); err != nil {
		return Header{}, fmt.Errorf("wire: deserialize header: %w", err)
	}
	return h, nil
}

// readFrame reads the length prefix, rejects it against the configured
// ceiling *before* touching the scratch buffer, then reads exactly that
// many payload bytes.
func (d *Decoder) readFrame() ([]byte, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("wire: read frame length: %w", err)
	}

	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length > d.maxFrameSize {
		return nil, fmt.Errorf("wire: frame length %d exceeds ceiling %d", length, d.maxFrameSize)
	}

	if cap(d.scratch) < int(length) {
		d.scratch = make([]byte, length)
	} else {
		d.scratch = d.scratch[:length]
	}

	if _, err := io.ReadFull(d.r, d.scratch); err != nil {
		return nil, fmt.Errorf("wire: read frame payload: %w", err)
	}
	return d.scratch, nil
}
