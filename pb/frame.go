package pb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"iter"
)

// Frame is one decoded wire message.
type Frame struct {
	Code    byte
	Payload []byte
}

// Encode builds a frame for the given message code and payload.
// The payload length must fit in a uint32 minus the code byte.
func Encode(code byte, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), code, payload)
}

// AppendFrame appends the frame for code and payload to dst and returns the
// extended slice.
func AppendFrame(dst []byte, code byte, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)+1))
	dst = append(dst, code)
	return append(dst, payload...)
}

// Decoder reassembles frames from a byte stream delivered in arbitrary chunks.
//
// Bytes are never dropped: the residue held by the decoder is always the bytes
// fed minus the bytes yielded as complete frames. The zero value is ready to
// use. A Decoder is not safe for concurrent use.
type Decoder struct {
	// MaxFrameSize bounds the declared length of a frame. Zero means no limit.
	MaxFrameSize uint32

	buf   []byte
	start int
	err   error
}

// Feed appends p to the residue and returns a sequence over the frames that
// are now complete, in stream order.
//
// The bytes are buffered before Feed returns, so stopping the iteration early
// loses nothing: the remaining frames are yielded by the next Feed. Once a
// malformed length has been seen the decoder yields the same *ProtocolError on
// every later call.
func (d *Decoder) Feed(p []byte) iter.Seq2[Frame, error] {
	d.compact()
	d.buf = append(d.buf, p...)

	return func(yield func(Frame, error) bool) {
		for {
			frame, ok, err := d.next()
			if err != nil {
				yield(Frame{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

// Buffered returns the number of residue bytes not yet forming a frame.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.start
}

// Reset discards the residue and any sticky error.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.start = 0
	d.err = nil
}

func (d *Decoder) next() (Frame, bool, error) {
	if d.err != nil {
		return Frame{}, false, d.err
	}

	pending := d.buf[d.start:]
	if len(pending) < LengthSize {
		return Frame{}, false, nil
	}

	length := binary.BigEndian.Uint32(pending)
	if length == 0 {
		d.err = &ProtocolError{Message: "frame length is zero"}
		return Frame{}, false, d.err
	}
	if d.MaxFrameSize > 0 && length > d.MaxFrameSize {
		d.err = &ProtocolError{Message: fmt.Sprintf("frame length %d exceeds maximum %d", length, d.MaxFrameSize)}
		return Frame{}, false, d.err
	}

	total := uint64(LengthSize) + uint64(length)
	if uint64(len(pending)) < total {
		return Frame{}, false, nil
	}

	// empty payloads are nil
	frame := Frame{Code: pending[LengthSize]}
	if total > HeaderSize {
		frame.Payload = bytes.Clone(pending[HeaderSize:total])
	}
	d.start += int(total)
	return frame, true, nil
}

// compact moves the residue to the front of the buffer.
func (d *Decoder) compact() {
	if d.start == 0 {
		return
	}
	n := copy(d.buf, d.buf[d.start:])
	d.buf = d.buf[:n]
	d.start = 0
}
