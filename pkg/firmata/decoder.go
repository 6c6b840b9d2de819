package firmata

import "bytes"

// BufferSize is the nominal capacity of a Decoder buffer. Once the buffer
// holds more than 70% of it, leading bytes that cannot belong to a frame
// are discarded as long as the first frame start lies beyond 30% of it.
// If the buffer holds no frame start at all, all of it is discarded,
// since none of it can become part of a frame.
const BufferSize = 1000

const (
	overflowLen   = BufferSize * 7 / 10
	overflowStart = BufferSize * 3 / 10
)

// Decoder extracts frames from a stream of bytes.
// Bytes are appended with Write and frames are taken with Decode.
type Decoder struct {
	buf []byte
}

// Write implements io.Writer. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Buffered returns the bytes not yet consumed.
// The slice is only valid until the next call to Write or Decode.
func (d *Decoder) Buffered() []byte {
	return d.buf
}

// Len returns the number of bytes not yet consumed.
func (d *Decoder) Len() int {
	return len(d.buf)
}

// Reset discards all buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Decode takes the earliest complete frame out of the buffer and parses
// it. It returns nil, nil when no complete frame is available; the
// buffer is then left as it was, except for the overflow guard.
// The frame bytes are removed before parsing, so a malformed frame
// doesn't affect subsequent calls.
func (d *Decoder) Decode() (Message, error) {
	frame := d.nextFrame()
	d.guardOverflow()
	if frame == nil {
		return nil, nil
	}
	return ParseFrame(frame)
}

func (d *Decoder) nextFrame() []byte {
	start := indexFrameStart(d.buf)
	if start < 0 {
		return nil
	}
	end := start + 3
	if d.buf[start] == startSysex {
		n := bytes.IndexByte(d.buf[start+1:], endSysex)
		if n < 0 {
			return nil
		}
		end = start + 1 + n + 1
	} else if end > len(d.buf) {
		return nil
	}
	frame := append([]byte(nil), d.buf[start:end]...)
	d.buf = append(d.buf[:start], d.buf[end:]...)
	return frame
}

func (d *Decoder) guardOverflow() {
	if len(d.buf) <= overflowLen {
		return
	}
	start := indexFrameStart(d.buf)
	switch {
	case start < 0:
		d.buf = d.buf[:0]
	case start > overflowStart:
		d.buf = append(d.buf[:0], d.buf[start:]...)
	}
}

func indexFrameStart(buf []byte) int {
	for n, b := range buf {
		if IsFrameStart(b) {
			return n
		}
	}
	return -1
}
