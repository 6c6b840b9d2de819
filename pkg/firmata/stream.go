package firmata

import "io"

const readChunk = 64

// Stream reads messages from an io.Reader.
type Stream struct {
	r   io.Reader
	dec Decoder
	buf []byte
}

// NewStream creates a Stream over r.
func NewStream(r io.Reader) *Stream {
	return &Stream{r: r, buf: make([]byte, readChunk)}
}

// ReadMessage implements MessageReader. It blocks until a complete frame
// is decoded or the reader fails. Decode errors are returned for the
// offending frame only; transport errors are returned as *IOError.
func (s *Stream) ReadMessage() (Message, error) {
	for {
		msg, err := s.dec.Decode()
		if err != nil || msg != nil {
			return msg, err
		}
		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.dec.Write(s.buf[:n])
		}
		if err != nil {
			return nil, &IOError{Op: "read", Err: err}
		}
	}
}

// Buffered returns the number of bytes received but not yet decoded.
func (s *Stream) Buffered() int {
	return s.dec.Len()
}
