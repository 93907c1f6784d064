package tcf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// maxFrameSize bounds a single frame to guard against a misbehaving
// peer never sending MarkerEOM.
const maxFrameSize = 16 << 20

// Reader decodes frames from an underlying byte stream.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for frame decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 4096)}
}

// ReadMessage reads and decodes the next frame.
func (d *Reader) ReadMessage() (Message, error) {
	var raw []byte
	for {
		chunk, err := d.br.ReadSlice(MarkerEOM)
		raw = append(raw, chunk...)
		if err == bufio.ErrBufferFull {
			if len(raw) > maxFrameSize {
				return Message{}, ErrFrameTooLong
			}
			continue
		}
		if err != nil {
			return Message{}, err
		}
		break
	}
	raw = raw[:len(raw)-1] // drop trailing EOM
	if len(raw) > maxFrameSize {
		return Message{}, ErrFrameTooLong
	}
	return decodeFrame(raw)
}

func decodeFrame(raw []byte) (Message, error) {
	parts := bytes.Split(raw, []byte{MarkerEOA})
	if len(parts) < 2 {
		return Message{}, ErrMalformed
	}
	if len(parts[0]) == 0 {
		return Message{}, ErrMalformed
	}
	kind := Kind(parts[0][0])

	switch kind {
	case KindCommand:
		if len(parts) < 4 {
			return Message{}, ErrMalformed
		}
		m := Message{Kind: kind, Token: string(parts[1]), Service: string(parts[2]), Command: string(parts[3])}
		for _, p := range parts[4:] {
			if len(p) == 0 {
				continue
			}
			m.Args = append(m.Args, append([]byte(nil), p...))
		}
		return m, nil

	case KindReply:
		if len(parts) < 3 {
			return Message{}, ErrMalformed
		}
		m := Message{Kind: kind, Token: string(parts[1])}
		if len(parts[2]) > 0 {
			m.Err = append([]byte(nil), parts[2]...)
		}
		for _, p := range parts[3:] {
			if len(p) == 0 {
				continue
			}
			m.Args = append(m.Args, append([]byte(nil), p...))
		}
		return m, nil

	case KindEvent:
		if len(parts) < 3 {
			return Message{}, ErrMalformed
		}
		m := Message{Kind: kind, Service: string(parts[1]), Name: string(parts[2])}
		for _, p := range parts[3:] {
			if len(p) == 0 {
				continue
			}
			m.Args = append(m.Args, append([]byte(nil), p...))
		}
		return m, nil
	}
	return Message{}, ErrUnknownKind
}

// Writer encodes frames onto an underlying byte stream.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for frame encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage encodes and flushes one frame.
func (e *Writer) WriteMessage(m Message) error {
	var buf bytes.Buffer
	switch m.Kind {
	case KindCommand:
		fmt.Fprintf(&buf, "C%c%s%c%s%c%s", MarkerEOA, m.Token, MarkerEOA, m.Service, MarkerEOA, m.Command)
		for _, a := range m.Args {
			buf.WriteByte(MarkerEOA)
			buf.Write(a)
		}
	case KindReply:
		fmt.Fprintf(&buf, "R%c%s%c", MarkerEOA, m.Token, MarkerEOA)
		buf.Write(m.Err)
		for _, a := range m.Args {
			buf.WriteByte(MarkerEOA)
			buf.Write(a)
		}
	case KindEvent:
		fmt.Fprintf(&buf, "E%c%s%c%s", MarkerEOA, m.Service, MarkerEOA, m.Name)
		for _, a := range m.Args {
			buf.WriteByte(MarkerEOA)
			buf.Write(a)
		}
	default:
		return ErrUnknownKind
	}
	buf.WriteByte(MarkerEOM)
	_, err := e.w.Write(buf.Bytes())
	return err
}
