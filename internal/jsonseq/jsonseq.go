// Package jsonseq reads and writes JSON text sequences: a stream of JSON
// values delimited by the ASCII record separator (0x1E), served with the
// application/json-seq content type.
package jsonseq

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ContentType is the media type of a record-separated JSON stream.
const ContentType = "application/json-seq"

// RecordSeparator delimits records on the wire.
const RecordSeparator byte = 0x1E

// readChunkSize is how much we ask the underlying reader for per fill.
const readChunkSize = 4096

// ErrTruncatedRecord is returned when the stream ends with a partial record
// that does not parse as a complete JSON value.
var ErrTruncatedRecord = errors.New("jsonseq: stream ended with truncated record")

// A Decoder incrementally parses a JSON text sequence from an io.Reader.
// Records may arrive split across arbitrary read boundaries; the decoder
// buffers only the unconsumed suffix of the stream.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	r    io.Reader
	buf  []byte
	scan []byte
	err  error
	eof  bool
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:    r,
		scan: make([]byte, readChunkSize),
	}
}

// Next returns the next record in the sequence. It blocks on the underlying
// reader until a complete record is available. At the end of the stream it
// returns io.EOF; any other error (including malformed JSON inside a
// delimited record) is fatal and repeated on subsequent calls.
func (d *Decoder) Next() (json.RawMessage, error) {
	if d.err != nil {
		return nil, d.err
	}
	for {
		rec, ok, err := d.takeRecord()
		if err != nil {
			d.err = err
			return nil, err
		}
		if ok {
			return rec, nil
		}
		if d.eof {
			rec, err := d.flush()
			if err != nil {
				d.err = err
				return nil, err
			}
			if rec != nil {
				return rec, nil
			}
			d.err = io.EOF
			return nil, io.EOF
		}
		if err := d.fill(); err != nil {
			d.err = err
			return nil, err
		}
	}
}

// fill appends one read's worth of input to the buffer.
func (d *Decoder) fill() error {
	n, err := d.r.Read(d.scan)
	if n > 0 {
		d.buf = append(d.buf, d.scan[:n]...)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		d.eof = true
		return nil
	default:
		return fmt.Errorf("jsonseq: read: %w", err)
	}
}

// takeRecord consumes buffered input up to the next separator and returns the
// record it bounds, skipping empty records. With no separator left it falls
// back to an opportunistic parse of the whole remainder, which handles a
// stream whose final record is not followed by a separator.
func (d *Decoder) takeRecord() (json.RawMessage, bool, error) {
	for {
		i := bytes.IndexByte(d.buf, RecordSeparator)
		if i < 0 {
			break
		}
		rec := bytes.TrimSpace(d.buf[:i])
		d.buf = d.buf[i+1:]
		if len(rec) == 0 {
			continue
		}
		out := make(json.RawMessage, len(rec))
		copy(out, rec)
		if !json.Valid(out) {
			return nil, false, fmt.Errorf("jsonseq: malformed record %q", clip(out))
		}
		return out, true, nil
	}

	rest := bytes.TrimSpace(d.buf)
	if len(rest) > 0 && json.Valid(rest) {
		out := make(json.RawMessage, len(rest))
		copy(out, rest)
		d.buf = d.buf[:0]
		return out, true, nil
	}
	return nil, false, nil
}

// flush handles end of stream: leftover non-whitespace input must form one
// complete record.
func (d *Decoder) flush() (json.RawMessage, error) {
	rest := bytes.TrimSpace(d.buf)
	d.buf = nil
	if len(rest) == 0 {
		return nil, nil
	}
	if !json.Valid(rest) {
		return nil, fmt.Errorf("%w: %q", ErrTruncatedRecord, clip(rest))
	}
	out := make(json.RawMessage, len(rest))
	copy(out, rest)
	return out, nil
}

// clip bounds diagnostic output for oversized records.
func clip(b []byte) []byte {
	const max = 120
	if len(b) <= max {
		return b
	}
	return b[:max]
}

// An Encoder writes a JSON text sequence to an io.Writer. Each record is
// framed as separator + compact JSON + newline, the framing the pusoy server
// has always emitted. If the writer implements http.Flusher the record is
// flushed immediately so long-lived responses stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes v as one record.
func (e *Encoder) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("jsonseq: marshal record: %w", err)
	}
	framed := make([]byte, 0, len(data)+2)
	framed = append(framed, RecordSeparator)
	framed = append(framed, data...)
	framed = append(framed, '\n')
	if _, err := e.w.Write(framed); err != nil {
		return fmt.Errorf("jsonseq: write record: %w", err)
	}
	if f, ok := e.w.(interface{ Flush() }); ok {
		f.Flush()
	}
	return nil
}
