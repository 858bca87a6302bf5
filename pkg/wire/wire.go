// Package wire implements the buffered input/output capability that
// pkg/http1 parses against: an index-offset Source that can be filled,
// peeked, and discarded without consuming data the parser hasn't yet
// validated, and a Sink for writing serialized output.
//
// A bufio.Reader can't serve this role directly: once bytes are read
// out of it they're gone, so there's no way to peek past the buffer,
// back off, and re-peek with more data once a later fill arrives mid
// header-line. Source keeps its own growable backing slice and a read
// cursor instead, the way the teacher's own readLine/readHeaders pull
// from a bufio.Reader one ReadString('\n') at a time, generalized to
// work one byte-offset at a time.
package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/WhileEndless/httpwire/pkg/errors"
)

// Source is a buffered reader over an io.Reader, exposing index-offset
// access to not-yet-consumed bytes.
type Source struct {
	r    io.Reader
	buf  []byte
	pos  int // start of unconsumed data within buf
	end  int // end of valid data within buf
}

// NewSource wraps r in a Source with a small initial buffer that grows
// on demand.
func NewSource(r io.Reader) *Source {
	return &Source{r: r, buf: make([]byte, 4096)}
}

// Fill ensures at least n unconsumed bytes are available, reading from
// the underlying io.Reader as needed. It returns an *errors.Error with
// ErrorTypeEndOfStream if the peer closes before n bytes arrive.
func (s *Source) Fill(n int) error {
	for s.end-s.pos < n {
		s.compactOrGrow(n)
		m, err := s.r.Read(s.buf[s.end:])
		s.end += m
		if err != nil {
			if err == io.EOF {
				if s.end-s.pos >= n {
					return nil
				}
				return errors.NewEndOfStreamError("fill", err)
			}
			return errors.NewIOError("fill", err)
		}
	}
	return nil
}

// FillUntilDelimiter grows the unconsumed window until it contains
// delim at or after byteOffset from the current read cursor, or
// returns an error if the underlying reader is exhausted first. It
// returns the absolute offset (from the read cursor) of the first byte
// of delim.
func (s *Source) FillUntilDelimiter(byteOffset int, delim byte) (int, error) {
	for {
		if idx := bytes.IndexByte(s.buf[s.pos+byteOffset:s.end], delim); idx >= 0 {
			return byteOffset + idx, nil
		}
		before := s.end - s.pos
		s.compactOrGrow(before + 1)
		m, err := s.r.Read(s.buf[s.end:])
		s.end += m
		if err != nil {
			if err == io.EOF {
				return 0, errors.NewEndOfStreamError("fill-until-delimiter", err)
			}
			return 0, errors.NewIOError("fill-until-delimiter", err)
		}
	}
}

// PeekItem returns the byte at offset i from the current read cursor
// without consuming it. Fill must have already guaranteed i is in
// range.
func (s *Source) PeekItem(i int) byte {
	return s.buf[s.pos+i]
}

// ReadableWithSize returns the n bytes starting at offset without
// consuming them. Fill must have already guaranteed offset+n is in
// range.
func (s *Source) ReadableWithSize(offset, n int) []byte {
	return s.buf[s.pos+offset : s.pos+offset+n]
}

// Discard advances the read cursor past n bytes, permanently consuming
// them.
func (s *Source) Discard(n int) {
	s.pos += n
}

// Read implements io.Reader by draining whatever is already buffered
// before falling through to the wrapped reader, so a Source can be
// handed to a bufio.Reader (or any other io.Reader consumer) right
// where index-offset parsing left off, with no bytes lost or
// duplicated across the handoff.
func (s *Source) Read(p []byte) (int, error) {
	if s.pos < s.end {
		n := copy(p, s.buf[s.pos:s.end])
		s.pos += n
		return n, nil
	}
	return s.r.Read(p)
}

// compactOrGrow makes room for at least need unconsumed bytes in total
// (the current window plus free space after it), sliding live data to
// the front of buf or growing buf if sliding alone isn't enough.
func (s *Source) compactOrGrow(need int) {
	live := s.end - s.pos
	if s.pos > 0 {
		copy(s.buf, s.buf[s.pos:s.end])
		s.pos = 0
		s.end = live
	}
	if cap(s.buf)-s.end >= need-live || need <= live {
		return
	}
	want := cap(s.buf) * 2
	for want < live+need {
		want *= 2
	}
	grown := make([]byte, want)
	copy(grown, s.buf[:s.end])
	s.buf = grown
}

// Sink writes through to an io.Writer; it keeps no buffer of its own.
type Sink struct {
	w io.Writer
}

// NewSink wraps w in a Sink.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Write writes p verbatim, returning an *errors.Error on failure.
func (s *Sink) Write(p []byte) error {
	if _, err := s.w.Write(p); err != nil {
		return errors.NewIOError("write", err)
	}
	return nil
}

// Print writes a formatted string, mirroring spec.md's print(fmt, args)
// output primitive.
func (s *Sink) Print(format string, args ...any) error {
	if _, err := fmt.Fprintf(s.w, format, args...); err != nil {
		return errors.NewIOError("write", err)
	}
	return nil
}
