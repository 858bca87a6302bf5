package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/WhileEndless/httpwire/pkg/errors"
)

func TestSourceFillAndPeek(t *testing.T) {
	s := NewSource(strings.NewReader("GET / HTTP/1.1\r\n"))
	if err := s.Fill(3); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if s.PeekItem(0) != 'G' || s.PeekItem(1) != 'E' || s.PeekItem(2) != 'T' {
		t.Fatalf("unexpected peeked bytes")
	}
}

func TestSourceFillUntilDelimiter(t *testing.T) {
	s := NewSource(strings.NewReader("GET / HTTP/1.1\r\n"))
	idx, err := s.FillUntilDelimiter(0, '\n')
	if err != nil {
		t.Fatalf("fill-until-delimiter: %v", err)
	}
	line := s.ReadableWithSize(0, idx+1)
	if string(line) != "GET / HTTP/1.1\r\n" {
		t.Fatalf("got %q", line)
	}
	s.Discard(idx + 1)
}

func TestSourceFillUntilDelimiterAcrossReads(t *testing.T) {
	r := &slowReader{chunks: []string{"foo", "bar\n", "baz"}}
	s := NewSource(r)
	idx, err := s.FillUntilDelimiter(0, '\n')
	if err != nil {
		t.Fatalf("fill-until-delimiter: %v", err)
	}
	if string(s.ReadableWithSize(0, idx+1)) != "foobar\n" {
		t.Fatalf("got %q", s.ReadableWithSize(0, idx+1))
	}
}

func TestSourceDiscardThenRefill(t *testing.T) {
	s := NewSource(strings.NewReader("AAAABBBB"))
	if err := s.Fill(4); err != nil {
		t.Fatalf("fill: %v", err)
	}
	s.Discard(4)
	if err := s.Fill(4); err != nil {
		t.Fatalf("fill after discard: %v", err)
	}
	if string(s.ReadableWithSize(0, 4)) != "BBBB" {
		t.Fatalf("got %q", s.ReadableWithSize(0, 4))
	}
}

func TestSourceFillEndOfStream(t *testing.T) {
	s := NewSource(strings.NewReader("ab"))
	err := s.Fill(10)
	if err == nil {
		t.Fatalf("expected end-of-stream error")
	}
	if errors.GetErrorType(err) != errors.ErrorTypeEndOfStream {
		t.Fatalf("got error type %v", errors.GetErrorType(err))
	}
}

func TestSinkWriteAndPrint(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf)
	if err := sink.Write([]byte("GET / HTTP/1.1\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Print("%s: %s\r\n", "host", "example.com"); err != nil {
		t.Fatalf("print: %v", err)
	}
	want := "GET / HTTP/1.1\r\nhost: example.com\r\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}

func TestSourceReadDrainsBufferedThenUnderlying(t *testing.T) {
	s := NewSource(strings.NewReader("HTTP/1.1 200 OK\r\n\r\nbody-bytes"))
	if _, err := s.FillUntilDelimiter(0, '\n'); err != nil {
		t.Fatalf("fill-until-delimiter: %v", err)
	}
	s.Discard(len("HTTP/1.1 200 OK\r\n"))
	if _, err := s.FillUntilDelimiter(0, '\n'); err != nil {
		t.Fatalf("fill-until-delimiter: %v", err)
	}
	s.Discard(len("\r\n"))

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if string(got) != "body-bytes" {
		t.Fatalf("got %q", got)
	}
}

// slowReader hands back its chunks one Read call at a time, exercising
// FillUntilDelimiter's loop across multiple underlying reads.
type slowReader struct {
	chunks []string
	i      int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.i >= len(r.chunks) {
		return 0, bytes.ErrTooLarge // unused path, chunks always cover the test
	}
	n := copy(p, r.chunks[r.i])
	r.i++
	return n, nil
}
