package http1

import (
	"bytes"
	"strings"

	"github.com/WhileEndless/httpwire/pkg/arena"
	"github.com/WhileEndless/httpwire/pkg/errors"
	"github.com/WhileEndless/httpwire/pkg/headers"
)

// isTokenChar reports whether b is a valid RFC 7230 token character:
// digits, letters, or one of !#$%&'*+-.^_`|~
func isTokenChar(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	}
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func isOWS(b byte) bool {
	return b == ' ' || b == '\t'
}

func trimOWS(b []byte) []byte {
	start := 0
	for start < len(b) && isOWS(b[start]) {
		start++
	}
	end := len(b)
	for end > start && isOWS(b[end-1]) {
		end--
	}
	return b[start:end]
}

// readRequestLine reads a single CRLF-terminated request line starting
// at offset (server role only), appending :method and :path or
// :authority to h and recording peer_version on c. It returns the
// offset one past the line's LF.
func readRequestLine(c *Connection, h *headers.Headers, src ByteSource, offset int) (int, error) {
	for {
		lf, err := src.FillUntilDelimiter(offset, '\n')
		if err != nil {
			return 0, err
		}
		lineLen := lf - offset // bytes before LF, CR included if present
		if lineLen == 1 && src.PeekItem(offset) == '\r' {
			// Tolerated leading blank line (RFC 7230 §3.5).
			offset += 2
			continue
		}
		if lineLen < 13 {
			return 0, errors.NewInvalidRequestError("read-request-line", "request line too short", nil)
		}
		if src.PeekItem(lf-1) != '\r' {
			return 0, errors.NewInvalidRequestError("read-request-line", "request line not terminated by CRLF", nil)
		}
		line := src.ReadableWithSize(offset, lineLen)

		if string(line[lineLen-10:lineLen-2]) != " HTTP/1." {
			return 0, errors.NewInvalidRequestError("read-request-line", "malformed HTTP version suffix", nil)
		}

		sp := bytes.IndexByte(line, ' ')
		if sp <= 0 {
			return 0, errors.NewInvalidRequestError("read-request-line", "missing or empty method", nil)
		}
		method := line[:sp]
		for _, b := range method {
			if !isTokenChar(b) {
				return 0, errors.NewInvalidRequestError("read-request-line", "method contains non-token byte", nil)
			}
		}

		target := line[sp+1 : lineLen-10]
		if len(target) == 0 || bytes.IndexByte(target, ' ') >= 0 {
			return 0, errors.NewInvalidRequestError("read-request-line", "empty or malformed request target", nil)
		}

		var version Version
		switch line[lineLen-2] {
		case '0':
			version = HTTP1_0
		case '1':
			version = HTTP1_1
		default:
			return 0, errors.NewInvalidRequestError("read-request-line", "unsupported HTTP version", nil)
		}
		if c.version == HTTP1_0 && version == HTTP1_1 {
			return 0, errors.NewVersionMismatchError("read-request-line", "peer declared HTTP/1.1 on a connection pinned to HTTP/1.0")
		}
		c.setPeerVersion(version)

		h.AppendOwned(":method", string(method), 0)
		if string(method) == "CONNECT" {
			h.AppendOwned(":authority", string(target), 0)
		} else {
			h.AppendOwned(":path", string(target), 0)
		}
		return lf + 1, nil
	}
}

// readHeaderLine reads one field-line, following obs-fold
// continuations. It returns done=true on the terminal blank line
// (CRLF alone); otherwise it returns the offset past the logical end
// of the (possibly folded) line.
func readHeaderLine(alloc arena.Allocator, h *headers.Headers, src ByteSource, offset int) (newOffset int, done bool, err error) {
	lf, err := src.FillUntilDelimiter(offset, '\n')
	if err != nil {
		return 0, false, err
	}
	lineLen := lf - offset
	if lineLen == 1 && src.PeekItem(offset) == '\r' {
		return lf + 1, true, nil
	}
	if lineLen < 3 {
		return 0, false, errors.NewInvalidRequestError("read-header-line", "field-line too short", nil)
	}
	if src.PeekItem(lf-1) != '\r' {
		return 0, false, errors.NewInvalidRequestError("read-header-line", "field-line not terminated by CRLF", nil)
	}
	line := src.ReadableWithSize(offset, lineLen)

	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return 0, false, errors.NewInvalidRequestError("read-header-line", "missing or empty field-name", nil)
	}
	name := line[:colon]
	for _, b := range name {
		if !isTokenChar(b) {
			return 0, false, errors.NewInvalidRequestError("read-header-line", "field-name contains non-token byte (whitespace before colon is rejected)", nil)
		}
	}

	value := trimOWS(line[colon+1 : lineLen-1])
	valueBuf := append([]byte(nil), value...)
	endOffset := lf

	for {
		if err := src.Fill(endOffset + 2); err != nil {
			return 0, false, err
		}
		next := src.PeekItem(endOffset + 1)
		if !isOWS(next) {
			break
		}
		lf2, err := src.FillUntilDelimiter(endOffset+1, '\n')
		if err != nil {
			return 0, false, err
		}
		contLen := lf2 - (endOffset + 1)
		if contLen < 1 || src.PeekItem(lf2-1) != '\r' {
			return 0, false, errors.NewInvalidRequestError("read-header-line", "malformed obs-fold continuation", nil)
		}
		cont := src.ReadableWithSize(endOffset+1, contLen-1)
		valueBuf = append(valueBuf, ' ')
		valueBuf = append(valueBuf, trimOWS(cont)...)
		endOffset = lf2
	}

	lowerName := strings.ToLower(string(name))
	if lowerName == "host" {
		lowerName = ":authority"
	}
	ownedName := alloc.MakeString(lowerName)
	ownedValue := alloc.MakeString(string(valueBuf))
	h.AppendOwned(ownedName, ownedValue, 0)

	return endOffset + 1, false, nil
}

// readHeaderBlock repeatedly invokes readHeaderLine until the
// terminal blank line is found, enforcing max_headers. It returns the
// offset past the terminating CRLF.
func readHeaderBlock(c *Connection, alloc arena.Allocator, h *headers.Headers, src ByteSource, offset int) (int, error) {
	for {
		next, done, err := readHeaderLine(alloc, h, src, offset)
		if err != nil {
			if errors.GetErrorType(err) == errors.ErrorTypeEndOfStream {
				return 0, errors.NewInvalidRequestError("read-header-block", "connection closed inside header block", err)
			}
			return 0, err
		}
		if done {
			return next, nil
		}
		offset = next
		if h.Count() > c.maxHeaders() {
			return 0, errors.NewTooManyHeadersError("read-header-block", h.Count(), c.maxHeaders())
		}
	}
}

// ReadRequestHeaders reads a complete request-line + header block from
// src into a freshly allocated Headers (server role). On success it
// discards the consumed prefix from src; on failure it leaves src's
// read cursor untouched so the caller can close the connection without
// having partially consumed a malformed message.
func (s *Stream) ReadRequestHeaders(src ByteSource) (*headers.Headers, error) {
	s.state = stateReadingHeaders
	h := s.newHeaders()

	offset, err := readRequestLine(s.conn, h, src, 0)
	if err != nil {
		s.state = stateClosed
		return nil, err
	}
	offset, err = readHeaderBlock(s.conn, s.alloc, h, src, offset)
	if err != nil {
		s.state = stateClosed
		return nil, err
	}
	src.Discard(offset)
	s.state = stateAfterHeaders
	return h, nil
}
