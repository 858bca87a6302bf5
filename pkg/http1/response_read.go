package http1

import (
	"github.com/WhileEndless/httpwire/pkg/errors"
	"github.com/WhileEndless/httpwire/pkg/headers"
)

// readStatusLine reads a single CRLF-terminated status line (client
// role only): "HTTP/1.<digit> SP 3DIGIT [SP reason-phrase] CRLF". It
// appends :status (and :reason, if a non-empty reason phrase is
// present) to h and records peer_version on c, mirroring
// readRequestLine's treatment of the request line's version token.
func readStatusLine(c *Connection, h *headers.Headers, src ByteSource, offset int) (int, error) {
	lf, err := src.FillUntilDelimiter(offset, '\n')
	if err != nil {
		return 0, err
	}
	lineLen := lf - offset
	if lineLen < 13 {
		return 0, errors.NewInvalidRequestError("read-status-line", "status line too short", nil)
	}
	if src.PeekItem(lf-1) != '\r' {
		return 0, errors.NewInvalidRequestError("read-status-line", "status line not terminated by CRLF", nil)
	}
	line := src.ReadableWithSize(offset, lineLen)
	content := line[:lineLen-1] // drop trailing CR

	if string(content[:7]) != "HTTP/1." || content[8] != ' ' {
		return 0, errors.NewInvalidRequestError("read-status-line", "malformed HTTP version prefix", nil)
	}

	var version Version
	switch content[7] {
	case '0':
		version = HTTP1_0
	case '1':
		version = HTTP1_1
	default:
		return 0, errors.NewInvalidRequestError("read-status-line", "unsupported HTTP version", nil)
	}
	if c.version == HTTP1_0 && version == HTTP1_1 {
		return 0, errors.NewVersionMismatchError("read-status-line", "peer declared HTTP/1.1 on a connection pinned to HTTP/1.0")
	}
	c.setPeerVersion(version)

	rest := content[9:]
	if len(rest) < 3 {
		return 0, errors.NewInvalidRequestError("read-status-line", "missing status code", nil)
	}
	code := rest[:3]
	for _, b := range code {
		if b < '0' || b > '9' {
			return 0, errors.NewInvalidRequestError("read-status-line", "status code must be exactly 3 ASCII digits", nil)
		}
	}

	var reason []byte
	if len(rest) > 3 {
		if rest[3] != ' ' {
			return 0, errors.NewInvalidRequestError("read-status-line", "missing SP after status code", nil)
		}
		reason = rest[4:]
	}

	h.AppendOwned(":status", string(code), 0)
	if len(reason) > 0 {
		h.AppendOwned(":reason", string(reason), 0)
	}
	return lf + 1, nil
}

// ReadResponseHeaders reads a complete status-line + header block from
// src into a freshly allocated Headers (client role). Same discard-
// only-on-success contract as ReadRequestHeaders: on failure src's read
// cursor is left untouched.
func (s *Stream) ReadResponseHeaders(src ByteSource) (*headers.Headers, error) {
	s.state = stateReadingHeaders
	h := s.newHeaders()

	offset, err := readStatusLine(s.conn, h, src, 0)
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
