package http1

import (
	"strconv"
	"strings"

	"github.com/WhileEndless/httpwire/pkg/errors"
	"github.com/WhileEndless/httpwire/pkg/headers"
)

func containsSPCRLF(s string) bool {
	return strings.ContainsAny(s, " \r\n")
}

// writeRequestLine emits "METHOD SP TARGET SP HTTP/<ver> CRLF"
// (client role only).
func writeRequestLine(c *Connection, method, target string, sink ByteSink) error {
	if method == "" || containsSPCRLF(method) {
		return errors.NewInvalidRequestError("write-request-line", "method must be non-empty and contain no SP, CR, or LF", nil)
	}
	if target == "" || containsSPCRLF(target) {
		return errors.NewInvalidRequestError("write-request-line", "target must be non-empty and contain no SP, CR, or LF", nil)
	}
	return sink.Print("%s %s HTTP/%s\r\n", method, target, versionSuffix(c.version))
}

// writeStatusLine emits "HTTP/<ver> SP SSS SP reason CRLF" (server
// role only). code must be a 3-digit status code.
func writeStatusLine(c *Connection, code int, reason string, sink ByteSink) error {
	if code < 100 || code > 999 {
		return errors.NewInvalidRequestError("write-status-line", "status code must be exactly 3 ASCII digits", nil)
	}
	if strings.ContainsAny(reason, "\r\n") {
		return errors.NewInvalidRequestError("write-status-line", "reason phrase must contain no CR or LF", nil)
	}
	return sink.Print("HTTP/%s %03d %s\r\n", versionSuffix(c.version), code, reason)
}

// writeHeaderLine emits "name: value CRLF", asserting name has no
// colon/CR/LF and value's LF bytes are all valid obs-fold (followed by
// SP or HTAB).
func writeHeaderLine(name, value string, sink ByteSink) error {
	if name == "" || strings.ContainsAny(name, ":\r\n") {
		return errors.NewInvalidRequestError("write-header-line", "header name must be non-empty and contain no colon, CR, or LF", nil)
	}
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '\r':
			return errors.NewInvalidRequestError("write-header-line", "header value contains a bare CR", nil)
		case '\n':
			if i == len(value)-1 || !isOWS(value[i+1]) {
				return errors.NewInvalidRequestError("write-header-line", "header value contains an LF not followed by SP or HTAB", nil)
			}
		}
	}
	return sink.Print("%s: %s\r\n", name, value)
}

// writeHeadersDone emits the terminating blank line.
func writeHeadersDone(sink ByteSink) error {
	return sink.Write([]byte("\r\n"))
}

func versionSuffix(v Version) string {
	if v == HTTP1_0 {
		return "1.0"
	}
	return "1.1"
}

func isPseudoHeader(name string) bool {
	return strings.HasPrefix(name, ":")
}

// WriteHeaderBlock serializes h onto sink, role-dispatched per
// spec.md §4.3.2.
func (s *Stream) WriteHeaderBlock(h *headers.Headers, sink ByteSink) error {
	s.state = stateWritingHeaders
	var err error
	if s.conn.Role == Client {
		err = s.writeClientHeaderBlock(h, sink)
	} else {
		err = s.writeServerHeaderBlock(h, sink)
	}
	if err != nil {
		s.state = stateClosed
		return err
	}
	s.state = stateAfterWriting
	return nil
}

func (s *Stream) writeClientHeaderBlock(h *headers.Headers, sink ByteSink) error {
	method, ok, err := h.GetOnly(":method")
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewInvalidRequestError("write-header-block", "missing :method", nil)
	}

	var target string
	authority, hasAuthority, err := h.GetOnly(":authority")
	if err != nil {
		return err
	}

	if method.Value == "CONNECT" {
		if !hasAuthority {
			return errors.NewInvalidRequestError("write-header-block", "CONNECT requires :authority", nil)
		}
		if h.Contains(":path") {
			return errors.NewInvalidRequestError("write-header-block", "CONNECT must not carry :path", nil)
		}
		target = authority.Value
	} else {
		path, ok, err := h.GetOnly(":path")
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewInvalidRequestError("write-header-block", "missing :path", nil)
		}
		target = path.Value
		if !hasAuthority && s.conn.Version() != HTTP1_0 {
			return errors.NewInvalidRequestError("write-header-block", "HTTP/1.1 requires :authority (Host)", nil)
		}
	}

	if err := writeRequestLine(s.conn, method.Value, target, sink); err != nil {
		return err
	}
	for _, e := range h.Entries() {
		if isPseudoHeader(e.Name) {
			continue
		}
		if err := writeHeaderLine(e.Name, e.Value, sink); err != nil {
			return err
		}
	}
	if hasAuthority {
		if err := writeHeaderLine("host", authority.Value, sink); err != nil {
			return err
		}
	}
	return writeHeadersDone(sink)
}

func (s *Stream) writeServerHeaderBlock(h *headers.Headers, sink ByteSink) error {
	status, ok, err := h.GetOnly(":status")
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewInvalidRequestError("write-header-block", "missing :status", nil)
	}
	if len(status.Value) != 3 {
		return errors.NewInvalidRequestError("write-header-block", ":status must be exactly 3 ASCII digits", nil)
	}
	for _, b := range []byte(status.Value) {
		if b < '0' || b > '9' {
			return errors.NewInvalidRequestError("write-header-block", ":status must be exactly 3 ASCII digits", nil)
		}
	}
	code, _ := strconv.Atoi(status.Value)

	if peerVer, known := s.conn.PeerVersion(); known && peerVer == HTTP1_0 && code >= 100 && code < 200 {
		return errors.NewInvalidRequestError("write-header-block", "1xx status forbidden when peer declared HTTP/1.0", nil)
	}

	reason := reasonPhrase(code)
	if r, ok, err := h.GetOnly(":reason"); err == nil && ok {
		reason = r.Value
	}

	if err := writeStatusLine(s.conn, code, reason, sink); err != nil {
		return err
	}
	for _, e := range h.Entries() {
		if isPseudoHeader(e.Name) {
			continue
		}
		if err := writeHeaderLine(e.Name, e.Value, sink); err != nil {
			return err
		}
	}
	return writeHeadersDone(sink)
}
