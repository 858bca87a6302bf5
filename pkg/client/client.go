// Package client provides a minimal raw-socket HTTP/1.x client built
// directly on pkg/http1: it dials a TCP (optionally TLS) connection,
// writes a caller-supplied raw request, and parses the response
// status-line/headers through http1.Stream (client role) before
// reading the body according to Content-Length/Transfer-Encoding.
package client

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/WhileEndless/httpwire/pkg/arena"
	"github.com/WhileEndless/httpwire/pkg/buffer"
	"github.com/WhileEndless/httpwire/pkg/constants"
	"github.com/WhileEndless/httpwire/pkg/errors"
	"github.com/WhileEndless/httpwire/pkg/headers"
	"github.com/WhileEndless/httpwire/pkg/http1"
	"github.com/WhileEndless/httpwire/pkg/wire"
)

// Options controls how Client establishes a connection and reads a
// response. TLS/proxy/connection-pooling concerns beyond a plain dial
// are left to the caller, per spec.md §1: this package is a thin
// consumer of pkg/http1, not a transport product.
type Options struct {
	Scheme string
	Host   string
	Port   int

	// InsecureTLS skips TLS certificate verification. Used only when
	// Scheme is "https"; present for local/self-signed test targets.
	InsecureTLS bool

	ConnTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// BodyMemLimit caps in-memory body storage before buffer.Buffer
	// spills to disk (default: buffer.DefaultMemoryLimit).
	BodyMemLimit int64
}

// Response represents a parsed HTTP response.
type Response struct {
	StatusLine  string
	StatusCode  int
	Method      string // HTTP method from the request (e.g., "GET", "POST", "HEAD")
	Headers     map[string][]string
	Body        *buffer.Buffer
	Raw         *buffer.Buffer
	BodyBytes   int64
	RawBytes    int64
	HTTPVersion string // "HTTP/1.0" or "HTTP/1.1"

	// TTFB is the time from the start of Do (before dialing) until the
	// response status line and header block have been parsed. Total is
	// the full Do() call duration.
	TTFB  time.Duration
	Total time.Duration
}

// Client implements a raw-socket HTTP/1.x round trip.
type Client struct{}

// New returns a new Client instance.
func New() *Client {
	return &Client{}
}

// parseMethod extracts the HTTP method from a raw request.
func parseMethod(req []byte) string {
	idx := bytes.IndexByte(req, ' ')
	if idx <= 0 {
		return ""
	}
	return strings.ToUpper(string(req[:idx]))
}

// Do executes the HTTP/1.x request over a fresh raw socket.
func (c *Client) Do(ctx context.Context, req []byte, opts Options) (*Response, error) {
	if len(req) == 0 {
		return nil, errors.NewValidationError("request cannot be empty")
	}
	if opts.Scheme != "http" && opts.Scheme != "https" {
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported scheme %q", opts.Scheme))
	}

	start := time.Now()
	conn, err := c.dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	bodyLimit := opts.BodyMemLimit
	if bodyLimit == 0 {
		bodyLimit = constants.DefaultBodyMemLimit
	}
	rawBufferSize := bodyLimit + 1024*1024
	if rawBufferSize > constants.MaxRawBufferSize {
		rawBufferSize = constants.MaxRawBufferSize
	}

	response := &Response{
		Method:  parseMethod(req),
		Headers: make(map[string][]string),
		Body:    buffer.New(bodyLimit),
		Raw:     buffer.New(rawBufferSize),
	}

	if err := c.sendRequest(conn, req, opts.WriteTimeout); err != nil {
		return nil, err
	}

	if err := c.readResponse(conn, response, opts.ReadTimeout, start); err != nil {
		response.Total = time.Since(start)
		response.BodyBytes = response.Body.Size()
		response.RawBytes = response.Raw.Size()
		if errors.IsTimeoutError(err) || errors.IsContextCanceled(err) {
			response.Body.Close()
			response.Raw.Close()
			return nil, err
		}
		return response, err
	}

	response.Total = time.Since(start)
	response.BodyBytes = response.Body.Size()
	response.RawBytes = response.Raw.Size()
	return response, nil
}

// dial opens a plain TCP connection, or a TLS connection when
// opts.Scheme is "https", honoring opts.ConnTimeout and ctx.
func (c *Client) dial(ctx context.Context, opts Options) (net.Conn, error) {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	connTimeout := opts.ConnTimeout
	if connTimeout == 0 {
		connTimeout = constants.DefaultConnTimeout
	}

	dialer := &net.Dialer{Timeout: connTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.NewConnectionError(opts.Host, opts.Port, err)
	}

	if opts.Scheme != "https" {
		return conn, nil
	}

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         opts.Host,
		InsecureSkipVerify: opts.InsecureTLS,
	})
	if connTimeout > 0 {
		tlsConn.SetDeadline(time.Now().Add(connTimeout))
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, errors.NewTLSError(opts.Host, opts.Port, err)
	}
	tlsConn.SetDeadline(time.Time{})
	return tlsConn, nil
}

func (c *Client) sendRequest(conn net.Conn, req []byte, writeTimeout time.Duration) error {
	if writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return errors.NewIOError("setting write deadline", err)
		}
		defer conn.SetWriteDeadline(time.Time{})
	}

	written := 0
	for written < len(req) {
		n, err := conn.Write(req[written:])
		if err != nil {
			return errors.NewIOError("writing request", err)
		}
		written += n
	}

	return nil
}

func (c *Client) readResponse(conn net.Conn, response *Response, readTimeout time.Duration, start time.Time) error {
	if readTimeout == 0 {
		readTimeout = constants.DefaultReadTimeout
	}
	if readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return errors.NewIOError("setting read deadline", err)
		}
	}

	// The wire.Source parses the status-line + header block through
	// http1.Stream (client role); once headers are consumed, the same
	// Source is handed to a bufio.Reader for body reading, so no bytes
	// buffered ahead of the header boundary are lost in the handoff.
	src := wire.NewSource(conn)
	http1Conn := http1.NewConnection(http1.Client, http1.HTTP1_1)
	stream := http1Conn.NewStream(arena.New())

	h, err := stream.ReadResponseHeaders(src)
	response.TTFB = time.Since(start)
	if err != nil {
		return errors.NewProtocolError("reading response headers", err)
	}

	if err := c.populateResponseFromHeaders(response, http1Conn, h); err != nil {
		return err
	}

	headerMap := headersToMap(h)
	response.Headers = headerMap

	reader := bufio.NewReader(src)

	return c.readBody(reader, response, headerMap)
}

// populateResponseFromHeaders fills in Response.StatusLine/StatusCode/
// HTTPVersion/Raw from the pseudo-headers http1.Stream.ReadResponseHeaders
// produced, and writes a reconstructed status line plus canonicalized
// field-lines to Response.Raw. Raw is not a verbatim copy of the bytes
// read: obs-fold continuations and original name casing are not kept.
func (c *Client) populateResponseFromHeaders(response *Response, conn *http1.Connection, h *headers.Headers) error {
	status, ok, err := h.GetOnly(":status")
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewProtocolError("response missing :status", nil)
	}
	code, convErr := strconv.Atoi(status.Value)
	if convErr != nil {
		return errors.NewProtocolError("invalid status code", convErr)
	}
	response.StatusCode = code

	version := "HTTP/1.1"
	if v, known := conn.PeerVersion(); known && v == http1.HTTP1_0 {
		version = "HTTP/1.0"
	}
	response.HTTPVersion = version

	reason := ""
	if r, ok, _ := h.GetOnly(":reason"); ok {
		reason = r.Value
	}
	statusLine := fmt.Sprintf("%s %s %s", version, status.Value, reason)
	response.StatusLine = strings.TrimRight(statusLine, " ")

	if _, err := response.Raw.Write([]byte(response.StatusLine + "\r\n")); err != nil {
		return err
	}
	for _, e := range h.Entries() {
		if strings.HasPrefix(e.Name, ":") {
			continue
		}
		if _, err := response.Raw.Write([]byte(textproto.CanonicalMIMEHeaderKey(e.Name) + ": " + e.Value + "\r\n")); err != nil {
			return err
		}
	}
	if _, err := response.Raw.Write([]byte("\r\n")); err != nil {
		return err
	}
	return nil
}

// headersToMap flattens a parsed Headers into the map[string][]string
// shape Response.Headers and the body-reading helpers below expect,
// canonicalizing names the way net/textproto does.
func headersToMap(h *headers.Headers) map[string][]string {
	m := make(map[string][]string)
	for _, e := range h.Entries() {
		if strings.HasPrefix(e.Name, ":") {
			continue
		}
		key := textproto.CanonicalMIMEHeaderKey(e.Name)
		m[key] = append(m[key], e.Value)
	}
	return m
}

func (c *Client) readBody(reader *bufio.Reader, response *Response, headers map[string][]string) error {
	statusCode := response.StatusCode
	method := response.Method
	transferEncoding := c.getHeaderValue(headers, "Transfer-Encoding")
	contentLength := c.getHeaderValue(headers, "Content-Length")
	connectionHeader := c.getHeaderValue(headers, "Connection")

	// RFC 9110 §6.4.1: 1xx, 204, 304 responses and responses to HEAD
	// requests never carry content. As a raw HTTP client we still want
	// to capture a body if a non-compliant server sends one anyway, so
	// we only skip reading when nothing is actually buffered yet.
	if method == "HEAD" ||
		(statusCode >= 100 && statusCode < 200) ||
		statusCode == 204 ||
		statusCode == 304 {
		if reader.Buffered() == 0 {
			return nil
		}
	}

	switch {
	case strings.Contains(strings.ToLower(transferEncoding), "chunked"):
		return c.readChunkedBody(reader, response.Body, response.Raw, response.Headers)
	case contentLength != "":
		length, err := strconv.ParseInt(strings.TrimSpace(contentLength), 10, 64)
		if err != nil {
			return errors.NewProtocolError("invalid content-length", err)
		}
		if length < 0 {
			return errors.NewProtocolError("negative content-length not allowed", nil)
		}
		if length > constants.MaxContentLength {
			return errors.NewProtocolError("content-length too large", nil)
		}
		return c.readFixedBody(reader, length, response.Body, response.Raw)
	default:
		return c.readUntilClose(reader, connectionHeader, response.Body, response.Raw)
	}
}

func (c *Client) getHeaderValue(headers map[string][]string, key string) string {
	if headers == nil {
		return ""
	}
	if values, ok := headers[textproto.CanonicalMIMEHeaderKey(key)]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

func (c *Client) readChunkedBody(r *bufio.Reader, dst, raw *buffer.Buffer, headers map[string][]string) error {
	tp := textproto.NewReader(r)
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return errors.NewProtocolError("reading chunk size", err)
		}

		if _, err := raw.Write([]byte(line + "\r\n")); err != nil {
			return err
		}

		size, err := strconv.ParseInt(strings.TrimSpace(strings.Split(line, ";")[0]), 16, 64)
		if err != nil {
			return errors.NewProtocolError("invalid chunk size", err)
		}

		if size == 0 {
			break
		}

		if _, err := io.CopyN(io.MultiWriter(dst, raw), tp.R, size); err != nil {
			return errors.NewIOError("reading chunk body", err)
		}

		crlf := make([]byte, 2)
		if _, err := io.ReadFull(tp.R, crlf); err != nil {
			return errors.NewIOError("reading chunk CRLF", err)
		}

		if _, err := raw.Write(crlf); err != nil {
			return err
		}
	}

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return errors.NewProtocolError("reading chunk trailer", err)
		}

		if _, err := raw.Write([]byte(line + "\r\n")); err != nil {
			return err
		}

		if line == "" {
			break
		}

		if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
			key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(parts[0]))
			value := strings.TrimSpace(parts[1])
			headers[key] = append(headers[key], value)
		}
	}

	return nil
}

func (c *Client) readFixedBody(r *bufio.Reader, length int64, dst, raw *buffer.Buffer) error {
	if length <= 0 {
		return nil
	}

	_, err := io.CopyN(io.MultiWriter(dst, raw), r, length)
	if err != nil {
		// Some servers send less data than Content-Length indicated
		// (a protocol violation); io.CopyN already wrote the bytes
		// that did arrive, so treat a short read as the full body.
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		return errors.NewIOError("reading fixed body", err)
	}

	return nil
}

func (c *Client) readUntilClose(r *bufio.Reader, connectionHeader string, dst, raw *buffer.Buffer) error {
	_, err := io.Copy(io.MultiWriter(dst, raw), r)
	if err != nil && err != io.EOF {
		return errors.NewIOError("reading until close", err)
	}

	return nil
}
