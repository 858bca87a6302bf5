package client

import (
	"bytes"
	"fmt"

	"github.com/WhileEndless/httpwire/pkg/arena"
	"github.com/WhileEndless/httpwire/pkg/headers"
	"github.com/WhileEndless/httpwire/pkg/http1"
	"github.com/WhileEndless/httpwire/pkg/wire"
)

// RequestBuilder assembles a raw HTTP/1.1 request by driving
// http1.Stream.WriteHeaderBlock, sparing callers from hand-formatting
// request-line/header-line byte slices the way Client.Do still
// accepts them.
type RequestBuilder struct {
	method  string
	target  string
	version http1.Version
	fields  []headerField
}

type headerField struct {
	name, value string
}

// NewRequestBuilder starts a request for method and target. target is
// the request-path for ordinary methods, or the authority-form target
// (host:port) for CONNECT.
func NewRequestBuilder(method, target string) *RequestBuilder {
	return &RequestBuilder{method: method, target: target, version: http1.HTTP1_1}
}

// Header appends one header field-line; repeated calls with the same
// name produce repeated field-lines, preserving order.
func (b *RequestBuilder) Header(name, value string) *RequestBuilder {
	b.fields = append(b.fields, headerField{name, value})
	return b
}

// HTTP10 pins the request line to HTTP/1.0, suppressing the implicit
// :authority requirement WriteHeaderBlock otherwise enforces.
func (b *RequestBuilder) HTTP10() *RequestBuilder {
	b.version = http1.HTTP1_0
	return b
}

// Build serializes the request against opts.Host/opts.Port as
// :authority (CONNECT's target carries the authority directly), via
// http1.Stream.WriteHeaderBlock (client role). The returned bytes are
// the same raw-request shape Client.Do already accepts, so existing
// raw-byte callers are unaffected.
func (b *RequestBuilder) Build(opts Options) ([]byte, error) {
	h := headers.New()
	h.Append(":method", b.method, 0)
	if b.method == "CONNECT" {
		h.Append(":authority", b.target, 0)
	} else {
		h.Append(":path", b.target, 0)
		if authority := authorityFor(opts); authority != "" {
			h.Append(":authority", authority, 0)
		}
	}
	for _, f := range b.fields {
		h.Append(f.name, f.value, 0)
	}

	conn := http1.NewConnection(http1.Client, b.version)
	stream := conn.NewStream(arena.New())

	var buf bytes.Buffer
	if err := stream.WriteHeaderBlock(h, wire.NewSink(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func authorityFor(opts Options) string {
	if opts.Host == "" {
		return ""
	}
	if opts.Port == 0 || isDefaultPort(opts.Scheme, opts.Port) {
		return opts.Host
	}
	return fmt.Sprintf("%s:%d", opts.Host, opts.Port)
}

func isDefaultPort(scheme string, port int) bool {
	switch scheme {
	case "https":
		return port == 443
	default:
		return port == 80
	}
}
