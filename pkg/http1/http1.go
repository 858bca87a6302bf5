// Package http1 implements the HTTP/1.x message framing and header
// parser/serializer: request-line, status-line, and header-line
// reading and writing, normalized into the pseudo-header representation
// (`:method`, `:path`, `:authority`, `:scheme`, `:status`) shared with
// HTTP/2-style header blocks. It sits above a buffered byte stream
// (pkg/wire) and below routing, body, or application logic.
package http1

import (
	"github.com/WhileEndless/httpwire/pkg/arena"
	"github.com/WhileEndless/httpwire/pkg/headers"
)

// ConnectionRole fixes which side of the exchange a Connection plays,
// decided once at construction.
type ConnectionRole int

const (
	// Client connections write request lines/headers and read
	// status lines/headers.
	Client ConnectionRole = iota
	// Server connections read request lines/headers and write
	// status lines/headers.
	Server
)

func (r ConnectionRole) String() string {
	if r == Server {
		return "server"
	}
	return "client"
}

// Version is the declared or observed HTTP/1 protocol version.
type Version int

const (
	// HTTP1_0 is HTTP/1.0.
	HTTP1_0 Version = iota
	// HTTP1_1 is HTTP/1.1.
	HTTP1_1
)

func (v Version) String() string {
	if v == HTTP1_0 {
		return "HTTP/1.0"
	}
	return "HTTP/1.1"
}

// DefaultMaxHeaders is the default hard cap on header count per
// exchange, applied by readHeaderBlock.
const DefaultMaxHeaders = 100

// Connection holds per-TCP-connection HTTP/1 state: which role this
// side plays, the version this side declares, the version the peer has
// been observed to declare, and the header-count policy limit. It is
// mutated only by its own parser methods (to record peer_version) and
// must not be shared across concurrently-driven goroutines — HTTP/1
// keep-alive serializes streams one at a time on a connection.
type Connection struct {
	Role ConnectionRole
	// version is this side's own declared protocol version.
	version Version
	// peerVersion is set once the first inbound line has been parsed.
	peerVersion    Version
	peerVersionSet bool
	// MaxHeaders is the hard cap enforced by readHeaderBlock. Zero
	// means DefaultMaxHeaders.
	MaxHeaders int
}

// NewConnection returns a Connection fixed to role and version.
func NewConnection(role ConnectionRole, version Version) *Connection {
	return &Connection{Role: role, version: version, MaxHeaders: DefaultMaxHeaders}
}

// Version returns this side's own declared protocol version.
func (c *Connection) Version() Version {
	return c.version
}

// PeerVersion returns the version most recently observed from the
// peer and whether one has been observed yet.
func (c *Connection) PeerVersion() (Version, bool) {
	return c.peerVersion, c.peerVersionSet
}

func (c *Connection) setPeerVersion(v Version) {
	c.peerVersion = v
	c.peerVersionSet = true
}

func (c *Connection) maxHeaders() int {
	if c.MaxHeaders <= 0 {
		return DefaultMaxHeaders
	}
	return c.MaxHeaders
}

// state is the Stream's lifecycle position. The core entry points
// (ReadRequestHeaders, ReadResponseHeaders, WriteHeaderBlock) move
// through idle, readingHeaders/afterHeaders, writingHeaders/afterWriting
// and closed; trailers is named here so a body/trailers layer built on
// top has somewhere to transition through without redefining the enum.
type state int

const (
	stateIdle state = iota
	stateReadingHeaders
	stateAfterHeaders
	stateWritingHeaders
	stateAfterWriting
	stateTrailers
	stateClosed
)

// Stream is one logical request/response exchange bound to a
// Connection. It owns a per-exchange allocator and is destroyed (its
// arena returned to its pool) after the exchange completes.
type Stream struct {
	conn       *Connection
	alloc      arena.Allocator
	state      state
	isTrailers bool
}

// NewStream creates a Stream bound to conn, using alloc for any
// per-exchange allocations (header names/values that must outlive a
// single fill/discard cycle).
func (c *Connection) NewStream(alloc arena.Allocator) *Stream {
	return &Stream{conn: c, alloc: alloc, state: stateIdle}
}

// IsTrailers reports whether this Stream is reading/writing a trailer
// block rather than the initial header block.
func (s *Stream) IsTrailers() bool {
	return s.isTrailers
}

// SetTrailers records whether this Stream is on a trailer block. The
// flag is only reported back by IsTrailers; ReadRequestHeaders,
// ReadResponseHeaders and WriteHeaderBlock do not consult it.
func (s *Stream) SetTrailers(v bool) {
	s.isTrailers = v
}

// newHeaders allocates a Headers ready to receive up to the
// connection's max_headers entries.
func (s *Stream) newHeaders() *headers.Headers {
	return headers.NewWithCapacity(s.conn.maxHeaders())
}
