// Package arena provides a pooled, per-exchange byte allocator for the
// http1 framing core. It mirrors the arena-per-request pattern used
// elsewhere in the ecosystem for eliminating GC pressure on the hot
// parse path, but sticks to portable Go: no GOEXPERIMENT=arenas build
// tag, just a reusable backing slice handed out through a sync.Pool.
package arena

import "sync"

// Allocator is the capability pkg/http1 depends on to satisfy spec.md's
// "per-exchange arena" resource model: the header-line names and values
// the parser keeps past a single fill/discard cycle are requested
// through one of these rather than allocated ad hoc. The request-line's
// method and target are converted to ordinary Go strings instead.
type Allocator interface {
	// MakeSlice returns a zeroed byte slice of length n owned by the
	// arena. The slice is invalid after the arena is returned to its
	// Pool.
	MakeSlice(n int) []byte
	// Clone copies src into arena-owned memory and returns the copy.
	Clone(src []byte) []byte
	// MakeString copies s into arena-owned memory and returns a string
	// converted from that copy.
	MakeString(s string) string
}

// Arena is a growable bump allocator backed by a single reusable byte
// slice. It is not safe for concurrent use; callers give one Arena to
// one Stream at a time.
type Arena struct {
	buf []byte
	off int
}

// defaultCapacity sizes a fresh Arena to comfortably hold one typical
// request/response header block (spec.md's default max_headers=100
// times a modest average field-line length) without a grow.
const defaultCapacity = 8 * 1024

// New returns an Arena with no preallocated backing storage; its first
// MakeSlice call grows it on demand. Pool.Get is the normal entry point;
// New exists for callers that want an Arena outside the pool.
func New() *Arena {
	return &Arena{}
}

// MakeSlice returns a zeroed byte slice of length n carved out of the
// arena's backing buffer, growing it first if there isn't enough room.
func (a *Arena) MakeSlice(n int) []byte {
	a.growFor(n)
	s := a.buf[a.off : a.off+n : a.off+n]
	for i := range s {
		s[i] = 0
	}
	a.off += n
	return s
}

// Clone copies src into arena-owned memory.
func (a *Arena) Clone(src []byte) []byte {
	dst := a.rawSlice(len(src))
	copy(dst, src)
	return dst
}

// MakeString copies s into arena-owned memory and returns a string
// converted from that copy. The conversion allocates a new Go string,
// so the result does not alias arena memory.
func (a *Arena) MakeString(s string) string {
	dst := a.rawSlice(len(s))
	copy(dst, s)
	return string(dst)
}

// rawSlice is MakeSlice without the zero-fill, for callers that
// immediately overwrite every byte (Clone, MakeString).
func (a *Arena) rawSlice(n int) []byte {
	a.growFor(n)
	s := a.buf[a.off : a.off+n : a.off+n]
	a.off += n
	return s
}

func (a *Arena) growFor(n int) {
	if cap(a.buf)-a.off >= n {
		return
	}
	want := cap(a.buf) * 2
	if want < defaultCapacity {
		want = defaultCapacity
	}
	for want-a.off < n {
		want *= 2
	}
	grown := make([]byte, want)
	copy(grown, a.buf[:a.off])
	a.buf = grown
}

// reset discards all allocations, letting the backing buffer be reused
// for the next exchange without a new allocation.
func (a *Arena) reset() {
	a.off = 0
}

// Pool hands out Arenas for reuse across exchanges, avoiding a fresh
// allocation (and fresh GC pressure) per Stream the way spec.md §5
// expects of the per-exchange arena.
type Pool struct {
	pool sync.Pool
}

// NewPool returns a ready-to-use Pool.
func NewPool() *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any {
				return &Arena{buf: make([]byte, defaultCapacity)}
			},
		},
	}
}

// Get returns an Arena from the pool, ready for use by one Stream.
func (p *Pool) Get() *Arena {
	return p.pool.Get().(*Arena)
}

// Put resets the arena and returns it to the pool. Safe to call from a
// deferred cleanup regardless of whether the exchange succeeded.
func (p *Pool) Put(a *Arena) {
	if a == nil {
		return
	}
	a.reset()
	p.pool.Put(a)
}
