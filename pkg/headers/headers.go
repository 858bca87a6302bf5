// Package headers implements the ordered, case-insensitive header
// multimap used by the HTTP/1 framing core, holding pseudo-headers
// (`:method`, `:path`, `:authority`, `:status`, ...) alongside ordinary
// fields.
package headers

import (
	"strings"

	"github.com/WhileEndless/httpwire/pkg/errors"
)

// EntryFlags carries metadata about a single header entry that the parser
// itself never sets; it exists for callers building a Headers for the
// write path (e.g. marking a value as sensitive for a future debug dump).
type EntryFlags uint8

const (
	// EntryFlagSensitive marks a header value as sensitive. The flag is
	// only carried on the Entry: String and the http1 writers do not
	// consult it and emit the value verbatim.
	EntryFlagSensitive EntryFlags = 1 << iota
)

// Entry is one (name, value) pair. Name is always lowercase.
type Entry struct {
	Name  string
	Value string
	Flags EntryFlags
}

// Headers is an ordered, case-insensitive multimap of header name to
// value. Order is preserved across duplicate names; names are stored
// lowercased on insert (§4.1 of the framing spec).
type Headers struct {
	entries []Entry
}

// New returns an empty Headers ready for use. There is no separate
// init/deinit step in Go: the zero value is also ready, New exists for
// symmetry with the rest of the package and to let callers pre-size.
func New() *Headers {
	return &Headers{}
}

// NewWithCapacity pre-allocates room for n entries, useful when the
// caller (e.g. the HTTP/1 parser) knows an upper bound like max_headers.
func NewWithCapacity(n int) *Headers {
	return &Headers{entries: make([]Entry, 0, n)}
}

// Append copies name and value into the multimap, lowercasing name.
func (h *Headers) Append(name, value string, flags EntryFlags) {
	h.entries = append(h.entries, Entry{
		Name:  strings.ToLower(name),
		Value: value,
		Flags: flags,
	})
}

// AppendOwned is identical to Append for this implementation: Go's
// garbage-collected strings have no separate "ownership transfer" step,
// so AppendOwned exists only to mirror the arena-allocator contract of
// spec.md §4.1, where appendOwned avoids a second copy of already
// lowercased, already-allocated bytes. Callers that built name/value from
// arena-backed byte slices should pass already-lowercased names here.
func (h *Headers) AppendOwned(lowercaseName, value string, flags EntryFlags) {
	h.entries = append(h.entries, Entry{Name: lowercaseName, Value: value, Flags: flags})
}

// Count returns the total number of entries, not the number of unique
// names.
func (h *Headers) Count() int {
	return len(h.entries)
}

// Contains reports whether at least one entry has the given name
// (case-insensitive).
func (h *Headers) Contains(name string) bool {
	name = strings.ToLower(name)
	for _, e := range h.entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// GetOnly returns the single entry for name if exactly one exists. It
// returns an error if more than one entry shares the name; it returns
// (Entry{}, false, nil) if none do.
func (h *Headers) GetOnly(name string) (Entry, bool, error) {
	name = strings.ToLower(name)
	var found Entry
	count := 0
	for _, e := range h.entries {
		if e.Name == name {
			found = e
			count++
		}
	}
	switch count {
	case 0:
		return Entry{}, false, nil
	case 1:
		return found, true, nil
	default:
		return Entry{}, false, errors.NewProtocolError("multiple values for "+name, nil)
	}
}

// All returns every value for name, in insertion order.
func (h *Headers) All(name string) []string {
	name = strings.ToLower(name)
	var values []string
	for _, e := range h.entries {
		if e.Name == name {
			values = append(values, e.Value)
		}
	}
	return values
}

// Entries returns the entries in insertion order. The returned slice
// shares storage with h; callers must not mutate it.
func (h *Headers) Entries() []Entry {
	return h.entries
}

// Reset clears all entries, allowing the Headers to be recycled (e.g. by
// an arena-backed pool) without reallocating the backing slice.
func (h *Headers) Reset() {
	h.entries = h.entries[:0]
}

// String renders "name: value\n" per entry in insertion order, matching
// the debug/test equality format from spec.md §4.1.
func (h *Headers) String() string {
	var b strings.Builder
	for _, e := range h.entries {
		b.WriteString(e.Name)
		b.WriteString(": ")
		b.WriteString(e.Value)
		b.WriteByte('\n')
	}
	return b.String()
}
