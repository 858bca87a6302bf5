package http1

// ByteSource is the buffered input capability the parser works
// against: index-offset fill/peek/slice so it can scan ahead without
// consuming bytes until a full request-line or header block has been
// validated. pkg/wire.Source satisfies this.
type ByteSource interface {
	// Fill ensures at least n bytes are available starting at the
	// current read cursor.
	Fill(n int) error
	// FillUntilDelimiter extends the buffer until delim is found at or
	// after byteOffset from the read cursor, returning delim's index
	// relative to the read cursor.
	FillUntilDelimiter(byteOffset int, delim byte) (int, error)
	// PeekItem returns the byte at offset i from the read cursor.
	PeekItem(i int) byte
	// ReadableWithSize returns n bytes starting at offset from the read
	// cursor without consuming them.
	ReadableWithSize(offset, n int) []byte
	// Discard permanently advances the read cursor past n bytes.
	Discard(n int)
}

// ByteSink is the buffered output capability the serializer writes
// through. pkg/wire.Sink satisfies this.
type ByteSink interface {
	Write(p []byte) error
	Print(format string, args ...any) error
}
