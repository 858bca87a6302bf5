// Package rawhttp provides a small raw-socket HTTP/1.x client built on
// pkg/http1, pkg/headers, and pkg/client.
package rawhttp

import (
	"context"

	"github.com/WhileEndless/httpwire/pkg/buffer"
	"github.com/WhileEndless/httpwire/pkg/client"
	"github.com/WhileEndless/httpwire/pkg/errors"
)

// Version is the current version of the httpwire library.
const Version = "3.0.0"

// GetVersion returns the current version of the library.
func GetVersion() string {
	return Version
}

// Re-export key types for easier usage.
type (
	// Options controls how the Sender establishes connections and reads responses.
	Options = client.Options

	// Response represents a parsed HTTP response.
	Response = client.Response

	// Buffer provides memory-efficient storage with disk spilling.
	Buffer = buffer.Buffer

	// Error represents a structured error with context information.
	Error = errors.Error
)

// Re-export error types for convenience.
const (
	ErrorTypeDNS        = errors.ErrorTypeDNS
	ErrorTypeConnection = errors.ErrorTypeConnection
	ErrorTypeTLS        = errors.ErrorTypeTLS
	ErrorTypeTimeout    = errors.ErrorTypeTimeout
	ErrorTypeProtocol   = errors.ErrorTypeProtocol
	ErrorTypeIO         = errors.ErrorTypeIO
	ErrorTypeValidation = errors.ErrorTypeValidation
)

// Sender implements raw HTTP/1.x transport.
type Sender struct {
	client *client.Client
}

// NewSender returns a new Sender instance.
func NewSender() *Sender {
	return &Sender{client: client.New()}
}

// Do executes the HTTP request using a raw socket.
func (s *Sender) Do(ctx context.Context, req []byte, opts Options) (*Response, error) {
	return s.client.Do(ctx, req, opts)
}

// NewBuffer creates a new buffer with the specified memory limit.
func NewBuffer(limit int64) *Buffer {
	return buffer.New(limit)
}

// IsTimeoutError checks if an error is a timeout error.
func IsTimeoutError(err error) bool {
	return errors.IsTimeoutError(err)
}

// IsTemporaryError checks if an error is temporary.
func IsTemporaryError(err error) bool {
	return errors.IsTemporaryError(err)
}

// GetErrorType returns the error type if it's a structured error.
func GetErrorType(err error) string {
	return string(errors.GetErrorType(err))
}

// DefaultOptions returns default options for common use cases.
func DefaultOptions(scheme, host string, port int) Options {
	return Options{Scheme: scheme, Host: host, Port: port}
}
