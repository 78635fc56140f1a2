// Package errors provides domain-specific error types for the agent.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	// ErrOutOfRange is returned by any linear memory access outside the memory.
	ErrOutOfRange = stdErrors.New("linear memory access out of range")

	// ErrBuffersNotRegistered is returned when the host needs the guest's
	// message buffers before the guest has registered them.
	ErrBuffersNotRegistered = stdErrors.New("message buffers not registered")

	// ErrMemoryNotImported is returned for bundles that define their own
	// memory instead of importing the host-owned one.
	ErrMemoryNotImported = stdErrors.New("bundle does not import env.memory")

	// ErrMissingExport is returned when a required export is absent.
	ErrMissingExport = stdErrors.New("missing export")

	// ErrInvalidDirect is returned for a direct command without a payload.
	ErrInvalidDirect = stdErrors.New("invalid direct command format, should be: direct <direct_id> <JSON_payload_string>")
)

// FatalError marks a failure that must terminate the process: storage write
// failures, a failed init, or a failed shutdown while swapping or exiting.
type FatalError struct {
	Err error
	Op  string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a FatalError. It returns nil for a nil err.
func Fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Op: op, Err: err}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return stdErrors.As(err, &fe)
}

// StatusError is a non-zero status returned by a sandbox entry point.
type StatusError struct {
	Entry string
	Code  int32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Entry, e.Code)
}

// Status returns a StatusError for a non-zero code and nil otherwise.
func Status(entry string, code int32) error {
	if code == 0 {
		return nil
	}
	return &StatusError{Entry: entry, Code: code}
}

// ExitError requests an orderly process exit with the given code.
type ExitError struct {
	Message string
	Code    int
}

func (e *ExitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Message
}

// MemoryError describes a failed linear memory access.
type MemoryError struct {
	Op     string
	Offset uint32
	Length uint32
	Size   uint32
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory %s [%d, %d) exceeds size %d", e.Op, e.Offset, uint64(e.Offset)+uint64(e.Length), e.Size)
}

// Unwrap lets callers match MemoryError with errors.Is(err, ErrOutOfRange).
func (e *MemoryError) Unwrap() error {
	return ErrOutOfRange
}

// BundleError represents a failure to load a bundle.
type BundleError struct {
	Err  error
	Path string
	Step string
}

func (e *BundleError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("bundle %s failed for %s: %v", e.Step, e.Path, e.Err)
	}
	return fmt.Sprintf("bundle %s failed: %v", e.Step, e.Err)
}

func (e *BundleError) Unwrap() error {
	return e.Err
}

// BrokerError represents a broker operation failure. Broker errors are never
// fatal; the client reconnects on its own.
type BrokerError struct {
	Err       error
	Operation string
	Topic     string
}

func (e *BrokerError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("broker %s failed for %s: %v", e.Operation, e.Topic, e.Err)
	}
	return fmt.Sprintf("broker %s failed: %v", e.Operation, e.Err)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
