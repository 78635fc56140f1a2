package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFatalError(t *testing.T) {
	baseErr := fmt.Errorf("disk full")
	err := Fatal("storage_save", baseErr)

	assert.Equal(t, "fatal: storage_save: disk full", err.Error())
	assert.True(t, errors.Is(err, baseErr))
	assert.True(t, IsFatal(err))
	assert.True(t, IsFatal(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsFatal(baseErr))
	assert.NoError(t, Fatal("noop", nil))
}

func TestStatus(t *testing.T) {
	assert.NoError(t, Status("eea_loop", 0))

	err := Status("eea_loop", 3)
	require.Error(t, err)
	assert.Equal(t, "eea_loop returned status 3", err.Error())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, int32(3), se.Code)
}

func TestMemoryError_IsOutOfRange(t *testing.T) {
	err := &MemoryError{Op: "write", Offset: 65530, Length: 10, Size: 65536}

	assert.Equal(t, "memory write [65530, 65540) exceeds size 65536", err.Error())
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestExitError(t *testing.T) {
	assert.Equal(t, "exit 0", (&ExitError{}).Error())
	assert.Equal(t, "bye", (&ExitError{Message: "bye", Code: 2}).Error())
}

func TestBundleError(t *testing.T) {
	baseErr := fmt.Errorf("bad magic")
	err := &BundleError{Step: "compile", Path: "/data/bundle.wasm", Err: baseErr}

	assert.Equal(t, "bundle compile failed for /data/bundle.wasm: bad magic", err.Error())
	assert.True(t, errors.Is(err, baseErr))
	assert.Equal(t, "bundle compile failed: bad magic", (&BundleError{Step: "compile", Err: baseErr}).Error())
}

func TestBrokerError(t *testing.T) {
	baseErr := fmt.Errorf("not connected")
	err := &BrokerError{Operation: "publish", Topic: "a/b", Err: baseErr}

	assert.Equal(t, "broker publish failed for a/b: not connected", err.Error())
	assert.True(t, errors.Is(err, baseErr))
}

func TestConfigError(t *testing.T) {
	baseErr := fmt.Errorf("required")
	err := &ConfigError{Field: "device_id", Err: baseErr}

	assert.Equal(t, "config validation failed for field 'device_id': required", err.Error())
	assert.True(t, errors.Is(err, baseErr))
}
