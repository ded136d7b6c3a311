package model

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the common outcome kinds. Components return these
// (possibly wrapped); only the transport layer turns them into status codes.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrRevoked  = errors.New("device revoked")
)

// RateLimitedError signals that a device exceeded its ingestion quota.
// Rejection is a normal outcome, not a failure of the pipeline.
type RateLimitedError struct {
	DeviceID   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("device %s rate limited, retry after %s", e.DeviceID, e.RetryAfter)
}

// TooLargeError signals an upload exceeding the configured size ceiling.
type TooLargeError struct {
	SizeBytes int64
	MaxBytes  int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("payload is %d bytes, limit is %d", e.SizeBytes, e.MaxBytes)
}

// UnsupportedCodecError signals an upload with a codec outside the allow-list.
type UnsupportedCodecError struct {
	Codec string
}

func (e *UnsupportedCodecError) Error() string {
	return fmt.Sprintf("unsupported codec %q", e.Codec)
}

// StorageError wraps a backend I/O failure. Callers may retry these with
// backoff; every other error kind surfaces immediately.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage unavailable (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient storage failure.
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
