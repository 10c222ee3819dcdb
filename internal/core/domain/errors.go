// Package domain defines the core domain models for quicksave.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
// Codes follow the format QS-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "QS-SNAP-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Snapshot Errors (SNAP)
// ============================================================================

var (
	// ErrArtifactNotFound indicates the requested artifact does not exist.
	ErrArtifactNotFound = NewDomainError("QS-SNAP-4040", "artifact not found")

	// ErrArtifactInvalid indicates the artifact does not hold a checkpoint image.
	ErrArtifactInvalid = NewDomainError("QS-SNAP-4000", "artifact is not a checkpoint image")

	// ErrArtifactOutsideHome indicates a path outside the snapshot home was given.
	ErrArtifactOutsideHome = NewDomainError("QS-SNAP-4030", "artifact is outside the snapshot home")

	// ErrDigestMismatch indicates the artifact bytes differ from the recorded digest.
	ErrDigestMismatch = NewDomainError("QS-SNAP-4220", "artifact digest mismatch")

	// ErrArtifactExists indicates the artifact name is already taken.
	ErrArtifactExists = NewDomainError("QS-SNAP-4090", "artifact already exists")

	// ErrArtifactBusy indicates another restore holds the artifact.
	ErrArtifactBusy = NewDomainError("QS-SNAP-4091", "artifact is held by a restore in progress")
)

// ============================================================================
// Process Errors (PROC)
// ============================================================================

var (
	// ErrEmptyProcessSet indicates a dump was requested without any process.
	ErrEmptyProcessSet = NewDomainError("QS-PROC-4000", "process set is empty")

	// ErrProcessNotFound indicates the process does not exist (anymore).
	ErrProcessNotFound = NewDomainError("QS-PROC-4040", "process not found")

	// ErrCompatibilityRejected indicates the caller refused to proceed after the precheck.
	ErrCompatibilityRejected = NewDomainError("QS-PROC-4220", "compatibility precheck rejected the process set")
)

// ============================================================================
// Checkpoint Primitive Errors (CRIU)
// ============================================================================

var (
	// ErrPrimitiveFailed indicates the checkpoint tool exited non-zero.
	ErrPrimitiveFailed = NewDomainError("QS-CRIU-5000", "checkpoint primitive failed")

	// ErrPrimitiveSpawn indicates the checkpoint tool could not be started.
	ErrPrimitiveSpawn = NewDomainError("QS-CRIU-5001", "checkpoint primitive could not be started")

	// ErrCanceled indicates the primitive wait was interrupted and its process group terminated.
	ErrCanceled = NewDomainError("QS-CRIU-4990", "operation canceled")
)

// ============================================================================
// Archive Errors (ARCH)
// ============================================================================

var (
	// ErrCompressorUnavailable indicates no configured compressor passed its startup probe.
	ErrCompressorUnavailable = NewDomainError("QS-ARCH-5030", "no compressor available")

	// ErrUnsupportedFormat indicates the artifact suffix or stream header is not recognized.
	ErrUnsupportedFormat = NewDomainError("QS-ARCH-4150", "unsupported artifact format")

	// ErrArchiveCorrupt indicates the archive stream could not be decoded.
	ErrArchiveCorrupt = NewDomainError("QS-ARCH-4220", "archive stream is corrupt")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrConfigInvalid indicates the configuration failed validation.
	ErrConfigInvalid = NewDomainError("QS-CONF-4000", "invalid configuration")

	// ErrCatalogUnavailable indicates the metadata catalog could not be opened.
	ErrCatalogUnavailable = NewDomainError("QS-CATL-5030", "catalog unavailable")

	// ErrStorage indicates a filesystem operation on the snapshot home failed.
	ErrStorage = NewDomainError("QS-SYS-5001", "storage error")
)
