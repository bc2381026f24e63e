// Package kernelerr defines the closed error taxonomy shared by every
// kernel subsystem (spec.md §7) and the translation of those errors into
// the documented Xbox 360 status codes at the import-dispatch boundary.
package kernelerr

import (
	"errors"
	"fmt"

	multierror "github.com/hashicorp/go-multierror"
)

// Handle-table misuse.
var (
	ErrInvalidHandle = errors.New("invalid handle")
	ErrWrongType     = errors.New("wrong object type for handle")
	ErrAlreadyClosed = errors.New("handle already closed")
)

// Wait outcomes.
var (
	ErrTimeout   = errors.New("wait timed out")
	ErrAbandoned = errors.New("wait satisfied by an abandoned mutant")
	ErrAlerted   = errors.New("wait interrupted by an APC alert")
	ErrCancelled = errors.New("wait cancelled by thread termination")
)

// Primitive-specific failures.
var (
	ErrLimitExceeded = errors.New("release would exceed maximum count")
	ErrNotOwner      = errors.New("calling thread does not own the mutant")
	ErrNotSignaled   = errors.New("object is not signaled")
)

// File and archive failures.
var (
	ErrNotFound          = errors.New("path not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrFormatError       = errors.New("malformed archive data")
	ErrDecryptionError   = errors.New("archive decryption failed")
	ErrDecompressionError = errors.New("archive decompression failed")
)

// Terminal conditions.
var (
	ErrOutOfMemory = errors.New("out of memory")
	ErrFatal       = errors.New("unrecoverable kernel failure")
)

// NTStatus is the narrow status-code type translated-code-facing APIs
// observe at the dispatch boundary, standing in for the real Xbox 360
// NTSTATUS/X_STATUS values.
type NTStatus uint32

// Status codes. Values are arbitrary but stable for the lifetime of a
// process; translated code only ever compares them for equality against
// the constants it was compiled against.
const (
	StatusSuccess          NTStatus = 0x00000000
	StatusUnsuccessful     NTStatus = 0xC0000001
	StatusInvalidHandle    NTStatus = 0xC0000008
	StatusObjectTypeMismatch NTStatus = 0xC0000024
	StatusHandleNotClosable NTStatus = 0xC0000235
	StatusTimeout          NTStatus = 0x00000102
	StatusAbandonedWait0   NTStatus = 0x00000080
	StatusAlerted          NTStatus = 0x000000C0
	StatusCancelled        NTStatus = 0xC0000120
	StatusLimitExceeded    NTStatus = 0xC0000173 // SEMAPHORE_LIMIT_EXCEEDED
	StatusMutantNotOwned   NTStatus = 0xC0000046
	StatusObjectNameNotFound NTStatus = 0xC0000034
	StatusAccessDenied     NTStatus = 0xC0000022
	StatusDataError        NTStatus = 0xC000009C
	StatusNoMemory         NTStatus = 0xC0000017
	StatusFatalAppExit     NTStatus = 0x40000015
)

// ToNTStatus maps a kernelerr sentinel (or nil) to the status code
// translated code expects to observe in its return register.
func ToNTStatus(err error) NTStatus {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrInvalidHandle):
		return StatusInvalidHandle
	case errors.Is(err, ErrWrongType):
		return StatusObjectTypeMismatch
	case errors.Is(err, ErrAlreadyClosed):
		return StatusHandleNotClosable
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	case errors.Is(err, ErrAbandoned):
		return StatusAbandonedWait0
	case errors.Is(err, ErrAlerted):
		return StatusAlerted
	case errors.Is(err, ErrCancelled):
		return StatusCancelled
	case errors.Is(err, ErrLimitExceeded):
		return StatusLimitExceeded
	case errors.Is(err, ErrNotOwner):
		return StatusMutantNotOwned
	case errors.Is(err, ErrNotFound):
		return StatusObjectNameNotFound
	case errors.Is(err, ErrPermissionDenied):
		return StatusAccessDenied
	case errors.Is(err, ErrFormatError), errors.Is(err, ErrDecryptionError), errors.Is(err, ErrDecompressionError):
		return StatusDataError
	case errors.Is(err, ErrOutOfMemory):
		return StatusNoMemory
	case errors.Is(err, ErrFatal):
		return StatusFatalAppExit
	default:
		return StatusUnsuccessful
	}
}

// Aggregate collects independent failures from fan-out operations (overlay
// rescans across several directories, shutdown of several subsystems) into
// a single error, generalizing the teacher's hand-rolled per-index error
// slice (backend/union/errors.go) with a real aggregation library.
type Aggregate struct {
	err *multierror.Error
}

// Add records err if non-nil. Safe to call with a nil err (no-op).
func (a *Aggregate) Add(err error) {
	if err == nil {
		return
	}
	a.err = multierror.Append(a.err, err)
}

// Addf records a formatted error.
func (a *Aggregate) Addf(format string, args ...any) {
	a.Add(fmt.Errorf(format, args...))
}

// ErrOrNil returns nil if no errors were added, or the aggregate error
// otherwise.
func (a *Aggregate) ErrOrNil() error {
	if a.err == nil {
		return nil
	}
	return a.err.ErrorOrNil()
}
