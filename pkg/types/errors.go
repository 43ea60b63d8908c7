package types

import (
	"errors"
	"fmt"
	"strings"
)

// Storage errors. Both are reported to the caller and never swallowed by the
// store; the caller decides whether to retry or continue in memory only.
var (
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrTransactionFailed = errors.New("transaction failed")
)

// Collection errors.
var (
	ErrNotFound          = errors.New("tea not found")
	ErrDuplicateID       = errors.New("tea id already exists")
	ErrInvalidTea        = errors.New("invalid tea")
	ErrInvalidAmount     = errors.New("invalid brew amount")
	ErrInvalidImportData = errors.New("invalid import data")
	ErrUnknownFormat     = errors.New("unknown export format")
)

// ValidationError describes the first field of a candidate record that
// failed validation. It unwraps to ErrInvalidTea.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid tea: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTea
}

// RecordFailure identifies one rejected record in an import batch.
type RecordFailure struct {
	Index  int    // Position in the import payload, zero-based.
	ID     string // Record id if one could be read, else empty.
	Field  string
	Reason string
}

func (f RecordFailure) String() string {
	who := fmt.Sprintf("record %d", f.Index)
	if f.ID != "" {
		who += fmt.Sprintf(" (id %s)", f.ID)
	}
	return fmt.Sprintf("%s: %s: %s", who, f.Field, f.Reason)
}

// ImportError lists every record that failed validation in a rejected
// import batch. It unwraps to ErrInvalidImportData.
type ImportError struct {
	Failures []RecordFailure
}

func (e *ImportError) Error() string {
	if len(e.Failures) == 0 {
		return ErrInvalidImportData.Error()
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidImportData, strings.Join(parts, "; "))
}

func (e *ImportError) Unwrap() error {
	return ErrInvalidImportData
}
