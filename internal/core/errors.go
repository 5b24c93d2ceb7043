package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidFormat rejects uploads whose filename does not end in .csv.
	ErrInvalidFormat = errors.New("only CSV files are accepted")

	// ErrInvalidRange rejects summary queries where end precedes start.
	ErrInvalidRange = errors.New("end date must be on/after start date")

	// ErrNoTransactions signals a summary query that matched zero rows.
	ErrNoTransactions = errors.New("no transactions found for the given criteria")
)

// MissingColumnsError reports required CSV columns absent from an upload.
// Columns is always sorted.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing columns: " + strings.Join(e.Columns, ", ")
}

// ConversionError reports a value that cannot be cast to its column's
// declared type. A single conversion failure rejects the whole upload.
type ConversionError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("invalid data format: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid data format: line %d, column %s: cannot cast %q: %v",
		e.Line, e.Column, e.Value, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// StagingError reports an I/O failure while persisting the upload to its
// temporary location. Internal failure, not caller input error.
type StagingError struct {
	Err error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("failed to save uploaded file: %v", e.Err)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}

// StorageError reports a storage-engine failure outside the caller's
// control.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
