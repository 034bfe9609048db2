package domain

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotFound is returned when no document matches a lookup. For
	// upserts without the upsert flag it only means nothing was written.
	ErrNotFound = errors.New("document not found")
	// ErrIndexNotFound is returned by the index manager when a field has no
	// declared index. The query evaluator falls back to a full scan.
	ErrIndexNotFound = errors.New("index not found")
	// ErrParse is the parent of every error caused by a malformed update
	// or filter document.
	ErrParse = errors.New("parse error")
	// ErrNonObject is returned when an operator value is not a document.
	ErrNonObject = fmt.Errorf("%w: modifier value must be an object", ErrParse)
	// ErrMixedOperators is returned when an update document mixes operator
	// keys with plain fields.
	ErrMixedOperators = fmt.Errorf("%w: cannot mix modifiers and normal fields", ErrParse)
	// ErrAmbiguousUpdate is returned when the same field is targeted by more
	// than one operator in a single update.
	ErrAmbiguousUpdate = errors.New("ambiguous update")
	// ErrCannotModifyID is returned when an update would change a document
	// _id.
	ErrCannotModifyID = errors.New("cannot modify document _id")
	// ErrConstraintViolated is returned when a document _id is already in
	// use.
	ErrConstraintViolated = errors.New("constraint violated")
	// ErrNoFieldName is returned when declaring an index without a field.
	ErrNoFieldName = errors.New("cannot create an index without a fieldName")
	// ErrCursorClosed is returned when using a closed [Cursor].
	ErrCursorClosed = errors.New("cursor is closed")
	// ErrScanBeforeNext is returned when calling [Cursor.Scan] before
	// [Cursor.Next].
	ErrScanBeforeNext = errors.New("called Scan before calling Next")
	// ErrTargetNil is returned when decoding into a nil target.
	ErrTargetNil = errors.New("target interface is nil")
	// ErrNonPointer is returned when decoding into a non-pointer target.
	ErrNonPointer = errors.New("target must be a pointer")
)

// ErrDocumentType is returned when a Go value cannot be converted into a
// document or a document value.
type ErrDocumentType struct {
	Reason string
	Value  any
}

// Error implements [error].
func (e ErrDocumentType) Error() string {
	return fmt.Sprintf("invalid document value %T: %s", e.Value, e.Reason)
}

// ErrUnknownModifier is returned when an update uses an operator that is not
// supported.
type ErrUnknownModifier struct {
	Name string
}

// Error implements [error].
func (e ErrUnknownModifier) Error() string {
	return fmt.Sprintf("unknown modifier %q", e.Name)
}

// Unwrap returns [ErrParse].
func (e ErrUnknownModifier) Unwrap() error { return ErrParse }

// ErrModArgType is returned when an operator argument has the wrong type.
type ErrModArgType struct {
	Mod    string
	Want   string
	Actual Value
}

// Error implements [error].
func (e ErrModArgType) Error() string {
	return fmt.Sprintf("%s expects %s arg, got %s", e.Mod, e.Want, e.Actual.Kind())
}

// Unwrap returns [ErrParse].
func (e ErrModArgType) Unwrap() error { return ErrParse }

// ErrModFieldType is returned when an operator runs on a document field of a
// type it cannot handle.
type ErrModFieldType struct {
	Mod    string
	Field  string
	Want   string
	Actual Value
}

// Error implements [error].
func (e ErrModFieldType) Error() string {
	return fmt.Sprintf("%s expects %s field %q, got %s", e.Mod, e.Want, e.Field, e.Actual.Kind())
}

// ErrFilter is returned when a filter document cannot be compiled.
type ErrFilter struct {
	Field  string
	Reason string
}

// Error implements [error].
func (e ErrFilter) Error() string {
	return fmt.Sprintf("invalid filter on %q: %s", e.Field, e.Reason)
}

// Unwrap returns [ErrParse].
func (e ErrFilter) Unwrap() error { return ErrParse }

// ErrDecode wraps third party decoding errors.
type ErrDecode struct {
	Source any
	Target any
}

// Error implements [error].
func (e ErrDecode) Error() string {
	return fmt.Sprintf("cannot decode %T into %T", e.Source, e.Target)
}

// ErrCorruptSnapshot is returned by import when more lines than the accepted
// threshold could not be read.
type ErrCorruptSnapshot struct {
	CorruptionRate        float64
	CorruptItems          int
	DataLength            int
	CorruptAlertThreshold float64
}

// Error implements [error].
func (e ErrCorruptSnapshot) Error() string {
	return fmt.Sprintf("%.0f%% of the snapshot is corrupt, more than given corruptAlertThreshold (%.0f%%)", math.Floor(100*e.CorruptionRate), math.Floor(100*e.CorruptAlertThreshold))
}
