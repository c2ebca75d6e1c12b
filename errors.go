package composed

import (
	"errors"
	"fmt"
)

// Error codes (exported consts for IDE completion and type safety by
// convention). The rendered messages are a wire contract: downstream
// consumers match on substrings such as
// "Failed deserialization for Fruit: 2 classes match result" and
// "Shape cannot be null", so their shape must not drift.
const (
	CodeNullNotAllowed          = "null_not_allowed"
	CodeNoMatch                 = "no_match"
	CodeAmbiguousMatch          = "ambiguous_match"
	CodeUnresolvedTypeID        = "unresolved_type_id"
	CodeDiscriminatorUnresolved = "discriminator_unresolved"
	CodeInvalidInstance         = "invalid_instance"
)

// codeFieldMismatch marks a single candidate's structural decode failure.
// It never crosses the package boundary; trial failures are aggregated
// into no_match/ambiguous_match counts by the matching engine.
const codeFieldMismatch = "field_mismatch"

// Error is the only error type this package produces for input-shape
// failures. Registration and configuration mistakes surface as plain
// errors instead; they are programming errors, not part of the taxonomy.
type Error struct {
	Schema   string // composed schema name
	Code     string // one of the Code* consts
	Matches  int    // populated for no_match/ambiguous_match
	TypeID   string // offending discriminator value, when present
	Property string // discriminator property, for missing-tag failures
	Instance string // rejected runtime type, for invalid_instance
	cause    error
}

func (e *Error) Error() string {
	switch e.Code {
	case CodeNullNotAllowed:
		return e.Schema + " cannot be null"
	case CodeNoMatch, CodeAmbiguousMatch:
		return fmt.Sprintf("Failed deserialization for %s: %d classes match result, expected 1", e.Schema, e.Matches)
	case CodeUnresolvedTypeID, CodeDiscriminatorUnresolved:
		if e.TypeID == "" {
			return fmt.Sprintf("Could not resolve subtype of %s: missing type id property '%s'", e.Schema, e.Property)
		}
		return fmt.Sprintf("Could not resolve type id '%s' as a subtype of %s", e.TypeID, e.Schema)
	case CodeInvalidInstance:
		return fmt.Sprintf("Invalid instance for %s: %s is not a declared candidate", e.Schema, e.Instance)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Schema, e.Code, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Schema, e.Code)
}

// Unwrap exposes the underlying cause when one was recorded (for example
// the last failing trial behind a no_match).
func (e *Error) Unwrap() error { return e.cause }

// AsError extracts a *Error from err using errors.As internally.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code of err, or "" when err is not a
// composed error.
func CodeOf(err error) string {
	if ce, ok := AsError(err); ok {
		return ce.Code
	}
	return ""
}
