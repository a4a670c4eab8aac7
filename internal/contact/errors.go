package contact

import "errors"

// Kind classifies why a contact number was rejected.
type Kind string

const (
	KindNone          Kind = ""
	KindMissingValue  Kind = "missing_value"
	KindInvalidFormat Kind = "invalid_format"
	KindInvalidLength Kind = "invalid_length"
)

var (
	ErrMissingValue  = errors.New("contact number is required")
	ErrInvalidFormat = errors.New("contact number has an invalid format")
	ErrInvalidLength = errors.New("contact number has an invalid length")
)

var kindErrors = map[Kind]error{
	KindMissingValue:  ErrMissingValue,
	KindInvalidFormat: ErrInvalidFormat,
	KindInvalidLength: ErrInvalidLength,
}

// Result is the outcome of validating a contact number. A zero Result is valid.
type Result struct {
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r Result) Valid() bool {
	return r.Kind == KindNone
}

// Err returns nil for a valid result, otherwise a *ValidationError wrapping
// the sentinel for the failure kind.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Kind: r.Kind, Message: r.Message}
}

// ValidationError carries the user-facing message of a failed validation.
type ValidationError struct {
	Kind    Kind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return kindErrors[e.Kind]
}
