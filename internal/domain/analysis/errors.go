package analysis

import "errors"

var (
	ErrMissingField      = errors.New("missing required field")
	ErrUnknownJudge      = errors.New("unknown judge")
	ErrNotFound          = errors.New("data not found")
	ErrIllegalTransition = errors.New("illegal state transition")
)

// FieldError names the field that failed validation.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string { return e.Field + " is required" }
func (e *FieldError) Unwrap() error { return ErrMissingField }
