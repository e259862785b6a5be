package errors

import (
	"errors"
	"fmt"
)

var (
	ErrIO       = errors.New("io error")
	ErrEncoding = errors.New("encoding error")
	ErrPattern  = errors.New("invalid pattern")
	ErrParse    = errors.New("parse error")
	ErrCapacity = errors.New("capacity guard exceeded")

	ErrNoSources       = errors.New("no log sources matched")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrFailedToLoad    = errors.New("failed to read config file")
	ErrNoCorrelationID = errors.New("no correlation id found")
	ErrRecordNotFound  = errors.New("record not found")
	ErrInvalidTime     = errors.New("invalid time expression")

	ErrTemplateNotFound = errors.New("template not found")
	ErrAIDisabled       = errors.New("ai collaborator disabled")
	ErrEmptyResponse    = errors.New("empty ai response")
	ErrUnknownFormat    = errors.New("unknown export format")
	ErrNoRecords        = errors.New("no records")
)

var (
	As   = errors.As
	Is   = errors.Is
	New  = errors.New
	Join = errors.Join
)

// PatternError reports a malformed user-supplied regex. The offending input is
// rejected and any previously active pattern stays in effect.
type PatternError struct {
	Field   string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("%s: %q: %v", e.Field, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() []error { return []error{ErrPattern, e.Err} }
