package model

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the interaction engine. Every failure is wrapped in
// an *OpError whose Kind is one of these, so callers match with errors.Is.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrCompatibility    = errors.New("compatibility error")
	ErrEvaluationState  = errors.New("evaluation state error")
	ErrConstraint       = errors.New("constraint error")
	ErrResource         = errors.New("resource error")
	ErrCallbackContract = errors.New("callback contract error")
)

// OpError records the operation that failed, the kind of failure and the
// invariant that was violated.
type OpError struct {
	Op     string
	Kind   error
	Detail string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Detail, e.Kind)
}

func (e *OpError) Unwrap() error {
	return e.Kind
}

// Errorf builds an *OpError with a formatted detail message.
func Errorf(kind error, op, format string, args ...any) error {
	return &OpError{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
