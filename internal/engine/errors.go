package engine

import (
	"errors"
	"fmt"
)

// Rejection kinds. Every error returned by Apply wraps exactly one of these.
var (
	ErrPrecondition       = errors.New("precondition failed")
	ErrUnauthorized       = errors.New("action not permitted")
	ErrInvalidMove        = errors.New("invalid move")
	ErrGeneration         = errors.New("content generation failed")
	ErrNotFound           = errors.New("not found")
	ErrStale              = errors.New("stale command")
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// RuleError carries the specific reason an action was rejected.
type RuleError struct {
	Kind   error
	Reason string
}

func (e *RuleError) Error() string { return e.Reason }

func (e *RuleError) Unwrap() error { return e.Kind }

func precondition(format string, args ...any) error {
	return &RuleError{Kind: ErrPrecondition, Reason: fmt.Sprintf(format, args...)}
}

func unauthorized(format string, args ...any) error {
	return &RuleError{Kind: ErrUnauthorized, Reason: fmt.Sprintf(format, args...)}
}

func invalidMove(format string, args ...any) error {
	return &RuleError{Kind: ErrInvalidMove, Reason: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &RuleError{Kind: ErrNotFound, Reason: fmt.Sprintf(format, args...)}
}

func stale(format string, args ...any) error {
	return &RuleError{Kind: ErrStale, Reason: fmt.Sprintf(format, args...)}
}

// Kind reports the rejection kind of err as a short wire name.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidMove):
		return "invalid_move"
	case errors.Is(err, ErrGeneration):
		return "generation_failure"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStale):
		return "stale"
	default:
		return "internal"
	}
}
