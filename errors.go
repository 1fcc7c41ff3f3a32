package tiercache

import (
	"context"
	"errors"
	"fmt"
)

// ErrAbsent is returned by storage converters (FromStorage) to report that
// the stored representation should be treated as a miss. Tiers never
// surface it to callers.
var ErrAbsent = errors.New("tiercache: value absent")

// InvalidateError reports storage removal failures collected while cascading
// an invalidation through a chain. The cascade always runs to the backstop;
// the error is returned once it is done.
type InvalidateError struct {
	Tier string
	Err  error
	// Next is the failure reported by deeper tiers, if any.
	Next error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.Err != nil && e.Next != nil:
		return fmt.Sprintf("invalidate tier %q failed: %v; deeper: %v", e.Tier, e.Err, e.Next)
	case e.Err != nil:
		return fmt.Sprintf("invalidate tier %q failed: %v", e.Tier, e.Err)
	case e.Next != nil:
		return fmt.Sprintf("invalidate below tier %q failed: %v", e.Tier, e.Next)
	default:
		return fmt.Sprintf("invalidate tier %q: unknown error", e.Tier)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Next != nil {
		errs = append(errs, e.Next)
	}
	return errs
}

// isCancel reports whether err stems from a context being done.
func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
