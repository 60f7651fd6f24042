package loader

import (
	"errors"
	"fmt"
)

// Load failure reasons.
const (
	ReasonUnreachable = "unreachable"
	ReasonBadStatus   = "bad_status"
	ReasonTooLarge    = "too_large"
	ReasonUnsupported = "unsupported_format"
	ReasonMalformed   = "malformed"
)

// LoadError is the single failure type surfaced by a Loader. Callers decide
// the recovery policy; the loader itself never retries.
type LoadError struct {
	Reason string
	Ref    string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Ref, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Ref, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AsLoadError unwraps err into a *LoadError if possible.
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

func loadErr(reason, ref string, err error) *LoadError {
	return &LoadError{Reason: reason, Ref: ref, Err: err}
}
