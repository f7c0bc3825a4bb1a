package domain

import (
	"fmt"
)

// FormatError reports a single field or record that could not be decoded.
// It never aborts a batch on its own; callers decide whether to skip the unit.
type FormatError struct {
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format error: %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("format error: %s %q", e.Field, e.Value)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ValidationError reports a caller-supplied parameter of the wrong type or a
// disallowed value. Param names the offending parameter.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// ResolutionError reports a region identifier whose geocoding reply could not
// be turned into a valid bounding region. It is not retried.
type ResolutionError struct {
	Identifier string
	Reply      string
	Reason     string
	Err        error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolve region %q: %s", e.Identifier, e.Reason)
	if e.Reply != "" {
		msg += fmt.Sprintf(" (reply %q)", e.Reply)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// FetchError reports a network failure retrieving a bulletin or reference table.
// StatusCode is zero when the request never produced a response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
