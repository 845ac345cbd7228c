package counters

import "fmt"

// ConnectionError means the counter session could not be established.
// It is fatal: nothing can be discovered without a session.
type ConnectionError struct {
	Code uint32
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to open counter session: %v", e.Err)
	}
	return fmt.Sprintf("failed to open counter session: status 0x%08x", e.Code)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExpansionError is returned when a pattern cannot be expanded at all.
// A pattern that matches nothing is not an error.
type ExpansionError struct {
	Pattern string
	Code    uint32
	Err     error
}

func (e *ExpansionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to expand %q: %v", e.Pattern, e.Err)
	}
	return fmt.Sprintf("failed to expand %q: status 0x%08x", e.Pattern, e.Code)
}

func (e *ExpansionError) Unwrap() error { return e.Err }

// ValidationError is returned by Exists for any status that is neither
// "valid" nor one of the "not found" codes.
type ValidationError struct {
	Path string
	Code uint32
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("counter path %q is invalid: status 0x%08x", e.Path, e.Code)
}

// ParseError is returned when a concrete path cannot be split into its elements
type ParseError struct {
	Path string
	Code uint32
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse counter path %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to parse counter path %q: status 0x%08x", e.Path, e.Code)
}

func (e *ParseError) Unwrap() error { return e.Err }
