package batch

import "fmt"

// ErrorKind classifies per-item failures. Every kind here is non-fatal to the
// batch; the item records it and the run moves on.
type ErrorKind string

const (
	ErrKindInput      ErrorKind = "input_error"      // malformed URL entry
	ErrKindFetch      ErrorKind = "fetch_error"      // network failure, non-success status, robots denial
	ErrKindExtraction ErrorKind = "extraction_error" // model error, malformed reply, zero products recognized
	ErrKindTimeout    ErrorKind = "timeout_error"    // per-call deadline expired
)

// ItemError is a captured per-item failure. It travels inside the ItemOutcome
// as data; it is never propagated as control flow past the item boundary.
type ItemError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newItemError(kind ErrorKind, format string, v ...any) *ItemError {
	return &ItemError{Kind: kind, Message: fmt.Sprintf(format, v...)}
}

// ConfigError is the single batch-fatal condition: the run cannot produce
// meaningful records for anyone. It is returned by Run before any URL is
// touched, never embedded in an outcome.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid batch configuration: " + e.Reason
}
