package metadata

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrUnsupported = errors.New("operation not supported by source")
	ErrBadResponse = errors.New("unparsable response")
)

// ProviderError reports a response a source could not interpret.
type ProviderError struct {
	Provider string // Source name
	Op       string // Operation that failed (e.g., "search barcode")
	Err      error  // Underlying error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// BadResponse builds a ProviderError for a malformed provider response.
func BadResponse(provider, op, format string, args ...any) error {
	return &ProviderError{
		Provider: provider,
		Op:       op,
		Err:      fmt.Errorf("%w: %s", ErrBadResponse, fmt.Sprintf(format, args...)),
	}
}

// Unsupported builds a ProviderError wrapping ErrUnsupported.
func Unsupported(provider, op string) error {
	return &ProviderError{Provider: provider, Op: op, Err: ErrUnsupported}
}
