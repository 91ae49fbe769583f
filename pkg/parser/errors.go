package parser

import "fmt"

// ValidationError is returned for payloads that cannot be classified or fail validation
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Invalidf creates a ValidationError with a formatted reason
func Invalidf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
