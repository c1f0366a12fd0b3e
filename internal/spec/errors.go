package spec

import "fmt"

// ValidationError is a single validation failure or warning, located by the
// Deceit/Response path that produced it (e.g. "deceits[2].responses[0]").
type ValidationError struct {
	File    string
	Line    int // 0 if line number not available
	Message string
}

// ErrorCollector accumulates ValidationErrors while walking a Specification,
// distinguishing hard errors (which fail Validate) from warnings (which
// don't).
type ErrorCollector struct {
	errors   []ValidationError
	warnings []ValidationError
}

// NewErrorCollector creates an empty ErrorCollector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{}
}

// Add records a hard validation error with a formatted message.
func (ec *ErrorCollector) Add(file string, line int, format string, args ...interface{}) {
	ec.errors = append(ec.errors, ValidationError{
		File:    file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

// AddWarning records a non-fatal validation warning with a formatted message.
func (ec *ErrorCollector) AddWarning(file string, line int, format string, args ...interface{}) {
	ec.warnings = append(ec.warnings, ValidationError{
		File:    file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

// HasErrors reports whether any hard errors have been collected.
func (ec *ErrorCollector) HasErrors() bool {
	return len(ec.errors) > 0
}
