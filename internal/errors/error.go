package errors

import "fmt"

// Category represents the type of error.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryStore   Category = "store"
	CategoryService Category = "service"
	CategoryArchive Category = "archive"
	CategoryCLI     Category = "cli"
)

// FlagstreamError is a structured error with a registered code, a fix
// suggestion, and terminal formatting.
type FlagstreamError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type (config, service, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *FlagstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *FlagstreamError) Unwrap() error {
	return e.Wrapped
}

// WithDetail adds a detailed explanation to the error.
func (e *FlagstreamError) WithDetail(d string) *FlagstreamError {
	e.Detail = d
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *FlagstreamError) WithSuggestion(s string) *FlagstreamError {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *FlagstreamError) Wrap(err error) *FlagstreamError {
	e.Wrapped = err
	return e
}

// New creates a FlagstreamError from a registered error code.
func New(code string) *FlagstreamError {
	template, ok := registry[code]
	if !ok {
		return &FlagstreamError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &FlagstreamError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new FlagstreamError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *FlagstreamError {
	return &FlagstreamError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a FlagstreamError.
func FromError(err error, code string) *FlagstreamError {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*FlagstreamError); ok {
		return fe
	}
	return New(code).Wrap(err)
}
