package errors

import (
	"errors"
	"fmt"
)

// Pipeline outcome codes carried by Error.Code
const (
	CodeRateLimited         = "rate-limited"
	CodeUnsupportedPlatform = "unsupported-platform"
	CodeExtractionFailed    = "extraction-failed"
	CodeDeliveryFailed      = "delivery-failed"
)

// Common errors
var (
	ErrRateLimited         = errors.New("rate limited")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrDeliveryFailed      = errors.New("delivery failed")
)

// Error represents a custom error type
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// WrapWithCode wraps an error with a code and message
func WrapWithCode(err error, code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// GetCode returns the error code if it exists
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRateLimited returns true if the request was rejected by admission control
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited) || GetCode(err) == CodeRateLimited
}

// IsUnsupportedPlatform returns true if no extractor handles the URL
func IsUnsupportedPlatform(err error) bool {
	return errors.Is(err, ErrUnsupportedPlatform) || GetCode(err) == CodeUnsupportedPlatform
}

// IsExtractionFailed returns true if every extraction method failed
func IsExtractionFailed(err error) bool {
	return errors.Is(err, ErrExtractionFailed) || GetCode(err) == CodeExtractionFailed
}

// IsDeliveryFailed returns true if no media survived the fetch stage
func IsDeliveryFailed(err error) bool {
	return errors.Is(err, ErrDeliveryFailed) || GetCode(err) == CodeDeliveryFailed
}
