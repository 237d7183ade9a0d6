package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// GenerationErrorMessage is returned when the answer could not be generated.
	GenerationErrorMessage = "failed to generate a response, please try again later"
	// RateLimitMessage is returned when a client exceeds its request budget.
	RateLimitMessage = "rate limit exceeded"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Validation reports a malformed or empty request. The message is shown to the caller.
func Validation(message string) *AppError {
	return New(nil, http.StatusBadRequest, message)
}

// Generation wraps a chat-completion failure during answer generation.
func Generation(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusInternalServerError, GenerationErrorMessage)
}

// RateLimited reports that the caller exhausted its request budget.
func RateLimited() *AppError {
	return New(nil, http.StatusTooManyRequests, RateLimitMessage)
}

// StatusOf returns the HTTP status carried by err, 500 when it has none.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}
