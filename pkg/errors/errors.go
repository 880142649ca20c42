package errors

import "errors"

// AppError carries a stable machine-readable code next to a caller-facing message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New returns an AppError without an underlying cause.
func New(code, message string) error {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code, message string, err error) error {
	return &AppError{Code: code, Message: message, Err: err}
}

// IsCode reports whether the outermost AppError in the chain carries code.
func IsCode(err error, code string) bool {
	return code != "" && CodeOf(err) == code
}

// CodeOf returns the code of the outermost AppError in the chain, or "" when there is none.
func CodeOf(err error) string {
	if appErr, ok := as(err); ok {
		return appErr.Code
	}
	return ""
}

// MessageOf prefers the AppError message over the full chain text so causes stay out of responses.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := as(err); ok && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

func as(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
