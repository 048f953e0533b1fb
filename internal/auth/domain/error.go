package domain

import "errors"

var (
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrWeakPassword      = errors.New("weak_password")
	ErrPasswordMismatch  = errors.New("password_mismatch")
	ErrTermsNotAccepted  = errors.New("terms_not_accepted")
	ErrCaptchaRequired   = errors.New("captcha_required")
	ErrMissingField      = errors.New("missing_field")
	ErrUnsupportedOAuth  = errors.New("unsupported_oauth_provider")
	ErrFlowAlreadyActive = errors.New("flow_in_progress")
)

// ValidationError is an input error detected before any network call.
type ValidationError struct {
	Field   string
	Err     error
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidationError(field string, err error, message string) *ValidationError {
	return &ValidationError{Field: field, Err: err, Message: message}
}
