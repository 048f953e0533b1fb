package flow

import (
	"context"
	"errors"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/smallbiznis/petfeeder/internal/backend"
)

const (
	genericMessage = "Something went wrong. Please try again."
	networkMessage = "Unable to reach the server. Please check your connection and try again."
)

// backendMessages maps backend error codes to user-facing text.
var backendMessages = map[string]string{
	"invalid_credentials":        "Invalid email or password.",
	"invalid_grant":              "Invalid email or password.",
	"email_not_confirmed":        "Please confirm your email address before signing in.",
	"user_already_exists":        "An account with this email already exists.",
	"email_exists":               "An account with this email already exists.",
	"weak_password":              "Password is too weak. Please choose a stronger password.",
	"same_password":              "New password must be different from the current one.",
	"over_request_rate_limit":    "Too many attempts. Please wait a moment and try again.",
	"over_email_send_rate_limit": "Too many emails sent. Please wait a moment and try again.",
	"captcha_failed":             "Verification failed. Please complete the challenge again.",
}

// Classify maps an error onto a failure result: validation errors become
// InvalidInput, transport failures NetworkError, everything else
// BackendRejected.
func Classify(err error) authdomain.FlowResult {
	var verr *authdomain.ValidationError
	if errors.As(err, &verr) {
		res := authdomain.Failure(authdomain.ErrorKindInvalidInput, verr.Message)
		res.Field = verr.Field
		return res
	}
	if backend.IsNetworkError(err) || errors.Is(err, context.DeadlineExceeded) {
		return authdomain.Failure(authdomain.ErrorKindNetworkError, networkMessage)
	}
	if apiErr, ok := backend.AsAPIError(err); ok {
		if msg, ok := backendMessages[apiErr.Code]; ok {
			return authdomain.Failure(authdomain.ErrorKindBackendRejected, msg)
		}
		if apiErr.Message != "" {
			return authdomain.Failure(authdomain.ErrorKindBackendRejected, apiErr.Message)
		}
	}
	if errors.Is(err, backend.ErrNoSession) {
		return authdomain.Failure(authdomain.ErrorKindBackendRejected, "Your reset link has expired. Please request a new one.")
	}
	return authdomain.Failure(authdomain.ErrorKindBackendRejected, genericMessage)
}
