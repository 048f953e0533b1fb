package domain

type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindInvalidInput    ErrorKind = "invalid_input"
	ErrorKindBackendRejected ErrorKind = "backend_rejected"
	ErrorKindNetworkError    ErrorKind = "network_error"
)

// FlowResult is the outcome of a single form submission. It only lives for
// the duration of that submission and drives the success or error rendering.
type FlowResult struct {
	OK        bool
	ErrorKind ErrorKind
	Message   string
	// Field names the offending input for InvalidInput results.
	Field string
	// Redirect is the route the flow navigated to, if any.
	Redirect string
	// Skipped is set when the submit was ignored because the same form
	// already had a submission in flight.
	Skipped bool
}

func Success(message, redirect string) FlowResult {
	return FlowResult{OK: true, Message: message, Redirect: redirect}
}

func Failure(kind ErrorKind, message string) FlowResult {
	return FlowResult{ErrorKind: kind, Message: message}
}
