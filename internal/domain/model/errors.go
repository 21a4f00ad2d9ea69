package model

// ErrorKind is the machine-readable error code sent to clients. The codes
// are part of the wire contract and never change spelling.
type ErrorKind string

const (
	ErrInvalidFormat        ErrorKind = "invalid_format"
	ErrInvalidToken         ErrorKind = "invalid_token"
	ErrAccessDenied         ErrorKind = "access_denied"
	ErrForbidden            ErrorKind = "forbidden"
	ErrMessageTooLong       ErrorKind = "message_too_long"
	ErrInvalidCoordinates   ErrorKind = "invalid_coordinates"
	ErrInvalidStatus        ErrorKind = "invalid_status"
	ErrJobNoLongerAvailable ErrorKind = "job_no_longer_available"
	ErrInternalFailure      ErrorKind = "internal_failure"
)

// HandlerError is the typed failure every handler returns. It carries a
// code plus a client-safe message; handler failures are replied to the
// originating connection and never terminate it.
type HandlerError struct {
	Kind    ErrorKind
	Message string
}

func NewHandlerError(kind ErrorKind, message string) *HandlerError {
	return &HandlerError{Kind: kind, Message: message}
}

func (e *HandlerError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Internal wraps an unexpected server-side failure. The cause stays in the
// server log; the client sees only the generic code.
func Internal(_ error) *HandlerError {
	return &HandlerError{Kind: ErrInternalFailure, Message: "internal failure"}
}
