package exception

import "errors"

type Kind int

const (
	KindUnexpected Kind = iota
	KindNotFound
	KindLimitExceeded
	KindValidation
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindLimitExceeded:
		return "LimitExceeded"
	case KindValidation:
		return "ValidationError"
	case KindServiceUnavailable:
		return "ServiceUnavailable"
	default:
		return "Unexpected"
	}
}

const (
	CodeCanvasNotFound      = "CANVAS_NOT_FOUND"
	CodeObjectNotFound      = "OBJECT_NOT_FOUND"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeCanvasLimitExceeded = "CANVAS_LIMIT_EXCEEDED"
	CodeCanvasFull          = "CANVAS_FULL"
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotInCanvas         = "NOT_IN_CANVAS"
	CodeAIUnavailable       = "AI_UNAVAILABLE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeDatabase            = "DATABASE_ERROR"

	CodeJoinCanvas   = "JOIN_CANVAS_ERROR"
	CodeObjectAdd    = "OBJECT_ADD_ERROR"
	CodeObjectUpdate = "OBJECT_UPDATE_ERROR"
	CodeObjectDelete = "OBJECT_DELETE_ERROR"
	CodeClearCanvas  = "CLEAR_CANVAS_ERROR"
)

type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// KindOf reports the taxonomy kind of err. Errors that carry no AppError are
// unexpected.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// CodeOf returns the wire code carried by err, or fallback when err is not a
// known application error.
func CodeOf(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" && appErr.Kind != KindUnexpected {
		return appErr.Code
	}
	return fallback
}

func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    CodeValidation,
		Message: message,
		Cause:   cause,
	}
}

func NewServiceUnavailableError(message string, cause error) *AppError {
	return &AppError{
		Kind:    KindServiceUnavailable,
		Code:    CodeAIUnavailable,
		Message: message,
		Cause:   cause,
	}
}

func NewRateLimitedError() *AppError {
	return &AppError{
		Kind:    KindLimitExceeded,
		Code:    CodeRateLimited,
		Message: "rate limit exceeded",
	}
}
