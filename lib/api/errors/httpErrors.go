package errors

import (
	"errors"
	"net/http"

	"github.com/sketchbridge/sketchbridge-go/lib/exception"
)

var InternalServerError = Error{
	Message: "Internal server error",
	Error:   500,
}

var InvalidRequestError = Error{
	Message: "Invalid request",
	Error:   400,
}

var NotFoundError = Error{
	Message: "Not found",
	Error:   404,
}

func NewMissingParamError(paramName string) Error {
	return Error{
		Message: "Missing parameter: " + paramName,
		Error:   400,
	}
}

// FromError maps an exception kind onto an HTTP status. Errors outside the
// taxonomy become InternalServerError and keep their text hidden.
func FromError(err error) Error {
	var appErr *exception.AppError
	if !errors.As(err, &appErr) {
		return InternalServerError
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case exception.KindNotFound:
		status = http.StatusNotFound
	case exception.KindValidation:
		status = http.StatusBadRequest
	case exception.KindLimitExceeded:
		status = http.StatusConflict
	case exception.KindServiceUnavailable:
		status = http.StatusServiceUnavailable
	default:
		return InternalServerError
	}
	return Error{Message: appErr.Message, Error: status, Code: appErr.Code}
}
