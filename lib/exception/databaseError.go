package exception

type DatabaseError struct {
	*AppError
}

func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{
		AppError: &AppError{
			Kind:    KindUnexpected,
			Code:    CodeDatabase,
			Message: message,
			Cause:   cause,
		},
	}
}

func (e *DatabaseError) Unwrap() error {
	return e.AppError
}
