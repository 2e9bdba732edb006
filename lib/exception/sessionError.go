package exception

import "fmt"

type SessionNotFoundError struct {
	*AppError
	SessionId string
}

func NewSessionNotFoundError(sessionId string) *SessionNotFoundError {
	return &SessionNotFoundError{
		AppError: &AppError{
			Kind:    KindNotFound,
			Code:    CodeSessionNotFound,
			Message: fmt.Sprintf("session not found: %s", sessionId),
		},
		SessionId: sessionId,
	}
}

func (e *SessionNotFoundError) Unwrap() error {
	return e.AppError
}
