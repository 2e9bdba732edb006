package exception

import "fmt"

type CanvasNotFoundError struct {
	*AppError
	CanvasId string
}

func NewCanvasNotFoundError(canvasId string) *CanvasNotFoundError {
	return &CanvasNotFoundError{
		AppError: &AppError{
			Kind:    KindNotFound,
			Code:    CodeCanvasNotFound,
			Message: fmt.Sprintf("canvas not found: %s", canvasId),
		},
		CanvasId: canvasId,
	}
}

func (e *CanvasNotFoundError) Unwrap() error {
	return e.AppError
}

type ObjectNotFoundError struct {
	*AppError
	ObjectId string
}

func NewObjectNotFoundError(objectId string) *ObjectNotFoundError {
	return &ObjectNotFoundError{
		AppError: &AppError{
			Kind:    KindNotFound,
			Code:    CodeObjectNotFound,
			Message: fmt.Sprintf("object not found: %s", objectId),
		},
		ObjectId: objectId,
	}
}

func (e *ObjectNotFoundError) Unwrap() error {
	return e.AppError
}

type CanvasLimitExceededError struct {
	*AppError
	Limit int
}

func NewCanvasLimitExceededError(limit int) *CanvasLimitExceededError {
	return &CanvasLimitExceededError{
		AppError: &AppError{
			Kind:    KindLimitExceeded,
			Code:    CodeCanvasLimitExceeded,
			Message: fmt.Sprintf("canvas object limit exceeded: %d", limit),
		},
		Limit: limit,
	}
}

func (e *CanvasLimitExceededError) Unwrap() error {
	return e.AppError
}

type CanvasFullError struct {
	*AppError
	Limit int
}

func NewCanvasFullError(canvasId string, limit int) *CanvasFullError {
	return &CanvasFullError{
		AppError: &AppError{
			Kind:    KindLimitExceeded,
			Code:    CodeCanvasFull,
			Message: fmt.Sprintf("canvas %s already has %d active users", canvasId, limit),
		},
		Limit: limit,
	}
}

func (e *CanvasFullError) Unwrap() error {
	return e.AppError
}

func NewNotInCanvasError(canvasId string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    CodeNotInCanvas,
		Message: fmt.Sprintf("connection has not joined canvas %s", canvasId),
	}
}
