package db

import "errors"

const CanvasDoesNotExistError = "canvas not found"
const ObjectDoesNotExistError = "canvas object not found"
const SessionNotFoundError = "session not found"
const DuplicateKeyError = "duplicate key"

var (
	ErrCanvasNotFound  = errors.New(CanvasDoesNotExistError)
	ErrObjectNotFound  = errors.New(ObjectDoesNotExistError)
	ErrSessionNotFound = errors.New(SessionNotFoundError)
	ErrDuplicateKey    = errors.New(DuplicateKeyError)
)
