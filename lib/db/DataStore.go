package db

import (
	"context"

	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
)

type CanvasMethods interface {
	// CreateCanvas fails with ErrDuplicateKey when the id is taken.
	CreateCanvas(ctx context.Context, c canvas.Canvas) error
	GetCanvas(ctx context.Context, canvasId string) (*canvas.Canvas, error)
}

type CanvasObjectMethods interface {
	CreateObject(ctx context.Context, object canvas.CanvasObject) error
	GetObject(ctx context.Context, objectId string) (*canvas.CanvasObject, error)
	UpdateObject(ctx context.Context, objectId string, update canvas.ObjectUpdate, updatedAt int64) (*canvas.CanvasObject, error)
	DeleteObject(ctx context.Context, objectId string) error
	DeleteObjectsByCanvas(ctx context.Context, canvasId string) (int64, error)
	// GetObjectsByCanvas returns objects by ascending zIndex, insertion order
	// for equal indices.
	GetObjectsByCanvas(ctx context.Context, canvasId string) ([]canvas.CanvasObject, error)
	CountObjects(ctx context.Context, canvasId string) (int, error)
	MaxZIndex(ctx context.Context, canvasId string) (int, error)
}

type SessionMethods interface {
	CreateSession(ctx context.Context, session canvas.Session) error
	GetSession(ctx context.Context, sessionId string) (*canvas.Session, error)
	GetSessionsByCanvas(ctx context.Context, canvasId string) ([]canvas.Session, error)
	GetSessionsByUserAndCanvas(ctx context.Context, userId string, canvasId string) ([]canvas.Session, error)
	UpdateSessionCursor(ctx context.Context, sessionId string, x float64, y float64, lastActivity int64) error
	TouchSession(ctx context.Context, sessionId string, lastActivity int64) error
	DeleteSession(ctx context.Context, sessionId string) error
	DeleteSessionsByUserAndCanvas(ctx context.Context, userId string, canvasId string) (int64, error)
	// DeleteSessionsInactiveSince removes every session whose last activity is
	// older than cutoff and returns the removed rows.
	DeleteSessionsInactiveSince(ctx context.Context, cutoff int64) ([]canvas.Session, error)
}

type DataStore interface {
	CanvasMethods
	CanvasObjectMethods
	SessionMethods
	Ping() error
	Close() error
}
