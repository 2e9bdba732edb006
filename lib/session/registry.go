package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sketchbridge/sketchbridge-go/lib/db"
	"github.com/sketchbridge/sketchbridge-go/lib/exception"
	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
	"go.uber.org/zap"
)

// Registry tracks which connection is present on which canvas. A session id
// is the id of the connection that created it.
type Registry struct {
	store  db.SessionMethods
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewRegistry(store db.SessionMethods, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (r *Registry) nowMillis() int64 {
	return r.now().UnixMilli()
}

// Create stores a new session. Zero timestamps are stamped with the current
// time.
func (r *Registry) Create(ctx context.Context, session canvas.Session) (*canvas.Session, error) {
	now := r.nowMillis()
	if session.ConnectedAt == 0 {
		session.ConnectedAt = now
	}
	if session.LastActivity == 0 {
		session.LastActivity = session.ConnectedAt
	}

	if err := r.store.CreateSession(ctx, session); err != nil {
		switch {
		case errors.Is(err, db.ErrCanvasNotFound):
			return nil, exception.NewCanvasNotFoundError(session.CanvasId)
		case errors.Is(err, db.ErrDuplicateKey):
			return nil, exception.NewValidationError(fmt.Sprintf("session %s already exists", session.Id), err)
		}
		return nil, exception.NewDatabaseError("failed to create session", err)
	}

	r.logger.Debugw("Session created", "sessionId", session.Id, "canvasId", session.CanvasId, "userId", session.UserId)
	return &session, nil
}

// Get returns nil without an error when the session does not exist.
func (r *Registry) Get(ctx context.Context, sessionId string) (*canvas.Session, error) {
	session, err := r.store.GetSession(ctx, sessionId)
	if err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, exception.NewDatabaseError("failed to load session", err)
	}
	return session, nil
}

func (r *Registry) ListByCanvas(ctx context.Context, canvasId string) ([]canvas.Session, error) {
	sessions, err := r.store.GetSessionsByCanvas(ctx, canvasId)
	if err != nil {
		return nil, exception.NewDatabaseError("failed to list sessions", err)
	}
	return sessions, nil
}

func (r *Registry) ListByUserAndCanvas(ctx context.Context, userId string, canvasId string) ([]canvas.Session, error) {
	sessions, err := r.store.GetSessionsByUserAndCanvas(ctx, userId, canvasId)
	if err != nil {
		return nil, exception.NewDatabaseError("failed to list sessions", err)
	}
	return sessions, nil
}

// UpdateCursor stores the cursor position and refreshes lastActivity.
func (r *Registry) UpdateCursor(ctx context.Context, sessionId string, x float64, y float64) error {
	if err := r.store.UpdateSessionCursor(ctx, sessionId, x, y, r.nowMillis()); err != nil {
		return r.mapUpdateError(sessionId, err)
	}
	return nil
}

// Touch refreshes lastActivity only.
func (r *Registry) Touch(ctx context.Context, sessionId string) error {
	if err := r.store.TouchSession(ctx, sessionId, r.nowMillis()); err != nil {
		return r.mapUpdateError(sessionId, err)
	}
	return nil
}

func (r *Registry) mapUpdateError(sessionId string, err error) error {
	if errors.Is(err, db.ErrSessionNotFound) {
		return exception.NewSessionNotFoundError(sessionId)
	}
	return exception.NewDatabaseError("failed to update session", err)
}

func (r *Registry) Delete(ctx context.Context, sessionId string) error {
	if err := r.store.DeleteSession(ctx, sessionId); err != nil {
		return exception.NewDatabaseError("failed to delete session", err)
	}
	return nil
}

func (r *Registry) DeleteByUserAndCanvas(ctx context.Context, userId string, canvasId string) (int64, error) {
	deleted, err := r.store.DeleteSessionsByUserAndCanvas(ctx, userId, canvasId)
	if err != nil {
		return 0, exception.NewDatabaseError("failed to delete sessions", err)
	}
	return deleted, nil
}

// DeleteExpired removes sessions idle for longer than maxAge and returns
// them. A maxAge of zero removes every session.
func (r *Registry) DeleteExpired(ctx context.Context, maxAge time.Duration) ([]canvas.Session, error) {
	cutoff := int64(math.MaxInt64)
	if maxAge > 0 {
		cutoff = r.now().Add(-maxAge).UnixMilli()
	}

	expired, err := r.store.DeleteSessionsInactiveSince(ctx, cutoff)
	if err != nil {
		return nil, exception.NewDatabaseError("failed to delete expired sessions", err)
	}
	return expired, nil
}
