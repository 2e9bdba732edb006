package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sketchbridge/sketchbridge-go/lib/db"
	"github.com/sketchbridge/sketchbridge-go/lib/exception"
	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const DefaultMaxObjectsPerCanvas = 1000

// Manager owns canvases and their objects. Object creation is serialized per
// canvas so the object cap and zIndex assignment hold under concurrent adds.
type Manager struct {
	store      db.DataStore
	validator  *validator.Validate
	logger     *zap.SugaredLogger
	maxObjects int
	now        func() time.Time

	addLocks sync.Map
}

func NewManager(store db.DataStore, validate *validator.Validate, maxObjects int, logger *zap.SugaredLogger) *Manager {
	if maxObjects <= 0 {
		maxObjects = DefaultMaxObjectsPerCanvas
	}
	return &Manager{
		store:      store,
		validator:  validate,
		logger:     logger,
		maxObjects: maxObjects,
		now:        time.Now,
	}
}

func (m *Manager) MaxObjects() int {
	return m.maxObjects
}

func (m *Manager) nowMillis() int64 {
	return m.now().UnixMilli()
}

// GetOrCreate returns the canvas with the given id, creating it on first use.
func (m *Manager) GetOrCreate(ctx context.Context, canvasId string, userId string, name *string) (*canvas.Canvas, error) {
	if canvasId == "" {
		return nil, exception.NewValidationError("canvasId is required", nil)
	}

	existing, err := m.store.GetCanvas(ctx, canvasId)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, db.ErrCanvasNotFound) {
		return nil, exception.NewDatabaseError("failed to load canvas", err)
	}

	canvasName := canvas.DefaultName(canvasId)
	if name != nil && *name != "" {
		canvasName = *name
	}
	now := m.nowMillis()
	created := canvas.Canvas{
		Id:              canvasId,
		Name:            canvasName,
		Width:           canvas.DefaultWidth,
		Height:          canvas.DefaultHeight,
		BackgroundColor: canvas.DefaultBackgroundColor,
		CreatedBy:       userId,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.store.CreateCanvas(ctx, created); err != nil {
		if !errors.Is(err, db.ErrDuplicateKey) {
			return nil, exception.NewDatabaseError("failed to create canvas", err)
		}
		// Another join created it first.
		existing, err = m.store.GetCanvas(ctx, canvasId)
		if err != nil {
			return nil, exception.NewDatabaseError("failed to load canvas", err)
		}
		return existing, nil
	}

	m.logger.Infow("Canvas created", "canvasId", canvasId, "userId", userId)
	return &created, nil
}

func (m *Manager) lockFor(canvasId string) *sync.Mutex {
	lock, _ := m.addLocks.LoadOrStore(canvasId, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// AddObject persists a new object. A zero ZIndex is replaced by the next free
// index and an empty id by a fresh uuid.
func (m *Manager) AddObject(ctx context.Context, object canvas.CanvasObject) (*canvas.CanvasObject, error) {
	if object.CanvasId == "" {
		return nil, exception.NewValidationError("object canvasId is required", nil)
	}
	if err := m.validator.Struct(object); err != nil {
		return nil, exception.NewValidationError(fmt.Sprintf("invalid object type %q", object.Type), err)
	}

	lock := m.lockFor(object.CanvasId)
	lock.Lock()
	defer lock.Unlock()

	count, err := m.store.CountObjects(ctx, object.CanvasId)
	if err != nil {
		return nil, exception.NewDatabaseError("failed to count objects", err)
	}
	if count >= m.maxObjects {
		return nil, exception.NewCanvasLimitExceededError(m.maxObjects)
	}

	if object.Id == "" {
		object.Id = uuid.NewString()
	}
	if object.ZIndex == 0 {
		maxZIndex, err := m.store.MaxZIndex(ctx, object.CanvasId)
		if err != nil {
			return nil, exception.NewDatabaseError("failed to read zIndex", err)
		}
		object.ZIndex = maxZIndex + 1
	}
	now := m.nowMillis()
	if object.CreatedAt == 0 {
		object.CreatedAt = now
	}
	if object.UpdatedAt == 0 {
		object.UpdatedAt = now
	}

	if err := m.store.CreateObject(ctx, object); err != nil {
		switch {
		case errors.Is(err, db.ErrCanvasNotFound):
			return nil, exception.NewCanvasNotFoundError(object.CanvasId)
		case errors.Is(err, db.ErrDuplicateKey):
			return nil, exception.NewValidationError(fmt.Sprintf("object %s already exists", object.Id), err)
		}
		return nil, exception.NewDatabaseError("failed to add object", err)
	}

	m.logger.Debugw("Object added", "objectId", object.Id, "canvasId", object.CanvasId)
	return &object, nil
}

func (m *Manager) GetObject(ctx context.Context, objectId string) (*canvas.CanvasObject, error) {
	object, err := m.store.GetObject(ctx, objectId)
	if err != nil {
		if errors.Is(err, db.ErrObjectNotFound) {
			return nil, exception.NewObjectNotFoundError(objectId)
		}
		return nil, exception.NewDatabaseError("failed to load object", err)
	}
	return object, nil
}

// UpdateObject applies the set fields of update and stamps updatedAt.
func (m *Manager) UpdateObject(ctx context.Context, objectId string, update canvas.ObjectUpdate) (*canvas.CanvasObject, error) {
	updated, err := m.store.UpdateObject(ctx, objectId, update, m.nowMillis())
	if err != nil {
		if errors.Is(err, db.ErrObjectNotFound) {
			return nil, exception.NewObjectNotFoundError(objectId)
		}
		return nil, exception.NewDatabaseError("failed to update object", err)
	}

	m.logger.Debugw("Object updated", "objectId", objectId)
	return updated, nil
}

func (m *Manager) DeleteObject(ctx context.Context, objectId string) error {
	if err := m.store.DeleteObject(ctx, objectId); err != nil {
		return exception.NewDatabaseError("failed to delete object", err)
	}
	m.logger.Debugw("Object deleted", "objectId", objectId)
	return nil
}

func (m *Manager) DeleteAllObjects(ctx context.Context, canvasId string) (int64, error) {
	deleted, err := m.store.DeleteObjectsByCanvas(ctx, canvasId)
	if err != nil {
		return 0, exception.NewDatabaseError("failed to clear canvas", err)
	}
	m.logger.Infow("Canvas cleared", "canvasId", canvasId, "deleted", deleted)
	return deleted, nil
}

func (m *Manager) ListObjects(ctx context.Context, canvasId string) ([]canvas.CanvasObject, error) {
	objects, err := m.store.GetObjectsByCanvas(ctx, canvasId)
	if err != nil {
		return nil, exception.NewDatabaseError("failed to list objects", err)
	}
	return objects, nil
}

func (m *Manager) Count(ctx context.Context, canvasId string) (int, error) {
	count, err := m.store.CountObjects(ctx, canvasId)
	if err != nil {
		return 0, exception.NewDatabaseError("failed to count objects", err)
	}
	return count, nil
}

func (m *Manager) GetCanvas(ctx context.Context, canvasId string) (*canvas.Canvas, error) {
	retrieved, err := m.store.GetCanvas(ctx, canvasId)
	if err != nil {
		if errors.Is(err, db.ErrCanvasNotFound) {
			return nil, exception.NewCanvasNotFoundError(canvasId)
		}
		return nil, exception.NewDatabaseError("failed to load canvas", err)
	}
	return retrieved, nil
}

// Sync loads the canvas and its objects for a joining client.
func (m *Manager) Sync(ctx context.Context, canvasId string) (*canvas.Canvas, []canvas.CanvasObject, error) {
	var retrievedCanvas *canvas.Canvas
	var objects []canvas.CanvasObject

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		retrievedCanvas, err = m.GetCanvas(ctx, canvasId)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		objects, err = m.ListObjects(ctx, canvasId)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, nil, err
	}
	return retrievedCanvas, objects, nil
}
