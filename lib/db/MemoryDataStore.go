package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
)

type memoryObject struct {
	object canvas.CanvasObject
	seq    uint64
}

// MemoryDataStore keeps everything in maps behind a single lock. Data is lost
// on restart.
type MemoryDataStore struct {
	mu           sync.RWMutex
	canvasStore  map[string]canvas.Canvas
	objectStore  map[string]memoryObject
	sessionStore map[string]canvas.Session
	nextSeq      uint64
}

func NewMemoryDataStore() *MemoryDataStore {
	return &MemoryDataStore{
		canvasStore:  make(map[string]canvas.Canvas),
		objectStore:  make(map[string]memoryObject),
		sessionStore: make(map[string]canvas.Session),
	}
}

func (m *MemoryDataStore) Ping() error {
	return nil
}

func (m *MemoryDataStore) Close() error {
	return nil
}

func (m *MemoryDataStore) CreateCanvas(_ context.Context, c canvas.Canvas) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.canvasStore[c.Id]; ok {
		return fmt.Errorf("%w: canvas %s", ErrDuplicateKey, c.Id)
	}
	m.canvasStore[c.Id] = c
	return nil
}

func (m *MemoryDataStore) GetCanvas(_ context.Context, canvasId string) (*canvas.Canvas, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	retrievedCanvas, ok := m.canvasStore[canvasId]
	if !ok {
		return nil, ErrCanvasNotFound
	}
	return &retrievedCanvas, nil
}

func (m *MemoryDataStore) CreateObject(_ context.Context, object canvas.CanvasObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.canvasStore[object.CanvasId]; !ok {
		return ErrCanvasNotFound
	}
	if _, ok := m.objectStore[object.Id]; ok {
		return fmt.Errorf("%w: object %s", ErrDuplicateKey, object.Id)
	}
	m.nextSeq++
	m.objectStore[object.Id] = memoryObject{object: object, seq: m.nextSeq}
	return nil
}

func (m *MemoryDataStore) GetObject(_ context.Context, objectId string) (*canvas.CanvasObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.objectStore[objectId]
	if !ok {
		return nil, ErrObjectNotFound
	}
	object := stored.object
	return &object, nil
}

func (m *MemoryDataStore) UpdateObject(_ context.Context, objectId string, update canvas.ObjectUpdate, updatedAt int64) (*canvas.CanvasObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.objectStore[objectId]
	if !ok {
		return nil, ErrObjectNotFound
	}
	update.ApplyTo(&stored.object)
	stored.object.UpdatedAt = updatedAt
	m.objectStore[objectId] = stored

	object := stored.object
	return &object, nil
}

func (m *MemoryDataStore) DeleteObject(_ context.Context, objectId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objectStore, objectId)
	return nil
}

func (m *MemoryDataStore) DeleteObjectsByCanvas(_ context.Context, canvasId string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, stored := range m.objectStore {
		if stored.object.CanvasId == canvasId {
			delete(m.objectStore, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryDataStore) GetObjectsByCanvas(_ context.Context, canvasId string) ([]canvas.CanvasObject, error) {
	m.mu.RLock()
	matching := make([]memoryObject, 0)
	for _, stored := range m.objectStore {
		if stored.object.CanvasId == canvasId {
			matching = append(matching, stored)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matching, func(i, j int) bool {
		if matching[i].object.ZIndex != matching[j].object.ZIndex {
			return matching[i].object.ZIndex < matching[j].object.ZIndex
		}
		return matching[i].seq < matching[j].seq
	})

	objects := make([]canvas.CanvasObject, 0, len(matching))
	for _, stored := range matching {
		objects = append(objects, stored.object)
	}
	return objects, nil
}

func (m *MemoryDataStore) CountObjects(_ context.Context, canvasId string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, stored := range m.objectStore {
		if stored.object.CanvasId == canvasId {
			count++
		}
	}
	return count, nil
}

func (m *MemoryDataStore) MaxZIndex(_ context.Context, canvasId string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	maxZIndex := 0
	found := false
	for _, stored := range m.objectStore {
		if stored.object.CanvasId != canvasId {
			continue
		}
		if !found || stored.object.ZIndex > maxZIndex {
			maxZIndex = stored.object.ZIndex
			found = true
		}
	}
	return maxZIndex, nil
}

func (m *MemoryDataStore) CreateSession(_ context.Context, session canvas.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.canvasStore[session.CanvasId]; !ok {
		return ErrCanvasNotFound
	}
	if _, ok := m.sessionStore[session.Id]; ok {
		return fmt.Errorf("%w: session %s", ErrDuplicateKey, session.Id)
	}
	m.sessionStore[session.Id] = session
	return nil
}

func (m *MemoryDataStore) GetSession(_ context.Context, sessionId string) (*canvas.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessionStore[sessionId]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (m *MemoryDataStore) GetSessionsByCanvas(_ context.Context, canvasId string) ([]canvas.Session, error) {
	return m.filterSessions(func(s canvas.Session) bool {
		return s.CanvasId == canvasId
	}), nil
}

func (m *MemoryDataStore) GetSessionsByUserAndCanvas(_ context.Context, userId string, canvasId string) ([]canvas.Session, error) {
	return m.filterSessions(func(s canvas.Session) bool {
		return s.CanvasId == canvasId && s.UserId == userId
	}), nil
}

func (m *MemoryDataStore) filterSessions(match func(s canvas.Session) bool) []canvas.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]canvas.Session, 0)
	for _, session := range m.sessionStore {
		if match(session) {
			sessions = append(sessions, session)
		}
	}
	sortSessions(sessions)
	return sessions
}

func sortSessions(sessions []canvas.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ConnectedAt != sessions[j].ConnectedAt {
			return sessions[i].ConnectedAt < sessions[j].ConnectedAt
		}
		return sessions[i].Id < sessions[j].Id
	})
}

func (m *MemoryDataStore) UpdateSessionCursor(_ context.Context, sessionId string, x float64, y float64, lastActivity int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessionStore[sessionId]
	if !ok {
		return ErrSessionNotFound
	}
	session.CursorX = x
	session.CursorY = y
	session.LastActivity = lastActivity
	m.sessionStore[sessionId] = session
	return nil
}

func (m *MemoryDataStore) TouchSession(_ context.Context, sessionId string, lastActivity int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessionStore[sessionId]
	if !ok {
		return ErrSessionNotFound
	}
	session.LastActivity = lastActivity
	m.sessionStore[sessionId] = session
	return nil
}

func (m *MemoryDataStore) DeleteSession(_ context.Context, sessionId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessionStore, sessionId)
	return nil
}

func (m *MemoryDataStore) DeleteSessionsByUserAndCanvas(_ context.Context, userId string, canvasId string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, session := range m.sessionStore {
		if session.UserId == userId && session.CanvasId == canvasId {
			delete(m.sessionStore, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryDataStore) DeleteSessionsInactiveSince(_ context.Context, cutoff int64) ([]canvas.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := make([]canvas.Session, 0)
	for id, session := range m.sessionStore {
		if session.LastActivity < cutoff {
			delete(m.sessionStore, id)
			deleted = append(deleted, session)
		}
	}
	sortSessions(deleted)
	return deleted, nil
}

var _ DataStore = (*MemoryDataStore)(nil)
