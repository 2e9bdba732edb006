package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
	"github.com/sketchbridge/sketchbridge-go/lib/models/ws"
)

var ErrNotJoined = errors.New("not joined to a canvas")

// Outbound is a client to server event ready to be written.
type Outbound struct {
	Event string
	Data  any
}

// State is the local mirror of one joined canvas. The server echoes every
// mutation back to its sender, so events carrying the own session id are
// reconciled instead of applied twice.
type State struct {
	mu       sync.RWMutex
	userId   string
	userName string
	ownId    string
	canvas   *canvas.Canvas
	objects  []canvas.CanvasObject
	remote   map[string]canvas.Session
	now      func() time.Time
}

func NewState(userId string, userName string) *State {
	return &State{
		userId:   userId,
		userName: userName,
		remote:   make(map[string]canvas.Session),
		now:      time.Now,
	}
}

func (s *State) UserId() string {
	return s.userId
}

func (s *State) UserName() string {
	return s.userName
}

// OwnId is the session id the server assigned to this connection. It is
// empty until the first canvas_sync arrived.
func (s *State) OwnId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownId
}

func (s *State) Canvas() *canvas.Canvas {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.canvas == nil {
		return nil
	}
	c := *s.canvas
	return &c
}

func (s *State) CanvasId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.canvas == nil {
		return ""
	}
	return s.canvas.Id
}

// Objects returns a copy of the local objects in paint order.
func (s *State) Objects() []canvas.CanvasObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects := make([]canvas.CanvasObject, len(s.objects))
	copy(objects, s.objects)
	return objects
}

func (s *State) Object(objectId string) (canvas.CanvasObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(objectId); i >= 0 {
		return s.objects[i], true
	}
	return canvas.CanvasObject{}, false
}

// RemoteSessions lists the other participants ordered by join time.
func (s *State) RemoteSessions() []canvas.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]canvas.Session, 0, len(s.remote))
	for _, session := range s.remote {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ConnectedAt != sessions[j].ConnectedAt {
			return sessions[i].ConnectedAt < sessions[j].ConnectedAt
		}
		return sessions[i].Id < sessions[j].Id
	})
	return sessions
}

func (s *State) Join(canvasId string, canvasName *string) Outbound {
	return Outbound{Event: ws.EventJoinCanvas, Data: ws.JoinCanvas{
		CanvasId:   canvasId,
		UserId:     s.userId,
		UserName:   s.userName,
		CanvasName: canvasName,
	}}
}

func (s *State) Leave() Outbound {
	return Outbound{Event: ws.EventLeaveCanvas, Data: ws.LeaveCanvas{CanvasId: s.CanvasId()}}
}

func (s *State) CursorMove(x, y float64) (Outbound, error) {
	canvasId := s.CanvasId()
	if canvasId == "" {
		return Outbound{}, ErrNotJoined
	}
	return Outbound{Event: ws.EventCursorMove, Data: ws.CursorMove{CanvasId: canvasId, X: x, Y: y}}, nil
}

// AddLocal inserts the object optimistically and returns the object_add to
// send. An id is generated when the object has none so that the echo can be
// matched.
func (s *State) AddLocal(object canvas.CanvasObject) (canvas.CanvasObject, Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canvas == nil {
		return object, Outbound{}, ErrNotJoined
	}
	if object.Id == "" {
		object.Id = uuid.NewString()
	}
	if s.indexOf(object.Id) >= 0 {
		return object, Outbound{}, fmt.Errorf("object %s already exists", object.Id)
	}
	object.CanvasId = s.canvas.Id
	object.CreatedBy = s.userId
	if object.ZIndex == 0 {
		object.ZIndex = s.maxZIndex() + 1
	}
	nowMs := s.now().UnixMilli()
	object.CreatedAt = nowMs
	object.UpdatedAt = nowMs

	s.objects = append(s.objects, object)
	s.sortObjects()
	return object, Outbound{Event: ws.EventObjectAdd, Data: ws.ObjectAdd{CanvasId: s.canvas.Id, Object: object}}, nil
}

func (s *State) UpdateLocal(objectId string, update canvas.ObjectUpdate) (Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canvas == nil {
		return Outbound{}, ErrNotJoined
	}
	i := s.indexOf(objectId)
	if i < 0 {
		return Outbound{}, fmt.Errorf("object %s not found", objectId)
	}
	update.ApplyTo(&s.objects[i])
	s.objects[i].UpdatedAt = s.now().UnixMilli()
	if update.ZIndex != nil {
		s.sortObjects()
	}
	return Outbound{Event: ws.EventObjectUpdate, Data: ws.ObjectUpdate{
		CanvasId: s.canvas.Id,
		ObjectId: objectId,
		Updates:  update,
	}}, nil
}

func (s *State) DeleteLocal(objectId string) (Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canvas == nil {
		return Outbound{}, ErrNotJoined
	}
	s.removeObject(objectId)
	return Outbound{Event: ws.EventObjectDelete, Data: ws.ObjectDelete{CanvasId: s.canvas.Id, ObjectId: objectId}}, nil
}

func (s *State) ClearLocal() (Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canvas == nil {
		return Outbound{}, ErrNotJoined
	}
	s.objects = nil
	return Outbound{Event: ws.EventClearCanvas, Data: ws.ClearCanvas{CanvasId: s.canvas.Id}}, nil
}

// Apply folds one server event into the state. Events the state does not
// track are ignored.
func (s *State) Apply(message ws.EventMessage) error {
	switch message.Event {
	case ws.EventCanvasSync:
		var payload ws.CanvasSync
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			return err
		}
		s.applySync(payload)
	case ws.EventUserJoined:
		var payload ws.UserJoined
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			return err
		}
		s.mu.Lock()
		if payload.Session.Id != s.ownId {
			s.remote[payload.Session.Id] = payload.Session
		}
		s.mu.Unlock()
	case ws.EventUserLeft:
		var payload ws.UserLeft
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			return err
		}
		s.mu.Lock()
		delete(s.remote, payload.SessionId)
		s.mu.Unlock()
	case ws.EventCursorMove:
		var payload ws.CursorMoved
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			return err
		}
		s.mu.Lock()
		if session, ok := s.remote[payload.SessionId]; ok {
			session.CursorX = payload.X
			session.CursorY = payload.Y
			s.remote[payload.SessionId] = session
		}
		s.mu.Unlock()
	case ws.EventObjectAdd, ws.EventObjectUpdate:
		var payload ws.ObjectChanged
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			return err
		}
		s.applyObject(payload)
	case ws.EventObjectDelete:
		var payload ws.ObjectDeleted
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			return err
		}
		s.mu.Lock()
		if payload.SessionId != s.ownId {
			s.removeObject(payload.ObjectId)
		}
		s.mu.Unlock()
	case ws.EventClearCanvas:
		var payload ws.CanvasCleared
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			return err
		}
		s.mu.Lock()
		if payload.SessionId != s.ownId {
			s.objects = nil
		}
		s.mu.Unlock()
	}
	return nil
}

func (s *State) applySync(payload ws.CanvasSync) {
	s.mu.Lock()
	defer s.mu.Unlock()

	synced := payload.Canvas
	s.canvas = &synced
	s.objects = append([]canvas.CanvasObject(nil), payload.Objects...)
	s.sortObjects()

	// Stale sessions of this user are evicted before the snapshot is taken,
	// so the one left with our user id is this connection.
	s.remote = make(map[string]canvas.Session, len(payload.Sessions))
	for _, session := range payload.Sessions {
		if session.UserId == s.userId {
			s.ownId = session.Id
			continue
		}
		s.remote[session.Id] = session
	}
}

func (s *State) applyObject(payload ws.ObjectChanged) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(payload.Object.Id)
	if payload.SessionId == s.ownId {
		// Our own echo: take the authoritative copy, never add a second one.
		// Objects deleted locally in the meantime stay deleted.
		if i >= 0 {
			s.objects[i] = payload.Object
			s.sortObjects()
		}
		return
	}
	if i >= 0 {
		s.objects[i] = payload.Object
	} else {
		s.objects = append(s.objects, payload.Object)
	}
	s.sortObjects()
}

func (s *State) indexOf(objectId string) int {
	for i := range s.objects {
		if s.objects[i].Id == objectId {
			return i
		}
	}
	return -1
}

func (s *State) removeObject(objectId string) {
	if i := s.indexOf(objectId); i >= 0 {
		s.objects = append(s.objects[:i], s.objects[i+1:]...)
	}
}

func (s *State) maxZIndex() int {
	maxZIndex := 0
	for _, object := range s.objects {
		if object.ZIndex > maxZIndex {
			maxZIndex = object.ZIndex
		}
	}
	return maxZIndex
}

func (s *State) sortObjects() {
	sort.SliceStable(s.objects, func(i, j int) bool {
		return s.objects[i].ZIndex < s.objects[j].ZIndex
	})
}
