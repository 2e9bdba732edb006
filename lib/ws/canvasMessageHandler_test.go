package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sketchbridge/sketchbridge-go/lib/ai"
	canvasManager "github.com/sketchbridge/sketchbridge-go/lib/canvas"
	"github.com/sketchbridge/sketchbridge-go/lib/db"
	"github.com/sketchbridge/sketchbridge-go/lib/exception"
	aiModel "github.com/sketchbridge/sketchbridge-go/lib/models/ai"
	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
	"github.com/sketchbridge/sketchbridge-go/lib/models/ws"
	"github.com/sketchbridge/sketchbridge-go/lib/session"
	"github.com/sketchbridge/sketchbridge-go/lib/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAnalyzer struct {
	statuses []string
	result   *aiModel.AnalysisResult
	err      error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, onProgress ai.ProgressFunc) (*aiModel.AnalysisResult, error) {
	for _, status := range f.statuses {
		onProgress(status)
	}
	return f.result, f.err
}

func (f *fakeAnalyzer) Available() bool {
	return true
}

type testEngine struct {
	hub      *Hub
	handler  *CanvasMessageHandler
	store    *db.MemoryDataStore
	manager  *canvasManager.Manager
	registry *session.Registry
	analyzer *fakeAnalyzer
	settings *settings.Settings
}

func newTestSettings() *settings.Settings {
	return &settings.Settings{
		Canvas: settings.CanvasSettings{MaxObjects: 1000},
		Session: settings.SessionSettings{
			TimeoutMs:       1_800_000,
			SweepIntervalMs: 60_000,
		},
		Socket: settings.SocketSettings{
			MaxMessageSize: 1 << 20,
			SendBufferSize: 256,
		},
		RateLimiting: settings.RateLimiting{Duration: 1, Points: 10_000},
	}
}

func newTestEngine(t *testing.T, configure ...func(s *settings.Settings)) *testEngine {
	t.Helper()
	retrievedSettings := newTestSettings()
	for _, fn := range configure {
		fn(retrievedSettings)
	}

	logger := zap.NewNop().Sugar()
	store := db.NewMemoryDataStore()
	manager := canvasManager.NewManager(store, validator.New(validator.WithRequiredStructEnabled()), retrievedSettings.Canvas.MaxObjects, logger)
	registry := session.NewRegistry(store, logger)
	analyzer := &fakeAnalyzer{}
	hub := NewHub()
	handler := NewCanvasMessageHandler(hub, manager, registry, analyzer, validator.New(validator.WithRequiredStructEnabled()), retrievedSettings, logger)

	return &testEngine{
		hub:      hub,
		handler:  handler,
		store:    store,
		manager:  manager,
		registry: registry,
		analyzer: analyzer,
		settings: retrievedSettings,
	}
}

func (e *testEngine) connect(sessionId string) *Client {
	client := &Client{
		Hub:       e.hub,
		Conn:      NewMockWebSocketConn(),
		Send:      make(chan []byte, 256),
		SessionId: sessionId,
		Handler:   e.handler,
	}
	e.hub.register(client)
	return client
}

func (e *testEngine) send(t *testing.T, client *Client, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(ws.OutgoingMessage{Event: event, Data: data})
	require.NoError(t, err)
	e.handler.HandleMessage(context.Background(), client, raw)
}

func (e *testEngine) join(t *testing.T, client *Client, canvasId string, userId string) {
	t.Helper()
	e.send(t, client, ws.EventJoinCanvas, ws.JoinCanvas{CanvasId: canvasId, UserId: userId, UserName: "User " + userId})
}

// drain returns every queued frame of client without blocking.
func drain(t *testing.T, client *Client) []ws.EventMessage {
	t.Helper()
	var messages []ws.EventMessage
	for {
		select {
		case raw, ok := <-client.Send:
			if !ok {
				return messages
			}
			var message ws.EventMessage
			require.NoError(t, json.Unmarshal(raw, &message))
			messages = append(messages, message)
		default:
			return messages
		}
	}
}

func eventNames(messages []ws.EventMessage) []string {
	names := make([]string, 0, len(messages))
	for _, message := range messages {
		names = append(names, message.Event)
	}
	return names
}

func decodeData[T any](t *testing.T, message ws.EventMessage) T {
	t.Helper()
	var data T
	require.NoError(t, json.Unmarshal(message.Data, &data))
	return data
}

func only(t *testing.T, messages []ws.EventMessage, event string) ws.EventMessage {
	t.Helper()
	require.Equal(t, []string{event}, eventNames(messages))
	return messages[0]
}

func requireError(t *testing.T, client *Client, code string) ws.ErrorMessage {
	t.Helper()
	errorMessage := decodeData[ws.ErrorMessage](t, only(t, drain(t, client), ws.EventError))
	assert.Equal(t, code, errorMessage.Code)
	return errorMessage
}

func rect(x, y, width, height float64) canvas.CanvasObject {
	return canvas.CanvasObject{
		Type:   canvas.ObjectRect,
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

func TestExampleScenario(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")

	engine.join(t, a, "demo", "u1")
	syncA := decodeData[ws.CanvasSync](t, only(t, drain(t, a), ws.EventCanvasSync))
	assert.Equal(t, "demo", syncA.Canvas.Id)
	assert.Empty(t, syncA.Objects)
	require.Len(t, syncA.Sessions, 1)
	assert.Equal(t, "conn-a", syncA.Sessions[0].Id)

	engine.join(t, b, "demo", "u2")
	syncB := decodeData[ws.CanvasSync](t, only(t, drain(t, b), ws.EventCanvasSync))
	assert.Len(t, syncB.Sessions, 2)
	joined := decodeData[ws.UserJoined](t, only(t, drain(t, a), ws.EventUserJoined))
	assert.Equal(t, "u2", joined.Session.UserId)
	assert.Equal(t, "conn-b", joined.Session.Id)

	engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(10, 10, 100, 50)})
	var objectId string
	for _, client := range []*Client{a, b} {
		added := decodeData[ws.ObjectChanged](t, only(t, drain(t, client), ws.EventObjectAdd))
		assert.Equal(t, 1, added.Object.ZIndex)
		assert.Equal(t, "u1", added.Object.CreatedBy)
		assert.Equal(t, "demo", added.Object.CanvasId)
		assert.Equal(t, "conn-a", added.SessionId)
		require.NotEmpty(t, added.Object.Id)
		objectId = added.Object.Id
	}

	engine.send(t, b, ws.EventObjectDelete, ws.ObjectDelete{CanvasId: "demo", ObjectId: objectId})
	for _, client := range []*Client{a, b} {
		deleted := decodeData[ws.ObjectDeleted](t, only(t, drain(t, client), ws.EventObjectDelete))
		assert.Equal(t, ws.ObjectDeleted{ObjectId: objectId, SessionId: "conn-b"}, deleted)
	}

	objects, err := engine.manager.ListObjects(context.Background(), "demo")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestJoin_AssignsColorAndCursor(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")

	engine.join(t, a, "demo", "a")
	syncA := decodeData[ws.CanvasSync](t, only(t, drain(t, a), ws.EventCanvasSync))

	require.Len(t, syncA.Sessions, 1)
	own := syncA.Sessions[0]
	assert.Equal(t, "#10B981", own.Color)
	assert.Equal(t, 0.0, own.CursorX)
	assert.Equal(t, 0.0, own.CursorY)
	assert.Equal(t, "User a", own.UserName)
	assert.Equal(t, "demo", engine.hub.RoomOf(a))
	assert.Equal(t, "demo", a.CanvasId())
}

func TestJoin_ConcurrentJoinsCreateOneCanvas(t *testing.T) {
	engine := newTestEngine(t)

	const connections = 8
	clients := make([]*Client, connections)
	for i := range clients {
		clients[i] = engine.connect(fmt.Sprintf("conn-%d", i))
	}

	var wg sync.WaitGroup
	for i, client := range clients {
		wg.Add(1)
		go func(index int, client *Client) {
			defer wg.Done()
			engine.join(t, client, "shared", fmt.Sprintf("user-%d", index))
		}(i, client)
	}
	wg.Wait()

	var createdAt int64
	for _, client := range clients {
		messages := drain(t, client)
		require.Contains(t, eventNames(messages), ws.EventCanvasSync)
		for _, message := range messages {
			if message.Event != ws.EventCanvasSync {
				continue
			}
			snapshot := decodeData[ws.CanvasSync](t, message)
			if createdAt == 0 {
				createdAt = snapshot.Canvas.CreatedAt
			}
			assert.Equal(t, createdAt, snapshot.Canvas.CreatedAt)
		}
	}

	sessions, err := engine.registry.ListByCanvas(context.Background(), "shared")
	require.NoError(t, err)
	assert.Len(t, sessions, connections)
	assert.Equal(t, connections, engine.hub.RoomSize("shared"))
}

// gatedObjectStore parks the first object listing after arm until release
// is closed.
type gatedObjectStore struct {
	*db.MemoryDataStore
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedObjectStore(store *db.MemoryDataStore) *gatedObjectStore {
	return &gatedObjectStore{
		MemoryDataStore: store,
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
}

func (g *gatedObjectStore) GetObjectsByCanvas(ctx context.Context, canvasId string) ([]canvas.CanvasObject, error) {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.MemoryDataStore.GetObjectsByCanvas(ctx, canvasId)
}

func TestJoin_AddDuringSnapshotArrivesAfterCanvasSync(t *testing.T) {
	engine := newTestEngine(t)
	gated := newGatedObjectStore(engine.store)
	engine.handler.canvasManager = canvasManager.NewManager(gated, validator.New(validator.WithRequiredStructEnabled()), 1000, zap.NewNop().Sugar())

	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, a, "demo", "u1")
	drain(t, a)

	joinRaw, err := json.Marshal(ws.OutgoingMessage{Event: ws.EventJoinCanvas, Data: ws.JoinCanvas{CanvasId: "demo", UserId: "u2", UserName: "Two"}})
	require.NoError(t, err)
	addRaw, err := json.Marshal(ws.OutgoingMessage{Event: ws.EventObjectAdd, Data: ws.ObjectAdd{CanvasId: "demo", Object: rect(1, 2, 3, 4)}})
	require.NoError(t, err)

	gated.armed.Store(true)
	joined := make(chan struct{})
	go func() {
		engine.handler.HandleMessage(context.Background(), b, joinRaw)
		close(joined)
	}()

	select {
	case <-gated.entered:
	case <-time.After(time.Second):
		t.Fatal("join never read the snapshot")
	}

	added := make(chan struct{})
	go func() {
		engine.handler.HandleMessage(context.Background(), a, addRaw)
		close(added)
	}()
	// let the add reach the room before the snapshot completes
	time.Sleep(50 * time.Millisecond)
	close(gated.release)

	for _, done := range []chan struct{}{joined, added} {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not finish")
		}
	}

	messages := drain(t, b)
	require.Equal(t, []string{ws.EventCanvasSync, ws.EventObjectAdd}, eventNames(messages))

	view := map[string]bool{}
	for _, object := range decodeData[ws.CanvasSync](t, messages[0]).Objects {
		view[object.Id] = true
	}
	view[decodeData[ws.ObjectChanged](t, messages[1]).Object.Id] = true

	stored, err := engine.manager.ListObjects(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, map[string]bool{stored[0].Id: true}, view)
}

func TestJoin_EvictsStaleSessionOfSameUser(t *testing.T) {
	engine := newTestEngine(t)
	first := engine.connect("conn-first")
	peer := engine.connect("conn-peer")
	second := engine.connect("conn-second")

	engine.join(t, first, "demo", "u1")
	engine.join(t, peer, "demo", "u2")
	drain(t, first)
	drain(t, peer)

	// page refresh: same user, new connection, no leave
	engine.join(t, second, "demo", "u1")

	peerMessages := drain(t, peer)
	require.Equal(t, []string{ws.EventUserLeft, ws.EventUserJoined}, eventNames(peerMessages))
	assert.Equal(t, "conn-first", decodeData[ws.UserLeft](t, peerMessages[0]).SessionId)
	assert.Equal(t, "conn-second", decodeData[ws.UserJoined](t, peerMessages[1]).Session.Id)

	snapshot := decodeData[ws.CanvasSync](t, only(t, drain(t, second), ws.EventCanvasSync))
	sessionIds := make([]string, 0, len(snapshot.Sessions))
	for _, s := range snapshot.Sessions {
		sessionIds = append(sessionIds, s.Id)
	}
	assert.ElementsMatch(t, []string{"conn-peer", "conn-second"}, sessionIds)

	staleSession, err := engine.registry.Get(context.Background(), "conn-first")
	require.NoError(t, err)
	assert.Nil(t, staleSession)
	assert.Equal(t, "", engine.hub.RoomOf(first))
	assert.Empty(t, drain(t, first))

	engine.send(t, first, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(0, 0, 1, 1)})
	requireError(t, first, exception.CodeSessionNotFound)

	// the stale connection going away later must not announce anything
	engine.handler.HandleDisconnect(context.Background(), first)
	assert.Empty(t, drain(t, peer))
}

func TestJoin_InvalidPayload(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")

	engine.send(t, a, ws.EventJoinCanvas, map[string]string{"canvasId": "demo"})

	requireError(t, a, exception.CodeValidation)
	assert.Equal(t, "", a.CanvasId())
	_, err := engine.manager.GetCanvas(context.Background(), "demo")
	assert.Equal(t, exception.KindNotFound, exception.KindOf(err))
}

func TestJoin_CapacityCap(t *testing.T) {
	engine := newTestEngine(t, func(s *settings.Settings) {
		s.Canvas.MaxActiveUsers = 1
	})
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")

	engine.join(t, a, "demo", "u1")
	drain(t, a)
	engine.join(t, b, "demo", "u2")

	requireError(t, b, exception.CodeCanvasFull)
	assert.Equal(t, "", b.CanvasId())
	assert.Empty(t, drain(t, a))

	// the same user reconnecting replaces its own session
	engine.join(t, b, "demo", "u1")
	assert.Equal(t, []string{ws.EventCanvasSync}, eventNames(drain(t, b)))
}

func TestJoin_SwitchingCanvasLeavesPreviousRoom(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	peer := engine.connect("conn-peer")

	engine.join(t, a, "first", "u1")
	engine.join(t, peer, "first", "u2")
	drain(t, a)
	drain(t, peer)

	engine.join(t, a, "second", "u1")

	left := decodeData[ws.UserLeft](t, only(t, drain(t, peer), ws.EventUserLeft))
	assert.Equal(t, "conn-a", left.SessionId)
	assert.Equal(t, []string{ws.EventCanvasSync}, eventNames(drain(t, a)))
	assert.Equal(t, "second", engine.hub.RoomOf(a))

	retrieved, err := engine.registry.Get(context.Background(), "conn-a")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, "second", retrieved.CanvasId)
}

func TestObjectAdd_BroadcastCompleteness(t *testing.T) {
	engine := newTestEngine(t)
	room := []*Client{engine.connect("conn-1"), engine.connect("conn-2"), engine.connect("conn-3")}
	outsider := engine.connect("conn-out")

	for i, client := range room {
		engine.join(t, client, "demo", fmt.Sprintf("u%d", i))
	}
	engine.join(t, outsider, "elsewhere", "u-out")
	for _, client := range append(room, outsider) {
		drain(t, client)
	}

	engine.send(t, room[1], ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(1, 2, 3, 4)})

	deliveries := 0
	for _, client := range room {
		added := decodeData[ws.ObjectChanged](t, only(t, drain(t, client), ws.EventObjectAdd))
		assert.Equal(t, "conn-2", added.SessionId)
		deliveries++
	}
	assert.Equal(t, len(room), deliveries)
	assert.Empty(t, drain(t, outsider))
}

func TestObjectAdd_KeepsClientIdAndOrdersZIndex(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	engine.join(t, a, "demo", "u1")
	drain(t, a)

	for _, id := range []string{"A", "B", "C"} {
		object := rect(0, 0, 10, 10)
		object.Id = id
		engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: object})
		added := decodeData[ws.ObjectChanged](t, only(t, drain(t, a), ws.EventObjectAdd))
		assert.Equal(t, id, added.Object.Id)
	}

	objects, err := engine.manager.ListObjects(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, objects, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{objects[0].Id, objects[1].Id, objects[2].Id})
	assert.Less(t, objects[0].ZIndex, objects[1].ZIndex)
	assert.Less(t, objects[1].ZIndex, objects[2].ZIndex)
}

func TestObjectAdd_LimitExceeded(t *testing.T) {
	engine := newTestEngine(t, func(s *settings.Settings) {
		s.Canvas.MaxObjects = 2
	})
	a := engine.connect("conn-a")
	peer := engine.connect("conn-peer")
	engine.join(t, a, "demo", "u1")
	engine.join(t, peer, "demo", "u2")

	for i := 0; i < 2; i++ {
		engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(0, 0, 1, 1)})
	}
	drain(t, a)
	drain(t, peer)

	engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(0, 0, 1, 1)})

	requireError(t, a, exception.CodeCanvasLimitExceeded)
	assert.Empty(t, drain(t, peer))
	count, err := engine.manager.Count(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestObjectAdd_RequiresJoinedCanvas(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")

	engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(0, 0, 1, 1)})
	requireError(t, a, exception.CodeSessionNotFound)

	engine.join(t, a, "demo", "u1")
	drain(t, a)
	engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "other", Object: rect(0, 0, 1, 1)})
	requireError(t, a, exception.CodeNotInCanvas)

	engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: canvas.CanvasObject{Type: "hexagon"}})
	requireError(t, a, exception.CodeValidation)
}

func TestObjectUpdate(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, a, "demo", "u1")
	engine.join(t, b, "demo", "u2")
	engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(10, 10, 100, 50)})
	added := decodeData[ws.ObjectChanged](t, only(t, drain(t, a)[2:], ws.EventObjectAdd))
	drain(t, b)

	x := 42.0
	fill := "#ff0000"
	engine.send(t, b, ws.EventObjectUpdate, ws.ObjectUpdate{
		CanvasId: "demo",
		ObjectId: added.Object.Id,
		Updates:  canvas.ObjectUpdate{X: &x, FillColor: &fill},
	})

	for _, client := range []*Client{a, b} {
		updated := decodeData[ws.ObjectChanged](t, only(t, drain(t, client), ws.EventObjectUpdate))
		assert.Equal(t, "conn-b", updated.SessionId)
		assert.Equal(t, 42.0, updated.Object.X)
		assert.Equal(t, 10.0, updated.Object.Y)
		assert.Equal(t, "#ff0000", updated.Object.FillColor)
		assert.Equal(t, "u1", updated.Object.CreatedBy)
	}
}

func TestObjectUpdate_MissingObjectIsPrivate(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, a, "demo", "u1")
	engine.join(t, b, "demo", "u2")
	drain(t, a)
	drain(t, b)

	x := 1.0
	engine.send(t, a, ws.EventObjectUpdate, ws.ObjectUpdate{CanvasId: "demo", ObjectId: "deleted-by-peer", Updates: canvas.ObjectUpdate{X: &x}})

	requireError(t, a, exception.CodeObjectNotFound)
	assert.Empty(t, drain(t, b))
}

func TestObjectUpdate_ObjectOfOtherCanvas(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, a, "first", "u1")
	engine.join(t, b, "second", "u2")
	engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "first", Object: rect(0, 0, 1, 1)})
	added := decodeData[ws.ObjectChanged](t, drain(t, a)[1])
	drain(t, b)

	x := 99.0
	engine.send(t, b, ws.EventObjectUpdate, ws.ObjectUpdate{CanvasId: "second", ObjectId: added.Object.Id, Updates: canvas.ObjectUpdate{X: &x}})
	requireError(t, b, exception.CodeObjectNotFound)

	engine.send(t, b, ws.EventObjectDelete, ws.ObjectDelete{CanvasId: "second", ObjectId: added.Object.Id})
	requireError(t, b, exception.CodeObjectNotFound)

	object, err := engine.manager.GetObject(context.Background(), added.Object.Id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, object.X)
}

func TestObjectDelete_Idempotent(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	engine.join(t, a, "demo", "u1")
	drain(t, a)

	engine.send(t, a, ws.EventObjectDelete, ws.ObjectDelete{CanvasId: "demo", ObjectId: "never-existed"})

	deleted := decodeData[ws.ObjectDeleted](t, only(t, drain(t, a), ws.EventObjectDelete))
	assert.Equal(t, "never-existed", deleted.ObjectId)
}

func TestClearCanvas(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, a, "demo", "u1")
	engine.join(t, b, "demo", "u2")
	for i := 0; i < 3; i++ {
		engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(0, 0, 1, 1)})
	}
	drain(t, a)
	drain(t, b)

	engine.send(t, b, ws.EventClearCanvas, ws.ClearCanvas{CanvasId: "demo"})

	for _, client := range []*Client{a, b} {
		cleared := decodeData[ws.CanvasCleared](t, only(t, drain(t, client), ws.EventClearCanvas))
		assert.Equal(t, "conn-b", cleared.SessionId)
	}
	count, err := engine.manager.Count(context.Background(), "demo")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCursorMove(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, a, "demo", "u1")
	engine.join(t, b, "demo", "u2")
	drain(t, a)
	drain(t, b)

	engine.send(t, a, ws.EventCursorMove, ws.CursorMove{CanvasId: "demo", X: 120.5, Y: 80})

	assert.Empty(t, drain(t, a))
	moved := decodeData[ws.CursorMoved](t, only(t, drain(t, b), ws.EventCursorMove))
	assert.Equal(t, ws.CursorMoved{SessionId: "conn-a", X: 120.5, Y: 80}, moved)

	retrieved, err := engine.registry.Get(context.Background(), "conn-a")
	require.NoError(t, err)
	assert.Equal(t, 120.5, retrieved.CursorX)
	assert.Equal(t, 80.0, retrieved.CursorY)
}

func TestCursorMove_IgnoredWhenNotJoined(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, b, "demo", "u2")
	drain(t, b)

	engine.send(t, a, ws.EventCursorMove, ws.CursorMove{CanvasId: "demo", X: 1, Y: 1})

	assert.Empty(t, drain(t, a))
	assert.Empty(t, drain(t, b))
}

func TestLeave(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, a, "demo", "u1")
	engine.join(t, b, "demo", "u2")
	drain(t, a)
	drain(t, b)

	engine.send(t, a, ws.EventLeaveCanvas, ws.LeaveCanvas{CanvasId: "demo"})

	left := decodeData[ws.UserLeft](t, only(t, drain(t, b), ws.EventUserLeft))
	assert.Equal(t, "conn-a", left.SessionId)
	assert.Empty(t, drain(t, a))
	assert.Equal(t, 1, engine.hub.RoomSize("demo"))

	retrieved, err := engine.registry.Get(context.Background(), "conn-a")
	require.NoError(t, err)
	assert.Nil(t, retrieved)

	engine.send(t, a, ws.EventLeaveCanvas, ws.LeaveCanvas{CanvasId: "demo"})
	assert.Empty(t, drain(t, b))
}

type failingSessionDelete struct {
	*db.MemoryDataStore
}

func (f failingSessionDelete) DeleteSession(context.Context, string) error {
	return errors.New("connection reset")
}

func TestLeave_DropsMembershipWhenStoreFails(t *testing.T) {
	engine := newTestEngine(t)
	logger := zap.NewNop().Sugar()
	engine.handler.sessions = session.NewRegistry(failingSessionDelete{engine.store}, logger)

	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, a, "demo", "u1")
	engine.join(t, b, "demo", "u2")
	drain(t, b)

	engine.handler.HandleDisconnect(context.Background(), a)

	assert.Equal(t, []string{ws.EventUserLeft}, eventNames(drain(t, b)))
	assert.Equal(t, "", engine.hub.RoomOf(a))
	assert.Equal(t, 1, engine.hub.RoomSize("demo"))
}

func TestDisconnect_CleansUpWithoutLeave(t *testing.T) {
	engine := newTestEngine(t)
	go engine.hub.Run()

	conn := NewMockWebSocketConn()
	a := NewClient(engine.hub, conn, engine.handler, 16)
	b := engine.connect("conn-b")

	served := make(chan struct{})
	go func() {
		a.Serve(context.Background(), engine.settings, zap.NewNop().Sugar())
		close(served)
	}()

	raw, err := json.Marshal(ws.OutgoingMessage{Event: ws.EventJoinCanvas, Data: ws.JoinCanvas{CanvasId: "demo", UserId: "u1", UserName: "One"}})
	require.NoError(t, err)
	conn.Deliver(raw)

	require.Eventually(t, func() bool {
		return len(conn.Written()) == 1
	}, time.Second, 5*time.Millisecond)
	var first ws.EventMessage
	require.NoError(t, json.Unmarshal(conn.Written()[0], &first))
	assert.Equal(t, ws.EventCanvasSync, first.Event)

	engine.join(t, b, "demo", "u2")
	drain(t, b)

	// kill the transport, no leave_canvas
	require.NoError(t, conn.Close())

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("connection was not torn down")
	}
	left := decodeData[ws.UserLeft](t, only(t, drain(t, b), ws.EventUserLeft))
	assert.Equal(t, a.SessionId, left.SessionId)

	retrieved, err := engine.registry.Get(context.Background(), a.SessionId)
	require.NoError(t, err)
	assert.Nil(t, retrieved)
	assert.Eventually(t, func() bool {
		return engine.hub.ClientBySession(a.SessionId) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestExpiredSessionsAreSweptWhileConnectionStaysOpen(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, a, "demo", "u1")
	time.Sleep(150 * time.Millisecond)
	engine.join(t, b, "demo", "u2")
	drain(t, a)
	drain(t, b)

	sweeper := session.NewSweeper(engine.registry, 100*time.Millisecond, time.Hour, zap.NewNop().Sugar())
	sweeper.OnExpired(engine.handler.HandleExpiredSessions)
	sweeper.Sweep(context.Background())

	left := decodeData[ws.UserLeft](t, only(t, drain(t, b), ws.EventUserLeft))
	assert.Equal(t, "conn-a", left.SessionId)
	assert.False(t, a.Conn.(*MockWebSocketConn).IsClosed())
	assert.Equal(t, "", a.CanvasId())

	retrieved, err := engine.registry.Get(context.Background(), "conn-a")
	require.NoError(t, err)
	assert.Nil(t, retrieved)

	engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(0, 0, 1, 1)})
	requireError(t, a, exception.CodeSessionNotFound)
}

func TestRateLimiting(t *testing.T) {
	engine := newTestEngine(t, func(s *settings.Settings) {
		s.RateLimiting = settings.RateLimiting{Duration: 60, Points: 2}
	})
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, b, "demo", "u2")
	engine.join(t, a, "demo", "u1")
	drain(t, a)
	drain(t, b)

	engine.send(t, a, ws.EventCursorMove, ws.CursorMove{CanvasId: "demo", X: 1, Y: 1})
	assert.Equal(t, []string{ws.EventCursorMove}, eventNames(drain(t, b)))

	engine.send(t, a, ws.EventCursorMove, ws.CursorMove{CanvasId: "demo", X: 2, Y: 2})
	assert.Empty(t, drain(t, a))
	assert.Empty(t, drain(t, b))

	engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(0, 0, 1, 1)})
	requireError(t, a, exception.CodeRateLimited)
}

func TestRateLimiting_DisabledInLoadTest(t *testing.T) {
	engine := newTestEngine(t, func(s *settings.Settings) {
		s.RateLimiting = settings.RateLimiting{Duration: 60, Points: 1}
		s.LoadTest = true
	})
	a := engine.connect("conn-a")
	engine.join(t, a, "demo", "u1")
	drain(t, a)

	for i := 0; i < 5; i++ {
		engine.send(t, a, ws.EventObjectAdd, ws.ObjectAdd{CanvasId: "demo", Object: rect(0, 0, 1, 1)})
	}
	assert.Len(t, drain(t, a), 5)
}

func TestAIAnalyze_IsPrivate(t *testing.T) {
	engine := newTestEngine(t)
	engine.analyzer.statuses = []string{ai.StatusAnalyzing, ai.StatusComplete}
	engine.analyzer.result = &aiModel.AnalysisResult{
		DetectedComponents: []string{"panel"},
		LayoutStructure:    "Panel",
		Confidence:         0.8,
	}
	a := engine.connect("conn-a")
	b := engine.connect("conn-b")
	engine.join(t, a, "demo", "u1")
	engine.join(t, b, "demo", "u2")
	drain(t, a)
	drain(t, b)

	engine.send(t, a, ws.EventAIAnalyze, ws.AIAnalyze{ImageBase64: "aGVsbG8="})
	engine.handler.WaitForAnalyses()

	messages := drain(t, a)
	require.Equal(t, []string{ws.EventAIProgress, ws.EventAIProgress, ws.EventAIResult}, eventNames(messages))
	assert.Equal(t, ai.StatusAnalyzing, decodeData[ws.AIProgress](t, messages[0]).Status)
	result := decodeData[aiModel.AnalysisResult](t, messages[2])
	assert.Equal(t, []string{"panel"}, result.DetectedComponents)
	assert.Empty(t, drain(t, b))
}

func TestAIAnalyze_Error(t *testing.T) {
	engine := newTestEngine(t)
	engine.analyzer.err = exception.NewServiceUnavailableError("AI Service not configured. Please set OPENAI_API_KEY in environment variables.", nil)
	a := engine.connect("conn-a")

	engine.send(t, a, ws.EventAIAnalyze, ws.AIAnalyze{})
	engine.handler.WaitForAnalyses()

	aiError := decodeData[ws.AIError](t, only(t, drain(t, a), ws.EventAIError))
	assert.Equal(t, exception.CodeAIUnavailable, aiError.Code)
	assert.Contains(t, aiError.Error, "OPENAI_API_KEY")
}

type blockingAnalyzer struct {
	started chan struct{}
	stopped chan error
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, _ string, _ ai.ProgressFunc) (*aiModel.AnalysisResult, error) {
	close(b.started)
	<-ctx.Done()
	b.stopped <- ctx.Err()
	return nil, ctx.Err()
}

func (b *blockingAnalyzer) Available() bool {
	return true
}

func TestAIAnalyze_CancelledWhenConnectionCloses(t *testing.T) {
	engine := newTestEngine(t)
	go engine.hub.Run()
	analyzer := &blockingAnalyzer{started: make(chan struct{}), stopped: make(chan error, 1)}
	engine.handler.analyzer = analyzer

	conn := NewMockWebSocketConn()
	client := NewClient(engine.hub, conn, engine.handler, 16)
	served := make(chan struct{})
	go func() {
		client.Serve(context.Background(), engine.settings, zap.NewNop().Sugar())
		close(served)
	}()

	raw, err := json.Marshal(ws.OutgoingMessage{Event: ws.EventAIAnalyze, Data: ws.AIAnalyze{ImageBase64: "aGVsbG8="}})
	require.NoError(t, err)
	conn.Deliver(raw)

	select {
	case <-analyzer.started:
	case <-time.After(time.Second):
		t.Fatal("analysis did not start")
	}
	require.NoError(t, conn.Close())

	select {
	case err := <-analyzer.stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("analysis kept running after the connection closed")
	}
	<-served
	engine.handler.WaitForAnalyses()
}

func TestHandleMessage_MalformedAndUnknown(t *testing.T) {
	engine := newTestEngine(t)
	a := engine.connect("conn-a")

	engine.handler.HandleMessage(context.Background(), a, []byte("not json"))
	requireError(t, a, exception.CodeValidation)

	engine.send(t, a, "draw_unicorn", map[string]string{})
	assert.Empty(t, drain(t, a))
}
