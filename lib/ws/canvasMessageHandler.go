package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sketchbridge/sketchbridge-go/lib/ai"
	canvasManager "github.com/sketchbridge/sketchbridge-go/lib/canvas"
	"github.com/sketchbridge/sketchbridge-go/lib/exception"
	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
	"github.com/sketchbridge/sketchbridge-go/lib/models/ws"
	"github.com/sketchbridge/sketchbridge-go/lib/session"
	"github.com/sketchbridge/sketchbridge-go/lib/settings"
	"github.com/sketchbridge/sketchbridge-go/lib/utils"
	"github.com/sketchbridge/sketchbridge-go/lib/ws/ratelimiter"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

var knownEvents = map[string]struct{}{
	ws.EventJoinCanvas:   {},
	ws.EventLeaveCanvas:  {},
	ws.EventCursorMove:   {},
	ws.EventObjectAdd:    {},
	ws.EventObjectUpdate: {},
	ws.EventObjectDelete: {},
	ws.EventClearCanvas:  {},
	ws.EventAIAnalyze:    {},
}

// CanvasMessageHandler drives the per connection lifecycle: join, cursor and
// object events, leave and disconnect. Messages of one connection are handled
// in arrival order by its read goroutine.
//
// Every change to a room is persisted and broadcast under that room's read
// lock. A join takes the write lock while it enters the room, reads the
// snapshot and queues canvas_sync, so a joiner sees each change either in its
// snapshot or as an event queued after it.
type CanvasMessageHandler struct {
	hub            *Hub
	canvasManager  *canvasManager.Manager
	sessions       *session.Registry
	analyzer       ai.Analyzer
	validator      *validator.Validate
	rateLimiter    *ratelimiter.RateLimiter
	maxActiveUsers int
	metrics        *Metrics
	logger         *zap.SugaredLogger
	aiTasks        conc.WaitGroup

	roomLocksMu sync.Mutex
	roomLocks   map[string]*sync.RWMutex
}

func NewCanvasMessageHandler(
	hub *Hub,
	manager *canvasManager.Manager,
	sessions *session.Registry,
	analyzer ai.Analyzer,
	validate *validator.Validate,
	retrievedSettings *settings.Settings,
	logger *zap.SugaredLogger,
) *CanvasMessageHandler {
	limiting := retrievedSettings.RateLimiting
	limiting.LoadTest = limiting.LoadTest || retrievedSettings.LoadTest

	handler := &CanvasMessageHandler{
		hub:            hub,
		canvasManager:  manager,
		sessions:       sessions,
		analyzer:       analyzer,
		validator:      validate,
		rateLimiter:    ratelimiter.NewRateLimiter(limiting),
		maxActiveUsers: retrievedSettings.Canvas.MaxActiveUsers,
		metrics:        NewMetrics(),
		logger:         logger,
		roomLocks:      make(map[string]*sync.RWMutex),
	}
	hub.OnDrop = handler.onDrop
	return handler
}

func (h *CanvasMessageHandler) Hub() *Hub {
	return h.hub
}

func (h *CanvasMessageHandler) Metrics() *Metrics {
	return h.metrics
}

// WaitForAnalyses blocks until every running ai_analyze request finished.
func (h *CanvasMessageHandler) WaitForAnalyses() {
	h.aiTasks.Wait()
}

func (h *CanvasMessageHandler) roomLock(canvasId string) *sync.RWMutex {
	h.roomLocksMu.Lock()
	defer h.roomLocksMu.Unlock()
	lock, ok := h.roomLocks[canvasId]
	if !ok {
		lock = &sync.RWMutex{}
		h.roomLocks[canvasId] = lock
	}
	return lock
}

func decodePayload[T any](validate *validator.Validate, data json.RawMessage) (T, error) {
	var payload T
	if len(data) == 0 {
		return payload, exception.NewValidationError("missing payload", nil)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, exception.NewValidationError("malformed payload", err)
	}
	if err := validate.Struct(payload); err != nil {
		return payload, exception.NewValidationError("invalid payload", err)
	}
	return payload, nil
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(ws.OutgoingMessage{Event: event, Data: data})
}

func (h *CanvasMessageHandler) sendTo(client *Client, event string, data any) {
	message, err := encode(event, data)
	if err != nil {
		h.logger.Errorw("Error encoding message", "event", event, "error", err)
		return
	}
	h.hub.SendTo(client, message)
}

func (h *CanvasMessageHandler) broadcast(canvasId string, event string, data any, skip *Client) {
	message, err := encode(event, data)
	if err != nil {
		h.logger.Errorw("Error encoding message", "event", event, "error", err)
		return
	}
	h.hub.BroadcastToRoom(canvasId, message, skip)
}

// sendError replies privately. Unexpected errors are logged and reported
// with a generic message and the fallback code.
func (h *CanvasMessageHandler) sendError(client *Client, err error, fallbackCode string) {
	code := exception.CodeOf(err, fallbackCode)
	message := "Internal server error"
	var appErr *exception.AppError
	if errors.As(err, &appErr) && appErr.Kind != exception.KindUnexpected {
		message = appErr.Message
	} else {
		h.logger.Errorw("Unexpected error handling socket event", "sessionId", client.SessionId, "code", code, "error", err)
	}
	h.metrics.errorsTotal.WithLabelValues(code).Inc()
	h.sendTo(client, ws.EventError, ws.ErrorMessage{Message: message, Code: code})
}

// HandleMessage decodes one frame and dispatches it.
func (h *CanvasMessageHandler) HandleMessage(ctx context.Context, client *Client, raw []byte) {
	var message ws.EventMessage
	if err := json.Unmarshal(raw, &message); err != nil {
		h.logger.Debugw("Error unmarshalling socket message", "sessionId", client.SessionId, "error", err)
		h.sendError(client, exception.NewValidationError("malformed message", err), exception.CodeValidation)
		return
	}

	label := message.Event
	if _, ok := knownEvents[label]; !ok {
		label = "unknown"
	}
	h.metrics.eventsTotal.WithLabelValues(label).Inc()

	if err := h.rateLimiter.Check(ratelimiter.Key(client.SessionId)); err != nil {
		if message.Event == ws.EventCursorMove {
			return
		}
		h.sendError(client, exception.NewRateLimitedError(), exception.CodeRateLimited)
		return
	}

	switch message.Event {
	case ws.EventJoinCanvas:
		h.handleJoin(ctx, client, message.Data)
	case ws.EventLeaveCanvas:
		h.handleLeave(ctx, client)
	case ws.EventCursorMove:
		h.handleCursorMove(ctx, client, message.Data)
	case ws.EventObjectAdd:
		h.handleObjectAdd(ctx, client, message.Data)
	case ws.EventObjectUpdate:
		h.handleObjectUpdate(ctx, client, message.Data)
	case ws.EventObjectDelete:
		h.handleObjectDelete(ctx, client, message.Data)
	case ws.EventClearCanvas:
		h.handleClearCanvas(ctx, client, message.Data)
	case ws.EventAIAnalyze:
		h.handleAIAnalyze(ctx, client, message.Data)
	default:
		h.logger.Debugw("Unknown socket event", "event", message.Event, "sessionId", client.SessionId)
	}
}

func (h *CanvasMessageHandler) handleJoin(ctx context.Context, client *Client, data json.RawMessage) {
	request, err := decodePayload[ws.JoinCanvas](h.validator, data)
	if err != nil {
		h.sendError(client, err, exception.CodeJoinCanvas)
		return
	}

	// A connection is in at most one room.
	h.leave(ctx, client)

	if err := h.join(ctx, client, request); err != nil {
		h.sendError(client, err, exception.CodeJoinCanvas)
	}
}

func (h *CanvasMessageHandler) join(ctx context.Context, client *Client, request ws.JoinCanvas) error {
	if _, err := h.canvasManager.GetOrCreate(ctx, request.CanvasId, request.UserId, request.CanvasName); err != nil {
		return err
	}

	lock := h.roomLock(request.CanvasId)
	lock.Lock()
	defer lock.Unlock()

	if err := h.evictStaleSessions(ctx, request.UserId, request.CanvasId, client); err != nil {
		return err
	}

	if h.maxActiveUsers > 0 && h.hub.RoomSize(request.CanvasId) >= h.maxActiveUsers {
		return exception.NewCanvasFullError(request.CanvasId, h.maxActiveUsers)
	}

	createdSession, err := h.sessions.Create(ctx, canvas.Session{
		Id:       client.SessionId,
		UserId:   request.UserId,
		UserName: request.UserName,
		CanvasId: request.CanvasId,
		CursorX:  0,
		CursorY:  0,
		Color:    utils.ColorForUser(request.UserId),
	})
	if err != nil {
		return err
	}

	h.hub.JoinRoom(client, request.CanvasId)
	client.setCanvasId(request.CanvasId)

	snapshot, err := h.snapshot(ctx, request.CanvasId)
	if err != nil {
		h.rollbackJoin(ctx, client)
		return err
	}

	h.sendTo(client, ws.EventCanvasSync, snapshot)
	h.broadcast(request.CanvasId, ws.EventUserJoined, ws.UserJoined{Session: *createdSession}, client)

	h.logger.Infow("User joined canvas",
		"canvasId", request.CanvasId,
		"userId", request.UserId,
		"sessionId", client.SessionId)
	return nil
}

// evictStaleSessions removes earlier sessions of the same user on the canvas,
// left behind by a refresh or a half open socket.
func (h *CanvasMessageHandler) evictStaleSessions(ctx context.Context, userId string, canvasId string, client *Client) error {
	stale, err := h.sessions.ListByUserAndCanvas(ctx, userId, canvasId)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	if _, err := h.sessions.DeleteByUserAndCanvas(ctx, userId, canvasId); err != nil {
		return err
	}

	for _, staleSession := range stale {
		if staleClient := h.hub.ClientBySession(staleSession.Id); staleClient != nil && staleClient != client {
			if staleClient.takeCanvasId() != "" {
				h.hub.LeaveRoom(staleClient)
			}
		}
		h.broadcast(canvasId, ws.EventUserLeft, ws.UserLeft{SessionId: staleSession.Id}, client)
		h.logger.Debugw("Evicted stale session", "canvasId", canvasId, "userId", userId, "sessionId", staleSession.Id)
	}
	return nil
}

func (h *CanvasMessageHandler) snapshot(ctx context.Context, canvasId string) (ws.CanvasSync, error) {
	retrievedCanvas, objects, err := h.canvasManager.Sync(ctx, canvasId)
	if err != nil {
		return ws.CanvasSync{}, err
	}
	sessions, err := h.sessions.ListByCanvas(ctx, canvasId)
	if err != nil {
		return ws.CanvasSync{}, err
	}
	return ws.CanvasSync{
		Canvas:   *retrievedCanvas,
		Objects:  objects,
		Sessions: sessions,
	}, nil
}

func (h *CanvasMessageHandler) rollbackJoin(ctx context.Context, client *Client) {
	client.takeCanvasId()
	h.hub.LeaveRoom(client)
	if err := h.sessions.Delete(ctx, client.SessionId); err != nil {
		h.logger.Warnw("Error rolling back session", "sessionId", client.SessionId, "error", err)
	}
}

// leave deletes the connection's session and tells the rest of the room.
// Room membership is dropped even when the store delete fails.
func (h *CanvasMessageHandler) leave(ctx context.Context, client *Client) {
	canvasId := client.takeCanvasId()
	if canvasId == "" {
		return
	}
	h.hub.LeaveRoom(client)

	lock := h.roomLock(canvasId)
	lock.RLock()
	defer lock.RUnlock()

	if err := h.sessions.Delete(ctx, client.SessionId); err != nil {
		h.logger.Errorw("Error deleting session", "sessionId", client.SessionId, "canvasId", canvasId, "error", err)
	}
	h.broadcast(canvasId, ws.EventUserLeft, ws.UserLeft{SessionId: client.SessionId}, client)
	h.logger.Infow("User left canvas", "canvasId", canvasId, "sessionId", client.SessionId)
}

func (h *CanvasMessageHandler) handleLeave(ctx context.Context, client *Client) {
	h.leave(ctx, client)
}

// HandleDisconnect runs the leave cleanup for a transport disconnect. Calling
// it for a connection that already left is a no-op.
func (h *CanvasMessageHandler) HandleDisconnect(ctx context.Context, client *Client) {
	h.leave(ctx, client)
	h.rateLimiter.Forget(ratelimiter.Key(client.SessionId))
}

func (h *CanvasMessageHandler) onDrop(client *Client) {
	h.metrics.droppedTotal.Inc()
	h.logger.Warnw("Dropping slow socket", "sessionId", client.SessionId)
	go h.HandleDisconnect(context.Background(), client)
}

// HandleExpiredSessions is hooked into the session sweeper. Connections whose
// session expired are taken out of their room and the room is told.
func (h *CanvasMessageHandler) HandleExpiredSessions(expired []canvas.Session) {
	for _, expiredSession := range expired {
		if client := h.hub.ClientBySession(expiredSession.Id); client != nil {
			if client.takeCanvasId() != "" {
				h.hub.LeaveRoom(client)
			}
		}
		lock := h.roomLock(expiredSession.CanvasId)
		lock.RLock()
		h.broadcast(expiredSession.CanvasId, ws.EventUserLeft, ws.UserLeft{SessionId: expiredSession.Id}, nil)
		lock.RUnlock()
	}
}

// joinedSession resolves the session a mutation acts for. The connection must
// have joined canvasId.
func (h *CanvasMessageHandler) joinedSession(ctx context.Context, client *Client, canvasId string) (*canvas.Session, error) {
	joined := client.CanvasId()
	if joined == "" {
		return nil, exception.NewSessionNotFoundError(client.SessionId)
	}
	if joined != canvasId {
		return nil, exception.NewNotInCanvasError(canvasId)
	}
	retrievedSession, err := h.sessions.Get(ctx, client.SessionId)
	if err != nil {
		return nil, err
	}
	if retrievedSession == nil {
		return nil, exception.NewSessionNotFoundError(client.SessionId)
	}
	return retrievedSession, nil
}

func (h *CanvasMessageHandler) touch(ctx context.Context, client *Client) {
	if err := h.sessions.Touch(ctx, client.SessionId); err != nil {
		h.logger.Debugw("Error touching session", "sessionId", client.SessionId, "error", err)
	}
}

func (h *CanvasMessageHandler) handleCursorMove(ctx context.Context, client *Client, data json.RawMessage) {
	request, err := decodePayload[ws.CursorMove](h.validator, data)
	if err != nil {
		return
	}
	if client.CanvasId() == "" || client.CanvasId() != request.CanvasId {
		return
	}

	lock := h.roomLock(request.CanvasId)
	lock.RLock()
	defer lock.RUnlock()

	if err := h.sessions.UpdateCursor(ctx, client.SessionId, request.X, request.Y); err != nil {
		h.logger.Debugw("Ignoring cursor of unknown session", "sessionId", client.SessionId, "error", err)
		return
	}
	h.broadcast(request.CanvasId, ws.EventCursorMove, ws.CursorMoved{
		SessionId: client.SessionId,
		X:         request.X,
		Y:         request.Y,
	}, client)
}

func (h *CanvasMessageHandler) handleObjectAdd(ctx context.Context, client *Client, data json.RawMessage) {
	request, err := decodePayload[ws.ObjectAdd](h.validator, data)
	if err != nil {
		h.sendError(client, err, exception.CodeObjectAdd)
		return
	}
	author, err := h.joinedSession(ctx, client, request.CanvasId)
	if err != nil {
		h.sendError(client, err, exception.CodeObjectAdd)
		return
	}

	lock := h.roomLock(request.CanvasId)
	lock.RLock()
	defer lock.RUnlock()

	object := request.Object
	object.CanvasId = request.CanvasId
	object.CreatedBy = author.UserId
	object.UpdatedAt = 0

	created, err := h.canvasManager.AddObject(ctx, object)
	if err != nil {
		h.sendError(client, err, exception.CodeObjectAdd)
		return
	}
	h.touch(ctx, client)
	h.broadcast(request.CanvasId, ws.EventObjectAdd, ws.ObjectChanged{Object: *created, SessionId: client.SessionId}, nil)
}

func (h *CanvasMessageHandler) handleObjectUpdate(ctx context.Context, client *Client, data json.RawMessage) {
	request, err := decodePayload[ws.ObjectUpdate](h.validator, data)
	if err != nil {
		h.sendError(client, err, exception.CodeObjectUpdate)
		return
	}
	if _, err := h.joinedSession(ctx, client, request.CanvasId); err != nil {
		h.sendError(client, err, exception.CodeObjectUpdate)
		return
	}

	lock := h.roomLock(request.CanvasId)
	lock.RLock()
	defer lock.RUnlock()

	existing, err := h.canvasManager.GetObject(ctx, request.ObjectId)
	if err != nil {
		h.sendError(client, err, exception.CodeObjectUpdate)
		return
	}
	if existing.CanvasId != request.CanvasId {
		h.sendError(client, exception.NewObjectNotFoundError(request.ObjectId), exception.CodeObjectUpdate)
		return
	}

	updated, err := h.canvasManager.UpdateObject(ctx, request.ObjectId, request.Updates)
	if err != nil {
		h.sendError(client, err, exception.CodeObjectUpdate)
		return
	}
	h.touch(ctx, client)
	h.broadcast(request.CanvasId, ws.EventObjectUpdate, ws.ObjectChanged{Object: *updated, SessionId: client.SessionId}, nil)
}

func (h *CanvasMessageHandler) handleObjectDelete(ctx context.Context, client *Client, data json.RawMessage) {
	request, err := decodePayload[ws.ObjectDelete](h.validator, data)
	if err != nil {
		h.sendError(client, err, exception.CodeObjectDelete)
		return
	}
	if _, err := h.joinedSession(ctx, client, request.CanvasId); err != nil {
		h.sendError(client, err, exception.CodeObjectDelete)
		return
	}

	lock := h.roomLock(request.CanvasId)
	lock.RLock()
	defer lock.RUnlock()

	existing, err := h.canvasManager.GetObject(ctx, request.ObjectId)
	if err != nil && exception.KindOf(err) != exception.KindNotFound {
		h.sendError(client, err, exception.CodeObjectDelete)
		return
	}
	if existing != nil && existing.CanvasId != request.CanvasId {
		h.sendError(client, exception.NewObjectNotFoundError(request.ObjectId), exception.CodeObjectDelete)
		return
	}

	if err := h.canvasManager.DeleteObject(ctx, request.ObjectId); err != nil {
		h.sendError(client, err, exception.CodeObjectDelete)
		return
	}
	h.touch(ctx, client)
	h.broadcast(request.CanvasId, ws.EventObjectDelete, ws.ObjectDeleted{ObjectId: request.ObjectId, SessionId: client.SessionId}, nil)
}

func (h *CanvasMessageHandler) handleClearCanvas(ctx context.Context, client *Client, data json.RawMessage) {
	request, err := decodePayload[ws.ClearCanvas](h.validator, data)
	if err != nil {
		h.sendError(client, err, exception.CodeClearCanvas)
		return
	}
	if _, err := h.joinedSession(ctx, client, request.CanvasId); err != nil {
		h.sendError(client, err, exception.CodeClearCanvas)
		return
	}

	lock := h.roomLock(request.CanvasId)
	lock.RLock()
	defer lock.RUnlock()

	deleted, err := h.canvasManager.DeleteAllObjects(ctx, request.CanvasId)
	if err != nil {
		h.sendError(client, err, exception.CodeClearCanvas)
		return
	}
	h.touch(ctx, client)
	h.broadcast(request.CanvasId, ws.EventClearCanvas, ws.CanvasCleared{SessionId: client.SessionId}, nil)
	h.logger.Infow("Canvas cleared", "canvasId", request.CanvasId, "sessionId", client.SessionId, "deleted", deleted)
}

// handleAIAnalyze runs the analysis on its own goroutine. Progress and the
// outcome are sent to the requesting connection only.
func (h *CanvasMessageHandler) handleAIAnalyze(ctx context.Context, client *Client, data json.RawMessage) {
	var request ws.AIAnalyze
	if len(data) > 0 {
		if err := json.Unmarshal(data, &request); err != nil {
			h.sendTo(client, ws.EventAIError, ws.AIError{Error: "malformed payload", Code: exception.CodeValidation})
			return
		}
	}

	h.aiTasks.Go(func() {
		result, err := h.analyzer.Analyze(ctx, request.ImageBase64, func(status string) {
			h.sendTo(client, ws.EventAIProgress, ws.AIProgress{Status: status})
		})
		if err != nil {
			message := "AI analysis failed"
			var appErr *exception.AppError
			if errors.As(err, &appErr) {
				message = appErr.Message
			}
			h.sendTo(client, ws.EventAIError, ws.AIError{Error: message, Code: exception.CodeOf(err, exception.CodeAIUnavailable)})
			return
		}
		h.sendTo(client, ws.EventAIResult, result)
	})
}
