package ws

import "encoding/json"

const (
	EventJoinCanvas   = "join_canvas"
	EventLeaveCanvas  = "leave_canvas"
	EventCursorMove   = "cursor_move"
	EventObjectAdd    = "object_add"
	EventObjectUpdate = "object_update"
	EventObjectDelete = "object_delete"
	EventClearCanvas  = "clear_canvas"
	EventAIAnalyze    = "ai_analyze"

	EventCanvasSync = "canvas_sync"
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventAIProgress = "ai_progress"
	EventAIResult   = "ai_result"
	EventAIError    = "ai_error"
	EventError      = "error"
)

// EventMessage is the frame read from a socket. Data is decoded once the
// event name is known.
type EventMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutgoingMessage is the frame written to a socket.
type OutgoingMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
