package ws

import "github.com/sketchbridge/sketchbridge-go/lib/models/canvas"

type CanvasSync struct {
	Canvas   canvas.Canvas         `json:"canvas"`
	Objects  []canvas.CanvasObject `json:"objects"`
	Sessions []canvas.Session      `json:"sessions"`
}

type UserJoined struct {
	Session canvas.Session `json:"session"`
}

type UserLeft struct {
	SessionId string `json:"sessionId"`
}

type CursorMoved struct {
	SessionId string  `json:"sessionId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// ObjectChanged is sent for both object_add and object_update.
type ObjectChanged struct {
	Object    canvas.CanvasObject `json:"object"`
	SessionId string              `json:"sessionId"`
}

type ObjectDeleted struct {
	ObjectId  string `json:"objectId"`
	SessionId string `json:"sessionId"`
}

type CanvasCleared struct {
	SessionId string `json:"sessionId"`
}

type AIProgress struct {
	Status string `json:"status"`
}

type AIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
