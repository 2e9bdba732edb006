package ws

import "github.com/sketchbridge/sketchbridge-go/lib/models/canvas"

type JoinCanvas struct {
	CanvasId   string  `json:"canvasId" validate:"required"`
	UserId     string  `json:"userId" validate:"required"`
	UserName   string  `json:"userName" validate:"required"`
	CanvasName *string `json:"canvasName,omitempty"`
}

type LeaveCanvas struct {
	CanvasId string `json:"canvasId"`
}

type CursorMove struct {
	CanvasId string  `json:"canvasId" validate:"required"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type ObjectAdd struct {
	CanvasId string              `json:"canvasId" validate:"required"`
	Object   canvas.CanvasObject `json:"object"`
}

type ObjectUpdate struct {
	CanvasId string              `json:"canvasId" validate:"required"`
	ObjectId string              `json:"objectId" validate:"required"`
	Updates  canvas.ObjectUpdate `json:"updates"`
}

type ObjectDelete struct {
	CanvasId string `json:"canvasId" validate:"required"`
	ObjectId string `json:"objectId" validate:"required"`
}

type ClearCanvas struct {
	CanvasId string `json:"canvasId" validate:"required"`
}

type AIAnalyze struct {
	ImageBase64 string `json:"imageBase64"`
}
