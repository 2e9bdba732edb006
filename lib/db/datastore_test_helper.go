package db

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
)

func CreateRandomCanvas() canvas.Canvas {
	now := time.Now().UnixMilli()
	id := gofakeit.UUID()
	return canvas.Canvas{
		Id:              id,
		Name:            canvas.DefaultName(id),
		Width:           canvas.DefaultWidth,
		Height:          canvas.DefaultHeight,
		BackgroundColor: canvas.DefaultBackgroundColor,
		CreatedBy:       gofakeit.UUID(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func CreateRandomObject(canvasId string) canvas.CanvasObject {
	now := time.Now().UnixMilli()
	return canvas.CanvasObject{
		Id:          gofakeit.UUID(),
		CanvasId:    canvasId,
		Type:        canvas.ObjectRect,
		X:           gofakeit.Float64Range(0, 1000),
		Y:           gofakeit.Float64Range(0, 1000),
		Width:       gofakeit.Float64Range(1, 300),
		Height:      gofakeit.Float64Range(1, 300),
		FillColor:   gofakeit.HexColor(),
		StrokeColor: gofakeit.HexColor(),
		StrokeWidth: 2,
		Opacity:     1,
		ZIndex:      1,
		CreatedBy:   gofakeit.UUID(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func CreateRandomTextObject(canvasId string) canvas.CanvasObject {
	object := CreateRandomObject(canvasId)
	text := gofakeit.Word()
	fontSize := float64(gofakeit.IntRange(10, 48))
	object.Type = canvas.ObjectText
	object.TextContent = &text
	object.FontSize = &fontSize
	return object
}

func CreateRandomSession(canvasId string) canvas.Session {
	now := time.Now().UnixMilli()
	return canvas.Session{
		Id:           gofakeit.UUID(),
		UserId:       gofakeit.UUID(),
		UserName:     gofakeit.Name(),
		CanvasId:     canvasId,
		Color:        gofakeit.HexColor(),
		ConnectedAt:  now,
		LastActivity: now,
	}
}
