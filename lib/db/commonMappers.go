package db

import (
	"database/sql"

	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
)

type Reader interface {
	Scan(dest ...any) error
}

var canvasColumns = []string{"id", "name", "width", "height", "background_color",
	"created_by", "created_at", "updated_at"}

var objectColumns = []string{"id", "canvas_id", "type", "x", "y", "width", "height",
	"rotation", "fill_color", "stroke_color", "stroke_width", "opacity", "path_data",
	"text_content", "font_size", "image_data", "z_index", "created_by", "created_at",
	"updated_at"}

var sessionColumns = []string{"id", "user_id", "user_name", "canvas_id", "cursor_x",
	"cursor_y", "color", "connected_at", "last_activity"}

func ReadToCanvas(reader Reader) (*canvas.Canvas, error) {
	var c canvas.Canvas
	if err := reader.Scan(&c.Id, &c.Name, &c.Width, &c.Height, &c.BackgroundColor,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func ReadToCanvasObject(reader Reader) (*canvas.CanvasObject, error) {
	var o canvas.CanvasObject
	var objectType string
	var fillColor, strokeColor sql.NullString
	var pathData, textContent, imageData sql.NullString
	var fontSize sql.NullFloat64

	if err := reader.Scan(&o.Id, &o.CanvasId, &objectType, &o.X, &o.Y, &o.Width, &o.Height,
		&o.Rotation, &fillColor, &strokeColor, &o.StrokeWidth, &o.Opacity, &pathData,
		&textContent, &fontSize, &imageData, &o.ZIndex, &o.CreatedBy, &o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	o.Type = canvas.ObjectType(objectType)
	o.FillColor = fillColor.String
	o.StrokeColor = strokeColor.String
	if pathData.Valid {
		o.PathData = &pathData.String
	}
	if textContent.Valid {
		o.TextContent = &textContent.String
	}
	if imageData.Valid {
		o.ImageData = &imageData.String
	}
	if fontSize.Valid {
		o.FontSize = &fontSize.Float64
	}
	return &o, nil
}

func ReadToSession(reader Reader) (*canvas.Session, error) {
	var s canvas.Session
	if err := reader.Scan(&s.Id, &s.UserId, &s.UserName, &s.CanvasId, &s.CursorX,
		&s.CursorY, &s.Color, &s.ConnectedAt, &s.LastActivity,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// updateColumns maps the set fields of an update to their column names.
func updateColumns(update canvas.ObjectUpdate) map[string]any {
	columns := map[string]any{}
	if update.X != nil {
		columns["x"] = *update.X
	}
	if update.Y != nil {
		columns["y"] = *update.Y
	}
	if update.Width != nil {
		columns["width"] = *update.Width
	}
	if update.Height != nil {
		columns["height"] = *update.Height
	}
	if update.Rotation != nil {
		columns["rotation"] = *update.Rotation
	}
	if update.FillColor != nil {
		columns["fill_color"] = *update.FillColor
	}
	if update.StrokeColor != nil {
		columns["stroke_color"] = *update.StrokeColor
	}
	if update.StrokeWidth != nil {
		columns["stroke_width"] = *update.StrokeWidth
	}
	if update.Opacity != nil {
		columns["opacity"] = *update.Opacity
	}
	if update.ZIndex != nil {
		columns["z_index"] = *update.ZIndex
	}
	if update.PathData != nil {
		columns["path_data"] = *update.PathData
	}
	if update.TextContent != nil {
		columns["text_content"] = *update.TextContent
	}
	if update.FontSize != nil {
		columns["font_size"] = *update.FontSize
	}
	if update.ImageData != nil {
		columns["image_data"] = *update.ImageData
	}
	return columns
}
