package canvas

type ObjectType string

const (
	ObjectRect   ObjectType = "rect"
	ObjectCircle ObjectType = "circle"
	ObjectPath   ObjectType = "path"
	ObjectText   ObjectType = "text"
	ObjectImage  ObjectType = "image"
)

func (t ObjectType) Valid() bool {
	switch t {
	case ObjectRect, ObjectCircle, ObjectPath, ObjectText, ObjectImage:
		return true
	}
	return false
}

// CanvasObject is a single drawable element. A ZIndex of 0 on creation means
// the store assigns the next free index.
type CanvasObject struct {
	Id          string     `json:"id"`
	CanvasId    string     `json:"canvasId"`
	Type        ObjectType `json:"type" validate:"required,oneof=rect circle path text image"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Width       float64    `json:"width"`
	Height      float64    `json:"height"`
	Rotation    float64    `json:"rotation"`
	FillColor   string     `json:"fillColor"`
	StrokeColor string     `json:"strokeColor"`
	StrokeWidth float64    `json:"strokeWidth"`
	Opacity     float64    `json:"opacity"`
	PathData    *string    `json:"pathData,omitempty"`
	TextContent *string    `json:"textContent,omitempty"`
	FontSize    *float64   `json:"fontSize,omitempty"`
	ImageData   *string    `json:"imageData,omitempty"`
	ZIndex      int        `json:"zIndex"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   int64      `json:"createdAt"`
	UpdatedAt   int64      `json:"updatedAt"`
}

// ObjectUpdate carries the fields of a partial update. Nil fields are left
// untouched.
type ObjectUpdate struct {
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Rotation    *float64 `json:"rotation,omitempty"`
	FillColor   *string  `json:"fillColor,omitempty"`
	StrokeColor *string  `json:"strokeColor,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
	ZIndex      *int     `json:"zIndex,omitempty"`
	PathData    *string  `json:"pathData,omitempty"`
	TextContent *string  `json:"textContent,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	ImageData   *string  `json:"imageData,omitempty"`
}

func (u ObjectUpdate) IsEmpty() bool {
	return u.X == nil && u.Y == nil && u.Width == nil && u.Height == nil &&
		u.Rotation == nil && u.FillColor == nil && u.StrokeColor == nil &&
		u.StrokeWidth == nil && u.Opacity == nil && u.ZIndex == nil &&
		u.PathData == nil && u.TextContent == nil && u.FontSize == nil &&
		u.ImageData == nil
}

// ApplyTo copies every set field onto o.
func (u ObjectUpdate) ApplyTo(o *CanvasObject) {
	if u.X != nil {
		o.X = *u.X
	}
	if u.Y != nil {
		o.Y = *u.Y
	}
	if u.Width != nil {
		o.Width = *u.Width
	}
	if u.Height != nil {
		o.Height = *u.Height
	}
	if u.Rotation != nil {
		o.Rotation = *u.Rotation
	}
	if u.FillColor != nil {
		o.FillColor = *u.FillColor
	}
	if u.StrokeColor != nil {
		o.StrokeColor = *u.StrokeColor
	}
	if u.StrokeWidth != nil {
		o.StrokeWidth = *u.StrokeWidth
	}
	if u.Opacity != nil {
		o.Opacity = *u.Opacity
	}
	if u.ZIndex != nil {
		o.ZIndex = *u.ZIndex
	}
	if u.PathData != nil {
		o.PathData = u.PathData
	}
	if u.TextContent != nil {
		o.TextContent = u.TextContent
	}
	if u.FontSize != nil {
		o.FontSize = u.FontSize
	}
	if u.ImageData != nil {
		o.ImageData = u.ImageData
	}
}
