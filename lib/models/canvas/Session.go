package canvas

// Session is one live connection joined to a canvas. Id is the connection id.
type Session struct {
	Id           string  `json:"id"`
	UserId       string  `json:"userId"`
	UserName     string  `json:"userName"`
	CanvasId     string  `json:"canvasId"`
	CursorX      float64 `json:"cursorX"`
	CursorY      float64 `json:"cursorY"`
	Color        string  `json:"color"`
	ConnectedAt  int64   `json:"connectedAt"`
	LastActivity int64   `json:"lastActivity"`
}
