package canvas

const (
	DefaultWidth           = 5000
	DefaultHeight          = 5000
	DefaultBackgroundColor = "#ffffff"
)

type Canvas struct {
	Id              string `json:"id"`
	Name            string `json:"name"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	BackgroundColor string `json:"backgroundColor"`
	CreatedBy       string `json:"createdBy"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
}

// DefaultName is used when a canvas is created without an explicit name.
func DefaultName(canvasId string) string {
	short := canvasId
	if len(short) > 8 {
		short = short[:8]
	}
	return "Canvas " + short
}
