package errors

// Error is the JSON body of every failed HTTP request.
type Error struct {
	Message string `json:"message"`
	Error   int    `json:"error"`
	Code    string `json:"code,omitempty"`
}
