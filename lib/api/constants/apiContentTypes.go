package constants

const (
	ContentTypeJSON       = "application/json"
	ContentTypeHealthJSON = "application/health+json"
)
