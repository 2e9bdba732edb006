package settings

const (
	IP            = "ip"
	Port          = "port"
	Loglevel      = "logLevel"
	CorsOrigin    = "corsOrigin"
	LoadTest      = "loadTest"
	EnableMetrics = "enableMetrics"

	DBType             = "dbType"
	DBSettingsFilename = "dbSettings.filename"
	DBSettingsHost     = "dbSettings.host"
	DBSettingsPort     = "dbSettings.port"
	DBSettingsDatabase = "dbSettings.database"
	DBSettingsUser     = "dbSettings.user"
	DBSettingsPassword = "dbSettings.password"
	DBSettingsURL      = "dbSettings.url"

	CanvasMaxObjects     = "canvas.maxObjects"
	CanvasMaxActiveUsers = "canvas.maxActiveUsers"

	SessionTimeoutMs       = "session.timeoutMs"
	SessionSweepIntervalMs = "session.sweepIntervalMs"

	SocketMaxMessageSize = "socket.maxMessageSize"
	SocketSendBufferSize = "socket.sendBufferSize"

	RateLimitingDuration = "rateLimiting.duration"
	RateLimitingPoints   = "rateLimiting.points"

	AIApiKey         = "ai.apiKey"
	AIBaseUrl        = "ai.baseUrl"
	AIModel          = "ai.model"
	AIMaxTokens      = "ai.maxTokens"
	AITimeoutSeconds = "ai.timeoutSeconds"
)

// Plain environment names honoured next to the prefixed ones, so a
// deployment configured for the node server keeps working.
var legacyEnvVars = map[string]string{
	Port:          "PORT",
	CorsOrigin:    "CORS_ORIGIN",
	DBSettingsURL: "DATABASE_URL",
	AIApiKey:      "OPENAI_API_KEY",
}
