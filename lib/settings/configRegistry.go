package settings

import (
	"strings"

	"github.com/spf13/viper"
)

type ConfigKey struct {
	Key         string
	Default     any
	Description string
}

const envPrefix = "SKETCHBRIDGE"

func EnvVar(key string) string {
	return envPrefix + "_" + strings.ToUpper(
		strings.ReplaceAll(key, ".", "_"),
	)
}

var Registry = []ConfigKey{
	// ---------------------------------------------------------------------
	// Core
	// ---------------------------------------------------------------------
	{Key: IP, Default: "0.0.0.0", Description: "Bind address"},
	{Key: Port, Default: "3001", Description: "HTTP server port"},
	{Key: Loglevel, Default: "info", Description: "Log level (debug, info, warn, error)"},
	{
		Key:         CorsOrigin,
		Default:     "http://localhost:5173",
		Description: "Allowed CORS origin for the HTTP API",
	},
	{Key: EnableMetrics, Default: true, Description: "Expose Prometheus metrics on /metrics"},
	{Key: LoadTest, Default: false, Description: "Load test mode, disables socket rate limiting"},

	// ---------------------------------------------------------------------
	// Database
	// ---------------------------------------------------------------------
	{Key: DBType, Default: SQLITE.String(), Description: "Database type (sqlite, memory, postgres)"},
	{
		Key:         DBSettingsFilename,
		Default:     "var/sketchbridge.db",
		Description: "SQLite database filename",
	},
	{Key: DBSettingsHost, Default: "localhost", Description: "Database host"},
	{Key: DBSettingsPort, Default: "5432", Description: "Database port"},
	{Key: DBSettingsDatabase, Default: "sketchbridge", Description: "Database name"},
	{Key: DBSettingsUser, Default: "", Description: "Database user"},
	{Key: DBSettingsPassword, Default: "", Description: "Database password"},
	{
		Key:         DBSettingsURL,
		Default:     "",
		Description: "Postgres connection URL, overrides host/port/user (also DATABASE_URL)",
	},

	// ---------------------------------------------------------------------
	// Canvas and sessions
	// ---------------------------------------------------------------------
	{Key: CanvasMaxObjects, Default: 1000, Description: "Maximum objects per canvas"},
	{
		Key:         CanvasMaxActiveUsers,
		Default:     0,
		Description: "Maximum connections per canvas room, 0 disables the cap",
	},
	{
		Key:         SessionTimeoutMs,
		Default:     30 * 60 * 1000,
		Description: "Inactivity after which a session is swept",
	},
	{
		Key:         SessionSweepIntervalMs,
		Default:     60 * 1000,
		Description: "Interval of the expired session sweep",
	},

	// ---------------------------------------------------------------------
	// Socket
	// ---------------------------------------------------------------------
	{
		Key:         SocketMaxMessageSize,
		Default:     30 * 1024 * 1024,
		Description: "Maximum inbound websocket frame size in bytes",
	},
	{
		Key:         SocketSendBufferSize,
		Default:     256,
		Description: "Outbound queue length per connection",
	},
	{
		Key:         RateLimitingDuration,
		Default:     1,
		Description: "Socket rate limit window in seconds",
	},
	{
		Key:         RateLimitingPoints,
		Default:     100,
		Description: "Socket messages allowed per window",
	},

	// ---------------------------------------------------------------------
	// AI analysis
	// ---------------------------------------------------------------------
	{Key: AIApiKey, Default: "", Description: "OpenAI API key (also OPENAI_API_KEY)"},
	{Key: AIBaseUrl, Default: "https://api.openai.com/v1", Description: "OpenAI compatible API base URL"},
	{Key: AIModel, Default: "gpt-4o", Description: "Vision model used for analysis"},
	{Key: AIMaxTokens, Default: 4000, Description: "Completion token limit"},
	{Key: AITimeoutSeconds, Default: 60, Description: "Timeout of a single analysis request"},
}

func ApplyRegistryDefaults() {
	for _, c := range Registry {
		viper.SetDefault(c.Key, c.Default)
	}
}

// BindEnvironment maps every registry key onto its prefixed variable and,
// where one exists, its plain legacy name.
func BindEnvironment() error {
	for _, c := range Registry {
		names := []string{c.Key, EnvVar(c.Key)}
		if legacy, ok := legacyEnvVars[c.Key]; ok {
			names = append(names, legacy)
		}
		if err := viper.BindEnv(names...); err != nil {
			return err
		}
	}
	return nil
}
