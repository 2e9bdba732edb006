package settings

import "time"

type DBSettings struct {
	Filename string `json:"filename"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"-"`
	Url      string `json:"-"`
}

type CanvasSettings struct {
	MaxObjects     int `json:"maxObjects"`
	MaxActiveUsers int `json:"maxActiveUsers"`
}

type SessionSettings struct {
	TimeoutMs       int64 `json:"timeoutMs"`
	SweepIntervalMs int64 `json:"sweepIntervalMs"`
}

func (s SessionSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

func (s SessionSettings) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMs) * time.Millisecond
}

type SocketSettings struct {
	MaxMessageSize int64 `json:"maxMessageSize"`
	SendBufferSize int   `json:"sendBufferSize"`
}

type RateLimiting struct {
	// Duration of the window in seconds.
	Duration int  `json:"duration"`
	Points   int  `json:"points"`
	LoadTest bool `json:"-"`
}

type AISettings struct {
	ApiKey         string `json:"-"`
	BaseUrl        string `json:"baseUrl"`
	Model          string `json:"model"`
	MaxTokens      int    `json:"maxTokens"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

func (a AISettings) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func (a AISettings) Configured() bool {
	return a.ApiKey != ""
}

type Settings struct {
	IP            string          `json:"ip"`
	Port          string          `json:"port"`
	LogLevel      string          `json:"logLevel"`
	CorsOrigin    string          `json:"corsOrigin"`
	DBType        IDBType         `json:"dbType"`
	DBSettings    *DBSettings     `json:"dbSettings"`
	Canvas        CanvasSettings  `json:"canvas"`
	Session       SessionSettings `json:"session"`
	Socket        SocketSettings  `json:"socket"`
	RateLimiting  RateLimiting    `json:"rateLimiting"`
	LoadTest      bool            `json:"loadTest"`
	EnableMetrics bool            `json:"enableMetrics"`
	AI            AISettings      `json:"ai"`
	GitVersion    string          `json:"-"`
}

func (s *Settings) Address() string {
	return s.IP + ":" + s.Port
}
