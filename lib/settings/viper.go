package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const settingsPathEnv = "SKETCHBRIDGE_SETTINGS_PATH"

// ReadConfig builds the settings from jsonStr, or from settings.json in the
// working directory when jsonStr is empty, layered over the registry
// defaults and the environment.
func ReadConfig(jsonStr string) (*Settings, error) {
	viper.Reset()
	viper.SetConfigName("settings")
	viper.SetConfigType("json")

	viper.AddConfigPath(".")
	if settingsPath := os.Getenv(settingsPathEnv); settingsPath != "" {
		viper.AddConfigPath(settingsPath)
	}
	viper.AutomaticEnv()
	viper.SetEnvPrefix(strings.ToLower(envPrefix))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := BindEnvironment(); err != nil {
		return nil, err
	}
	ApplyRegistryDefaults()

	if jsonStr != "" {
		if err := viper.ReadConfig(strings.NewReader(jsonStr)); err != nil {
			return nil, err
		}
	} else {
		if err := viper.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, err
			}
		}
	}

	dbTypeToUse, err := ParseDBType(viper.GetString(DBType))
	if err != nil {
		return nil, err
	}

	loadTest := viper.GetBool(LoadTest)

	s := &Settings{
		IP:         viper.GetString(IP),
		Port:       viper.GetString(Port),
		LogLevel:   viper.GetString(Loglevel),
		CorsOrigin: viper.GetString(CorsOrigin),
		DBType:     dbTypeToUse,
		DBSettings: &DBSettings{
			Filename: viper.GetString(DBSettingsFilename),
			Host:     viper.GetString(DBSettingsHost),
			Port:     viper.GetString(DBSettingsPort),
			Database: viper.GetString(DBSettingsDatabase),
			User:     viper.GetString(DBSettingsUser),
			Password: viper.GetString(DBSettingsPassword),
			Url:      viper.GetString(DBSettingsURL),
		},
		Canvas: CanvasSettings{
			MaxObjects:     viper.GetInt(CanvasMaxObjects),
			MaxActiveUsers: viper.GetInt(CanvasMaxActiveUsers),
		},
		Session: SessionSettings{
			TimeoutMs:       viper.GetInt64(SessionTimeoutMs),
			SweepIntervalMs: viper.GetInt64(SessionSweepIntervalMs),
		},
		Socket: SocketSettings{
			MaxMessageSize: viper.GetInt64(SocketMaxMessageSize),
			SendBufferSize: viper.GetInt(SocketSendBufferSize),
		},
		RateLimiting: RateLimiting{
			Duration: viper.GetInt(RateLimitingDuration),
			Points:   viper.GetInt(RateLimitingPoints),
			LoadTest: loadTest,
		},
		LoadTest:      loadTest,
		EnableMetrics: viper.GetBool(EnableMetrics),
		AI: AISettings{
			ApiKey:         viper.GetString(AIApiKey),
			BaseUrl:        viper.GetString(AIBaseUrl),
			Model:          viper.GetString(AIModel),
			MaxTokens:      viper.GetInt(AIMaxTokens),
			TimeoutSeconds: viper.GetInt(AITimeoutSeconds),
		},
	}

	return s, nil
}

// InitSettings loads a .env file if one exists and reads the configuration.
func InitSettings(logger *zap.SugaredLogger) (*Settings, error) {
	envFile := ".env"
	if settingsPath := os.Getenv(settingsPathEnv); settingsPath != "" {
		envFile = filepath.Join(settingsPath, ".env")
	}
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("Could not load %s: %v", envFile, err)
		}
	} else {
		logger.Debugf("Loaded environment from %s", envFile)
	}

	s, err := ReadConfig("")
	if err != nil {
		return nil, err
	}
	s.GitVersion = GitVersion()
	return s, nil
}
