package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/edgard/zalobot/internal/errs"
)

// EnvPrefix is the prefix for environment overrides, e.g. ZALOBOT_ZALO_REFRESH_TOKEN.
const EnvPrefix = "ZALOBOT"

// LoadConfig loads and validates configuration from:
//  1. Default values
//  2. the YAML file at path (optional)
//  3. ZALOBOT_* environment variables, including those from a .env file
func LoadConfig(path string) (*Config, error) {
	startTime := time.Now()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.NewConfigError("failed to load .env file", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, errs.NewConfigError("failed to read config file", err)
			}
			slog.Info("Configuration file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigError("failed to parse config", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errs.NewConfigError("configuration validation failed", err)
	}

	slog.Debug("Configuration loaded",
		"path", path,
		"db_path", cfg.Database.Path,
		"gemini_model", cfg.Gemini.ModelName,
		"server_addr", cfg.Server.Addr,
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", false)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.mode", DefaultServerMode)
	v.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	v.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("zalo.app_id", "")
	v.SetDefault("zalo.oa_id", "")
	v.SetDefault("zalo.secret_key", "")
	v.SetDefault("zalo.access_token", "")
	v.SetDefault("zalo.refresh_token", "")
	v.SetDefault("zalo.webhook_secret", "")
	v.SetDefault("zalo.verify_token", "")
	v.SetDefault("zalo.api_base_url", DefaultZaloAPIBaseURL)
	v.SetDefault("zalo.oauth_url", DefaultZaloOAuthURL)
	v.SetDefault("zalo.request_timeout", DefaultZaloRequestTimeout)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", DefaultGeminiModel)
	v.SetDefault("gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("gemini.query_temperature", DefaultGeminiQueryTemperature)
	v.SetDefault("gemini.max_output_tokens", DefaultGeminiMaxOutputTokens)
	v.SetDefault("gemini.timeout", DefaultGeminiTimeout)
	v.SetDefault("gemini.max_retries", DefaultGeminiMaxRetries)
	v.SetDefault("gemini.retry_delay_seconds", DefaultGeminiRetryDelaySeconds)
	v.SetDefault("gemini.analyze_instruction", "")
	v.SetDefault("gemini.query_instruction", "")

	v.SetDefault("export.dir", DefaultExportDir)
	v.SetDefault("export.keep_files", DefaultExportKeepFiles)

	v.SetDefault("dedup.max_age", DefaultDedupMaxAge)

	v.SetDefault("scheduler.tasks", DefaultTasks)

	v.SetDefault("messages.no_data", DefaultMessages.NoData)
	v.SetDefault("messages.query_error", DefaultMessages.QueryError)
	v.SetDefault("messages.no_items", DefaultMessages.NoItems)
	v.SetDefault("messages.saved", DefaultMessages.Saved)
	v.SetDefault("messages.summary", DefaultMessages.Summary)
	v.SetDefault("messages.file_link", DefaultMessages.FileLink)
	v.SetDefault("messages.view_link", DefaultMessages.ViewLink)
}
