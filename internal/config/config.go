// Package config provides configuration loading, validation, and management
// for the bot. It reads a YAML file, overlays ZALOBOT_* environment variables
// (optionally sourced from a .env file), applies defaults and validates the result.
package config

import "time"

// Config defines the application configuration parameters for all components
// of the bot: logging, HTTP server, storage, Zalo OA integration, Gemini,
// CSV exports, deduplication and scheduled tasks.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Zalo      ZaloConfig      `mapstructure:"zalo"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Export    ExportConfig    `mapstructure:"export"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig controls the webhook HTTP server. PublicURL is the externally
// reachable base used when building export links.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	PublicURL       string        `mapstructure:"public_url"       validate:"omitempty,url"`
	Mode            string        `mapstructure:"mode"             validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ZaloConfig holds Official Account credentials and endpoints.
// AccessToken seeds the token cache and doubles as the fallback credential.
type ZaloConfig struct {
	AppID          string        `mapstructure:"app_id"`
	OAID           string        `mapstructure:"oa_id"`
	SecretKey      string        `mapstructure:"secret_key"`
	AccessToken    string        `mapstructure:"access_token"`
	RefreshToken   string        `mapstructure:"refresh_token"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	VerifyToken    string        `mapstructure:"verify_token"`
	APIBaseURL     string        `mapstructure:"api_base_url"    validate:"required,url"`
	OAuthURL       string        `mapstructure:"oauth_url"       validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=2m"`
}

type GeminiConfig struct {
	APIKey             string        `mapstructure:"api_key"             validate:"required"`
	ModelName          string        `mapstructure:"model_name"          validate:"required"`
	Temperature        float32       `mapstructure:"temperature"         validate:"min=0,max=2"`
	QueryTemperature   float32       `mapstructure:"query_temperature"   validate:"min=0,max=2"`
	MaxOutputTokens    int32         `mapstructure:"max_output_tokens"   validate:"min=1"`
	Timeout            time.Duration `mapstructure:"timeout"             validate:"min=1s,max=10m"`
	MaxRetries         int           `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds  int           `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
	AnalyzeInstruction string        `mapstructure:"analyze_instruction"`
	QueryInstruction   string        `mapstructure:"query_instruction"`
}

type ExportConfig struct {
	Dir       string `mapstructure:"dir"        validate:"required"`
	KeepFiles int    `mapstructure:"keep_files" validate:"min=1"`
}

type DedupConfig struct {
	MaxAge time.Duration `mapstructure:"max_age" validate:"min=1s"`
}

// SchedulerConfig maps task names (see internal/bot/tasks) to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MessagesConfig holds user-facing reply texts.
type MessagesConfig struct {
	NoData     string `mapstructure:"no_data"     validate:"required"`
	QueryError string `mapstructure:"query_error" validate:"required"`
	NoItems    string `mapstructure:"no_items"    validate:"required"`
	Saved      string `mapstructure:"saved"       validate:"required"`
	Summary    string `mapstructure:"summary"     validate:"required"`
	FileLink   string `mapstructure:"file_link"   validate:"required"`
	ViewLink   string `mapstructure:"view_link"   validate:"required"`
}
