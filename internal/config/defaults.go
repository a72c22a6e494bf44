package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultServerAddr            = ":3000"
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 2 * time.Minute // Webhook processing runs inline
	DefaultServerShutdownTimeout = 10 * time.Second

	DefaultDBPath = "data/zalo_bot.db"

	DefaultZaloAPIBaseURL     = "https://openapi.zalo.me"
	DefaultZaloOAuthURL       = "https://oauth.zalo.me/v4/oa/access_token"
	DefaultZaloRequestTimeout = 10 * time.Second

	DefaultGeminiModel             = "gemini-flash-latest"
	DefaultGeminiTemperature       = 0.3 // Structured output
	DefaultGeminiQueryTemperature  = 0.7
	DefaultGeminiMaxOutputTokens   = 2000
	DefaultGeminiTimeout           = 30 * time.Second
	DefaultGeminiMaxRetries        = 1
	DefaultGeminiRetryDelaySeconds = 2

	DefaultExportDir       = "data/exports"
	DefaultExportKeepFiles = 200

	DefaultDedupMaxAge = 10 * time.Minute
)

// DefaultTasks are the scheduled tasks enabled out of the box.
var DefaultTasks = map[string]TaskConfig{
	"dedup_sweep":     {Enabled: true, Schedule: "0 */10 * * * *"},
	"sql_maintenance": {Enabled: true, Schedule: "0 30 3 * * *"},
	"export_cleanup":  {Enabled: true, Schedule: "0 0 * * * *"},
	"token_refresh":   {Enabled: true, Schedule: "0 */30 * * * *"},
}

// DefaultMessages are the Vietnamese reply texts sent to groups.
var DefaultMessages = MessagesConfig{
	NoData:     "Không tìm thấy dữ liệu nào trong nhóm này.",
	QueryError: "❌ Bot gặp lỗi khi truy vấn dữ liệu. Vui lòng thử lại sau.",
	NoItems:    "✅ Đã nhận tin nhắn. Không tìm thấy thông tin sản phẩm/hàng hóa.",
	Saved:      "✅ Đã phân tích và lưu tin nhắn:",
	Summary:    "📊 Tổng kết:",
	FileLink:   "📎 Tải file CSV:",
	ViewLink:   "👀 Xem trước:",
}
