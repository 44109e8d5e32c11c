// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Bot           BotConfig          `mapstructure:"bot"`
	WhatsApp      WhatsAppConfig     `mapstructure:"whatsapp"`
	Calendar      CalendarConfig     `mapstructure:"calendar"`
	Session       SessionConfig      `mapstructure:"session"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Journal       JournalConfig      `mapstructure:"journal"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// BotConfig holds conversation pacing and booking text settings.
type BotConfig struct {
	TypingDelay     int    `mapstructure:"typing_delay"` // milliseconds
	QueueSize       int    `mapstructure:"queue_size"`
	BookingSummary  string `mapstructure:"booking_summary"`
	FallbackName    string `mapstructure:"fallback_name"`
	TurnTimeout     int    `mapstructure:"turn_timeout"` // milliseconds, 0 = none
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min"`
	RateLimitBurst  int    `mapstructure:"rate_limit_burst"`
}

// WhatsAppConfig holds the Cloud API credentials and webhook secrets.
type WhatsAppConfig struct {
	GraphURL      string `mapstructure:"graph_url"`
	APIVersion    string `mapstructure:"api_version"`
	PhoneNumberID string `mapstructure:"phone_number_id"`
	AccessToken   string `mapstructure:"access_token"`
	VerifyToken   string `mapstructure:"verify_token"`
	AppSecret     string `mapstructure:"app_secret"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

// CalendarConfig holds the Google Calendar service-account settings.
type CalendarConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	CalendarID      string `mapstructure:"calendar_id"`
	Endpoint        string `mapstructure:"endpoint"`
	Timeout         int    `mapstructure:"timeout"` // milliseconds
}

// SessionConfig selects where conversation state lives.
type SessionConfig struct {
	Backend   string `mapstructure:"backend"` // "memory" or "redis"
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       int    `mapstructure:"ttl"` // milliseconds, 0 = never expires
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JournalConfig toggles the Postgres turn journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Table   string `mapstructure:"table"`
}

// NotificationConfig holds settings for owner booking notifications.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Email struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		To        []string `mapstructure:"to"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled     bool   `mapstructure:"enabled"`
		PhoneNumber string `mapstructure:"phone_number"`
		SenderID    string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	Workflow struct {
		Enabled        bool   `mapstructure:"enabled"`
		GatewayAddress string `mapstructure:"gateway_address"`
		MessageName    string `mapstructure:"message_name"`
		Plaintext      bool   `mapstructure:"plaintext"`
		RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	} `mapstructure:"workflow"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
