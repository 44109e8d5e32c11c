// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultBookingSummary is the calendar event title for every appointment.
const DefaultBookingSummary = "Corte de Cabelo - Barbearia TwoWell"

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// base config is optional; env vars alone are enough to boot
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finalize(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finalize(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	// WHATSAPP_ACCESS_TOKEN overrides whatsapp.access_token, and so on
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func finalize(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "barbearia-twowell-bot")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 30000)

	v.SetDefault("bot.typing_delay", 1500)
	v.SetDefault("bot.queue_size", 64)
	v.SetDefault("bot.booking_summary", DefaultBookingSummary)
	v.SetDefault("bot.fallback_name", "parceiro")
	v.SetDefault("bot.turn_timeout", 0)
	v.SetDefault("bot.rate_limit_per_min", 30)
	v.SetDefault("bot.rate_limit_burst", 10)

	v.SetDefault("whatsapp.graph_url", "https://graph.facebook.com")
	v.SetDefault("whatsapp.api_version", "v21.0")
	v.SetDefault("whatsapp.phone_number_id", "")
	v.SetDefault("whatsapp.access_token", "")
	v.SetDefault("whatsapp.verify_token", "")
	v.SetDefault("whatsapp.app_secret", "")
	v.SetDefault("whatsapp.timeout", 15000)

	v.SetDefault("calendar.credentials_file", "credenciais.json")
	v.SetDefault("calendar.calendar_id", "primary")
	v.SetDefault("calendar.endpoint", "")
	v.SetDefault("calendar.timeout", 30000)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.key_prefix", "bot:session:")
	v.SetDefault("session.ttl", 0)

	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "")
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.table", "bot_turns")

	v.SetDefault("notifications.aws.region", "")
	v.SetDefault("notifications.email.enabled", false)
	v.SetDefault("notifications.email.from_email", "")
	v.SetDefault("notifications.sms.enabled", false)
	v.SetDefault("notifications.sms.phone_number", "")
	v.SetDefault("notifications.sms.sender_id", "")
	v.SetDefault("notifications.workflow.enabled", false)
	v.SetDefault("notifications.workflow.gateway_address", "")
	v.SetDefault("notifications.workflow.message_name", "appointment-booked")
	v.SetDefault("notifications.workflow.plaintext", true)
	v.SetDefault("notifications.workflow.request_timeout", 10000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load .env from the first location that has one
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests in test/e2e/
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Direct override for secrets commonly provided under their vendor names
func overrideEmptyConfig(cfg *Config) {
	if cfg.WhatsApp.AccessToken == "" {
		if val := os.Getenv("WHATSAPP_TOKEN"); val != "" {
			cfg.WhatsApp.AccessToken = val
		}
	}
	if cfg.WhatsApp.AppSecret == "" {
		if val := os.Getenv("META_APP_SECRET"); val != "" {
			cfg.WhatsApp.AppSecret = val
		}
	}
	if cfg.Calendar.CredentialsFile == "" {
		if val := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); val != "" {
			cfg.Calendar.CredentialsFile = val
		}
	}
	if cfg.Notifications.AWS.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Notifications.AWS.Region = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults fills values that must never be zero
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Bot.QueueSize <= 0 {
		cfg.Bot.QueueSize = 64
	}
	if cfg.Bot.TypingDelay < 0 {
		cfg.Bot.TypingDelay = 0
	}
	if strings.TrimSpace(cfg.Bot.BookingSummary) == "" {
		cfg.Bot.BookingSummary = DefaultBookingSummary
	}
	if strings.TrimSpace(cfg.Bot.FallbackName) == "" {
		cfg.Bot.FallbackName = "parceiro"
	}

	if cfg.Calendar.CalendarID == "" {
		cfg.Calendar.CalendarID = "primary"
	}
	if cfg.Calendar.Timeout <= 0 {
		cfg.Calendar.Timeout = 30000
	}
	if cfg.WhatsApp.Timeout <= 0 {
		cfg.WhatsApp.Timeout = 15000
	}

	cfg.Session.Backend = strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "bot:session:"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 5
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Journal.Table == "" {
		cfg.Journal.Table = "bot_turns"
	}

	if cfg.Notifications.Workflow.MessageName == "" {
		cfg.Notifications.Workflow.MessageName = "appointment-booked"
	}
	if cfg.Notifications.Workflow.RequestTimeout <= 0 {
		cfg.Notifications.Workflow.RequestTimeout = 10000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates cross-field requirements
func validateConfig(cfg *Config) error {
	switch cfg.Session.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when session.backend is redis")
		}
	default:
		return fmt.Errorf("session.backend must be memory or redis, got %q", cfg.Session.Backend)
	}

	if cfg.Session.TTL < 0 {
		return fmt.Errorf("session.ttl must not be negative")
	}

	if cfg.Journal.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required when journal is enabled")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required when journal is enabled")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required when journal is enabled")
		}
	}

	n := cfg.Notifications
	if (n.Email.Enabled || n.SMS.Enabled) && n.AWS.Region == "" {
		return fmt.Errorf("notifications.aws.region is required for email or sms notifications")
	}
	if n.Email.Enabled && (n.Email.FromEmail == "" || len(n.Email.To) == 0) {
		return fmt.Errorf("notifications.email.from_email and notifications.email.to are required")
	}
	if n.SMS.Enabled && n.SMS.PhoneNumber == "" {
		return fmt.Errorf("notifications.sms.phone_number is required")
	}
	if n.Workflow.Enabled && n.Workflow.GatewayAddress == "" {
		return fmt.Errorf("notifications.workflow.gateway_address is required")
	}

	if cfg.Bot.RateLimitPerMin < 0 || cfg.Bot.RateLimitBurst < 0 {
		return fmt.Errorf("bot rate limits must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
