package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Operator OperatorConfig
	Platform PlatformConfig
	Tickets  TicketsConfig
	FanOut   FanOutConfig
	Export   ExportConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// OperatorConfig defines operator-surface authentication parameters.
type OperatorConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	Username              string
	PasswordHash          string
}

// PlatformConfig identifies the chat platform the bot drives.
type PlatformConfig struct {
	Mode           string
	BaseURL        string
	Token          string
	TimeoutSeconds int
}

// TicketType describes one configured request type.
type TicketType struct {
	Name          string
	ContainerKind string
}

// TicketsConfig fixes the request types and pool sizing.
type TicketsConfig struct {
	Types         []TicketType
	GroupCapacity int
}

// FanOutConfig tunes the bulk sync engine.
type FanOutConfig struct {
	BatchSize     int
	BatchPause    time.Duration
	RetryBackoff  time.Duration
	MaxRecipients int
}

// ExportConfig controls ticket exports.
type ExportConfig struct {
	Dir                string
	MaxAttachmentBytes int64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	types, err := parseTicketTypes(getEnv("TICKET_TYPES", "support:thread,report:thread,appeal:channel"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Operator: OperatorConfig{
			JWTSecret:             getEnv("OPERATOR_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("OPERATOR_TOKEN_TTL_MINUTES", 60),
			Username:              getEnv("OPERATOR_USERNAME", "operator"),
			PasswordHash:          os.Getenv("OPERATOR_PASSWORD_HASH"),
		},
		Platform: PlatformConfig{
			Mode:           getEnv("PLATFORM_MODE", "rest"),
			BaseURL:        getEnv("PLATFORM_BASE_URL", ""),
			Token:          os.Getenv("PLATFORM_TOKEN"),
			TimeoutSeconds: getEnvAsInt("PLATFORM_TIMEOUT_SECONDS", 15),
		},
		Tickets: TicketsConfig{
			Types:         types,
			GroupCapacity: getEnvAsInt("TICKET_GROUP_CAPACITY", 50),
		},
		FanOut: FanOutConfig{
			BatchSize:     getEnvAsInt("FANOUT_BATCH_SIZE", 5),
			BatchPause:    time.Duration(getEnvAsInt("FANOUT_BATCH_PAUSE_MS", 750)) * time.Millisecond,
			RetryBackoff:  time.Duration(getEnvAsInt("FANOUT_RETRY_BACKOFF_MS", 5000)) * time.Millisecond,
			MaxRecipients: getEnvAsInt("FANOUT_MAX_RECIPIENTS", 100),
		},
		Export: ExportConfig{
			Dir:                getEnv("EXPORT_DIR", "exports"),
			MaxAttachmentBytes: int64(getEnvAsInt("EXPORT_MAX_ATTACHMENT_BYTES", 8<<20)),
		},
	}

	if cfg.Tickets.GroupCapacity <= 0 {
		return nil, fmt.Errorf("TICKET_GROUP_CAPACITY must be positive")
	}

	return cfg, nil
}

// Type looks up a configured ticket type by name.
func (t TicketsConfig) Type(name string) (TicketType, bool) {
	for _, tt := range t.Types {
		if tt.Name == name {
			return tt, true
		}
	}
	return TicketType{}, false
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the platform call timeout.
func (p PlatformConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func parseTicketTypes(raw string) ([]TicketType, error) {
	parts := strings.Split(raw, ",")
	types := make([]TicketType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, kind, found := strings.Cut(part, ":")
		if !found {
			kind = "thread"
		}
		if kind != "channel" && kind != "thread" {
			return nil, fmt.Errorf("invalid container kind %q for ticket type %q", kind, name)
		}
		types = append(types, TicketType{Name: name, ContainerKind: kind})
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("TICKET_TYPES must list at least one type")
	}
	return types, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
