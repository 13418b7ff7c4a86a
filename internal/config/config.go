// Package config loads service settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the server and the historian.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Admin     AdminConfig     `yaml:"admin"`
	Event     EventConfig     `yaml:"event"`
	Historian HistorianConfig `yaml:"historian"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	LogLevel       string   `yaml:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// PostgresConfig takes either a DSN or the individual connection parts.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

// ConnString returns DSN, or a URL built from the parts when DSN is empty.
func (p PostgresConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", p.User, p.Password, p.Host, p.Port, p.Database)
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	SnapshotKey string `yaml:"snapshot_key"`
	QueueName   string `yaml:"queue_name"`
}

// TelegramConfig enables the Telegram notifier when Token is set.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`

	// OperatorChatID receives escalated failures; 0 uses ChatID.
	OperatorChatID int64   `yaml:"operator_chat_id"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
}

type AdminConfig struct {
	ID           string `yaml:"id"`
	PasswordHash string `yaml:"password_hash"`
	// KeyFile holds a hex ed25519 seed for signing tokens; empty generates one.
	KeyFile  string        `yaml:"key_file"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type EventConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	TeardownDelay    time.Duration `yaml:"teardown_delay"`
	ReminderLead     time.Duration `yaml:"reminder_lead"`
	Timezone         string        `yaml:"timezone"`
}

// Location resolves Timezone, defaulting to UTC.
func (e EventConfig) Location() (*time.Location, error) {
	if e.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(e.Timezone)
}

type HistorianConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	FlushDelay time.Duration `yaml:"flush_delay"`
	Inactivity time.Duration `yaml:"inactivity"`
}

// Load reads filename, falling back to the environment alone when the file
// does not exist. Environment variables override file values.
func Load(filename string) (*Config, error) {
	var cfg Config
	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if cfg.Postgres.DSN == "" && cfg.Postgres.Host == "" {
		return nil, fmt.Errorf("postgres is not configured: set DATABASE_URL or PG_HOST")
	}
	if _, err := cfg.Event.Location(); err != nil {
		return nil, fmt.Errorf("invalid event timezone %q: %w", cfg.Event.Timezone, err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"SERVER_ADDR":          &cfg.Server.Addr,
		"LOG_LEVEL":            &cfg.Server.LogLevel,
		"DATABASE_URL":         &cfg.Postgres.DSN,
		"POSTGRES_USER":        &cfg.Postgres.User,
		"POSTGRES_PASSWORD":    &cfg.Postgres.Password,
		"PG_HOST":              &cfg.Postgres.Host,
		"PG_PORT":              &cfg.Postgres.Port,
		"PG_DATABASE":          &cfg.Postgres.Database,
		"REDIS_ADDR":           &cfg.Redis.Addr,
		"REDIS_PASSWORD":       &cfg.Redis.Password,
		"SNAPSHOT_KEY":         &cfg.Redis.SnapshotKey,
		"HISTORIAN_QUEUE_NAME": &cfg.Redis.QueueName,
		"TELEGRAM_BOT_TOKEN":   &cfg.Telegram.Token,
		"ADMIN_ID":             &cfg.Admin.ID,
		"ADMIN_PASSWORD_HASH":  &cfg.Admin.PasswordHash,
		"JWT_KEY_FILE":         &cfg.Admin.KeyFile,
		"EVENT_TIMEZONE":       &cfg.Event.Timezone,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}

	ints := map[string]*int{
		"REDIS_DB":             &cfg.Redis.DB,
		"HISTORIAN_BATCH_SIZE": &cfg.Historian.BatchSize,
		"RATE_BURST":           &cfg.Server.RateBurst,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", key, err)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"RATE_LIMIT":               &cfg.Server.RateLimit,
		"TELEGRAM_RATE_PER_SECOND": &cfg.Telegram.RatePerSecond,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", key, err)
			}
			*dst = f
		}
	}

	durations := map[string]*time.Duration{
		"SNAPSHOT_INTERVAL":     &cfg.Event.SnapshotInterval,
		"TEARDOWN_DELAY":        &cfg.Event.TeardownDelay,
		"REMINDER_LEAD":         &cfg.Event.ReminderLead,
		"JWT_TTL":               &cfg.Admin.TokenTTL,
		"HISTORIAN_FLUSH_DELAY": &cfg.Historian.FlushDelay,
		"HISTORIAN_INACTIVITY":  &cfg.Historian.Inactivity,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", key, err)
			}
			*dst = d
		}
	}

	chats := map[string]*int64{
		"TELEGRAM_CHAT_ID":          &cfg.Telegram.ChatID,
		"TELEGRAM_OPERATOR_CHAT_ID": &cfg.Telegram.OperatorChatID,
	}
	for key, dst := range chats {
		if v := os.Getenv(key); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", key, err)
			}
			*dst = id
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 20
	}
	if cfg.Postgres.Port == "" {
		cfg.Postgres.Port = "5432"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Telegram.RatePerSecond == 0 {
		cfg.Telegram.RatePerSecond = 1
	}
	if cfg.Admin.TokenTTL == 0 {
		cfg.Admin.TokenTTL = 24 * time.Hour
	}
	if cfg.Event.SnapshotInterval == 0 {
		cfg.Event.SnapshotInterval = 5 * time.Minute
	}
	if cfg.Event.TeardownDelay == 0 {
		cfg.Event.TeardownDelay = 2 * time.Minute
	}
	if cfg.Event.ReminderLead == 0 {
		cfg.Event.ReminderLead = 24 * time.Hour
	}
	if cfg.Historian.BatchSize == 0 {
		cfg.Historian.BatchSize = 20
	}
	if cfg.Historian.FlushDelay == 0 {
		cfg.Historian.FlushDelay = 500 * time.Millisecond
	}
	if cfg.Historian.Inactivity == 0 {
		cfg.Historian.Inactivity = 30 * time.Minute
	}
}
