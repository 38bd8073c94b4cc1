package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// MessengerConfig holds Facebook Messenger platform settings.
type MessengerConfig struct {
	PageAccessToken string `yaml:"page_access_token" envconfig:"PAGE_ACCESS_TOKEN"`
	VerifyToken     string `yaml:"verify_token" envconfig:"VERIFY_TOKEN"`
	// AppSecret enables X-Hub-Signature-256 validation when set.
	AppSecret  string `yaml:"app_secret" envconfig:"MESSENGER_APP_SECRET"`
	GraphURL   string `yaml:"graph_url" envconfig:"MESSENGER_GRAPH_URL"`
	APIVersion string `yaml:"api_version" envconfig:"MESSENGER_API_VERSION"`
	// Workers and QueueSize size the inbound event queue. Callbacks are
	// acknowledged once their events are queued.
	Workers   int `yaml:"workers" envconfig:"MESSENGER_WORKERS"`
	QueueSize int `yaml:"queue_size" envconfig:"MESSENGER_QUEUE_SIZE"`
}

// Enabled reports whether the Messenger transport should be started.
func (m MessengerConfig) Enabled() bool {
	return strings.TrimSpace(m.PageAccessToken) != ""
}

// TelegramConfig holds Telegram bot settings. The transport is optional.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	WebhookURL             string `yaml:"webhook_url" envconfig:"TELEGRAM_WEBHOOK_URL"`
	WebhookListen          string `yaml:"webhook_listen" envconfig:"TELEGRAM_WEBHOOK_LISTEN"`
	WebhookPort            int    `yaml:"webhook_port" envconfig:"TELEGRAM_WEBHOOK_PORT"`
}

// Enabled reports whether the Telegram transport should be started.
func (t TelegramConfig) Enabled() bool {
	return strings.TrimSpace(t.Token) != ""
}

// HTTPConfig specifies the inbound webhook listener.
type HTTPConfig struct {
	Listen             string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	Port               int    `yaml:"port" envconfig:"PORT"`
	WebhookPath        string `yaml:"webhook_path" envconfig:"WEBHOOK_PATH"`
	ReadTimeoutSeconds int    `yaml:"read_timeout_seconds" envconfig:"HTTP_READ_TIMEOUT_SECONDS"`
	// WriteTimeoutSeconds must exceed translator.timeout_seconds, the webhook
	// response is written after the translation call returns.
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds" envconfig:"HTTP_WRITE_TIMEOUT_SECONDS"`
}

// Addr returns the host:port pair for net/http.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Listen, h.Port)
}

// TranslatorConfig configures the LibreTranslate-compatible provider.
type TranslatorConfig struct {
	URL            string `yaml:"url" envconfig:"TRANSLATOR_URL"`
	APIKey         string `yaml:"api_key" envconfig:"TRANSLATOR_API_KEY"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"TRANSLATOR_TIMEOUT_SECONDS"`
}

// Timeout returns the translation call deadline.
func (t TranslatorConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// SessionConfig selects and tunes the conversation session backend.
type SessionConfig struct {
	Backend              string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	TTLSeconds           int    `yaml:"ttl_seconds" envconfig:"SESSION_TTL_SECONDS"`
	MaxSessions          int    `yaml:"max_sessions" envconfig:"SESSION_MAX_SESSIONS"`
	PruneIntervalSeconds int    `yaml:"prune_interval_seconds" envconfig:"SESSION_PRUNE_INTERVAL_SECONDS"`
}

// TTL returns the idle expiry of a session.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// PruneInterval returns how often durable backends sweep expired sessions.
func (s SessionConfig) PruneInterval() time.Duration {
	return time.Duration(s.PruneIntervalSeconds) * time.Second
}

// DatabaseConfig holds Postgres connection settings for the postgres session backend.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// MigrationsDir points at the golang-migrate file source; default "migrations".
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// RedisConfig holds connection settings for the redis session backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password  string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" envconfig:"REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`
}

// SenderConfig tunes the asynchronous outbound queue.
// MaxRetries stays 0 unless retries are a deliberate choice: sends are best-effort.
type SenderConfig struct {
	QueueSize      int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers        int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	MaxRetries     int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms" envconfig:"SENDER_RETRY_BACKOFF_MS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	File        string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for per-sender rate limiting on Telegram.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// BackendMemory keeps sessions in process memory.
	BackendMemory = "memory"
	// BackendPostgres keeps sessions in the sessions table.
	BackendPostgres = "postgres"
	// BackendRedis keeps sessions as expiring redis keys.
	BackendRedis = "redis"
)

const (
	defaultGraphURL         = "https://graph.facebook.com"
	defaultAPIVersion       = "v12.0"
	defaultTranslatorURL    = "https://libretranslate.com/translate"
	defaultWebhookPath      = "/webhook"
	defaultPort             = 3000
	defaultReadTimeout      = 10
	defaultTranslateTimeout = 10
	defaultSessionTTL       = 30 * 60
	defaultMaxSessions      = 10000
	defaultPruneInterval    = 5 * 60
	defaultRedisPrefix      = "lingobot:session:"
	defaultInboxWorkers     = 4
	defaultInboxQueue       = 1024
)

// Config aggregates the application configuration.
type Config struct {
	Messenger  MessengerConfig  `yaml:"messenger"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	HTTP       HTTPConfig       `yaml:"http"`
	Translator TranslatorConfig `yaml:"translator"`
	Session    SessionConfig    `yaml:"session"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Sender     SenderConfig     `yaml:"sender"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
// An empty path skips the file and relies on the environment alone.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := Normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads the same sources as Load but validates only the
// database section. Platform tokens are not required.
func LoadDatabase(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := RequireDatabase(cfg.Database); err != nil {
		return nil, err
	}
	normalizeDatabase(&cfg.Database)
	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if !cfg.Messenger.Enabled() && !cfg.Telegram.Enabled() {
		return fmt.Errorf("no platform configured: set messenger.page_access_token or telegram.token")
	}

	if cfg.Messenger.Enabled() {
		if strings.TrimSpace(cfg.Messenger.VerifyToken) == "" {
			return fmt.Errorf("messenger.verify_token is required when messenger is enabled")
		}
		if strings.TrimSpace(cfg.Messenger.GraphURL) == "" {
			cfg.Messenger.GraphURL = defaultGraphURL
		}
		cfg.Messenger.GraphURL = strings.TrimRight(cfg.Messenger.GraphURL, "/")
		if strings.TrimSpace(cfg.Messenger.APIVersion) == "" {
			cfg.Messenger.APIVersion = defaultAPIVersion
		}
		if cfg.Messenger.Workers <= 0 {
			cfg.Messenger.Workers = defaultInboxWorkers
		}
		if cfg.Messenger.QueueSize <= 0 {
			cfg.Messenger.QueueSize = defaultInboxQueue
		}
	}

	if err := normalizeTelegram(&cfg.Telegram); err != nil {
		return err
	}

	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = defaultPort
	}
	if cfg.HTTP.Port < 0 {
		return fmt.Errorf("http.port must be > 0")
	}
	if strings.TrimSpace(cfg.HTTP.WebhookPath) == "" {
		cfg.HTTP.WebhookPath = defaultWebhookPath
	}
	if !strings.HasPrefix(cfg.HTTP.WebhookPath, "/") {
		cfg.HTTP.WebhookPath = "/" + cfg.HTTP.WebhookPath
	}
	if cfg.HTTP.ReadTimeoutSeconds <= 0 {
		cfg.HTTP.ReadTimeoutSeconds = defaultReadTimeout
	}

	if strings.TrimSpace(cfg.Translator.URL) == "" {
		cfg.Translator.URL = defaultTranslatorURL
	}
	if cfg.Translator.TimeoutSeconds <= 0 {
		cfg.Translator.TimeoutSeconds = defaultTranslateTimeout
	}
	if cfg.HTTP.WriteTimeoutSeconds <= cfg.Translator.TimeoutSeconds {
		cfg.HTTP.WriteTimeoutSeconds = cfg.Translator.TimeoutSeconds + 5
	}

	if err := normalizeSession(cfg); err != nil {
		return err
	}

	if cfg.Sender.MaxRetries < 0 {
		return fmt.Errorf("sender.max_retries must be >= 0")
	}
	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}
	return nil
}

func normalizeTelegram(tg *TelegramConfig) error {
	if !tg.Enabled() {
		return nil
	}
	rm := strings.ToLower(strings.TrimSpace(tg.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(tg.WebhookURL) == "" {
			return fmt.Errorf("telegram.webhook_url is required when telegram.run_mode is 'webhook'")
		}
		if tg.WebhookPort <= 0 {
			return fmt.Errorf("telegram.webhook_port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if tg.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", tg.RunMode)
	}
	tg.RunMode = rm
	return nil
}

func normalizeSession(cfg *Config) error {
	backend := strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	if backend == "" {
		backend = BackendMemory
	}
	switch backend {
	case BackendMemory:
	case BackendPostgres:
		if err := RequireDatabase(cfg.Database); err != nil {
			return err
		}
	case BackendRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required for the redis session backend")
		}
		if cfg.Redis.KeyPrefix == "" {
			cfg.Redis.KeyPrefix = defaultRedisPrefix
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, postgres, redis", cfg.Session.Backend)
	}
	cfg.Session.Backend = backend
	normalizeDatabase(&cfg.Database)

	if cfg.Session.TTLSeconds == 0 {
		cfg.Session.TTLSeconds = defaultSessionTTL
	}
	if cfg.Session.TTLSeconds < 0 {
		return fmt.Errorf("session.ttl_seconds must be >= 0")
	}
	if cfg.Session.MaxSessions <= 0 {
		cfg.Session.MaxSessions = defaultMaxSessions
	}
	if cfg.Session.PruneIntervalSeconds <= 0 {
		cfg.Session.PruneIntervalSeconds = defaultPruneInterval
	}
	return nil
}

// RequireDatabase reports whether enough settings exist to reach Postgres.
func RequireDatabase(db DatabaseConfig) error {
	if strings.TrimSpace(db.Host) == "" || strings.TrimSpace(db.Name) == "" {
		return fmt.Errorf("database.host and database.name are required for the postgres session backend")
	}
	return nil
}

func normalizeDatabase(db *DatabaseConfig) {
	if strings.TrimSpace(db.SSLMode) == "" {
		db.SSLMode = "disable"
	}
	if strings.TrimSpace(db.Port) == "" {
		db.Port = "5432"
	}
	if db.MaxConnections <= 0 {
		db.MaxConnections = 5
	}
	if strings.TrimSpace(db.MigrationsDir) == "" {
		db.MigrationsDir = "migrations"
	}
}
