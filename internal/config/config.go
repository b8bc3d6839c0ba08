package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported history backends
const (
	HistoryMemory   = "memory"
	HistoryPostgres = "postgres"
	HistoryRedis    = "redis"
	HistoryBolt     = "bolt"
)

// Config is the full process configuration
type Config struct {
	GRPCAddr  string `yaml:"grpc_addr"`
	AdminAddr string `yaml:"admin_addr"`
	APIToken  string `yaml:"api_token"`

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`

	Will     WillConfig     `yaml:"will"`
	History  HistoryConfig  `yaml:"history"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Bolt     BoltConfig     `yaml:"bolt"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	AI       AIConfig       `yaml:"ai"`
	Ledger   LedgerConfig   `yaml:"ledger"`
}

// WillConfig tunes the dead man's switch
type WillConfig struct {
	InactivityThresholdDays float64       `yaml:"inactivity_threshold_days"`
	CountdownDuration       time.Duration `yaml:"countdown_duration"`
	GasReservePercent       int           `yaml:"gas_reserve_percent"`
	WatchInterval           time.Duration `yaml:"watch_interval"`
	SentinelInterval        time.Duration `yaml:"sentinel_interval"`
	EventJournalLimit       int           `yaml:"event_journal_limit"`
}

// HistoryConfig selects the transfer history store
type HistoryConfig struct {
	Backend string `yaml:"backend"`
	Limit   int    `yaml:"limit"`
}

// DatabaseConfig holds the postgres connection settings
type DatabaseConfig struct {
	ConnStr  string `yaml:"conn_str"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DSN returns ConnStr, or builds one from the individual fields
func (d DatabaseConfig) DSN() string {
	if d.ConnStr != "" {
		return d.ConnStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds the redis connection settings
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// BoltConfig holds the embedded store path
type BoltConfig struct {
	Path string `yaml:"path"`
}

// KafkaConfig enables event publishing when Brokers is non-empty
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// AIConfig points at an OpenAI-compatible chat-completions endpoint.
// An empty BaseURL or APIKey disables the remote interpreter and sentinel.
type AIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LedgerConfig configures the simulated ledger
type LedgerConfig struct {
	AgentAddress    string  `yaml:"agent_address"`
	InitialBalance  string  `yaml:"initial_balance"`
	TransfersPerSec float64 `yaml:"transfers_per_sec"`
}

// Default returns the development defaults
func Default() Config {
	return Config{
		GRPCAddr:  ":8080",
		AdminAddr: ":9090",
		APIToken:  "dev-token",
		LogFormat: "json",
		LogLevel:  "info",
		Will: WillConfig{
			InactivityThresholdDays: 180,
			CountdownDuration:       30 * time.Second,
			GasReservePercent:       5,
			WatchInterval:           10 * time.Second,
			SentinelInterval:        30 * time.Second,
			EventJournalLimit:       200,
		},
		History: HistoryConfig{
			Backend: HistoryMemory,
			Limit:   50,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "sileme",
		},
		Redis: RedisConfig{
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Bolt: BoltConfig{
			Path: "sileme-history.db",
		},
		Kafka: KafkaConfig{
			Topic: "sileme.events",
		},
		AI: AIConfig{
			BaseURL:    "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:      "qwen-plus",
			RatePerSec: 2,
			Timeout:    20 * time.Second,
		},
		Ledger: LedgerConfig{
			AgentAddress:    "0x5111e0000000000000000000000000000000a9e4",
			InitialBalance:  "1000000000000000000",
			TransfersPerSec: 5,
		},
	}
}

// FromEnv builds the configuration: defaults, then the YAML file named by
// SILEME_CONFIG_FILE (if set), then individual environment variables.
func FromEnv() (Config, error) {
	cfg := Default()

	if path := os.Getenv("SILEME_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file onto cfg; absent keys keep their values
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.GRPCAddr, "GRPC_ADDR")
	setString(&c.AdminAddr, "ADMIN_ADDR")
	setString(&c.APIToken, "API_TOKEN")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.LogLevel, "LOG_LEVEL")

	setString(&c.History.Backend, "HISTORY_BACKEND")
	setString(&c.Database.ConnStr, "DB_CONN_STR")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Bolt.Path, "BOLT_PATH")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setString(&c.AI.BaseURL, "AI_BASE_URL")
	setString(&c.AI.APIKey, "AI_API_KEY")
	setString(&c.AI.Model, "AI_MODEL")
	setString(&c.Ledger.AgentAddress, "LEDGER_AGENT_ADDRESS")
	setString(&c.Ledger.InitialBalance, "LEDGER_INITIAL_BALANCE")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	var errs []error
	errs = append(errs,
		setFloat(&c.Will.InactivityThresholdDays, "INACTIVITY_THRESHOLD_DAYS"),
		setDuration(&c.Will.CountdownDuration, "COUNTDOWN_DURATION"),
		setInt(&c.Will.GasReservePercent, "GAS_RESERVE_PERCENT"),
		setDuration(&c.Will.WatchInterval, "WATCH_INTERVAL"),
		setDuration(&c.Will.SentinelInterval, "SENTINEL_INTERVAL"),
		setInt(&c.History.Limit, "HISTORY_LIMIT"),
		setFloat(&c.AI.RatePerSec, "AI_RATE_PER_SEC"),
		setFloat(&c.Ledger.TransfersPerSec, "LEDGER_TRANSFERS_PER_SEC"),
	)
	return errors.Join(errs...)
}

// Validate rejects configurations the engine cannot run with
func (c Config) Validate() error {
	var errs []error

	if c.Will.GasReservePercent < 0 || c.Will.GasReservePercent >= 100 {
		errs = append(errs, fmt.Errorf("gas reserve percent must be in [0,100), got %d", c.Will.GasReservePercent))
	}
	if c.Will.InactivityThresholdDays <= 0 {
		errs = append(errs, errors.New("inactivity threshold must be positive"))
	}
	if c.Will.CountdownDuration <= 0 {
		errs = append(errs, errors.New("countdown duration must be positive"))
	}
	if c.Will.WatchInterval <= 0 {
		errs = append(errs, errors.New("watch interval must be positive"))
	}
	if c.Will.SentinelInterval <= 0 {
		errs = append(errs, errors.New("sentinel interval must be positive"))
	}
	if c.History.Limit <= 0 {
		errs = append(errs, errors.New("history limit must be positive"))
	}

	switch c.History.Backend {
	case HistoryMemory, HistoryPostgres, HistoryBolt:
	case HistoryRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis history backend requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown history backend %q", c.History.Backend))
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
