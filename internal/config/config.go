package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Storage driver names accepted in storage.driver.
const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

// Classifier providers accepted in classifier.provider.
const (
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config represents the tradeflow configuration
type Config struct {
	Storage    StorageConfig    `mapstructure:"storage" json:"storage"`
	Log        LogConfig        `mapstructure:"log" json:"log"`
	Gateway    GatewayConfig    `mapstructure:"gateway" json:"gateway"`
	Notifier   NotifierConfig   `mapstructure:"notifier" json:"notifier"`
	Notify     NotifyConfig     `mapstructure:"notify" json:"notify"`
	Triage     TriageConfig     `mapstructure:"triage" json:"triage"`
	Classifier ClassifierConfig `mapstructure:"classifier" json:"classifier"`
}

// StorageConfig selects the SQLite driver and database file.
type StorageConfig struct {
	Driver        string `mapstructure:"driver" json:"driver"`
	Path          string `mapstructure:"path" json:"path"` // empty means ~/.tradeflow/tradeflow.db
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms" json:"busy_timeout_ms"`
}

type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

type GatewayConfig struct {
	Host  string `mapstructure:"host" json:"host"`
	Port  int    `mapstructure:"port" json:"port"`
	Token string `mapstructure:"token" json:"token"`
}

// Addr returns host:port for the listener.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

type NotifierConfig struct {
	SubscriberBuffer int `mapstructure:"subscriber_buffer" json:"subscriber_buffer"`
}

// NotifyConfig controls push delivery. Deliveries run in the background,
// each bounded by TimeoutSeconds, at most MaxInFlight at a time.
type NotifyConfig struct {
	TimeoutSeconds int            `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	MaxInFlight    int            `mapstructure:"max_in_flight" json:"max_in_flight"`
	Telegram       TelegramConfig `mapstructure:"telegram" json:"telegram"`
}

// Timeout returns the per-delivery timeout.
func (n NotifyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// TelegramConfig routes push notifications to Telegram chats.
// Recipients maps a tradeflow user ID to a Telegram chat ID.
type TelegramConfig struct {
	Enabled    bool              `mapstructure:"enabled" json:"enabled"`
	Token      string            `mapstructure:"token" json:"token"`
	Recipients map[string]string `mapstructure:"recipients" json:"recipients"`
}

type TriageConfig struct {
	MinExchangesForCTA int     `mapstructure:"min_exchanges_for_cta" json:"min_exchanges_for_cta"`
	SummaryLimit       int     `mapstructure:"summary_limit" json:"summary_limit"`
	WindowSize         int     `mapstructure:"window_size" json:"window_size"`
	ConfidenceFloor    float64 `mapstructure:"confidence_floor" json:"confidence_floor"`
}

type ClassifierConfig struct {
	Provider       string  `mapstructure:"provider" json:"provider"`
	Model          string  `mapstructure:"model" json:"model"`
	APIKey         string  `mapstructure:"api_key" json:"api_key"`
	BaseURL        string  `mapstructure:"base_url" json:"base_url"`
	Temperature    float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" json:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" json:"timeout_seconds"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:        DriverCGO,
			BusyTimeoutMS: 5000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Notifier: NotifierConfig{
			SubscriberBuffer: 64,
		},
		Notify: NotifyConfig{
			TimeoutSeconds: 10,
			MaxInFlight:    32,
			Telegram: TelegramConfig{
				Recipients: map[string]string{},
			},
		},
		Triage: TriageConfig{
			MinExchangesForCTA: 3,
			SummaryLimit:       2000,
			WindowSize:         12,
			ConfidenceFloor:    0.7,
		},
		Classifier: ClassifierConfig{
			Provider:       ProviderNone,
			Model:          "gpt-4o-mini",
			Temperature:    0.2,
			MaxTokens:      800,
			TimeoutSeconds: 30,
		},
	}
}

// ConfigDir returns the tradeflow config directory
func ConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return filepath.Join(homeDir, ".tradeflow")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// LoadFrom reads config from path. A missing file is created with defaults.
// Environment variables prefixed TRADEFLOW_ override file values.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("TRADEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save writes config to path
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks ranges and fills in zero values.
func (c *Config) Validate() error {
	driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch driver {
	case "":
		c.Storage.Driver = DriverCGO
	case DriverCGO, DriverPureGo:
		c.Storage.Driver = driver
	default:
		return fmt.Errorf("storage.driver must be one of sqlite3, sqlite; got %q", c.Storage.Driver)
	}
	if c.Storage.BusyTimeoutMS < 0 {
		return fmt.Errorf("storage.busy_timeout_ms must not be negative, got %d", c.Storage.BusyTimeoutMS)
	}
	if c.Storage.BusyTimeoutMS == 0 {
		c.Storage.BusyTimeoutMS = 5000
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	if c.Notifier.SubscriberBuffer <= 0 {
		c.Notifier.SubscriberBuffer = 64
	}

	if c.Notify.TimeoutSeconds < 0 || c.Notify.MaxInFlight < 0 {
		return fmt.Errorf("notify.timeout_seconds and notify.max_in_flight must not be negative")
	}
	if c.Notify.TimeoutSeconds == 0 {
		c.Notify.TimeoutSeconds = 10
	}
	if c.Notify.MaxInFlight == 0 {
		c.Notify.MaxInFlight = 32
	}

	if c.Notify.Telegram.Enabled && strings.TrimSpace(c.Notify.Telegram.Token) == "" {
		return fmt.Errorf("notify.telegram.token is required when telegram is enabled")
	}
	if c.Notify.Telegram.Recipients == nil {
		c.Notify.Telegram.Recipients = map[string]string{}
	}

	t := &c.Triage
	if t.MinExchangesForCTA < 0 {
		return fmt.Errorf("triage.min_exchanges_for_cta must not be negative, got %d", t.MinExchangesForCTA)
	}
	if t.MinExchangesForCTA == 0 {
		t.MinExchangesForCTA = 3
	}
	if t.SummaryLimit <= 0 {
		t.SummaryLimit = 2000
	}
	if t.WindowSize <= 0 {
		t.WindowSize = 12
	}
	if t.ConfidenceFloor < 0 || t.ConfidenceFloor > 1 {
		return fmt.Errorf("triage.confidence_floor must be between 0 and 1, got %f", t.ConfidenceFloor)
	}
	if t.ConfidenceFloor == 0 {
		t.ConfidenceFloor = 0.7
	}

	cl := &c.Classifier
	provider := strings.ToLower(strings.TrimSpace(cl.Provider))
	switch provider {
	case "":
		cl.Provider = ProviderNone
	case ProviderOpenAI, ProviderNone:
		cl.Provider = provider
	default:
		return fmt.Errorf("classifier.provider must be one of openai, none; got %q", cl.Provider)
	}
	if cl.Temperature < 0 || cl.Temperature > 2.0 {
		return fmt.Errorf("classifier.temperature must be between 0 and 2.0, got %f", cl.Temperature)
	}
	if cl.MaxTokens < 0 {
		return fmt.Errorf("classifier.max_tokens must not be negative, got %d", cl.MaxTokens)
	}
	if cl.MaxTokens == 0 {
		cl.MaxTokens = 800
	}
	if cl.TimeoutSeconds <= 0 {
		cl.TimeoutSeconds = 30
	}
	if cl.Provider == ProviderOpenAI && strings.TrimSpace(cl.APIKey) == "" && strings.TrimSpace(cl.BaseURL) == "" {
		return fmt.Errorf("classifier.api_key or classifier.base_url is required for provider openai")
	}

	return nil
}
