package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Gateway    GatewayConfig    `json:"gateway" yaml:"gateway"`
	Log        LogConfig        `json:"log" yaml:"log"`
	Agent      AgentConfig      `json:"agent" yaml:"agent"`
	Channels   ChannelsConfig   `json:"channels" yaml:"channels"`
	Providers  ProvidersConfig  `json:"providers" yaml:"providers"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Sessions   SessionsConfig   `json:"sessions" yaml:"sessions"`
	Events     EventsConfig     `json:"events" yaml:"events"`
	mu         sync.RWMutex
}

type GatewayConfig struct {
	Host string `json:"host" yaml:"host" env:"FACTKEEPER_GATEWAY_HOST"`
	Port int    `json:"port" yaml:"port" env:"FACTKEEPER_GATEWAY_PORT"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level" env:"FACTKEEPER_LOG_LEVEL"`
}

type AgentConfig struct {
	HistorySize     int `json:"history_size" yaml:"history_size" env:"FACTKEEPER_AGENT_HISTORY_SIZE"`
	Workers         int `json:"workers" yaml:"workers" env:"FACTKEEPER_AGENT_WORKERS"`
	HandleTimeoutMS int `json:"handle_timeout_ms" yaml:"handle_timeout_ms" env:"FACTKEEPER_AGENT_HANDLE_TIMEOUT_MS"`
	PhraseTimeoutMS int `json:"phrase_timeout_ms" yaml:"phrase_timeout_ms" env:"FACTKEEPER_AGENT_PHRASE_TIMEOUT_MS"`
}

type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp" yaml:"whatsapp"`
	Discord  DiscordConfig  `json:"discord" yaml:"discord"`
}

type WhatsAppConfig struct {
	Enabled       bool                `json:"enabled" yaml:"enabled" env:"FACTKEEPER_CHANNELS_WHATSAPP_ENABLED"`
	AccessToken   string              `json:"access_token" yaml:"access_token" env:"FACTKEEPER_CHANNELS_WHATSAPP_ACCESS_TOKEN"`
	PhoneNumberID string              `json:"phone_number_id" yaml:"phone_number_id" env:"FACTKEEPER_CHANNELS_WHATSAPP_PHONE_NUMBER_ID"`
	VerifyToken   string              `json:"verify_token" yaml:"verify_token" env:"FACTKEEPER_CHANNELS_WHATSAPP_VERIFY_TOKEN"`
	APIBase       string              `json:"api_base" yaml:"api_base" env:"FACTKEEPER_CHANNELS_WHATSAPP_API_BASE"`
	AllowFrom     FlexibleStringSlice `json:"allow_from" yaml:"allow_from" env:"FACTKEEPER_CHANNELS_WHATSAPP_ALLOW_FROM"`
}

type DiscordConfig struct {
	Enabled   bool                `json:"enabled" yaml:"enabled" env:"FACTKEEPER_CHANNELS_DISCORD_ENABLED"`
	Token     string              `json:"token" yaml:"token" env:"FACTKEEPER_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" yaml:"allow_from" env:"FACTKEEPER_CHANNELS_DISCORD_ALLOW_FROM"`
}

type ProvidersConfig struct {
	OpenRouter OpenRouterConfig `json:"openrouter" yaml:"openrouter"`
	Gemini     GeminiConfig     `json:"gemini" yaml:"gemini"`
}

type OpenRouterConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key" env:"FACTKEEPER_PROVIDERS_OPENROUTER_API_KEY"`
	APIBase string `json:"api_base" yaml:"api_base" env:"FACTKEEPER_PROVIDERS_OPENROUTER_API_BASE"`
	Model   string `json:"model" yaml:"model" env:"FACTKEEPER_PROVIDERS_OPENROUTER_MODEL"`
	Proxy   string `json:"proxy,omitempty" yaml:"proxy,omitempty" env:"FACTKEEPER_PROVIDERS_OPENROUTER_PROXY"`
}

type GeminiConfig struct {
	APIKey string `json:"api_key" yaml:"api_key" env:"FACTKEEPER_PROVIDERS_GEMINI_API_KEY"`
	Model  string `json:"model" yaml:"model" env:"FACTKEEPER_PROVIDERS_GEMINI_MODEL"`
}

// ClassifierConfig selects the optional AI-backed classifier. Provider "none"
// leaves only the rule-based path.
type ClassifierConfig struct {
	Provider  string `json:"provider" yaml:"provider" env:"FACTKEEPER_CLASSIFIER_PROVIDER"`
	TimeoutMS int    `json:"timeout_ms" yaml:"timeout_ms" env:"FACTKEEPER_CLASSIFIER_TIMEOUT_MS"`
}

type StoreConfig struct {
	Backend       string `json:"backend" yaml:"backend" env:"FACTKEEPER_STORE_BACKEND"`
	SQLitePath    string `json:"sqlite_path" yaml:"sqlite_path" env:"FACTKEEPER_STORE_SQLITE_PATH"`
	PostgresDSN   string `json:"postgres_dsn" yaml:"postgres_dsn" env:"FACTKEEPER_STORE_POSTGRES_DSN"`
	MongoURI      string `json:"mongo_uri" yaml:"mongo_uri" env:"FACTKEEPER_STORE_MONGO_URI"`
	MongoDatabase string `json:"mongo_database" yaml:"mongo_database" env:"FACTKEEPER_STORE_MONGO_DATABASE"`
	TimeoutMS     int    `json:"timeout_ms" yaml:"timeout_ms" env:"FACTKEEPER_STORE_TIMEOUT_MS"`
	ResyncCron    string `json:"resync_cron" yaml:"resync_cron" env:"FACTKEEPER_STORE_RESYNC_CRON"`
}

type SessionsConfig struct {
	Backend       string `json:"backend" yaml:"backend" env:"FACTKEEPER_SESSIONS_BACKEND"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr" env:"FACTKEEPER_SESSIONS_REDIS_ADDR"`
	RedisPassword string `json:"redis_password" yaml:"redis_password" env:"FACTKEEPER_SESSIONS_REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db" env:"FACTKEEPER_SESSIONS_REDIS_DB"`
	KeyPrefix     string `json:"key_prefix" yaml:"key_prefix" env:"FACTKEEPER_SESSIONS_KEY_PREFIX"`
}

type EventsConfig struct {
	Enabled bool                `json:"enabled" yaml:"enabled" env:"FACTKEEPER_EVENTS_ENABLED"`
	Brokers FlexibleStringSlice `json:"brokers" yaml:"brokers" env:"FACTKEEPER_EVENTS_BROKERS"`
	Topic   string              `json:"topic" yaml:"topic" env:"FACTKEEPER_EVENTS_TOPIC"`
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Agent: AgentConfig{
			HistorySize:     5,
			Workers:         8,
			HandleTimeoutMS: 30000,
			PhraseTimeoutMS: 5000,
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				Enabled:   false,
				APIBase:   "https://graph.facebook.com/v18.0",
				AllowFrom: FlexibleStringSlice{},
			},
			Discord: DiscordConfig{
				Enabled:   false,
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Providers: ProvidersConfig{
			OpenRouter: OpenRouterConfig{
				Model: "google/gemini-flash-1.5",
			},
			Gemini: GeminiConfig{
				Model: "gemini-1.5-flash",
			},
		},
		Classifier: ClassifierConfig{
			Provider:  "none",
			TimeoutMS: 8000,
		},
		Store: StoreConfig{
			Backend:       "sqlite",
			SQLitePath:    "~/.factkeeper/facts.db",
			MongoDatabase: "factkeeper",
			TimeoutMS:     5000,
			ResyncCron:    "*/5 * * * *",
		},
		Sessions: SessionsConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			KeyPrefix: "factkeeper:",
		},
		Events: EventsConfig{
			Enabled: false,
			Brokers: FlexibleStringSlice{"localhost:9092"},
			Topic:   "factkeeper.facts",
		},
	}
}

// LoadConfig reads path over DefaultConfig and then applies FACTKEEPER_*
// environment overrides. A missing file yields the defaults (env still applies).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse yaml config: %w", err)
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse json config: %w", err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) SQLitePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Store.SQLitePath)
}

func (c *Config) GetOpenRouterBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Providers.OpenRouter.APIBase != "" {
		return c.Providers.OpenRouter.APIBase
	}
	return "https://openrouter.ai/api/v1"
}

func (c *Config) ClassifierTimeout() time.Duration {
	return millis(c.Classifier.TimeoutMS, 8*time.Second)
}

func (c *Config) StoreTimeout() time.Duration {
	return millis(c.Store.TimeoutMS, 5*time.Second)
}

func (c *Config) HandleTimeout() time.Duration {
	return millis(c.Agent.HandleTimeoutMS, 30*time.Second)
}

func (c *Config) PhraseTimeout() time.Duration {
	return millis(c.Agent.PhraseTimeoutMS, 5*time.Second)
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

func millis(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
