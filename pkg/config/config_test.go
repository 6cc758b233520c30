package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// TestDefaultConfig_Gateway verifies gateway defaults
func TestDefaultConfig_Gateway(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Gateway.Host != "0.0.0.0" {
		t.Error("Gateway host should have default value")
	}
	if cfg.Gateway.Port != 3000 {
		t.Errorf("Gateway port = %d, want 3000", cfg.Gateway.Port)
	}
}

// TestDefaultConfig_HistorySize verifies the recent utterance window
func TestDefaultConfig_HistorySize(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Agent.HistorySize != 5 {
		t.Errorf("HistorySize = %d, want 5", cfg.Agent.HistorySize)
	}
	if cfg.Agent.Workers <= 0 {
		t.Error("Workers should be positive")
	}
}

// TestDefaultConfig_ClassifierDisabled verifies only the rule path runs by default
func TestDefaultConfig_ClassifierDisabled(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Classifier.Provider != "none" {
		t.Errorf("Classifier provider = %q, want none", cfg.Classifier.Provider)
	}
	if cfg.ClassifierTimeout() != 8*time.Second {
		t.Errorf("ClassifierTimeout = %v, want 8s", cfg.ClassifierTimeout())
	}
}

// TestDefaultConfig_Providers verifies provider credentials are empty by default
func TestDefaultConfig_Providers(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Providers.OpenRouter.APIKey != "" {
		t.Error("OpenRouter API key should be empty by default")
	}
	if cfg.Providers.Gemini.APIKey != "" {
		t.Error("Gemini API key should be empty by default")
	}
	if cfg.Providers.Gemini.Model == "" {
		t.Error("Gemini model should have a default")
	}
	if cfg.GetOpenRouterBase() != "https://openrouter.ai/api/v1" {
		t.Errorf("unexpected OpenRouter base %q", cfg.GetOpenRouterBase())
	}
}

// TestDefaultConfig_Channels verifies channels are disabled by default
func TestDefaultConfig_Channels(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Channels.WhatsApp.Enabled || cfg.Channels.Discord.Enabled {
		t.Error("channels should be disabled by default")
	}
	if cfg.Channels.WhatsApp.APIBase != "https://graph.facebook.com/v18.0" {
		t.Errorf("unexpected WhatsApp api base %q", cfg.Channels.WhatsApp.APIBase)
	}
}

// TestDefaultConfig_Store verifies store defaults
func TestDefaultConfig_Store(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Store.ResyncCron == "" {
		t.Error("ResyncCron should have default value")
	}
	if cfg.StoreTimeout() != 5*time.Second {
		t.Errorf("StoreTimeout = %v, want 5s", cfg.StoreTimeout())
	}
	if cfg.Sessions.Backend != "memory" {
		t.Errorf("Sessions backend = %q, want memory", cfg.Sessions.Backend)
	}
}

func TestSaveConfig_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permission bits are not enforced on Windows")
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("config file has permission %04o, want 0600", perm)
	}
}

func TestLoadConfig_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("FACTKEEPER_STORE_BACKEND", "memory")
	t.Setenv("FACTKEEPER_EVENTS_BROKERS", "k1:9092,k2:9092")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Store.Backend; got != "memory" {
		t.Fatalf("expected env override backend, got %q", got)
	}
	if len(cfg.Events.Brokers) != 2 || cfg.Events.Brokers[1] != "k2:9092" {
		t.Fatalf("expected two brokers from env, got %v", cfg.Events.Brokers)
	}
}

func TestLoadConfig_JSONAllowFromAcceptsNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"channels":{"whatsapp":{"enabled":true,"allow_from":[15551234567,"15557654321"]}}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.Channels.WhatsApp.Enabled {
		t.Fatal("expected whatsapp enabled from file")
	}
	want := []string{"15551234567", "15557654321"}
	if len(cfg.Channels.WhatsApp.AllowFrom) != 2 || cfg.Channels.WhatsApp.AllowFrom[0] != want[0] || cfg.Channels.WhatsApp.AllowFrom[1] != want[1] {
		t.Fatalf("allow_from = %v, want %v", cfg.Channels.WhatsApp.AllowFrom, want)
	}
	// Unset sections keep their defaults.
	if cfg.Agent.HistorySize != 5 {
		t.Fatalf("expected default history size, got %d", cfg.Agent.HistorySize)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "store:\n  backend: postgres\n  postgres_dsn: postgres://localhost/facts\nclassifier:\n  provider: gemini\n  timeout_ms: 1500\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Store.Backend != "postgres" || cfg.Store.PostgresDSN != "postgres://localhost/facts" {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
	if cfg.ClassifierTimeout() != 1500*time.Millisecond {
		t.Fatalf("ClassifierTimeout = %v", cfg.ClassifierTimeout())
	}
	if cfg.Store.MongoDatabase != "factkeeper" {
		t.Fatalf("expected default mongo database to survive, got %q", cfg.Store.MongoDatabase)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}
