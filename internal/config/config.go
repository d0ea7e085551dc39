package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	Mediation     struct {
		AlertThreshold            float64 `json:"alert_threshold"`
		EscalationCooldownMinutes int     `json:"escalation_cooldown_minutes"`
		DecayHalfLifeMinutes      int     `json:"decay_half_life_minutes"`
		WindowCapacity            int     `json:"window_capacity"`
		SessionTTLMinutes         int     `json:"session_ttl_minutes"`
	} `json:"mediation"`
	LLM struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
	} `json:"llm"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

// EscalationCooldown returns the minimum gap between alerts for the same
// (group, participant) pair.
func (c *Config) EscalationCooldown() time.Duration {
	return time.Duration(c.Mediation.EscalationCooldownMinutes) * time.Minute
}

// DecayHalfLife returns the half-life used for risk score decay.
func (c *Config) DecayHalfLife() time.Duration {
	return time.Duration(c.Mediation.DecayHalfLifeMinutes) * time.Minute
}

// SessionTTL returns how long an idle group session survives before the
// sweeper evicts it.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Mediation.SessionTTLMinutes) * time.Minute
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".auticonnect"),
		MaxConcurrent: 2,
	}
	cfg.LogLevel = "info"
	cfg.Mediation.AlertThreshold = 70
	cfg.Mediation.EscalationCooldownMinutes = 10
	cfg.Mediation.DecayHalfLifeMinutes = 30
	cfg.Mediation.WindowCapacity = 50
	cfg.Mediation.SessionTTLMinutes = 240
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 1000
	cfg.LLM.Temperature = 0.7
	cfg.LLM.MaxContextTokens = 128000
	cfg.LLM.OutputReserve = 4096
	cfg.HTTP.Listen = "127.0.0.1:8479"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the mediation core cannot safely run with.
// Called at startup; a failure here is fatal, there is no partial operation.
func (c *Config) Validate() error {
	m := c.Mediation
	if m.AlertThreshold < 0 || m.AlertThreshold > 100 {
		return fmt.Errorf("mediation.alert_threshold must be in [0,100], got %v", m.AlertThreshold)
	}
	if m.EscalationCooldownMinutes <= 0 {
		return fmt.Errorf("mediation.escalation_cooldown_minutes must be positive, got %d", m.EscalationCooldownMinutes)
	}
	if m.DecayHalfLifeMinutes <= 0 {
		return fmt.Errorf("mediation.decay_half_life_minutes must be positive, got %d", m.DecayHalfLifeMinutes)
	}
	if m.WindowCapacity <= 0 {
		return fmt.Errorf("mediation.window_capacity must be positive, got %d", m.WindowCapacity)
	}
	if m.SessionTTLMinutes <= 0 {
		return fmt.Errorf("mediation.session_ttl_minutes must be positive, got %d", m.SessionTTLMinutes)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive, got %d", c.MaxConcurrent)
	}
	return nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

// Save writes the config to disk atomically.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}
