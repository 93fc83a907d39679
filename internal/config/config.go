package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	LogLevel      string `json:"log_level"`
	MaxConcurrent int64  `json:"max_concurrent"`
	Model         string `json:"model"`
	Endpoint      struct {
		BaseURL        string `json:"base_url"`
		APIKey         string `json:"api_key"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"endpoint"`
	Inference struct {
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
		TopP        float32 `json:"top_p"`
	} `json:"inference"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".converse", "config.json")
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LogLevel = "info"
	cfg.MaxConcurrent = 4
	cfg.Model = "anthropic.claude-3-sonnet-20240229-v1:0"
	cfg.Endpoint.BaseURL = "https://bedrock-runtime.us-east-1.amazonaws.com"
	cfg.Endpoint.TimeoutSeconds = 60
	cfg.Inference.MaxTokens = 1024

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
	if apiKey := os.Getenv("CONVERSE_API_KEY"); apiKey != "" {
		cfg.Endpoint.APIKey = apiKey
	}
	if baseURL := os.Getenv("CONVERSE_BASE_URL"); baseURL != "" {
		cfg.Endpoint.BaseURL = baseURL
	}
	if model := os.Getenv("CONVERSE_MODEL"); model != "" {
		cfg.Model = model
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
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
