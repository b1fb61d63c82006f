package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

// Load reads, decodes and defaults the config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Store.Driver) == "" {
		cfg.Store.Driver = "file"
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = "./reminders.json"
	}
	if strings.TrimSpace(cfg.Store.BackupDir) == "" {
		cfg.Store.BackupDir = filepath.Join(filepath.Dir(cfg.Store.Path), "backups")
	}
	if strings.TrimSpace(cfg.Telegram.TokenEnv) == "" {
		cfg.Telegram.TokenEnv = DefaultTokenEnv
	}
	if strings.TrimSpace(cfg.Telegram.ChatIDEnv) == "" {
		cfg.Telegram.ChatIDEnv = DefaultChatIDEnv
	}
	if cfg.Telegram.MaxMessageLength <= 0 {
		cfg.Telegram.MaxMessageLength = DefaultMaxMessageLength
	}
	if cfg.Telegram.RatePerSec <= 0 {
		cfg.Telegram.RatePerSec = DefaultRatePerSec
	}
	if strings.TrimSpace(cfg.Render) == "" {
		cfg.Render = "markdown"
	}
	if cfg.Daemon != nil && strings.TrimSpace(cfg.Daemon.Schedule) == "" {
		cfg.Daemon.Schedule = DefaultSchedule
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
}

// Secrets holds the externally supplied channel credentials.
// Either field may be absent; dispatch then degrades to a reported no-op.
type Secrets struct {
	Token  string
	ChatID int64
}

// LoadSecrets resolves credentials from the environment. A .env file in the
// working directory is honored when present (developer convenience; CI
// supplies real env vars).
func (c *Config) LoadSecrets() (Secrets, error) {
	_ = godotenv.Load()

	s := Secrets{Token: strings.TrimSpace(os.Getenv(c.Telegram.TokenEnv))}
	raw := strings.TrimSpace(os.Getenv(c.Telegram.ChatIDEnv))
	if raw == "" {
		return s, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return s, fmt.Errorf("parse %s: %w", c.Telegram.ChatIDEnv, err)
	}
	s.ChatID = id
	return s, nil
}

// Complete reports whether both credentials are present.
func (s Secrets) Complete() bool { return s.Token != "" && s.ChatID != 0 }

// coerceToJSONBytes converts YAML config to JSON bytes so the strict JSON
// decoder (DisallowUnknownFields) serves both formats.
//
// Returns (jsonBytes, format, err) where format is "json" or "yaml".
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, "json", nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}

	v = normalizeYAML(v)

	j, err := json.Marshal(v)
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, "yaml", nil
}

// normalizeYAML ensures all map keys are strings so the result can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

// Validate rejects configurations the run could not honor.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "file", "sqlite", "sqlite3":
	default:
		return errors.New("unknown store driver: " + c.Store.Driver)
	}
	switch strings.ToLower(strings.TrimSpace(c.Render)) {
	case "markdown", "plain":
	default:
		return errors.New("unknown render strategy: " + c.Render)
	}
	return nil
}
