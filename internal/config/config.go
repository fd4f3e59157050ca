// Package config loads service configuration from an optional YAML file and
// ASSIST_-prefixed environment variables, env taking precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	ADK     ADKConfig     `koanf:"adk"`
	Storage StorageConfig `koanf:"storage"`
	Chat    ChatConfig    `koanf:"chat"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

// ADKConfig locates the agent backend.
type ADKConfig struct {
	// Endpoint is the backend root, e.g. "http://localhost:8000/adk-api".
	Endpoint string `koanf:"endpoint"`
	AppName  string `koanf:"appname"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, redis, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
	Redis  RedisConfig  `koanf:"redis"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type ChatConfig struct {
	// DefaultLanguage is used for UI notices when the message text gives no
	// signal; he or en.
	DefaultLanguage string `koanf:"language"`
}

// Load reads configuration. path may name a YAML file; a missing file is not
// an error so the service can run on env vars and defaults alone.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	// Environment variables override the file
	if err := k.Load(env.Provider("ASSIST_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "ASSIST_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"server.port":         8080,
		"adk.endpoint":        "http://localhost:8000/adk-api",
		"adk.appname":         "procurementAgent",
		"storage.type":        "sqlite",
		"storage.sqlite.path": "./data/assistant.db",
		"chat.language":       "he",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
