// Package config loads settings for the pusoy binaries. Values come from an
// optional YAML file, overridden by PUSOY_* environment variables. A .env
// file in the working directory is loaded best-effort first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds settings for the pusoyd binary.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	LogLevel       string        `yaml:"log_level"`
	MaxActionTimer time.Duration `yaml:"max_action_timer"`
	BotActionTimer time.Duration `yaml:"bot_action_timer"`
}

// ClientConfig holds settings for the pusoy terminal client.
type ClientConfig struct {
	ServerURL string `yaml:"server_url"`
	SessionID string `yaml:"session_id"`
	LogLevel  string `yaml:"log_level"`
}

// LoadServer builds the server configuration. An empty path skips the YAML
// file; a named file that is missing is an error.
func LoadServer(path string) (ServerConfig, error) {
	cfg := ServerConfig{
		Addr:     ":8080",
		LogLevel: "info",
	}
	if err := loadFile(path, &cfg); err != nil {
		return ServerConfig{}, err
	}

	cfg.Addr = getEnv("PUSOY_ADDR", cfg.Addr)
	cfg.LogLevel = getEnv("PUSOY_LOG_LEVEL", cfg.LogLevel)
	cfg.MaxActionTimer = getEnvAsDuration("PUSOY_MAX_ACTION_TIMER", cfg.MaxActionTimer)
	cfg.BotActionTimer = getEnvAsDuration("PUSOY_BOT_ACTION_TIMER", cfg.BotActionTimer)
	return cfg, nil
}

// LoadClient builds the client configuration. An empty path skips the YAML
// file; a named file that is missing is an error.
func LoadClient(path string) (ClientConfig, error) {
	cfg := ClientConfig{
		ServerURL: "http://localhost:8080",
		LogLevel:  "info",
	}
	if err := loadFile(path, &cfg); err != nil {
		return ClientConfig{}, err
	}

	cfg.ServerURL = getEnv("PUSOY_SERVER_URL", cfg.ServerURL)
	cfg.SessionID = getEnv("PUSOY_SESSION_ID", cfg.SessionID)
	cfg.LogLevel = getEnv("PUSOY_LOG_LEVEL", cfg.LogLevel)
	return cfg, nil
}

// LoadDotEnv loads a .env file into the process environment if one exists.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func loadFile(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}
