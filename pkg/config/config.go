// Package config assembles runtime configuration from the environment.
// A .env file, when present, is loaded first; real environment variables
// win over it. Missing collaborator credentials are reported as warnings
// so the server can start degraded instead of refusing to boot.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the server and agent.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LiveKit  LiveKitConfig
	OpenAI   OpenAIConfig
	Webhook  WebhookConfig
	Voice    VoiceConfig
	LogLevel string
}

// ServerConfig covers the HTTP surface.
type ServerConfig struct {
	Host         string
	Port         int
	DashboardURL string
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig covers the database and on-disk directories.
type StorageConfig struct {
	DatabasePath string
	UploadsDir   string
	OutputDir    string
}

// LiveKitConfig covers the realtime control plane. Optional; without
// credentials sessions are created in API-only mode with a warning.
type LiveKitConfig struct {
	HostURL   string
	APIKey    string
	APISecret string
}

// Configured reports whether all LiveKit credentials are present.
func (l LiveKitConfig) Configured() bool {
	return l.HostURL != "" && l.APIKey != "" && l.APISecret != ""
}

// OpenAIConfig covers both the extraction LLM and the realtime voice model.
type OpenAIConfig struct {
	APIKey        string
	Model         string
	RealtimeModel string
	BaseURL       string
}

// WebhookConfig covers outbound lifecycle notifications. Optional.
type WebhookConfig struct {
	URL       string
	AuthToken string
}

// VoiceConfig covers voice-session tuning that is not per-session.
type VoiceConfig struct {
	BasePrompt   string
	GreetingLock time.Duration
}

// Load reads configuration from the environment, applying defaults.
// The returned warnings name optional collaborators that are not
// configured; they are meant for startup logging.
func Load() (*Config, []string) {
	// Missing .env is fine; containers set real env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			DashboardURL: os.Getenv("DASHBOARD_URL"),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("DATABASE_PATH", "data/konsul.db"),
			UploadsDir:   getEnv("UPLOADS_DIR", "uploads"),
			OutputDir:    getEnv("OUTPUT_DIR", "output"),
		},
		LiveKit: LiveKitConfig{
			HostURL:   os.Getenv("LIVEKIT_URL"),
			APIKey:    os.Getenv("LIVEKIT_API_KEY"),
			APISecret: os.Getenv("LIVEKIT_API_SECRET"),
		},
		OpenAI: OpenAIConfig{
			APIKey:        os.Getenv("OPENAI_API_KEY"),
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			RealtimeModel: getEnv("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview"),
			BaseURL:       os.Getenv("OPENAI_BASE_URL"),
		},
		Webhook: WebhookConfig{
			URL:       os.Getenv("WEBHOOK_URL"),
			AuthToken: os.Getenv("WEBHOOK_AUTH_TOKEN"),
		},
		Voice: VoiceConfig{
			BasePrompt:   os.Getenv("BASE_PROMPT"),
			GreetingLock: time.Duration(getEnvInt("GREETING_LOCK_MS", 1000)) * time.Millisecond,
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	var warnings []string
	if !cfg.LiveKit.Configured() {
		warnings = append(warnings, "LiveKit credentials missing; voice rooms disabled (set LIVEKIT_URL, LIVEKIT_API_KEY, LIVEKIT_API_SECRET)")
	}
	if cfg.OpenAI.APIKey == "" {
		warnings = append(warnings, "OPENAI_API_KEY missing; anketa extraction disabled")
	}
	if cfg.Webhook.URL == "" {
		warnings = append(warnings, "WEBHOOK_URL missing; lifecycle notifications disabled")
	}
	return cfg, warnings
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
