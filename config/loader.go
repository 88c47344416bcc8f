// Package config loads the service settings from YAML with
// environment-variable overrides for everything secret or
// deploy-specific.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the complete service configuration.
type Settings struct {
	Endpoint  EndpointSettings  `yaml:"endpoint"`
	Chat      ChatSettings      `yaml:"chat"`
	Feedback  FeedbackSettings  `yaml:"feedback"`
	RateLimit RateLimitSettings `yaml:"rate_limit"`
}

// EndpointSettings describes the model-serving endpoint. The endpoint
// is opaque: one URL, bearer auth, OpenAI-ish request shape.
type EndpointSettings struct {
	URL         string  `yaml:"url"`
	Token       string  `yaml:"token"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// ChatSettings configures the page copy and the system prompt sent
// ahead of every conversation.
type ChatSettings struct {
	Title        string `yaml:"title"`
	Note         string `yaml:"note"`
	SystemPrompt string `yaml:"system_prompt"`
}

// FeedbackSettings configures the feedback/conversation sink.
type FeedbackSettings struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// RateLimitSettings configures the per-client token buckets.
type RateLimitSettings struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// TimeoutDuration parses the endpoint timeout, defaulting to 20s (the
// model endpoint is slow to cold-start; shorter timeouts drop real
// replies).
func (e EndpointSettings) TimeoutDuration() time.Duration {
	if e.Timeout == "" {
		return 20 * time.Second
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

// Defaults returns the built-in settings used when no settings file
// exists.
func Defaults() *Settings {
	return &Settings{
		Endpoint: EndpointSettings{
			MaxTokens:   500,
			Temperature: 0.7,
			Timeout:     "20s",
		},
		Chat: ChatSettings{
			Title: "Ace Handyman Services Estimation Rep",
			Note:  "Ask the rep below for handyman job information and estimates.",
		},
		Feedback: FeedbackSettings{
			Enabled: true,
			DBPath:  "handyman_feedback.db",
		},
		RateLimit: RateLimitSettings{
			RPS:   2,
			Burst: 10,
		},
	}
}

// Load reads settings from path, falling back to Defaults when the
// file does not exist, then applies environment overrides. A file
// that exists but cannot be parsed is an error - silently running
// with defaults would mask a broken deploy.
func Load(path string) (*Settings, error) {
	settings := Defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnv(settings)
	return settings, nil
}

// applyEnv overrides file values from the environment. Secrets only
// ever come from here or .env, never from the settings file checked
// into the repo.
func applyEnv(s *Settings) {
	if v := os.Getenv("ENDPOINT_URL"); v != "" {
		s.Endpoint.URL = v
	}
	if v := os.Getenv("ENDPOINT_TOKEN"); v != "" {
		s.Endpoint.Token = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		s.Endpoint.Model = v
	}
	if v := os.Getenv("ENDPOINT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Endpoint.MaxTokens = n
		}
	}
	if v := os.Getenv("FEEDBACK_DB_PATH"); v != "" {
		s.Feedback.DBPath = v
	}
	if v := os.Getenv("ENABLE_FEEDBACK_STORE"); v == "false" {
		s.Feedback.Enabled = false
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.RateLimit.Burst = n
		}
	}
}
