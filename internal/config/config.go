package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tldr/internal/domain"
	"tldr/internal/native"
	"tldr/internal/pipeline"
	"tldr/internal/widget"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Token        string  `env:"TOKEN"`
	AllowedUsers []int64 `env:"ALLOWED_USERS"`

	OllamaHost      string `env:"OLLAMA_HOST"`
	NativeModel     string `env:"NATIVE_MODEL"      envDefault:"llama3.2:latest"`
	NativeAllowPull bool   `env:"NATIVE_ALLOW_PULL" envDefault:"false"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	FallbackModel string `env:"FALLBACK_MODEL"  envDefault:"gpt-4o-mini"`

	TriggerMode       string        `env:"TRIGGER_MODE"       envDefault:"manual"`
	Language          string        `env:"LANGUAGE"           envDefault:"en"`
	Length            string        `env:"LENGTH"             envDefault:"medium"`
	InvocationTimeout time.Duration `env:"INVOCATION_TIMEOUT" envDefault:"0s"`
	FetchTimeout      time.Duration `env:"FETCH_TIMEOUT"      envDefault:"20s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.OllamaHost = strings.TrimSpace(cfg.OllamaHost)
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)

	if cfg.NativeModel == "" {
		cfg.NativeModel = native.DefaultModel
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = pipeline.DefaultModel
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if _, err := c.Mode(); err != nil {
		errs = append(errs, fmt.Errorf("TRIGGER_MODE: %w", err))
	}
	if _, err := c.SummaryLength(); err != nil {
		errs = append(errs, fmt.Errorf("LENGTH: %w", err))
	}
	if c.InvocationTimeout < 0 {
		errs = append(errs, errors.New("INVOCATION_TIMEOUT must not be negative"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

func (c Config) Mode() (widget.TriggerMode, error) {
	return widget.ParseTriggerMode(c.TriggerMode)
}

func (c Config) SummaryLength() (domain.Length, error) {
	return domain.ParseLength(c.Length)
}

// NativeConfigured reports whether the host exposes a native backend at all.
func (c Config) NativeConfigured() bool {
	return c.OllamaHost != ""
}
