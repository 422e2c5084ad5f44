package main

import (
	"context"
	"fmt"
	"log/slog"

	"tldr/internal/config"
	"tldr/internal/native"
	"tldr/internal/pipeline"
	"tldr/internal/probe"
	"tldr/internal/summarizer"
	"tldr/internal/widget"
)

// newBackends shares one fallback loader between all widgets of the process.
func newBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (widget.Backends, error) {
	var binding native.Binding
	if cfg.NativeConfigured() {
		ollama, err := native.NewOllama(cfg.OllamaHost, cfg.NativeModel, cfg.NativeAllowPull, log)
		if err != nil {
			return widget.Backends{}, fmt.Errorf("create native binding: %w", err)
		}
		binding = ollama

		log.InfoContext(ctx, "Native binding is initialized",
			"ollamaHost", cfg.OllamaHost,
			"model", cfg.NativeModel,
			"allowPull", cfg.NativeAllowPull)
	} else {
		log.InfoContext(ctx, "OLLAMA_HOST is missing so only the fallback will be used",
			"envVar", "OLLAMA_HOST")
	}

	if cfg.OpenAIAPIKey == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so the fallback model will fail to load",
			"envVar", "OPENAI_API_KEY")
	}

	loader := pipeline.NewLoader(
		pipeline.OpenAILoad(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
		cfg.FallbackModel,
		log,
	)

	return widget.Backends{
		Prober:   probe.New(binding, log),
		Native:   summarizer.NewNativeAdapter(binding, log),
		Fallback: summarizer.NewFallbackAdapter(loader, log),
	}, nil
}
