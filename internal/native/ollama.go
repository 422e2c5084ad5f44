package native

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"tldr/internal/domain"

	ollama "github.com/ollama/ollama/api"
)

const (
	DefaultModel = "llama3.2:latest"

	ollamaClientTimeout = 5 * time.Minute
	temperature         = 0.2
)

// OllamaClient is the subset of the Ollama API the binding uses.
type OllamaClient interface {
	List(ctx context.Context) (*ollama.ListResponse, error)
	Pull(ctx context.Context, req *ollama.PullRequest, fn ollama.PullProgressFunc) error
	Chat(ctx context.Context, req *ollama.ChatRequest, fn ollama.ChatResponseFunc) error
}

// Ollama serves the native backend from a local Ollama host.
type Ollama struct {
	client    OllamaClient
	model     string
	allowPull bool
	log       *slog.Logger
}

func NewOllama(host string, model string, allowPull bool, log *slog.Logger) (*Ollama, error) {
	u, err := url.Parse(strings.TrimSpace(host))
	if err != nil {
		return nil, fmt.Errorf("parse host %q: %w", host, err)
	}

	client := ollama.NewClient(u, &http.Client{Timeout: ollamaClientTimeout})

	return NewOllamaFromClient(client, model, allowPull, log), nil
}

func NewOllamaFromClient(client OllamaClient, model string, allowPull bool, log *slog.Logger) *Ollama {
	if model == "" {
		model = DefaultModel
	}

	return &Ollama{
		client:    client,
		model:     model,
		allowPull: allowPull,
		log:       log,
	}
}

func (o *Ollama) Availability(ctx context.Context) (Availability, error) {
	installed, err := o.installed(ctx)
	if err != nil {
		return "", err
	}

	switch {
	case installed:
		return Available, nil
	case o.allowPull:
		return Downloadable, nil
	default:
		return Unavailable, nil
	}
}

func (o *Ollama) Create(ctx context.Context, opts Options) (Session, error) {
	if opts.Type != TypeTLDR {
		return nil, fmt.Errorf("unsupported summary type %q", opts.Type)
	}

	installed, err := o.installed(ctx)
	if err != nil {
		return nil, err
	}

	if !installed {
		if !o.allowPull {
			return nil, fmt.Errorf("model %s is not installed", o.model)
		}

		o.log.InfoContext(ctx, "Pulling native model",
			"model", o.model)

		if err = o.client.Pull(ctx, &ollama.PullRequest{Model: o.model}, func(ollama.ProgressResponse) error {
			return nil
		}); err != nil {
			return nil, fmt.Errorf("pull model %s: %w", o.model, err)
		}
	}

	return &ollamaSession{
		client:       o.client,
		model:        o.model,
		systemPrompt: systemPrompt(opts),
	}, nil
}

func (o *Ollama) installed(ctx context.Context) (bool, error) {
	resp, err := o.client.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list models: %w", err)
	}

	for _, m := range resp.Models {
		if m.Name == o.model || m.Model == o.model {
			return true, nil
		}
	}

	return false, nil
}

type ollamaSession struct {
	client       OllamaClient
	model        string
	systemPrompt string
	destroyed    atomic.Bool
}

func (s *ollamaSession) Summarize(ctx context.Context, text string) (string, error) {
	if s.destroyed.Load() {
		return "", ErrSessionDestroyed
	}

	stream := false
	req := &ollama.ChatRequest{
		Model: s.model,
		Messages: []ollama.Message{
			{Role: "system", Content: s.systemPrompt},
			{Role: "user", Content: text},
		},
		Options: map[string]any{
			"temperature": temperature,
		},
		Stream: &stream,
	}

	var b strings.Builder
	if err := s.client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	}); err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return "", fmt.Errorf("model %s returned empty summary", s.model)
	}

	return summary, nil
}

func (s *ollamaSession) Destroy() {
	s.destroyed.Store(true)
}

// systemPrompt follows the tldr sentence counts: short 1, medium 3, long 5.
func systemPrompt(opts Options) string {
	sentences := 3
	switch opts.Length {
	case domain.LengthShort:
		sentences = 1
	case domain.LengthLong:
		sentences = 5
	}

	language := opts.Language
	if language == "" {
		language = domain.DefaultLanguage
	}

	var b strings.Builder
	b.WriteString("Write a TL;DR of the text provided by the user.\n\nRules:\n")
	if sentences == 1 {
		b.WriteString("- Exactly one sentence.\n")
	} else {
		fmt.Fprintf(&b, "- At most %d sentences.\n", sentences)
	}
	b.WriteString("- Plain prose, no lists, no headings, no preamble.\n")
	fmt.Fprintf(&b, "- Write in the language with BCP 47 tag %q.", language)

	return b.String()
}
