// Package console renders a widget as plain lines on a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"tldr/internal/domain"
)

type Sink struct {
	mu  sync.Mutex
	out io.Writer
	log *slog.Logger
}

func NewSink(out io.Writer, log *slog.Logger) *Sink {
	return &Sink{out: out, log: log}
}

func (s *Sink) PublishPhase(ctx context.Context, phase domain.Phase) {
	s.log.DebugContext(ctx, "Phase is changed",
		"phase", phase.String())
}

func (s *Sink) PublishStatus(ctx context.Context, text string, isError bool) {
	if text == "" {
		return
	}

	prefix := "TL;DR"
	if isError {
		prefix = "TL;DR error"
	}

	s.println(ctx, fmt.Sprintf("[%s] %s", prefix, text))
}

func (s *Sink) PublishResult(ctx context.Context, text string) {
	if text == "" {
		return
	}

	s.println(ctx, text)
}

// SetTriggerVisible is a no-op: the terminal has no trigger surface.
func (s *Sink) SetTriggerVisible(context.Context, bool) {}

func (s *Sink) println(ctx context.Context, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintln(s.out, line); err != nil {
		s.log.ErrorContext(ctx, "Failed to write to console",
			"error", err)
	}
}
