package summarizer

import (
	"context"
	"fmt"
	"log/slog"

	"tldr/internal/domain"
	"tldr/internal/native"
)

type NativeAdapter struct {
	binding native.Binding
	log     *slog.Logger
}

func NewNativeAdapter(binding native.Binding, log *slog.Logger) *NativeAdapter {
	return &NativeAdapter{binding: binding, log: log}
}

func (a *NativeAdapter) Backend() domain.Backend {
	return domain.BackendNative
}

func (a *NativeAdapter) Ready() bool {
	return true
}

func (a *NativeAdapter) Prepare(context.Context) error {
	return nil
}

// Summarize creates a session per call and destroys it on every exit path.
func (a *NativeAdapter) Summarize(ctx context.Context, req domain.SummaryRequest) domain.Outcome {
	if a.binding == nil {
		return domain.Failed(domain.NativeInvocationError, domain.BackendNative,
			fmt.Errorf("native binding is absent"))
	}

	session, err := a.create(ctx, native.Options{
		Type:     native.TypeTLDR,
		Length:   req.Length,
		Language: req.Language,
	})
	if err != nil {
		return domain.Failed(domain.NativeInvocationError, domain.BackendNative,
			fmt.Errorf("create session: %w", err))
	}
	if session == nil {
		return domain.Failed(domain.NativeInvocationError, domain.BackendNative,
			fmt.Errorf("create session: no session returned"))
	}
	defer session.Destroy()

	summary, err := a.invoke(ctx, session, string(req.Text))
	if err != nil {
		return domain.Failed(domain.NativeInvocationError, domain.BackendNative,
			fmt.Errorf("summarize: %w", err))
	}

	a.log.DebugContext(ctx, "Native summary is generated",
		"sourceChars", len(req.Text),
		"summaryChars", len(summary),
		"length", req.Length,
		"language", req.Language)

	return domain.Succeeded(summary, domain.BackendNative)
}

func (a *NativeAdapter) create(ctx context.Context, opts native.Options) (session native.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("binding panicked: %v", r)
		}
	}()

	return a.binding.Create(ctx, opts)
}

// invoke converts a panicking session into an error so the deferred Destroy still runs
// and the caller gets a Failure.
func (a *NativeAdapter) invoke(ctx context.Context, session native.Session, text string) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panicked: %v", r)
		}
	}()

	return session.Summarize(ctx, text)
}
