package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tldr/internal/domain"
	"tldr/internal/pipeline"
)

// PipelineLoader is satisfied by *pipeline.Loader.
type PipelineLoader interface {
	Acquire(ctx context.Context) (pipeline.Handle, error)
	Loaded() bool
}

type FallbackAdapter struct {
	loader   PipelineLoader
	decoding pipeline.DecodingOptions
	log      *slog.Logger
}

func NewFallbackAdapter(loader PipelineLoader, log *slog.Logger) *FallbackAdapter {
	return &FallbackAdapter{
		loader:   loader,
		decoding: pipeline.DefaultDecoding,
		log:      log,
	}
}

func (a *FallbackAdapter) Backend() domain.Backend {
	return domain.BackendFallback
}

func (a *FallbackAdapter) Ready() bool {
	return a.loader != nil && a.loader.Loaded()
}

func (a *FallbackAdapter) Prepare(ctx context.Context) error {
	if _, err := a.acquire(ctx); err != nil {
		return &domain.Failure{Kind: domain.FallbackLoadError, Backend: domain.BackendFallback, Err: err}
	}

	return nil
}

// Summarize passes the source text through as-is; inputs beyond the model's
// context window are the backend's concern.
func (a *FallbackAdapter) Summarize(ctx context.Context, req domain.SummaryRequest) domain.Outcome {
	handle, err := a.acquire(ctx)
	if err != nil {
		return domain.Failed(domain.FallbackLoadError, domain.BackendFallback, err)
	}

	candidates, err := a.invoke(ctx, handle, string(req.Text))
	if err != nil {
		return domain.Failed(domain.FallbackInvocationError, domain.BackendFallback,
			fmt.Errorf("invoke pipeline: %w", err))
	}

	if len(candidates) == 0 {
		return domain.Failed(domain.FallbackInvocationError, domain.BackendFallback,
			errors.New("invoke pipeline: no candidates"))
	}

	a.log.DebugContext(ctx, "Fallback summary is generated",
		"sourceChars", len(req.Text),
		"summaryChars", len(candidates[0].SummaryText),
		"candidates", len(candidates))

	return domain.Succeeded(candidates[0].SummaryText, domain.BackendFallback)
}

func (a *FallbackAdapter) acquire(ctx context.Context) (pipeline.Handle, error) {
	if a.loader == nil {
		return nil, errors.New("pipeline loader is absent")
	}

	handle, err := a.loader.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire pipeline: %w", err)
	}

	return handle, nil
}

func (a *FallbackAdapter) invoke(
	ctx context.Context,
	handle pipeline.Handle,
	text string,
) (candidates []pipeline.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panicked: %v", r)
		}
	}()

	return handle.Invoke(ctx, text, a.decoding)
}
