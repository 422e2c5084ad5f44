// Package summarizer holds the two interchangeable backend adapters.
package summarizer

import (
	"context"

	"tldr/internal/domain"
)

// Adapter produces a summary with one specific backend. Summarize never
// returns an error: failures are reported through the Outcome.
type Adapter interface {
	Backend() domain.Backend
	// Ready reports whether Summarize can start without a slow acquisition.
	Ready() bool
	// Prepare performs the slow acquisition. The returned error is a *domain.Failure.
	Prepare(ctx context.Context) error
	Summarize(ctx context.Context, req domain.SummaryRequest) domain.Outcome
}
