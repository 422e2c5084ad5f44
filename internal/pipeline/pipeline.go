// Package pipeline loads and memoizes the fallback summarization pipeline.
package pipeline

import "context"

const TaskSummarization = "summarization"

// DecodingOptions are fixed per process; they bound latency and damp repetition.
type DecodingOptions struct {
	MinLength         int64
	MaxLength         int64
	NumBeams          int64
	RepetitionPenalty float64
}

var DefaultDecoding = DecodingOptions{
	MinLength:         75,
	MaxLength:         200,
	NumBeams:          5,
	RepetitionPenalty: 1.2,
}

type Candidate struct {
	SummaryText string
}

// Handle is a loaded pipeline. It is safe for concurrent use.
type Handle interface {
	Invoke(ctx context.Context, text string, opts DecodingOptions) ([]Candidate, error)
}

// LoadFunc constructs a Handle for task bound to modelID.
type LoadFunc func(ctx context.Context, task string, modelID string) (Handle, error)
