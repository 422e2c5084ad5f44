// Package native is the binding to the host-provided summarization backend.
package native

import (
	"context"
	"errors"

	"tldr/internal/domain"
)

type Availability string

const (
	Available    Availability = "available"
	Downloadable Availability = "downloadable"
	Unavailable  Availability = "unavailable"

	TypeTLDR = "tldr"
)

var ErrSessionDestroyed = errors.New("session is destroyed")

type Options struct {
	Type     string
	Length   domain.Length
	Language string
}

// Session is a single-use summarizer. Destroy must be safe to call more than once.
type Session interface {
	Summarize(ctx context.Context, text string) (string, error)
	Destroy()
}

// Binding is what a host must expose for the native backend to be considered.
type Binding interface {
	Availability(ctx context.Context) (Availability, error)
	Create(ctx context.Context, opts Options) (Session, error)
}
