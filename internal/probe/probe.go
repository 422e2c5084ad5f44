// Package probe decides whether the native backend can be used right now.
package probe

import (
	"context"
	"fmt"
	"log/slog"

	"tldr/internal/domain"
	"tldr/internal/native"
)

// Availabler is the availability half of native.Binding.
type Availabler interface {
	Availability(ctx context.Context) (native.Availability, error)
}

type Prober struct {
	binding Availabler
	log     *slog.Logger
}

// New returns a Prober. A nil binding means the host has no native backend.
func New(binding Availabler, log *slog.Logger) *Prober {
	return &Prober{binding: binding, log: log}
}

// Probe never fails: query errors and panics yield NativeUnusable.
func (p *Prober) Probe(ctx context.Context) (capability domain.Capability) {
	if p.binding == nil {
		return domain.NativeAbsent
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.WarnContext(ctx, "Native availability query panicked",
				"error", fmt.Sprint(r))

			capability = domain.NativeUnusable
		}
	}()

	availability, err := p.binding.Availability(ctx)
	if err != nil {
		p.log.WarnContext(ctx, "Failed to query native availability",
			"error", err)

		return domain.NativeUnusable
	}

	if availability == native.Unavailable {
		return domain.NativeUnusable
	}

	return domain.NativeAvailable
}
