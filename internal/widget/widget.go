// Package widget sequences one summarization: probing, backend selection,
// invocation and status publication.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"tldr/internal/domain"
	"tldr/internal/source"
	"tldr/internal/summarizer"
)

type TriggerMode int

const (
	TriggerAutomatic TriggerMode = iota
	TriggerManual
)

func ParseTriggerMode(raw string) (TriggerMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "manual", "click":
		return TriggerManual, nil
	case "automatic", "auto":
		return TriggerAutomatic, nil
	default:
		return 0, fmt.Errorf("unknown trigger mode %q", raw)
	}
}

func (m TriggerMode) String() string {
	if m == TriggerManual {
		return "manual"
	}

	return "automatic"
}

type Options struct {
	Selector string
	Mode     TriggerMode
	Language string
	Length   domain.Length
	// Timeout bounds a whole invocation. Zero means no bound.
	Timeout time.Duration
}

type Resolver interface {
	Resolve(selector string) (domain.SourceText, error)
}

type Prober interface {
	Probe(ctx context.Context) domain.Capability
}

type Backends struct {
	Prober   Prober
	Native   summarizer.Adapter
	Fallback summarizer.Adapter
}

// Sink renders the widget. Calls arrive in emission order from one invocation at a time.
type Sink interface {
	PublishPhase(ctx context.Context, phase domain.Phase)
	PublishStatus(ctx context.Context, text string, isError bool)
	PublishResult(ctx context.Context, text string)
	SetTriggerVisible(ctx context.Context, visible bool)
}

type Widget struct {
	opts     Options
	resolver Resolver
	backends Backends
	sink     Sink
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	state   domain.UIState
}

func New(opts Options, resolver Resolver, backends Backends, sink Sink, log *slog.Logger) *Widget {
	if opts.Language == "" {
		opts.Language = domain.DefaultLanguage
	}
	if opts.Length == "" {
		opts.Length = domain.LengthMedium
	}

	return &Widget{
		opts:     opts,
		resolver: resolver,
		backends: backends,
		sink:     sink,
		log:      log.With("selector", opts.Selector, "triggerMode", opts.Mode.String()),
	}
}

func (w *Widget) State() domain.UIState {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

// Attach runs immediately in automatic mode and shows the trigger in manual mode.
func (w *Widget) Attach(ctx context.Context) {
	if w.opts.Mode == TriggerAutomatic {
		w.Run(ctx)
		return
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.state = domain.UIState{Phase: domain.PhaseAwaitingTrigger, TriggerShown: true}
	w.mu.Unlock()

	w.sink.PublishPhase(ctx, domain.PhaseAwaitingTrigger)
	w.sink.SetTriggerVisible(ctx, true)
}

// Click is the manual trigger. It is ignored unless the trigger is shown.
func (w *Widget) Click(ctx context.Context) bool {
	if w.opts.Mode != TriggerManual {
		return false
	}

	w.mu.Lock()
	shown := w.state.TriggerShown
	w.mu.Unlock()

	if !shown {
		w.log.DebugContext(ctx, "Click is ignored",
			"phase", w.State().Phase.String())

		return false
	}

	return w.Run(ctx)
}

// Run performs one invocation and reports whether it started. It returns false
// when another invocation of this widget is in flight.
func (w *Widget) Run(ctx context.Context) bool {
	if !w.begin(ctx) {
		w.log.DebugContext(ctx, "Invocation is already in flight",
			"phase", w.State().Phase.String())

		return false
	}
	defer w.end()

	if w.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	w.invoke(ctx)

	state := w.State()
	w.log.InfoContext(ctx, "Invocation is finished",
		"phase", state.Phase.String(),
		"backend", state.Backend.String(),
		"durationSeconds", time.Since(start).Seconds())

	return true
}

func (w *Widget) begin(ctx context.Context) bool {
	w.mu.Lock()
	if w.running || !w.state.Phase.Startable() {
		w.mu.Unlock()
		return false
	}

	w.running = true
	hideTrigger := w.state.TriggerShown
	w.state = domain.UIState{Phase: domain.PhaseIdle}
	w.mu.Unlock()

	if hideTrigger {
		w.sink.SetTriggerVisible(ctx, false)
	}

	return true
}

func (w *Widget) end() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.running = false
}

func (w *Widget) invoke(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.ErrorContext(ctx, "Invocation panicked",
				"error", fmt.Sprint(r),
				"stack", string(debug.Stack()))

			w.fail(ctx, &domain.Failure{Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	text, err := w.resolve()
	if err != nil {
		w.fail(ctx, err)
		return
	}

	w.advance(ctx, domain.PhaseProbing)
	w.setStatus(ctx, statusAnalyzing, false)

	capability := w.backends.Prober.Probe(ctx)
	adapter := w.selectAdapter(capability)

	w.mu.Lock()
	w.state.Backend = adapter.Backend()
	w.mu.Unlock()

	w.log.DebugContext(ctx, "Backend is selected",
		"capability", capability.String(),
		"backend", adapter.Backend().String())

	if !adapter.Ready() {
		w.advance(ctx, domain.PhaseLoading)
		w.setStatus(ctx, statusLoading, false)

		if err = adapter.Prepare(ctx); err != nil {
			w.fail(ctx, failureOf(err, adapter.Backend()))
			return
		}
	}

	w.advance(ctx, domain.PhaseGenerating)
	w.setStatus(ctx, generatingStatus[adapter.Backend()], false)

	outcome := adapter.Summarize(ctx, domain.SummaryRequest{
		Text:     text,
		Language: w.opts.Language,
		Length:   w.opts.Length,
	})
	if !outcome.OK() {
		w.fail(ctx, outcome.Failure)
		return
	}

	// The attribution label precedes the text it labels.
	w.advance(ctx, domain.PhaseDone)
	w.setStatus(ctx, doneStatus[outcome.Backend], false)
	w.setResult(ctx, outcome.Text)
}

func (w *Widget) resolve() (domain.SourceText, error) {
	text, err := w.resolver.Resolve(w.opts.Selector)
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, source.ErrMissingSelector):
		return "", &domain.Failure{Kind: domain.MissingConfiguration, Err: err}
	default:
		return "", &domain.Failure{Kind: domain.NotFound, Err: err}
	}
}

// selectAdapter picks native only for NativeAvailable; everything else falls back.
func (w *Widget) selectAdapter(capability domain.Capability) summarizer.Adapter {
	if capability == domain.NativeAvailable && w.backends.Native != nil {
		return w.backends.Native
	}

	return w.backends.Fallback
}

func (w *Widget) fail(ctx context.Context, err error) {
	failure := failureOf(err, domain.Backend(0))

	w.log.ErrorContext(ctx, "Failed to summarize",
		"error", failure.Err,
		"kind", failure.Kind.String(),
		"backend", failure.Backend.String())

	w.advance(ctx, domain.PhaseErrored)
	w.setResult(ctx, "")
	w.setStatus(ctx, failureStatus(failure.Kind, w.opts.Selector), true)

	if w.opts.Mode == TriggerManual {
		w.mu.Lock()
		w.state.TriggerShown = true
		w.mu.Unlock()

		w.sink.SetTriggerVisible(ctx, true)
	}
}

func failureOf(err error, backend domain.Backend) *domain.Failure {
	var failure *domain.Failure
	if errors.As(err, &failure) {
		return failure
	}

	kind := domain.FallbackLoadError
	if backend == domain.BackendNative {
		kind = domain.NativeInvocationError
	}

	return &domain.Failure{Kind: kind, Backend: backend, Err: err}
}

func (w *Widget) advance(ctx context.Context, next domain.Phase) {
	w.mu.Lock()
	current := w.state.Phase
	if !current.CanAdvanceTo(next) {
		w.mu.Unlock()

		w.log.ErrorContext(ctx, "Phase transition is rejected",
			"from", current.String(),
			"to", next.String())

		return
	}
	w.state.Phase = next
	w.mu.Unlock()

	w.sink.PublishPhase(ctx, next)
}

func (w *Widget) setStatus(ctx context.Context, text string, isError bool) {
	w.mu.Lock()
	w.state.StatusText = text
	w.state.StatusIsError = isError
	w.mu.Unlock()

	w.sink.PublishStatus(ctx, text, isError)
}

func (w *Widget) setResult(ctx context.Context, text string) {
	w.mu.Lock()
	w.state.ResultText = text
	w.mu.Unlock()

	w.sink.PublishResult(ctx, text)
}
