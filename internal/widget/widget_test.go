package widget_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tldr/internal/domain"
	"tldr/internal/native"
	"tldr/internal/pipeline"
	"tldr/internal/source"
	"tldr/internal/summarizer"
	"tldr/internal/widget"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<html><body><article id="article">Lorem ipsum dolor sit amet (500 words)</article></body></html>`

type event struct {
	kind    string
	text    string
	isError bool
	phase   domain.Phase
	visible bool
}

type recordingSink struct {
	mu     sync.Mutex
	events []event
}

func (s *recordingSink) PublishPhase(_ context.Context, phase domain.Phase) {
	s.record(event{kind: "phase", phase: phase})
}

func (s *recordingSink) PublishStatus(_ context.Context, text string, isError bool) {
	s.record(event{kind: "status", text: text, isError: isError})
}

func (s *recordingSink) PublishResult(_ context.Context, text string) {
	s.record(event{kind: "result", text: text})
}

func (s *recordingSink) SetTriggerVisible(_ context.Context, visible bool) {
	s.record(event{kind: "trigger", visible: visible})
}

func (s *recordingSink) record(e event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
}

func (s *recordingSink) phases() []domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	var phases []domain.Phase
	for _, e := range s.events {
		if e.kind == "phase" {
			phases = append(phases, e.phase)
		}
	}

	return phases
}

func (s *recordingSink) triggers() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var visible []bool
	for _, e := range s.events {
		if e.kind == "trigger" {
			visible = append(visible, e.visible)
		}
	}

	return visible
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
}

type stubProber struct {
	capability domain.Capability
	calls      atomic.Int32
}

func (p *stubProber) Probe(context.Context) domain.Capability {
	p.calls.Add(1)
	return p.capability
}

type stubSession struct {
	binding *stubBinding
}

func (s *stubSession) Summarize(ctx context.Context, _ string) (string, error) {
	if s.binding.block != nil {
		select {
		case <-s.binding.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return s.binding.summary, s.binding.invokeErr
}

func (s *stubSession) Destroy() {
	s.binding.released.Add(1)
}

type stubBinding struct {
	summary       string
	invokeErr     error
	block         chan struct{}
	panicOnCreate bool
	created       atomic.Int32
	released      atomic.Int32
}

func (b *stubBinding) Availability(context.Context) (native.Availability, error) {
	return native.Available, nil
}

func (b *stubBinding) Create(context.Context, native.Options) (native.Session, error) {
	b.created.Add(1)
	if b.panicOnCreate {
		panic("session construction exploded")
	}
	return &stubSession{binding: b}, nil
}

type stubHandle struct {
	summary string
	err     error
}

func (h *stubHandle) Invoke(context.Context, string, pipeline.DecodingOptions) ([]pipeline.Candidate, error) {
	if h.err != nil {
		return nil, h.err
	}

	return []pipeline.Candidate{{SummaryText: h.summary}}, nil
}

type fixture struct {
	sink    *recordingSink
	prober  *stubProber
	binding *stubBinding
	handle  *stubHandle
	loads   *atomic.Int32
	loadErr error
	loader  *pipeline.Loader
}

func newFixture(t *testing.T, capability domain.Capability) *fixture {
	t.Helper()

	f := &fixture{
		sink:    &recordingSink{},
		prober:  &stubProber{capability: capability},
		binding: &stubBinding{summary: "Short summary."},
		handle:  &stubHandle{summary: "Fallback summary."},
		loads:   &atomic.Int32{},
	}
	f.loader = pipeline.NewLoader(func(context.Context, string, string) (pipeline.Handle, error) {
		f.loads.Add(1)
		if f.loadErr != nil {
			return nil, f.loadErr
		}
		return f.handle, nil
	}, "model", slog.Default())

	return f
}

func (f *fixture) widget(t *testing.T, opts widget.Options) *widget.Widget {
	t.Helper()

	doc, err := source.Parse(strings.NewReader(articleHTML))
	require.NoError(t, err)

	return widget.New(opts, source.NewResolver(doc), widget.Backends{
		Prober:   f.prober,
		Native:   summarizer.NewNativeAdapter(f.binding, slog.Default()),
		Fallback: summarizer.NewFallbackAdapter(f.loader, slog.Default()),
	}, f.sink, slog.Default())
}

func TestRunNativeAvailable(t *testing.T) {
	f := newFixture(t, domain.NativeAvailable)
	w := f.widget(t, widget.Options{Selector: "#article"})

	require.True(t, w.Run(context.Background()))

	state := w.State()
	assert.Equal(t, domain.PhaseDone, state.Phase)
	assert.Equal(t, "Short summary.", state.ResultText)
	assert.Empty(t, state.StatusText)
	assert.False(t, state.StatusIsError)
	assert.Equal(t, domain.BackendNative, state.Backend)

	assert.Equal(t, []domain.Phase{domain.PhaseProbing, domain.PhaseGenerating, domain.PhaseDone}, f.sink.phases())
	assert.Zero(t, f.loads.Load(), "fallback pipeline must stay unloaded")
	assert.False(t, f.loader.Loaded())
}

func TestRunNativeAbsentUsesFallback(t *testing.T) {
	f := newFixture(t, domain.NativeAbsent)
	w := f.widget(t, widget.Options{Selector: "#article"})

	require.True(t, w.Run(context.Background()))

	state := w.State()
	assert.Equal(t, domain.PhaseDone, state.Phase)
	assert.Equal(t, "Fallback summary.", state.ResultText)
	assert.Equal(t, "Summary (via fallback):", state.StatusText)
	assert.Equal(t, domain.BackendFallback, state.Backend)
	assert.Zero(t, f.binding.created.Load())

	assert.Equal(t,
		[]domain.Phase{domain.PhaseProbing, domain.PhaseLoading, domain.PhaseGenerating, domain.PhaseDone},
		f.sink.phases())
}

func TestRunNativeUnusableUsesFallback(t *testing.T) {
	f := newFixture(t, domain.NativeUnusable)
	w := f.widget(t, widget.Options{Selector: "#article"})

	w.Run(context.Background())

	assert.Equal(t, domain.PhaseDone, w.State().Phase)
	assert.Equal(t, domain.BackendFallback, w.State().Backend)
	assert.Zero(t, f.binding.created.Load())
}

func TestRunLoadingObservedOnlyOnFirstLoad(t *testing.T) {
	f := newFixture(t, domain.NativeAbsent)
	first := f.widget(t, widget.Options{Selector: "#article"})
	second := f.widget(t, widget.Options{Selector: "#article"})

	first.Run(context.Background())
	assert.Contains(t, f.sink.phases(), domain.PhaseLoading)

	f.sink.reset()
	second.Run(context.Background())
	assert.NotContains(t, f.sink.phases(), domain.PhaseLoading)

	f.sink.reset()
	first.Run(context.Background())
	assert.NotContains(t, f.sink.phases(), domain.PhaseLoading)

	assert.Equal(t, int32(1), f.loads.Load())
	assert.Equal(t, int32(3), f.prober.calls.Load(), "capability is probed on every invocation")
}

func TestRunMissingSelector(t *testing.T) {
	f := newFixture(t, domain.NativeAvailable)
	w := f.widget(t, widget.Options{})

	w.Run(context.Background())

	state := w.State()
	assert.Equal(t, domain.PhaseErrored, state.Phase)
	assert.True(t, state.StatusIsError)
	assert.Contains(t, state.StatusText, `"selector" is missing`)
	assert.Empty(t, state.ResultText)

	assert.Zero(t, f.prober.calls.Load())
	assert.Zero(t, f.binding.created.Load())
	assert.Zero(t, f.loads.Load())
	assert.Equal(t, []domain.Phase{domain.PhaseErrored}, f.sink.phases())
}

func TestRunSelectorNotFound(t *testing.T) {
	f := newFixture(t, domain.NativeAbsent)
	w := f.widget(t, widget.Options{Selector: "#missing"})

	w.Run(context.Background())

	state := w.State()
	assert.Equal(t, domain.PhaseErrored, state.Phase)
	assert.Equal(t, "Error: Could not find element with selector: #missing", state.StatusText)
	assert.Zero(t, f.loads.Load())
	assert.Zero(t, f.prober.calls.Load())
}

func TestRunNativeInvocationFails(t *testing.T) {
	f := newFixture(t, domain.NativeAvailable)
	f.binding.invokeErr = errors.New("model crashed")
	w := f.widget(t, widget.Options{Selector: "#article"})

	w.Run(context.Background())

	state := w.State()
	assert.Equal(t, domain.PhaseErrored, state.Phase)
	assert.Equal(t, "Error using built-in summarizer.", state.StatusText)
	assert.NotContains(t, state.StatusText, "model crashed")
	assert.Empty(t, state.ResultText)
	assert.Equal(t, int32(1), f.binding.created.Load())
	assert.Equal(t, int32(1), f.binding.released.Load())
	assert.Zero(t, f.loads.Load())
}

func TestRunFallbackLoadFails(t *testing.T) {
	f := newFixture(t, domain.NativeAbsent)
	f.loadErr = errors.New("no network")
	w := f.widget(t, widget.Options{Selector: "#article"})

	w.Run(context.Background())

	state := w.State()
	assert.Equal(t, domain.PhaseErrored, state.Phase)
	assert.Equal(t, "Could not load the fallback model.", state.StatusText)
	assert.Equal(t,
		[]domain.Phase{domain.PhaseProbing, domain.PhaseLoading, domain.PhaseErrored},
		f.sink.phases())

	f.loadErr = nil
	f.sink.reset()
	w.Run(context.Background())

	assert.Equal(t, domain.PhaseDone, w.State().Phase)
	assert.Contains(t, f.sink.phases(), domain.PhaseLoading, "failed loads are retried by the next invocation")
	assert.Equal(t, int32(2), f.loads.Load())
}

func TestRunFallbackLoadPanics(t *testing.T) {
	f := newFixture(t, domain.NativeAbsent)
	loads := 0
	f.loader = pipeline.NewLoader(func(context.Context, string, string) (pipeline.Handle, error) {
		loads++
		if loads == 1 {
			panic("model file corrupt")
		}
		return f.handle, nil
	}, "model", slog.Default())
	w := f.widget(t, widget.Options{Selector: "#article"})

	require.True(t, w.Run(context.Background()))

	state := w.State()
	assert.Equal(t, domain.PhaseErrored, state.Phase)
	assert.True(t, state.StatusIsError)
	assert.Equal(t, "Could not load the fallback model.", state.StatusText)
	assert.False(t, f.loader.Loaded())

	w.Run(context.Background())
	assert.Equal(t, domain.PhaseDone, w.State().Phase)
	assert.Equal(t, 2, loads)
}

func TestRunNativeCreatePanics(t *testing.T) {
	f := newFixture(t, domain.NativeAvailable)
	f.binding.panicOnCreate = true
	w := f.widget(t, widget.Options{Selector: "#article"})

	w.Run(context.Background())

	state := w.State()
	assert.Equal(t, domain.PhaseErrored, state.Phase)
	assert.Equal(t, "Error using built-in summarizer.", state.StatusText)
	assert.Equal(t, domain.BackendNative, state.Backend)
	assert.Zero(t, f.binding.released.Load())
}

func TestRunPublishesAttributionBeforeResult(t *testing.T) {
	f := newFixture(t, domain.NativeAbsent)
	w := f.widget(t, widget.Options{Selector: "#article"})

	w.Run(context.Background())

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()

	events := f.sink.events
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, event{kind: "status", text: "Summary (via fallback):"}, events[len(events)-2])
	assert.Equal(t, event{kind: "result", text: "Fallback summary."}, events[len(events)-1])
}

func TestRunFallbackInvocationFails(t *testing.T) {
	f := newFixture(t, domain.NativeAbsent)
	f.handle.err = errors.New("input too long")
	w := f.widget(t, widget.Options{Selector: "#article"})

	w.Run(context.Background())

	assert.Equal(t, domain.PhaseErrored, w.State().Phase)
	assert.Equal(t, "Could not run the fallback model.", w.State().StatusText)
}

func TestRunRejectsReentrantTrigger(t *testing.T) {
	f := newFixture(t, domain.NativeAvailable)
	f.binding.block = make(chan struct{})
	w := f.widget(t, widget.Options{Selector: "#article"})

	done := make(chan bool, 1)
	go func() {
		done <- w.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return w.State().Phase == domain.PhaseGenerating
	}, time.Second, time.Millisecond)

	assert.False(t, w.Run(context.Background()))

	close(f.binding.block)
	assert.True(t, <-done)
	assert.Equal(t, domain.PhaseDone, w.State().Phase)
	assert.Equal(t, int32(1), f.prober.calls.Load())
}

func TestRunTimeout(t *testing.T) {
	f := newFixture(t, domain.NativeAvailable)
	f.binding.block = make(chan struct{})
	w := f.widget(t, widget.Options{Selector: "#article", Timeout: 10 * time.Millisecond})

	w.Run(context.Background())

	assert.Equal(t, domain.PhaseErrored, w.State().Phase)
	assert.Equal(t, int32(1), f.binding.released.Load())
}

func TestManualTriggerLifecycle(t *testing.T) {
	f := newFixture(t, domain.NativeAvailable)
	f.binding.invokeErr = errors.New("busy")
	w := f.widget(t, widget.Options{Selector: "#article", Mode: widget.TriggerManual})

	w.Attach(context.Background())
	assert.Equal(t, domain.PhaseAwaitingTrigger, w.State().Phase)
	assert.True(t, w.State().TriggerShown)

	require.True(t, w.Click(context.Background()))
	assert.Equal(t, domain.PhaseErrored, w.State().Phase)
	assert.True(t, w.State().TriggerShown, "trigger is shown again after a failure")

	f.binding.invokeErr = nil
	require.True(t, w.Click(context.Background()))
	assert.Equal(t, domain.PhaseDone, w.State().Phase)
	assert.False(t, w.State().TriggerShown, "trigger stays hidden after success")

	assert.False(t, w.Click(context.Background()))
	assert.Equal(t, []bool{true, false, true, false}, f.sink.triggers())
}

func TestAutomaticAttachRunsAndNeverShowsTrigger(t *testing.T) {
	f := newFixture(t, domain.NativeAvailable)
	w := f.widget(t, widget.Options{Selector: "#article", Mode: widget.TriggerAutomatic})

	w.Attach(context.Background())

	assert.Equal(t, domain.PhaseDone, w.State().Phase)
	assert.Empty(t, f.sink.triggers())
	assert.False(t, w.Click(context.Background()))
}

type panickingProber struct{}

func (panickingProber) Probe(context.Context) domain.Capability {
	panic("host exploded")
}

func TestRunContainsPanics(t *testing.T) {
	f := newFixture(t, domain.NativeAvailable)
	doc, err := source.Parse(strings.NewReader(articleHTML))
	require.NoError(t, err)

	w := widget.New(widget.Options{Selector: "#article"}, source.NewResolver(doc), widget.Backends{
		Prober:   panickingProber{},
		Fallback: summarizer.NewFallbackAdapter(f.loader, slog.Default()),
	}, f.sink, slog.Default())

	require.NotPanics(t, func() {
		w.Run(context.Background())
	})
	assert.Equal(t, domain.PhaseErrored, w.State().Phase)
	assert.True(t, w.State().StatusIsError)

	require.True(t, w.Run(context.Background()), "widget accepts a new trigger after a contained panic")
}

func TestPhasesAreMonotonicPerInvocation(t *testing.T) {
	for _, capability := range []domain.Capability{domain.NativeAvailable, domain.NativeUnusable, domain.NativeAbsent} {
		f := newFixture(t, capability)
		w := f.widget(t, widget.Options{Selector: "#article"})
		w.Run(context.Background())

		phases := f.sink.phases()
		require.NotEmpty(t, phases)
		for i := 1; i < len(phases); i++ {
			assert.Greater(t, phases[i], phases[i-1], capability.String())
		}
		assert.True(t, phases[len(phases)-1].Terminal())
	}
}

func TestParseTriggerMode(t *testing.T) {
	mode, err := widget.ParseTriggerMode("automatic")
	require.NoError(t, err)
	assert.Equal(t, widget.TriggerAutomatic, mode)

	mode, err = widget.ParseTriggerMode("")
	require.NoError(t, err)
	assert.Equal(t, widget.TriggerManual, mode)

	_, err = widget.ParseTriggerMode("hover")
	assert.Error(t, err)
}
