package domain

import (
	"fmt"
	"strings"
)

// SourceText is the text extracted from the host document. It may be empty.
type SourceText string

type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"

	DefaultLanguage = "en"
)

func ParseLength(raw string) (Length, error) {
	switch l := Length(strings.ToLower(strings.TrimSpace(raw))); l {
	case LengthShort, LengthMedium, LengthLong:
		return l, nil
	case "":
		return LengthMedium, nil
	default:
		return "", fmt.Errorf("unknown length %q", raw)
	}
}

// SummaryRequest is built fresh for every invocation.
type SummaryRequest struct {
	Text     SourceText
	Language string
	Length   Length
}

type Capability int

const (
	NativeAbsent Capability = iota
	NativeUnusable
	NativeAvailable
)

func (c Capability) String() string {
	switch c {
	case NativeAvailable:
		return "nativeAvailable"
	case NativeUnusable:
		return "nativeUnusable"
	default:
		return "nativeAbsent"
	}
}

type Backend int

const (
	BackendNative Backend = iota + 1
	BackendFallback
)

func (b Backend) String() string {
	switch b {
	case BackendNative:
		return "native"
	case BackendFallback:
		return "fallback"
	default:
		return "none"
	}
}

type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	MissingConfiguration
	NotFound
	NativeInvocationError
	FallbackLoadError
	FallbackInvocationError
)

func (k ErrorKind) String() string {
	switch k {
	case MissingConfiguration:
		return "missingConfiguration"
	case NotFound:
		return "notFound"
	case NativeInvocationError:
		return "nativeInvocationError"
	case FallbackLoadError:
		return "fallbackLoadError"
	case FallbackInvocationError:
		return "fallbackInvocationError"
	default:
		return "none"
	}
}

// Failure is the error half of an Outcome.
type Failure struct {
	Kind    ErrorKind
	Backend Backend
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s (backend = %s)", f.Kind, f.Backend)
	}

	return fmt.Sprintf("%s (backend = %s): %v", f.Kind, f.Backend, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Outcome is either a summary or a Failure, always attributed to a backend.
type Outcome struct {
	Text    string
	Backend Backend
	Failure *Failure
}

func Succeeded(text string, backend Backend) Outcome {
	return Outcome{Text: text, Backend: backend}
}

func Failed(kind ErrorKind, backend Backend, err error) Outcome {
	return Outcome{
		Backend: backend,
		Failure: &Failure{Kind: kind, Backend: backend, Err: err},
	}
}

func (o Outcome) OK() bool {
	return o.Failure == nil
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingTrigger
	PhaseProbing
	PhaseLoading
	PhaseGenerating
	PhaseDone
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingTrigger:
		return "awaitingTrigger"
	case PhaseProbing:
		return "probing"
	case PhaseLoading:
		return "loading"
	case PhaseGenerating:
		return "generating"
	case PhaseDone:
		return "done"
	case PhaseErrored:
		return "errored"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further transitions happen within the invocation.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseErrored
}

// Startable reports whether a new invocation may begin from p.
func (p Phase) Startable() bool {
	return p == PhaseIdle || p == PhaseAwaitingTrigger || p.Terminal()
}

// CanAdvanceTo reports whether next is a forward transition from p.
// Done and Errored share the last rank, so one can never follow the other.
func (p Phase) CanAdvanceTo(next Phase) bool {
	if p.Terminal() {
		return false
	}

	return rank(next) > rank(p)
}

func rank(p Phase) int {
	if p == PhaseErrored {
		return int(PhaseDone)
	}

	return int(p)
}

type UIState struct {
	Phase         Phase
	StatusText    string
	StatusIsError bool
	ResultText    string
	TriggerShown  bool
	// Backend is set once a backend has been selected for the invocation.
	Backend Backend
}
