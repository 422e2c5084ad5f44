package widget

import (
	"fmt"

	"tldr/internal/domain"
)

const (
	statusAnalyzing = "Analyzing content..."
	statusLoading   = "Loading fallback model (this may take a moment)..."
	statusPanicked  = "Something went wrong while summarizing."
)

var generatingStatus = map[domain.Backend]string{
	domain.BackendNative:   "Generating with built-in AI...",
	domain.BackendFallback: "Generating with fallback model...",
}

// doneStatus attributes the result; native output carries no label.
var doneStatus = map[domain.Backend]string{
	domain.BackendNative:   "",
	domain.BackendFallback: "Summary (via fallback):",
}

func failureStatus(kind domain.ErrorKind, selector string) string {
	switch kind {
	case domain.MissingConfiguration:
		return `Error: "selector" is missing.`
	case domain.NotFound:
		return fmt.Sprintf("Error: Could not find element with selector: %s", selector)
	case domain.NativeInvocationError:
		return "Error using built-in summarizer."
	case domain.FallbackLoadError:
		return "Could not load the fallback model."
	case domain.FallbackInvocationError:
		return "Could not run the fallback model."
	default:
		return statusPanicked
	}
}
