package source

import (
	"errors"
	"fmt"

	"tldr/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

const invisibleSelector = "script, style, noscript, template, [hidden]"

var (
	ErrMissingSelector = errors.New("selector is missing")
	ErrNotFound        = errors.New("no element matches selector")
)

// Resolver locates source text inside a parsed host document.
type Resolver struct {
	doc *goquery.Document
}

func NewResolver(doc *goquery.Document) *Resolver {
	return &Resolver{doc: doc}
}

// Resolve returns the visible text of the first element matching selector.
// The text is returned verbatim.
func (r *Resolver) Resolve(selector string) (domain.SourceText, error) {
	if selector == "" {
		return "", ErrMissingSelector
	}

	if r.doc == nil {
		return "", fmt.Errorf("%w: %s (document is empty)", ErrNotFound, selector)
	}

	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return "", fmt.Errorf("%w: %s (invalid selector: %v)", ErrNotFound, selector, err)
	}

	found := r.doc.FindMatcher(matcher).First()
	if found.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, selector)
	}

	return domain.SourceText(visibleText(found)), nil
}

func visibleText(s *goquery.Selection) string {
	clone := s.Clone()
	clone.Find(invisibleSelector).Remove()
	clone.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})

	return clone.Text()
}
