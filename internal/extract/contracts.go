// Package extract implements the per-kind extraction chains. Each file kind
// has an ordered list of strategies; the chain tries them in declared order
// until one yields usable text. A strategy that errors or returns trivial
// output is recorded as a warning and the chain falls through; it is never a
// hard error unless every strategy fails.
package extract

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/awhitfield/invoice-cataloger/constants"
)

// Result is the outcome of running an extraction chain over one file.
type Result struct {
	Text     string
	Strategy string // name of the strategy that produced Text
	Tier     constants.ConfidenceTier
	Units    int // pages for PDFs, sheets for workbooks, parts for emails
	Duration time.Duration
	Warnings []string
}

// Empty reports whether the chain failed to produce usable text.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// Strategy is one extraction method for a specific file kind.
type Strategy interface {
	Name() string
	Tier() constants.ConfidenceTier
	Extract(ctx context.Context, path string) (text string, units int, err error)
}

// usableText is the per-strategy success predicate: output counts as a
// success only if it is long enough and diverse enough to plausibly be
// document text rather than decoder noise.
func usableText(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 32 {
		return false
	}

	distinct := make(map[rune]struct{})
	letters := 0
	for _, r := range s {
		distinct[r] = struct{}{}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			letters++
		}
	}
	if len(distinct) < 12 {
		return false
	}
	// mostly punctuation/control output is a decoder artifact
	return letters*2 >= len([]rune(s))
}
