// Package similarity decides whether two name spellings probably refer to the
// same name.
package similarity

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/okian/roster/internal/domain/phonetic"
)

// Default thresholds.
const (
	DefaultMaxEditDistance = 2
	DefaultMaxLengthDelta  = 3
)

// Matcher tests name pairs for similarity. The zero value is not usable; build
// one with New.
type Matcher struct {
	maxEditDistance int
	maxLengthDelta  int
}

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithMaxEditDistance sets the largest edit distance still considered a typo.
func WithMaxEditDistance(d int) Option {
	return func(m *Matcher) {
		if d >= 0 {
			m.maxEditDistance = d
		}
	}
}

// WithMaxLengthDelta sets how much longer one name may be than the other when
// both start with the same letter.
func WithMaxLengthDelta(d int) Option {
	return func(m *Matcher) {
		if d >= 0 {
			m.maxLengthDelta = d
		}
	}
}

// New creates a Matcher with the default thresholds.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		maxEditDistance: DefaultMaxEditDistance,
		maxLengthDelta:  DefaultMaxLengthDelta,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Similar reports whether a and b are probably spellings of the same name:
// equal phonetic codes, a small edit distance, or a shared first letter with
// either a small length difference or one name containing the other.
// Blank names are never similar to anything.
func (m *Matcher) Similar(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	if phonetic.Encode(a) == phonetic.Encode(b) {
		return true
	}

	fa, fb := Fold(a), Fold(b)
	if levenshtein.ComputeDistance(fa, fb) <= m.maxEditDistance {
		return true
	}

	ra, _ := utf8.DecodeRuneInString(fa)
	rb, _ := utf8.DecodeRuneInString(fb)
	if ra != rb {
		return false
	}
	delta := utf8.RuneCountInString(fa) - utf8.RuneCountInString(fb)
	if delta < 0 {
		delta = -delta
	}
	return delta <= m.maxLengthDelta || strings.Contains(fa, fb) || strings.Contains(fb, fa)
}

// folders recycles casers; a cases.Caser must not be shared between goroutines.
var folders = sync.Pool{New: func() any {
	c := cases.Fold()
	return &c
}}

// Fold returns the case-folded form of s for case-insensitive comparison.
func Fold(s string) string {
	c := folders.Get().(*cases.Caser)
	defer folders.Put(c)
	return c.String(s)
}

// EqualFold reports whether a and b are equal under case folding.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}
