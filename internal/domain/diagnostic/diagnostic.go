// Package diagnostic collects human-readable descriptions of every correction
// made while resolving a roster.
package diagnostic

import (
	"sort"
)

// Kind labels the correction a diagnostic describes.
type Kind string

// Correction kinds.
const (
	KindFlippedName   Kind = "flipped_name"
	KindMissingDash   Kind = "missing_dash"
	KindMisspelling   Kind = "misspelling"
	KindClassStanding Kind = "class_standing"
	KindEmphasis      Kind = "emphasis"
)

// Diagnostic is one correction message. SortKey is the semester sort key and
// canonical identifier joined by "_".
type Diagnostic struct {
	SortKey string `json:"sort_key"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

// SortKey builds the ordering key for a correction in semesterSort for the
// student identified by identifier.
func SortKey(semesterSort, identifier string) string {
	return semesterSort + "_" + identifier
}

type entryKey struct {
	sortKey string
	message string
}

// Log is a set of diagnostics keyed by (SortKey, Message). Adding the same
// pair again is a no-op. A Log is not safe for concurrent use.
type Log struct {
	entries map[entryKey]Diagnostic
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{entries: make(map[entryKey]Diagnostic)}
}

// Add records d and reports whether it was not already present.
func (l *Log) Add(d Diagnostic) bool {
	k := entryKey{sortKey: d.SortKey, message: d.Message}
	if _, ok := l.entries[k]; ok {
		return false
	}
	l.entries[k] = d
	return true
}

// Len returns the number of distinct diagnostics.
func (l *Log) Len() int { return len(l.entries) }

// Sorted returns the diagnostics ordered by SortKey, then Message.
func (l *Log) Sorted() []Diagnostic {
	out := make([]Diagnostic, 0, len(l.entries))
	for _, d := range l.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortKey != out[j].SortKey {
			return out[i].SortKey < out[j].SortKey
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// Messages returns the sorted messages only.
func (l *Log) Messages() []string {
	sorted := l.Sorted()
	out := make([]string, len(sorted))
	for i, d := range sorted {
		out[i] = d.Message
	}
	return out
}

// CountByKind returns how many diagnostics of each kind were logged.
func (l *Log) CountByKind() map[Kind]int {
	out := make(map[Kind]int)
	for _, d := range l.entries {
		out[d.Kind]++
	}
	return out
}
