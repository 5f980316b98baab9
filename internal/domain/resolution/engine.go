// Package resolution runs identity resolution followed by attribute
// reconciliation over one record list.
package resolution

import (
	"context"
	"fmt"

	"github.com/okian/roster/internal/domain/attributes"
	"github.com/okian/roster/internal/domain/cluster"
	"github.com/okian/roster/internal/domain/diagnostic"
	"github.com/okian/roster/internal/domain/identity"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/similarity"
)

// Report summarizes one run.
type Report struct {
	Records     int                     `json:"records"`
	Identity    identity.Result         `json:"identity"`
	Attributes  attributes.Result       `json:"attributes"`
	Diagnostics []diagnostic.Diagnostic `json:"diagnostics"`
}

// Messages returns the ordered diagnostic messages.
func (r Report) Messages() []string {
	out := make([]string, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		out[i] = d.Message
	}
	return out
}

// Engine is safe for concurrent use as long as each call owns its records.
type Engine struct {
	matcher cluster.Matcher
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMatcher sets the name similarity test.
func WithMatcher(m cluster.Matcher) Option {
	return func(e *Engine) {
		if m != nil {
			e.matcher = m
		}
	}
}

// New creates an Engine with default similarity thresholds.
func New(opts ...Option) *Engine {
	e := &Engine{matcher: similarity.New()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run resolves identities, then reconciles attributes, mutating records in
// place. Data problems never fail a run; the only error is ctx being done
// between passes.
func (e *Engine) Run(ctx context.Context, records []model.ScoreRecord) (Report, error) {
	log := diagnostic.NewLog()
	report := Report{Records: len(records)}

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("resolution aborted: %w", err)
	}
	report.Identity = identity.New(identity.WithMatcher(e.matcher)).Resolve(records, log)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("resolution aborted: %w", err)
	}
	report.Attributes = attributes.New().Reconcile(records, log)

	report.Diagnostics = log.Sorted()
	return report, nil
}

// Prepare normalizes records supplied by a collaborator, recomputing derived
// fields. It fails on the first record whose semester cannot be ordered.
func Prepare(records []model.ScoreRecord) error {
	for i := range records {
		if err := records[i].Normalize(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// FilterToSemester keeps only the records of students who have at least one
// record in semester. An empty semester keeps everything.
func FilterToSemester(records []model.ScoreRecord, semester string) []model.ScoreRecord {
	if semester == "" {
		return records
	}
	present := make(map[string]struct{})
	for i := range records {
		if records[i].Semester == semester {
			present[records[i].StudentIdentifier] = struct{}{}
		}
	}
	out := make([]model.ScoreRecord, 0, len(records))
	for i := range records {
		if _, ok := present[records[i].StudentIdentifier]; ok {
			out = append(out, records[i])
		}
	}
	return out
}
