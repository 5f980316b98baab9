// Package identity decides which score records belong to the same student and
// rewrites them to one canonical name.
//
// Resolution runs three passes in order:
//
//  1. flipped names: "Means Alison" joins the more common "Alison Means"
//  2. missing dash: "Mary-Jane Smith" and "Mary Jane Smith" join whichever is more common
//  3. misspellings: names are clustered by similarity and each matched group
//     takes its most common spelling
//
// Every pass first decides the new identity of each record index and then
// rewrites the records in one step.
package identity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/roster/internal/domain/cluster"
	"github.com/okian/roster/internal/domain/diagnostic"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/similarity"
	"github.com/okian/roster/internal/domain/vote"
)

// Resolver canonicalizes student identities across a record list.
type Resolver struct {
	matcher cluster.Matcher
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithMatcher sets the similarity test used to cluster names.
func WithMatcher(m cluster.Matcher) Option {
	return func(r *Resolver) {
		if m != nil {
			r.matcher = m
		}
	}
}

// New creates a Resolver using the default similarity thresholds.
func New(opts ...Option) *Resolver {
	r := &Resolver{matcher: similarity.New()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result counts the records each pass rewrote.
type Result struct {
	Flipped     int `json:"flipped"`
	MissingDash int `json:"missing_dash"`
	Misspelled  int `json:"misspelled"`
}

// Total returns the number of rewritten records across all passes.
func (r Result) Total() int { return r.Flipped + r.MissingDash + r.Misspelled }

// Resolve runs all passes over records, rewriting identity fields in place and
// logging one diagnostic per correction.
func (r *Resolver) Resolve(records []model.ScoreRecord, log *diagnostic.Log) Result {
	var res Result
	res.Flipped = apply(records, r.flippedNames(records, log))
	res.MissingDash = apply(records, r.missingDashes(records, log))
	res.Misspelled = apply(records, r.misspellings(records, log))
	return res
}

// assignments maps record index to the identity it should be rewritten to.
type assignments map[int]model.Identity

func apply(records []model.ScoreRecord, a assignments) int {
	changed := 0
	for i, id := range a {
		if records[i].Identity() == id && records[i].StudentIdentifier == id.Identifier() {
			continue
		}
		records[i].SetIdentity(id)
		changed++
	}
	return changed
}

// group is a run of record indices sharing a key, in first-seen order.
type group struct {
	key     string
	indices []int
}

func groupBy(records []model.ScoreRecord, key func(*model.ScoreRecord) string) ([]*group, map[string]*group) {
	var ordered []*group
	byKey := make(map[string]*group)
	for i := range records {
		k := key(&records[i])
		g, ok := byKey[k]
		if !ok {
			g = &group{key: k}
			byKey[k] = g
			ordered = append(ordered, g)
		}
		g.indices = append(g.indices, i)
	}
	return ordered, byKey
}

func byIdentifier(r *model.ScoreRecord) string { return r.StudentIdentifier }

// reassignGroup points every record of minority at canonical and logs one
// diagnostic per distinct (identifier, semester) it touched.
func reassignGroup(records []model.ScoreRecord, minority *group, canonical model.Identity, kind diagnostic.Kind, format string, out assignments, log *diagnostic.Log) {
	for _, i := range minority.indices {
		rec := &records[i]
		out[i] = canonical
		log.Add(diagnostic.Diagnostic{
			SortKey: diagnostic.SortKey(rec.SemesterSort, canonical.Identifier()),
			Message: fmt.Sprintf(format, canonical.Identifier(), rec.StudentIdentifier, rec.Semester),
			Kind:    kind,
		})
	}
}

// flippedNames finds groups whose reversed name is a more common group.
func (r *Resolver) flippedNames(records []model.ScoreRecord, log *diagnostic.Log) assignments {
	out := make(assignments)
	groups, byKey := groupBy(records, byIdentifier)
	for _, g := range groups {
		head := records[g.indices[0]]
		reversed := head.LastName + " " + head.FirstName
		if reversed == g.key {
			continue
		}
		minority, ok := byKey[reversed]
		if !ok || len(g.indices) <= len(minority.indices) {
			continue
		}
		reassignGroup(records, minority, head.Identity(), diagnostic.KindFlippedName,
			"Student %s has potential flipped first and last name %s in semester %s", out, log)
	}
	return out
}

// dashKey folds hyphens into spaces so "Mary-Jane Smith" and "Mary Jane Smith"
// compare equal.
func dashKey(r *model.ScoreRecord) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(r.StudentIdentifier, "-", " ")), " ")
}

// missingDashes finds identifiers that differ only by hyphens versus spaces
// and moves the less common spellings onto the most common one.
func (r *Resolver) missingDashes(records []model.ScoreRecord, log *diagnostic.Log) assignments {
	out := make(assignments)
	byID, _ := groupBy(records, byIdentifier)

	families := make(map[string][]*group)
	var order []string
	for _, g := range byID {
		k := dashKey(&records[g.indices[0]])
		if _, ok := families[k]; !ok {
			order = append(order, k)
		}
		families[k] = append(families[k], g)
	}

	for _, k := range order {
		members := families[k]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			return len(members[i].indices) > len(members[j].indices)
		})
		majority := members[0]
		canonical := records[majority.indices[0]].Identity()
		for _, minority := range members[1:] {
			if len(majority.indices) <= len(minority.indices) {
				continue
			}
			reassignGroup(records, minority, canonical, diagnostic.KindMissingDash,
				"Student %s has potential missing dash %s in semester %s", out, log)
		}
	}
	return out
}

// misspellings clusters first and last names by similarity and rewrites each
// matched group of records to its most common spelling.
func (r *Resolver) misspellings(records []model.ScoreRecord, log *diagnostic.Log) assignments {
	out := make(assignments)

	firstNames := make([]string, 0, len(records))
	lastNames := make([]string, 0, len(records))
	firstFolded := make([]string, 0, len(records))
	lastFolded := make([]string, 0, len(records))
	for i := range records {
		firstNames = append(firstNames, records[i].FirstName)
		lastNames = append(lastNames, records[i].LastName)
		firstFolded = append(firstFolded, similarity.Fold(records[i].FirstName))
		lastFolded = append(lastFolded, similarity.Fold(records[i].LastName))
	}
	firstClusters := cluster.Build(firstNames, r.matcher)
	lastClusters := cluster.Build(lastNames, r.matcher)

	work := make([]int, len(records))
	for i := range work {
		work[i] = i
	}

	for len(work) > 0 {
		seedIdx := work[0]
		seed := records[seedIdx]
		firsts := firstClusters.Lookup(seed.FirstName)
		lasts := lastClusters.Lookup(seed.LastName)
		if firsts.Len() == 1 && lasts.Len() == 1 {
			work = work[1:]
			continue
		}

		var matched []int
		rest := make([]int, 0, len(work))
		for _, i := range work {
			firstOK := firstFolded[i] == firstFolded[seedIdx] || firsts.ContainsFolded(firstFolded[i])
			lastOK := lastFolded[i] == lastFolded[seedIdx] || lasts.ContainsFolded(lastFolded[i])
			if firstOK && lastOK {
				matched = append(matched, i)
			} else {
				rest = append(rest, i)
			}
		}
		if len(matched) == 0 {
			work = work[1:]
			continue
		}
		work = rest

		firstVotes := make([]string, len(matched))
		lastVotes := make([]string, len(matched))
		for n, i := range matched {
			firstVotes[n], lastVotes[n] = records[i].FirstName, records[i].LastName
		}
		canonical := model.Identity{FirstName: vote.Majority(firstVotes), LastName: vote.Majority(lastVotes)}
		for _, i := range matched {
			rec := &records[i]
			if rec.Identity() == canonical {
				continue
			}
			out[i] = canonical
			log.Add(diagnostic.Diagnostic{
				SortKey: diagnostic.SortKey(rec.SemesterSort, canonical.Identifier()),
				Message: fmt.Sprintf("Student %s has potential misspelled name %s in semester %s; using %s",
					canonical.Identifier(), rec.Identity().Identifier(), rec.Semester, canonical.Identifier()),
				Kind: diagnostic.KindMisspelling,
			})
		}
	}
	return out
}
