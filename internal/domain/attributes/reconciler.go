// Package attributes settles conflicting class standing and emphasis values
// recorded for one student in one semester.
package attributes

import (
	"fmt"

	"github.com/okian/roster/internal/domain/diagnostic"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/similarity"
	"github.com/okian/roster/internal/domain/vote"
)

// attribute describes one reconciled categorical field.
type attribute struct {
	kind   diagnostic.Kind
	format string
	get    func(*model.ScoreRecord) string
	set    func(*model.ScoreRecord, string)
}

var attributeList = []attribute{
	{
		kind:   diagnostic.KindClassStanding,
		format: "Student %s has multiple class standings for semester %s; picking %s",
		get:    func(r *model.ScoreRecord) string { return r.ClassStanding },
		set:    func(r *model.ScoreRecord, v string) { r.ClassStanding = v },
	},
	{
		kind:   diagnostic.KindEmphasis,
		format: "Student %s has multiple emphases for semester %s; picking %s",
		get:    func(r *model.ScoreRecord) string { return r.Emphasis },
		set:    func(r *model.ScoreRecord, v string) { r.Emphasis = v },
	},
}

// Reconciler rewrites conflicting attributes to their majority value.
type Reconciler struct{}

// New creates a Reconciler.
func New() *Reconciler { return &Reconciler{} }

// Result counts the (student, semester) groups corrected per attribute.
type Result struct {
	ClassStanding int `json:"class_standing"`
	Emphasis      int `json:"emphasis"`
}

type groupKey struct {
	identifier string
	semester   string
}

// Reconcile groups records by (StudentIdentifier, Semester). When a group holds
// more than one value of an attribute, compared case-insensitively, every
// record in the group takes the most common value and one diagnostic is
// logged. Class standing and emphasis are handled independently.
func (c *Reconciler) Reconcile(records []model.ScoreRecord, log *diagnostic.Log) Result {
	var order []groupKey
	groups := make(map[groupKey][]int)
	for i := range records {
		k := groupKey{identifier: records[i].StudentIdentifier, semester: records[i].Semester}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	var res Result
	for _, k := range order {
		indices := groups[k]
		for _, attr := range attributeList {
			if !reconcile(records, indices, attr, log) {
				continue
			}
			switch attr.kind {
			case diagnostic.KindClassStanding:
				res.ClassStanding++
			case diagnostic.KindEmphasis:
				res.Emphasis++
			}
		}
	}
	return res
}

func reconcile(records []model.ScoreRecord, indices []int, attr attribute, log *diagnostic.Log) bool {
	values := make([]string, len(indices))
	distinct := make(map[string]struct{}, 2)
	for n, i := range indices {
		values[n] = attr.get(&records[i])
		distinct[similarity.Fold(values[n])] = struct{}{}
	}
	if len(distinct) < 2 {
		return false
	}

	picked := vote.Majority(values)
	for _, i := range indices {
		attr.set(&records[i], picked)
	}
	head := &records[indices[0]]
	log.Add(diagnostic.Diagnostic{
		SortKey: diagnostic.SortKey(head.SemesterSort, head.StudentIdentifier),
		Message: fmt.Sprintf(attr.format, head.StudentIdentifier, head.Semester, picked),
		Kind:    attr.kind,
	})
	return true
}
