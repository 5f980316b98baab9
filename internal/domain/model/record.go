// Package model contains domain models passed between layers.
package model

import (
	"strings"
)

// nbsp is the non-breaking space spreadsheets like to leave in name cells.
const nbsp = '\u00a0'

// Identity is a (first, last) name pair that records are canonicalized to.
type Identity struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Identifier returns the "First Last" form used to group records.
func (i Identity) Identifier() string {
	return i.FirstName + " " + i.LastName
}

// ScoreRecord is one score observation for one student, assessment and semester.
// A single roster row fans out into one record per scored dimension, so records
// commonly share every field except ScoreName and Score.
type ScoreRecord struct {
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	StudentIdentifier string  `json:"student_identifier"`
	Semester          string  `json:"semester"`
	SemesterSort      string  `json:"semester_sort"`
	ClassStanding     string  `json:"class_standing,omitempty"`
	Emphasis          string  `json:"emphasis,omitempty"`
	ScoreName         string  `json:"score_name"`
	Score             float64 `json:"score"`
}

// NewScoreRecord cleans the text fields, derives the identifier and semester
// sort key, and rejects semesters the sort rule cannot order.
func NewScoreRecord(firstName, lastName, semester, classStanding, emphasis, scoreName string, score float64) (ScoreRecord, error) {
	semester = Clean(semester)
	sortKey, err := SemesterSortKey(semester)
	if err != nil {
		return ScoreRecord{}, err
	}
	r := ScoreRecord{
		Semester:      semester,
		SemesterSort:  sortKey,
		ClassStanding: Clean(classStanding),
		Emphasis:      Clean(emphasis),
		ScoreName:     Clean(scoreName),
		Score:         score,
	}
	r.SetIdentity(Identity{FirstName: Clean(firstName), LastName: Clean(lastName)})
	return r, nil
}

// Identity returns the record's current name pair.
func (r *ScoreRecord) Identity() Identity {
	return Identity{FirstName: r.FirstName, LastName: r.LastName}
}

// SetIdentity rewrites the name fields and recomputes StudentIdentifier.
func (r *ScoreRecord) SetIdentity(id Identity) {
	r.FirstName = id.FirstName
	r.LastName = id.LastName
	r.StudentIdentifier = id.Identifier()
}

// Normalize recomputes the derived fields of a record that arrived from a
// collaborator which may not have filled them in.
func (r *ScoreRecord) Normalize() error {
	r.Semester = Clean(r.Semester)
	sortKey, err := SemesterSortKey(r.Semester)
	if err != nil {
		return err
	}
	r.SemesterSort = sortKey
	r.ClassStanding = Clean(r.ClassStanding)
	r.Emphasis = Clean(r.Emphasis)
	r.ScoreName = Clean(r.ScoreName)
	r.SetIdentity(Identity{FirstName: Clean(r.FirstName), LastName: Clean(r.LastName)})
	return nil
}

// Clean replaces non-breaking spaces with plain spaces and trims the result.
func Clean(value string) string {
	if value == "" {
		return value
	}
	return strings.TrimSpace(strings.ReplaceAll(value, string(nbsp), " "))
}
