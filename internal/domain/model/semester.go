package model

import (
	"fmt"
	"strings"
)

// SemesterSortKey derives a chronologically sortable key from free-text semester
// labels such as "Spring 2019", "Fall 2019" or "New Student Fall 2019".
//
//	New Student ... YYYY -> YYYY0
//	Spring YYYY          -> YYYY1
//	Fall YYYY            -> YYYY2
//
// Anything else sorts by its own text. A label without a space cannot carry a
// year and is rejected with ErrInvalidSemester.
func SemesterSortKey(semester string) (string, error) {
	if !strings.Contains(semester, " ") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSemester, semester)
	}
	tokens := strings.Split(semester, " ")
	year := tokens[len(tokens)-1]
	lower := strings.ToLower(semester)

	switch {
	case strings.Contains(lower, "new student"):
		return year + "0", nil
	case strings.Contains(lower, "fall") || strings.Contains(lower, "spring"):
		term := strings.ToUpper(tokens[len(tokens)-2])
		term = strings.ReplaceAll(term, "FALL", "2")
		term = strings.ReplaceAll(term, "SPRING", "1")
		return year + term, nil
	default:
		return semester, nil
	}
}
