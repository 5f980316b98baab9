package model

import "errors"

// Sentinel kinds for record and submission errors.
var (
	ErrInvalidSemester   = errors.New("unexpected semester value")
	ErrInvalidSubmission = errors.New("invalid submission")
)
