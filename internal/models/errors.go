package models

import "errors"

// Store-level conditions every Store implementation reports with these values.
var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicateSubmission = errors.New("response set already stored for this user, survey and year")
	ErrDuplicateEmail      = errors.New("email already registered")
)
