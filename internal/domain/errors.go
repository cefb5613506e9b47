package domain

import "errors"

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrTransitionNotAllowed is returned when the current status does not permit an action.
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	// ErrDeclined is returned when the confirmation surface answers no. Nothing was changed.
	ErrDeclined = errors.New("action declined")
	// ErrVersionConflict is returned when a record changed between load and replace.
	ErrVersionConflict = errors.New("version conflict")
	// ErrResolutionNotFound is returned when a resolution cannot be located.
	ErrResolutionNotFound = errors.New("resolution not found")
	// ErrSessionNotFound is returned when a resolution has no study session with the given ID.
	ErrSessionNotFound = errors.New("study session not found")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrMissingInput matches every *MissingInputError.
	ErrMissingInput = errors.New("missing required input")
)
