package model

import (
	"math"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// MaxTitleLength is the maximum title length in runes.
const MaxTitleLength = 500

// ValidateEvent checks an Event for constraint violations before it is
// persisted. It returns a *ValidationError if any rules fail, or nil.
func ValidateEvent(e *Event) error {
	var ve ValidationError

	if strings.TrimSpace(e.ID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "id", Message: "is required"})
	}

	title := strings.TrimSpace(e.Title)
	if title == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "is required"})
	} else if len([]rune(title)) > MaxTitleLength {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "must be 500 characters or fewer"})
	}

	if e.StartTime.IsZero() {
		ve.Errors = append(ve.Errors, FieldError{Field: "start_time", Message: "is required"})
	}

	if e.EndTime != nil && !e.StartTime.IsZero() && e.EndTime.Before(e.StartTime) {
		ve.Errors = append(ve.Errors, FieldError{Field: "end_time", Message: "must not be before start_time"})
	}

	// Coordinates come in pairs and must be in range.
	if (e.Latitude == nil) != (e.Longitude == nil) {
		ve.Errors = append(ve.Errors, FieldError{Field: "latitude", Message: "latitude and longitude must both be set or both be empty"})
	}
	if e.Latitude != nil && (math.IsNaN(*e.Latitude) || *e.Latitude < -90 || *e.Latitude > 90) {
		ve.Errors = append(ve.Errors, FieldError{Field: "latitude", Message: "must be between -90 and 90"})
	}
	if e.Longitude != nil && (math.IsNaN(*e.Longitude) || *e.Longitude < -180 || *e.Longitude > 180) {
		ve.Errors = append(ve.Errors, FieldError{Field: "longitude", Message: "must be between -180 and 180"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
