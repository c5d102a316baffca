package model

import (
	"errors"
	"fmt"
)

var (
	// ErrBodyExtraction means a source message has no usable textual part.
	ErrBodyExtraction = errors.New("no textual body in message")

	// ErrDuplicateEvent means an event with the same identity key is stored.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrInvalidRange means a date or hour range is inverted or out of bounds.
	ErrInvalidRange = errors.New("invalid range")
)

// ExtractionServiceError is an infrastructure failure calling the language
// model (network, auth, non-2xx). Content problems never produce it.
type ExtractionServiceError struct {
	Source string
	Err    error
}

func (e *ExtractionServiceError) Error() string {
	if e.Source == "" {
		return "extraction service: " + e.Err.Error()
	}
	return fmt.Sprintf("extraction service (source %s): %v", e.Source, e.Err)
}

func (e *ExtractionServiceError) Unwrap() error {
	return e.Err
}

// NormalizationError records why a candidate could not become an Event.
type NormalizationError struct {
	Field   string
	Message string
	Err     error
}

func (e *NormalizationError) Error() string {
	msg := "normalize " + e.Field + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}
