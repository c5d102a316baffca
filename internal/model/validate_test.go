package model

import (
	"strings"
	"testing"
	"time"
)

// validEvent returns an Event that passes all validation rules.
func validEvent() Event {
	return Event{
		ID:        "ev-1",
		Title:     "Literature Speaker Event",
		StartTime: time.Date(2024, 11, 5, 18, 0, 0, 0, time.UTC),
		Location:  "Keefe Campus Center",
	}
}

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidate_ValidEvent(t *testing.T) {
	e := validEvent()
	if err := ValidateEvent(&e); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_TitleRequired(t *testing.T) {
	for _, title := range []string{"", "   \t\n  "} {
		e := validEvent()
		e.Title = title
		errs := fieldErrors(t, ValidateEvent(&e))
		if !hasFieldError(errs, "title") {
			t.Errorf("expected error on field 'title' for %q", title)
		}
	}
}

func TestValidate_TitleTooLong(t *testing.T) {
	e := validEvent()
	e.Title = strings.Repeat("a", MaxTitleLength+1)
	errs := fieldErrors(t, ValidateEvent(&e))
	if !hasFieldError(errs, "title") {
		t.Error("expected error on field 'title' for overlong title")
	}
}

func TestValidate_StartTimeRequired(t *testing.T) {
	e := validEvent()
	e.StartTime = time.Time{}
	errs := fieldErrors(t, ValidateEvent(&e))
	if !hasFieldError(errs, "start_time") {
		t.Error("expected error on field 'start_time'")
	}
}

func TestValidate_EndBeforeStart(t *testing.T) {
	e := validEvent()
	end := e.StartTime.Add(-time.Hour)
	e.EndTime = &end
	errs := fieldErrors(t, ValidateEvent(&e))
	if !hasFieldError(errs, "end_time") {
		t.Error("expected error on field 'end_time'")
	}

	// Equal start and end is allowed.
	same := e.StartTime
	e.EndTime = &same
	if err := ValidateEvent(&e); err != nil {
		t.Fatalf("end == start should be valid, got %v", err)
	}
}

func TestValidate_Coordinates(t *testing.T) {
	lat, lng, bad := 42.37, -72.51, 123.0
	for _, tc := range []struct {
		name  string
		lat   *float64
		lng   *float64
		field string
	}{
		{"OnlyLatitude", &lat, nil, "latitude"},
		{"LatitudeOutOfRange", &bad, &lng, "latitude"},
		{"LongitudeOutOfRange", &lat, func() *float64 { v := 200.0; return &v }(), "longitude"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := validEvent()
			e.Latitude, e.Longitude = tc.lat, tc.lng
			errs := fieldErrors(t, ValidateEvent(&e))
			if !hasFieldError(errs, tc.field) {
				t.Errorf("expected error on field %q, got %v", tc.field, errs)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "title", Message: "is required"},
		{Field: "start_time", Message: "is required"},
	}}
	want := "validation failed: title: is required; start_time: is required"
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
