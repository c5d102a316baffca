package model

import "encoding/json"

// CandidateKind tags a Candidate as valid or malformed.
type CandidateKind string

const (
	CandidateValid     CandidateKind = "valid"
	CandidateMalformed CandidateKind = "malformed"
)

// Candidate field names as requested from the language model.
const (
	FieldTitle       = "title"
	FieldDescription = "event_description"
	FieldStartTime   = "start_time"
	FieldEndTime     = "end_time"
	FieldLocation    = "location"
	FieldMapLocation = "map_location"
	FieldAuthorName  = "author_name"
	FieldAuthorEmail = "author_email"
	FieldPictureLink = "picture_link"
	FieldLink        = "link"
	FieldHost        = "host"
	FieldCategories  = "categories"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
)

// Candidate is one unvalidated event-shaped record produced by extraction.
// Only CandidateValid entries are forwarded to normalization; Fields holds
// the model's values coerced to strings (lists joined with ", ").
type Candidate struct {
	Kind   CandidateKind     `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Raw    json.RawMessage   `json:"raw,omitempty"`
}

// Valid reports whether the candidate may be normalized.
func (c Candidate) Valid() bool {
	return c.Kind == CandidateValid
}

// Get returns the named field, or "" when absent.
func (c Candidate) Get(field string) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[field]
}

// ExtractionResult is the ordered set of candidates extracted from one
// source document. It is transient and never persisted.
type ExtractionResult struct {
	Source     string      `json:"source"`
	Candidates []Candidate `json:"candidates"`
}

// ValidCandidates returns the candidates tagged valid, preserving order.
func (r *ExtractionResult) ValidCandidates() []Candidate {
	if r == nil {
		return nil
	}
	var out []Candidate
	for _, c := range r.Candidates {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// MalformedCount returns the number of candidates tagged malformed.
func (r *ExtractionResult) MalformedCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Candidates {
		if !c.Valid() {
			n++
		}
	}
	return n
}
