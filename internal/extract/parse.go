package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// errUnparseable means neither the strict decode nor the repair produced a
// JSON array of elements.
var errUnparseable = errors.New("response is not a JSON array of events")

// aliases maps alternative key spellings to canonical candidate fields.
var aliases = map[string]string{
	"description": model.FieldDescription,
	"details":     model.FieldDescription,
	"starttime":   model.FieldStartTime,
	"start":       model.FieldStartTime,
	"endtime":     model.FieldEndTime,
	"end":         model.FieldEndTime,
	"speaker":     model.FieldAuthorName,
	"author":      model.FieldAuthorName,
	"email":       model.FieldAuthorEmail,
	"image":       model.FieldPictureLink,
	"url":         model.FieldLink,
	"hosts":       model.FieldHost,
	"category":    model.FieldCategories,
	"lat":         model.FieldLatitude,
	"lng":         model.FieldLongitude,
	"lon":         model.FieldLongitude,
}

// ParseResponse decodes model output into ordered candidates. It accepts a
// JSON array, an object with an "events" array, or a single event object.
// When strict decoding fails it retries once on the outermost [ ... ]
// slice. The boolean is false when nothing could be decoded.
func ParseResponse(text string) ([]model.Candidate, bool) {
	elems, err := decodeElements([]byte(strings.TrimSpace(text)))
	if err != nil {
		repaired, ok := outermostArray(text)
		if !ok {
			return nil, false
		}
		if elems, err = decodeElements(repaired); err != nil {
			return nil, false
		}
	}

	out := make([]model.Candidate, 0, len(elems))
	for _, raw := range elems {
		out = append(out, candidateFrom(raw))
	}
	return out, true
}

func decodeElements(b []byte) ([]json.RawMessage, error) {
	if len(b) == 0 {
		return nil, errUnparseable
	}
	switch b[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(b, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return nil, err
		}
		if inner, ok := obj["events"]; ok {
			var arr []json.RawMessage
			if err := json.Unmarshal(inner, &arr); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return []json.RawMessage{b}, nil
	}
	return nil, errUnparseable
}

func outermostArray(text string) ([]byte, bool) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return nil, false
	}
	return []byte(text[start : end+1]), true
}

// candidateFrom tags one decoded element as valid or malformed.
func candidateFrom(raw json.RawMessage) model.Candidate {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return model.Candidate{Kind: model.CandidateMalformed, Reason: "element is not an object", Raw: raw}
	}

	fields := make(map[string]string, len(obj))
	// Canonical keys win over aliases, so apply them last.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sort.SliceStable(keys, func(i, j int) bool {
		return isAlias(keys[i]) && !isAlias(keys[j])
	})
	for _, k := range keys {
		name := strings.ToLower(strings.TrimSpace(k))
		if canon, ok := aliases[name]; ok {
			name = canon
		}
		if v, ok := coerce(obj[k]); ok {
			fields[name] = v
		}
	}

	// A bare date (optionally with a time) stands in for a missing start.
	if fields[model.FieldStartTime] == "" {
		if d := fields["date"]; d != "" {
			if t := fields["time"]; t != "" {
				d += " " + t
			}
			fields[model.FieldStartTime] = d
		}
	}
	delete(fields, "date")
	delete(fields, "time")

	c := model.Candidate{Kind: model.CandidateValid, Fields: fields, Raw: raw}
	switch {
	case fields[model.FieldTitle] == "":
		c.Kind, c.Reason = model.CandidateMalformed, "missing title"
	case fields[model.FieldStartTime] == "":
		c.Kind, c.Reason = model.CandidateMalformed, "missing start time"
	}
	return c
}

func isAlias(k string) bool {
	_, ok := aliases[strings.ToLower(strings.TrimSpace(k))]
	return ok
}

// coerce renders a loosely typed JSON value as a trimmed string. Nulls,
// empty strings and nested objects are dropped.
func coerce(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(x)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			return "", false
		}
		return s, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := coerce(e); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ", "), true
	default:
		return "", false
	}
}
