// Package idgen provides identifiers for events and ingestion runs.
//
// Event IDs are deterministic: the same identity key always maps to the same
// ID, so re-ingesting a source document cannot mint a second record. Run IDs
// are short random nanoids.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// EventPrefix is prepended to every event ID.
var EventPrefix = "ev-"

// RunPrefix is prepended to every run ID.
var RunPrefix = "run-"

// Alphabet defines the character set used for the random portion of run IDs.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters in a run ID (excluding the prefix).
var Length = 10

// eventNamespace scopes the UUIDv5 space for event identity keys.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("campusevents/event"))

// EventID returns the stable ID for an identity key.
func EventID(identityKey string) string {
	return EventPrefix + uuid.NewSHA1(eventNamespace, []byte(identityKey)).String()
}

// RunID returns a new random run ID.
func RunID() (string, error) {
	return GenerateWithPrefix(RunPrefix)
}

// GenerateWithPrefix returns a new random ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
