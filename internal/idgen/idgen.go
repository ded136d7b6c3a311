// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the three record kinds.
const (
	DevicePrefix  = "dev-"
	EventPrefix   = "evt-"
	SnippetPrefix = "snp-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 12

// Device returns a new device ID.
func Device() (string, error) { return generate(DevicePrefix) }

// Event returns a new noise-event ID.
func Event() (string, error) { return generate(EventPrefix) }

// Snippet returns a new audio-snippet ID.
func Snippet() (string, error) { return generate(SnippetPrefix) }

func generate(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
