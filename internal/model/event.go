package model

import "time"

// Classification is the fixed vocabulary of noise-source labels a device
// (or its on-edge classifier) may attach to an event.
type Classification string

const (
	ClassTraffic      Classification = "traffic"
	ClassConstruction Classification = "construction"
	ClassVoice        Classification = "voice"
	ClassMusic        Classification = "music"
	ClassNature       Classification = "nature"
	ClassUnknown      Classification = "unknown"
)

// String returns the string representation of the classification.
func (c Classification) String() string {
	return string(c)
}

// IsValid checks whether the classification is a known value.
func (c Classification) IsValid() bool {
	switch c {
	case ClassTraffic, ClassConstruction, ClassVoice, ClassMusic, ClassNature, ClassUnknown:
		return true
	}
	return false
}

// Plausible decibel bounds for a measured level. Anything outside this
// window is sensor garbage, not a quiet street or a jet engine.
const (
	MinLevelDB = -20.0
	MaxLevelDB = 180.0
)

// NoiseEvent is a single noise measurement submitted by a device.
// Events are immutable after ingestion except for SnippetID, which is set
// at most once when an audio snippet is attached.
type NoiseEvent struct {
	ID             string         `json:"id"`
	DeviceID       string         `json:"device_id"`
	RecordedAt     time.Time      `json:"recorded_at"`
	LevelDB        float64        `json:"level_db"`
	PeakDB         *float64       `json:"peak_db,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	SnippetID      *string        `json:"snippet_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
