package model

import "time"

// Codec identifies the encoding of an uploaded audio snippet.
type Codec string

const (
	CodecOpus Codec = "opus"
	CodecWav  Codec = "wav"
	CodecFlac Codec = "flac"
	CodecMP3  Codec = "mp3"
)

// String returns the string representation of the codec.
func (c Codec) String() string {
	return string(c)
}

// AudioSnippet is the metadata record for an audio recording attached to a
// noise event. The payload itself lives in blob storage under StorageKey.
// ExpiresAt is computed once at creation and never changes.
type AudioSnippet struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	StorageKey      string    `json:"storage_key"`
	Codec           Codec     `json:"codec"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	SizeBytes       int64     `json:"size_bytes"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}
