package events

import (
	"context"

	"github.com/opennoisenet/noisenet/internal/model"
)

// Event topic constants. Subjects are namespaced under "noise." so
// consumers can subscribe with a single "noise.>" wildcard.
const (
	TopicDeviceRegistered = "noise.device.registered"
	TopicDeviceRevoked    = "noise.device.revoked"
	TopicEventCreated     = "noise.event.created"
	TopicEventDeleted     = "noise.event.deleted"
	TopicSnippetStored    = "noise.snippet.stored"
	TopicSnippetExpired   = "noise.snippet.expired"
)

// Event payload types

type DeviceRegistered struct {
	Device *model.Device `json:"device"`
}

type DeviceRevoked struct {
	DeviceID string `json:"device_id"`
}

type EventCreated struct {
	Event *model.NoiseEvent `json:"event"`
}

type EventDeleted struct {
	EventID string `json:"event_id"`
}

type SnippetStored struct {
	Snippet *model.AudioSnippet `json:"snippet"`
}

type SnippetExpired struct {
	SnippetID string `json:"snippet_id"`
	EventID   string `json:"event_id"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
