package store

import (
	"context"
	"time"

	"github.com/opennoisenet/noisenet/internal/model"
)

// Store defines the persistence interface for the telemetry core. All
// durable shared state (devices, events, snippet records) is mutated only
// through these methods; implementations translate backend failures into
// *model.StorageError and missing rows into model.ErrNotFound so callers
// never see driver-level errors.
type Store interface {
	// Devices
	CreateDevice(ctx context.Context, device *model.Device) error
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	ListDevices(ctx context.Context, filter model.DeviceFilter) ([]*model.Device, int, error) // returns devices, total count, error
	TouchDevice(ctx context.Context, id string, seenAt time.Time) error
	SetDeviceTrust(ctx context.Context, id string, trust model.TrustState) error

	// Noise events
	AppendEvent(ctx context.Context, event *model.NoiseEvent) error
	GetEvent(ctx context.Context, id string) (*model.NoiseEvent, error)
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.NoiseEvent, int, error)
	// ForEachEvent streams matching events in filter order through fn
	// without materializing the result set. A non-nil error from fn stops
	// the scan and is returned unchanged.
	ForEachEvent(ctx context.Context, filter model.EventFilter, fn func(*model.NoiseEvent) error) error
	DeleteEvent(ctx context.Context, id string) error
	// LinkSnippet sets the event's snippet reference. It fails with
	// model.ErrConflict if a snippet is already linked.
	LinkSnippet(ctx context.Context, eventID, snippetID string) error
	ClearSnippetLink(ctx context.Context, eventID string) error

	// Audio snippets (metadata; payload bytes live in blob storage)
	CreateSnippet(ctx context.Context, snippet *model.AudioSnippet) error
	GetSnippet(ctx context.Context, id string) (*model.AudioSnippet, error)
	ListExpiredSnippets(ctx context.Context, now time.Time, limit int) ([]*model.AudioSnippet, error)
	DeleteSnippet(ctx context.Context, id string) error

	// Stats reports store-wide totals for the admin surface.
	Stats(ctx context.Context) (*SystemStats, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}

// SystemStats are the store-wide totals served by the admin stats endpoint.
type SystemStats struct {
	Devices        int64      `json:"devices"`
	ActiveDevices  int64      `json:"active_devices"`
	RevokedDevices int64      `json:"revoked_devices"`
	Events         int64      `json:"events"`
	Snippets       int64      `json:"snippets"`
	LastEventAt    *time.Time `json:"last_event_at,omitempty"`
}
