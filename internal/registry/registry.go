// Package registry tracks known devices: registration, heartbeat last-seen
// state, and trust transitions. It is the sole writer of device records.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/opennoisenet/noisenet/internal/events"
	"github.com/opennoisenet/noisenet/internal/idgen"
	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/ratelimit"
	"github.com/opennoisenet/noisenet/internal/store"
)

// Service implements device lifecycle operations on top of the store.
type Service struct {
	store     store.Store
	limiter   *ratelimit.Limiter
	publisher events.Publisher
}

// New returns a registry service. limiter may not be nil; revocation evicts
// the device's rate-limit bucket through it.
func New(s store.Store, limiter *ratelimit.Limiter, publisher events.Publisher) *Service {
	return &Service{
		store:     s,
		limiter:   limiter,
		publisher: publisher,
	}
}

// Registration carries the caller-supplied fields for a new device.
type Registration struct {
	ID        string   `json:"id,omitempty"` // optional; generated when empty
	Name      string   `json:"name,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Register creates a device record. A second registration of the same
// identifier fails with model.ErrConflict rather than silently overwriting.
func (s *Service) Register(ctx context.Context, reg Registration, now time.Time) (*model.Device, error) {
	var ve model.ValidationError
	if reg.Latitude != nil {
		if math.IsNaN(*reg.Latitude) || math.IsInf(*reg.Latitude, 0) {
			ve.Add("latitude", "must be a finite number")
		} else if *reg.Latitude < -90 || *reg.Latitude > 90 {
			ve.Add("latitude", fmt.Sprintf("must be in [-90, 90], got %g", *reg.Latitude))
		}
	}
	if reg.Longitude != nil {
		if math.IsNaN(*reg.Longitude) || math.IsInf(*reg.Longitude, 0) {
			ve.Add("longitude", "must be a finite number")
		} else if *reg.Longitude < -180 || *reg.Longitude > 180 {
			ve.Add("longitude", fmt.Sprintf("must be in [-180, 180], got %g", *reg.Longitude))
		}
	}
	if (reg.Latitude == nil) != (reg.Longitude == nil) {
		ve.Add("location", "latitude and longitude must be provided together")
	}
	if ve.HasErrors() {
		return nil, &ve
	}

	id := reg.ID
	if id == "" {
		var err error
		if id, err = idgen.Device(); err != nil {
			return nil, err
		}
	}

	device := &model.Device{
		ID:           id,
		Name:         reg.Name,
		Trust:        model.TrustPending,
		Latitude:     reg.Latitude,
		Longitude:    reg.Longitude,
		RegisteredAt: now.UTC(),
	}

	if err := s.store.CreateDevice(ctx, device); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicDeviceRegistered, events.DeviceRegistered{Device: device})
	return device, nil
}

// Heartbeat updates the device's last-seen timestamp. Concurrent heartbeats
// settle last-write-wins by wall clock inside the store.
func (s *Service) Heartbeat(ctx context.Context, deviceID string, now time.Time) error {
	return s.store.TouchDevice(ctx, deviceID, now.UTC())
}

// SetTrust transitions a device's trust state. Revoking evicts the device's
// rate-limit bucket so in-memory state does not outlive the decision.
func (s *Service) SetTrust(ctx context.Context, deviceID string, trust model.TrustState) error {
	if !trust.IsValid() {
		var ve model.ValidationError
		ve.Add("trust", fmt.Sprintf("invalid value %q", trust))
		return &ve
	}

	if err := s.store.SetDeviceTrust(ctx, deviceID, trust); err != nil {
		return err
	}

	if trust == model.TrustRevoked {
		s.limiter.Forget(deviceID)
		s.publish(ctx, events.TopicDeviceRevoked, events.DeviceRevoked{DeviceID: deviceID})
	}
	return nil
}

// Get returns a single device record.
func (s *Service) Get(ctx context.Context, deviceID string) (*model.Device, error) {
	return s.store.GetDevice(ctx, deviceID)
}

// List returns devices matching the filter plus the unpaginated total.
func (s *Service) List(ctx context.Context, filter model.DeviceFilter) ([]*model.Device, int, error) {
	return s.store.ListDevices(ctx, filter)
}

// publish is best-effort; a bus failure is logged but never blocks the caller.
func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
