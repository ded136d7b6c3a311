package registry

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/opennoisenet/noisenet/internal/events"
	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/ratelimit"
	"github.com/opennoisenet/noisenet/internal/store/storetest"
)

func ptr[T any](v T) *T { return &v }

func newTestService(s *storetest.MemStore) (*Service, *ratelimit.Limiter) {
	limiter := ratelimit.New(10)
	return New(s, limiter, &events.NoopPublisher{}), limiter
}

func TestRegisterGeneratesID(t *testing.T) {
	s := storetest.New()
	svc, _ := newTestService(s)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	device, err := svc.Register(context.Background(), Registration{Name: "balcony sensor"}, now)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !strings.HasPrefix(device.ID, "dev-") {
		t.Errorf("device ID = %q, want dev- prefix", device.ID)
	}
	if device.Trust != model.TrustPending {
		t.Errorf("Trust = %q, want pending", device.Trust)
	}
	if !device.RegisteredAt.Equal(now) {
		t.Errorf("RegisteredAt = %v, want %v", device.RegisteredAt, now)
	}
	if device.LastSeenAt != nil {
		t.Errorf("LastSeenAt = %v, want nil at registration", device.LastSeenAt)
	}
}

func TestRegisterDuplicateID(t *testing.T) {
	s := storetest.New()
	svc, _ := newTestService(s)
	now := time.Now().UTC()

	reg := Registration{ID: "dev-fixed1"}
	if _, err := svc.Register(context.Background(), reg, now); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	_, err := svc.Register(context.Background(), reg, now)
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("second Register() error = %v, want ErrConflict", err)
	}
}

func TestRegisterValidatesLocation(t *testing.T) {
	svc, _ := newTestService(storetest.New())
	now := time.Now().UTC()

	for _, tc := range []struct {
		name string
		reg  Registration
	}{
		{"latitude out of range", Registration{Latitude: ptr(91.0), Longitude: ptr(0.0)}},
		{"longitude out of range", Registration{Latitude: ptr(0.0), Longitude: ptr(181.0)}},
		{"latitude without longitude", Registration{Latitude: ptr(52.52)}},
		{"NaN latitude", Registration{Latitude: ptr(math.NaN()), Longitude: ptr(0.0)}},
		{"Inf longitude", Registration{Latitude: ptr(0.0), Longitude: ptr(math.Inf(1))}},
	} {
		_, err := svc.Register(context.Background(), tc.reg, now)
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: error = %v, want *ValidationError", tc.name, err)
		}
	}
}

func TestHeartbeatUpdatesLastSeen(t *testing.T) {
	s := storetest.New()
	svc, _ := newTestService(s)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	device, err := svc.Register(context.Background(), Registration{}, now)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	later := now.Add(5 * time.Minute)
	if err := svc.Heartbeat(context.Background(), device.ID, later); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}

	got, err := svc.Get(context.Background(), device.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.LastSeenAt == nil || !got.LastSeenAt.Equal(later) {
		t.Errorf("LastSeenAt = %v, want %v", got.LastSeenAt, later)
	}

	// An older heartbeat never rolls last-seen backwards.
	if err := svc.Heartbeat(context.Background(), device.ID, now); err != nil {
		t.Fatalf("stale Heartbeat() error = %v", err)
	}
	got, _ = svc.Get(context.Background(), device.ID)
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("LastSeenAt rolled back to %v", got.LastSeenAt)
	}
}

func TestHeartbeatUnknownDevice(t *testing.T) {
	svc, _ := newTestService(storetest.New())
	err := svc.Heartbeat(context.Background(), "dev-missing", time.Now().UTC())
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Heartbeat() error = %v, want ErrNotFound", err)
	}
}

func TestSetTrustTransitions(t *testing.T) {
	s := storetest.New()
	svc, _ := newTestService(s)
	now := time.Now().UTC()

	device, err := svc.Register(context.Background(), Registration{}, now)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := svc.SetTrust(context.Background(), device.ID, model.TrustActive); err != nil {
		t.Fatalf("SetTrust(active) error = %v", err)
	}
	got, _ := svc.Get(context.Background(), device.ID)
	if got.Trust != model.TrustActive {
		t.Errorf("Trust = %q, want active", got.Trust)
	}

	err = svc.SetTrust(context.Background(), device.ID, "friendly")
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("SetTrust(invalid) error = %v, want *ValidationError", err)
	}
}

func TestRevokeEvictsRateLimitBucket(t *testing.T) {
	s := storetest.New()
	svc, limiter := newTestService(s)
	now := time.Now().UTC()

	device, err := svc.Register(context.Background(), Registration{}, now)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Burn the quota, then revoke; the bucket must be gone afterwards.
	for i := 0; i < 10; i++ {
		limiter.Allow(device.ID, now)
	}
	if ok, _ := limiter.Allow(device.ID, now); ok {
		t.Fatal("quota not exhausted")
	}

	if err := svc.SetTrust(context.Background(), device.ID, model.TrustRevoked); err != nil {
		t.Fatalf("SetTrust(revoked) error = %v", err)
	}
	if ok, _ := limiter.Allow(device.ID, now); !ok {
		t.Error("bucket survived revocation")
	}
}

func TestListFiltersByTrust(t *testing.T) {
	s := storetest.New()
	svc, _ := newTestService(s)
	now := time.Now().UTC()

	if _, err := svc.Register(context.Background(), Registration{ID: "dev-aaa"}, now); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(context.Background(), Registration{ID: "dev-bbb"}, now.Add(time.Second)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.SetTrust(context.Background(), "dev-bbb", model.TrustActive); err != nil {
		t.Fatalf("SetTrust: %v", err)
	}

	devices, total, err := svc.List(context.Background(), model.DeviceFilter{Trust: model.TrustActive})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(devices) != 1 || devices[0].ID != "dev-bbb" {
		t.Errorf("List(active) = %d devices (total %d)", len(devices), total)
	}

	_, total, err = svc.List(context.Background(), model.DeviceFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 {
		t.Errorf("unfiltered total = %d, want 2", total)
	}
}
