// Package ingest runs the event submission pipeline: trust check, rate
// limit, validation, durable append, event publication. It is the single
// policy enforcement point for revoked and unknown devices.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opennoisenet/noisenet/internal/events"
	"github.com/opennoisenet/noisenet/internal/metrics"
	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/ratelimit"
	"github.com/opennoisenet/noisenet/internal/store"
)

// Retry policy for transient storage failures. Client-data faults are never
// retried; they surface immediately.
const (
	appendAttempts = 3
	appendBackoff  = 100 * time.Millisecond
)

// Service is the ingestion pipeline.
type Service struct {
	store     store.Store
	limiter   *ratelimit.Limiter
	validator *Validator
	publisher events.Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration
}

// New wires the pipeline. timeout bounds each Submit call end to end; a
// submission that cannot complete in time fails with a retryable error
// instead of hanging the device's connection.
func New(s store.Store, limiter *ratelimit.Limiter, validator *Validator, publisher events.Publisher, m *metrics.Metrics, timeout time.Duration) *Service {
	return &Service{
		store:     s,
		limiter:   limiter,
		validator: validator,
		publisher: publisher,
		metrics:   m,
		timeout:   timeout,
	}
}

// Submit runs one raw submission through the pipeline and returns the
// stored event. Error kinds, in check order: model.ErrNotFound (unknown
// device), model.ErrRevoked, *model.RateLimitedError,
// *model.ValidationError, *model.StorageError.
func (s *Service) Submit(ctx context.Context, raw RawEvent) (*model.NoiseEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if raw.DeviceID == nil || *raw.DeviceID == "" {
		s.metrics.EventsRejected.WithLabelValues(metrics.ReasonValidation).Inc()
		var ve model.ValidationError
		ve.Add("device_id", "is required")
		return nil, &ve
	}
	deviceID := *raw.DeviceID

	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		if model.IsRetryable(err) {
			s.metrics.EventsRejected.WithLabelValues(metrics.ReasonStorage).Inc()
		} else {
			s.metrics.EventsRejected.WithLabelValues(metrics.ReasonUnknownDevice).Inc()
		}
		return nil, fmt.Errorf("device %s: %w", deviceID, err)
	}

	// Revocation is enforced here, before rate limiting and validation.
	if device.Trust == model.TrustRevoked {
		s.metrics.EventsRejected.WithLabelValues(metrics.ReasonRevoked).Inc()
		return nil, fmt.Errorf("device %s: %w", deviceID, model.ErrRevoked)
	}

	now := time.Now()
	if ok, retryAfter := s.limiter.Allow(device.ID, now); !ok {
		s.metrics.EventsRejected.WithLabelValues(metrics.ReasonRateLimited).Inc()
		return nil, &model.RateLimitedError{DeviceID: device.ID, RetryAfter: retryAfter}
	}

	event, err := s.validator.Validate(raw, device, now)
	if err != nil {
		s.metrics.EventsRejected.WithLabelValues(metrics.ReasonValidation).Inc()
		return nil, err
	}

	if err := s.appendWithRetry(ctx, event); err != nil {
		s.metrics.EventsRejected.WithLabelValues(metrics.ReasonStorage).Inc()
		return nil, err
	}

	// A submission doubles as a liveness signal.
	if err := s.store.TouchDevice(ctx, device.ID, now); err != nil {
		slog.Warn("failed to update device last-seen", "device_id", device.ID, "error", err)
	}

	s.metrics.EventsIngested.Inc()
	s.publish(ctx, events.TopicEventCreated, events.EventCreated{Event: event})
	return event, nil
}

// appendWithRetry retries the append a bounded number of times with linear
// backoff, but only for transient storage failures.
func (s *Service) appendWithRetry(ctx context.Context, event *model.NoiseEvent) error {
	var err error
	for attempt := 1; attempt <= appendAttempts; attempt++ {
		err = s.store.AppendEvent(ctx, event)
		if err == nil || !model.IsRetryable(err) {
			return err
		}
		if attempt == appendAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return &model.StorageError{Op: "append event", Err: ctx.Err()}
		case <-time.After(time.Duration(attempt) * appendBackoff):
		}
	}
	return err
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
