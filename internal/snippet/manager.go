// Package snippet governs audio snippet lifecycle: upload policy,
// event association, payload storage, and retention-based expiry.
package snippet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opennoisenet/noisenet/internal/blob"
	"github.com/opennoisenet/noisenet/internal/events"
	"github.com/opennoisenet/noisenet/internal/idgen"
	"github.com/opennoisenet/noisenet/internal/metrics"
	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/store"
)

// sweepBatch bounds how many expired snippets one ListExpiredSnippets call
// returns; the sweep loops until the store runs dry.
const sweepBatch = 100

// Manager enforces upload policy and owns snippet lifecycle.
type Manager struct {
	store     store.Store
	blobs     blob.Storage
	publisher events.Publisher
	metrics   *metrics.Metrics
	maxBytes  int64
	retention time.Duration
	codecs    map[model.Codec]bool
}

// New returns a manager. codecs is the upload allow-list; maxBytes the size
// ceiling; retention the lifetime from which ExpiresAt is computed at
// creation.
func New(s store.Store, blobs blob.Storage, publisher events.Publisher, m *metrics.Metrics, maxBytes int64, retention time.Duration, codecs []string) *Manager {
	allowed := make(map[model.Codec]bool, len(codecs))
	for _, c := range codecs {
		allowed[model.Codec(c)] = true
	}
	return &Manager{
		store:     s,
		blobs:     blobs,
		publisher: publisher,
		metrics:   m,
		maxBytes:  maxBytes,
		retention: retention,
		codecs:    allowed,
	}
}

// MaxBytes returns the configured upload size ceiling.
func (m *Manager) MaxBytes() int64 {
	return m.maxBytes
}

// Store validates and persists an uploaded snippet for the given event.
// Policy checks run before any I/O: size ceiling, codec allow-list, event
// existence, at-most-one linkage. The payload is written to blob storage
// first and the metadata row plus event link committed in one transaction;
// if the transaction fails the payload is deleted again so no orphan
// remains.
func (m *Manager) Store(ctx context.Context, eventID string, data []byte, codec string, durationSeconds float64) (*model.AudioSnippet, error) {
	if int64(len(data)) > m.maxBytes {
		return nil, &model.TooLargeError{SizeBytes: int64(len(data)), MaxBytes: m.maxBytes}
	}
	if !m.codecs[model.Codec(codec)] {
		return nil, &model.UnsupportedCodecError{Codec: codec}
	}

	event, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	if event.SnippetID != nil {
		return nil, fmt.Errorf("event %s already has snippet %s: %w", eventID, *event.SnippetID, model.ErrConflict)
	}

	id, err := idgen.Snippet()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snippet := &model.AudioSnippet{
		ID:              id,
		EventID:         eventID,
		StorageKey:      id + "." + codec,
		Codec:           model.Codec(codec),
		DurationSeconds: durationSeconds,
		SizeBytes:       int64(len(data)),
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.retention),
	}

	if err := m.blobs.Put(ctx, snippet.StorageKey, data, contentType(snippet.Codec)); err != nil {
		return nil, err
	}

	err = m.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateSnippet(ctx, snippet); err != nil {
			return err
		}
		return tx.LinkSnippet(ctx, eventID, snippet.ID)
	})
	if err != nil {
		// Roll the payload back so blob storage holds no orphan.
		if delErr := m.blobs.Delete(ctx, snippet.StorageKey); delErr != nil {
			slog.Warn("failed to delete orphaned snippet payload", "key", snippet.StorageKey, "error", delErr)
		}
		return nil, err
	}

	m.metrics.SnippetsStored.Inc()
	m.publish(ctx, events.TopicSnippetStored, events.SnippetStored{Snippet: snippet})
	return snippet, nil
}

// Open returns a snippet's metadata together with its payload bytes.
func (m *Manager) Open(ctx context.Context, snippetID string) (*model.AudioSnippet, []byte, error) {
	snippet, err := m.store.GetSnippet(ctx, snippetID)
	if err != nil {
		return nil, nil, fmt.Errorf("snippet %s: %w", snippetID, err)
	}
	data, err := m.blobs.Get(ctx, snippet.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("snippet payload %s: %w", snippet.StorageKey, err)
	}
	return snippet, data, nil
}

// Delete removes a snippet ahead of its expiry (admin action). The event
// record stays; only its snippet reference is cleared.
func (m *Manager) Delete(ctx context.Context, snippetID string) error {
	snippet, err := m.store.GetSnippet(ctx, snippetID)
	if err != nil {
		return fmt.Errorf("snippet %s: %w", snippetID, err)
	}
	return m.remove(ctx, snippet)
}

// SweepExpired deletes every snippet whose expiry has passed and returns
// how many were deleted. Each snippet is removed as one logical step
// (payload, then record plus event link in a transaction), and the context
// is checked between snippets so shutdown mid-sweep leaves no partial
// per-snippet state. Running it again with no new expirations deletes
// nothing.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	deleted := 0
	for {
		expired, err := m.store.ListExpiredSnippets(ctx, now, sweepBatch)
		if err != nil {
			return deleted, err
		}
		if len(expired) == 0 {
			return deleted, nil
		}

		for _, snippet := range expired {
			if err := ctx.Err(); err != nil {
				return deleted, err
			}
			if err := m.remove(ctx, snippet); err != nil {
				return deleted, err
			}
			deleted++
			m.metrics.SnippetsExpired.Inc()
			m.publish(ctx, events.TopicSnippetExpired, events.SnippetExpired{
				SnippetID: snippet.ID,
				EventID:   snippet.EventID,
			})
		}
	}
}

// remove deletes one snippet: payload first (blob deletes are idempotent,
// so a crash between the two steps re-resolves on the next sweep), then the
// record and the event's reference in a single transaction.
func (m *Manager) remove(ctx context.Context, snippet *model.AudioSnippet) error {
	if err := m.blobs.Delete(ctx, snippet.StorageKey); err != nil {
		return err
	}
	return m.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.ClearSnippetLink(ctx, snippet.EventID); err != nil {
			return err
		}
		return tx.DeleteSnippet(ctx, snippet.ID)
	})
}

func (m *Manager) publish(ctx context.Context, topic string, event any) {
	if err := m.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func contentType(codec model.Codec) string {
	switch codec {
	case model.CodecOpus:
		return "audio/opus"
	case model.CodecWav:
		return "audio/wav"
	case model.CodecFlac:
		return "audio/flac"
	case model.CodecMP3:
		return "audio/mpeg"
	}
	return "application/octet-stream"
}
