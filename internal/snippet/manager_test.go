package snippet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opennoisenet/noisenet/internal/blob"
	"github.com/opennoisenet/noisenet/internal/events"
	"github.com/opennoisenet/noisenet/internal/metrics"
	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/store"
	"github.com/opennoisenet/noisenet/internal/store/storetest"
)

const (
	testMaxBytes  = 10 << 20
	testRetention = 168 * time.Hour
)

func newTestManager(s store.Store, blobs blob.Storage) *Manager {
	return New(s, blobs, &events.NoopPublisher{}, metrics.New(prometheus.NewRegistry()),
		testMaxBytes, testRetention, []string{"opus", "wav", "flac", "mp3"})
}

func seedEvent(t *testing.T, s *storetest.MemStore, id string) {
	t.Helper()
	err := s.AppendEvent(context.Background(), &model.NoiseEvent{
		ID:         id,
		DeviceID:   "dev-abc123",
		RecordedAt: time.Now().UTC(),
		LevelDB:    72.3,
		Latitude:   52.52,
		Longitude:  13.405,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
}

func TestStoreAndOpen(t *testing.T) {
	s := storetest.New()
	blobs := blob.NewMemoryStorage()
	seedEvent(t, s, "evt-1")
	m := newTestManager(s, blobs)

	payload := []byte("opus frames")
	snippet, err := m.Store(context.Background(), "evt-1", payload, "opus", 4.5)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if snippet.Codec != model.CodecOpus {
		t.Errorf("Codec = %q", snippet.Codec)
	}
	if snippet.SizeBytes != int64(len(payload)) {
		t.Errorf("SizeBytes = %d, want %d", snippet.SizeBytes, len(payload))
	}
	if want := snippet.CreatedAt.Add(testRetention); !snippet.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want CreatedAt+retention %v", snippet.ExpiresAt, want)
	}

	// The event now references the snippet.
	event, err := s.GetEvent(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if event.SnippetID == nil || *event.SnippetID != snippet.ID {
		t.Errorf("event SnippetID = %v, want %q", event.SnippetID, snippet.ID)
	}

	got, data, err := m.Open(context.Background(), snippet.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got.ID != snippet.ID {
		t.Errorf("Open returned snippet %q", got.ID)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("payload round-trip mismatch: %q", data)
	}
}

func TestStoreRejectsOversizedPayload(t *testing.T) {
	s := storetest.New()
	blobs := blob.NewMemoryStorage()
	seedEvent(t, s, "evt-1")
	m := newTestManager(s, blobs)

	oversized := make([]byte, testMaxBytes+1)
	_, err := m.Store(context.Background(), "evt-1", oversized, "opus", 4.5)
	var tl *model.TooLargeError
	if !errors.As(err, &tl) {
		t.Fatalf("Store() error = %v, want *TooLargeError", err)
	}
	if tl.MaxBytes != testMaxBytes {
		t.Errorf("MaxBytes = %d, want %d", tl.MaxBytes, int64(testMaxBytes))
	}
	// Nothing persisted anywhere.
	if s.SnippetCount() != 0 {
		t.Error("snippet record created for rejected upload")
	}
	if blobs.Len() != 0 {
		t.Error("payload stored for rejected upload")
	}
}

func TestStoreRejectsUnknownCodec(t *testing.T) {
	s := storetest.New()
	seedEvent(t, s, "evt-1")
	m := newTestManager(s, blob.NewMemoryStorage())

	_, err := m.Store(context.Background(), "evt-1", []byte("x"), "aac", 1)
	var uc *model.UnsupportedCodecError
	if !errors.As(err, &uc) {
		t.Fatalf("Store() error = %v, want *UnsupportedCodecError", err)
	}
	if uc.Codec != "aac" {
		t.Errorf("Codec = %q", uc.Codec)
	}
}

func TestStoreUnknownEvent(t *testing.T) {
	m := newTestManager(storetest.New(), blob.NewMemoryStorage())
	_, err := m.Store(context.Background(), "evt-missing", []byte("x"), "opus", 1)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Store() error = %v, want ErrNotFound", err)
	}
}

func TestStoreAtMostOnePerEvent(t *testing.T) {
	s := storetest.New()
	blobs := blob.NewMemoryStorage()
	seedEvent(t, s, "evt-1")
	m := newTestManager(s, blobs)

	if _, err := m.Store(context.Background(), "evt-1", []byte("first"), "opus", 1); err != nil {
		t.Fatalf("first Store() error = %v", err)
	}

	_, err := m.Store(context.Background(), "evt-1", []byte("second"), "opus", 1)
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("second Store() error = %v, want ErrConflict", err)
	}
	if s.SnippetCount() != 1 {
		t.Errorf("SnippetCount = %d, want 1", s.SnippetCount())
	}
	if blobs.Len() != 1 {
		t.Errorf("blob count = %d, want 1", blobs.Len())
	}
}

// linkFailStore makes the snippet link fail inside the transaction, after
// the payload has already been written to blob storage.
type linkFailStore struct {
	*storetest.MemStore
	linkErr error
}

func (s *linkFailStore) LinkSnippet(context.Context, string, string) error {
	return s.linkErr
}

func (s *linkFailStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func TestStoreRollsBackPayloadOnTxFailure(t *testing.T) {
	mem := storetest.New()
	seedEvent(t, mem, "evt-1")
	s := &linkFailStore{
		MemStore: mem,
		linkErr:  &model.StorageError{Op: "link snippet", Err: errors.New("down")},
	}
	blobs := blob.NewMemoryStorage()
	m := newTestManager(s, blobs)

	_, err := m.Store(context.Background(), "evt-1", []byte("x"), "opus", 1)
	if !model.IsRetryable(err) {
		t.Fatalf("Store() error = %v, want storage error", err)
	}
	if blobs.Len() != 0 {
		t.Errorf("orphaned payload left in blob storage after failed transaction")
	}
}

func TestDeleteClearsEventLink(t *testing.T) {
	s := storetest.New()
	blobs := blob.NewMemoryStorage()
	seedEvent(t, s, "evt-1")
	m := newTestManager(s, blobs)

	snippet, err := m.Store(context.Background(), "evt-1", []byte("x"), "wav", 2)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if err := m.Delete(context.Background(), snippet.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	event, err := s.GetEvent(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if event.SnippetID != nil {
		t.Error("event still references the deleted snippet")
	}
	if blobs.Len() != 0 {
		t.Error("payload not deleted")
	}
	if _, err := s.GetSnippet(context.Background(), snippet.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetSnippet after delete = %v, want ErrNotFound", err)
	}
}

func TestSweepExpired(t *testing.T) {
	s := storetest.New()
	blobs := blob.NewMemoryStorage()
	m := newTestManager(s, blobs)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("evt-%d", i)
		seedEvent(t, s, id)
		if _, err := m.Store(context.Background(), id, []byte("x"), "opus", 1); err != nil {
			t.Fatalf("Store %s: %v", id, err)
		}
	}

	// Nothing is expired yet.
	swept, err := m.SweepExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if swept != 0 {
		t.Errorf("swept = %d before retention elapsed, want 0", swept)
	}

	// Past the retention horizon everything goes.
	swept, err = m.SweepExpired(context.Background(), now.Add(testRetention+time.Minute))
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if swept != 5 {
		t.Errorf("swept = %d, want 5", swept)
	}
	if s.SnippetCount() != 0 {
		t.Errorf("SnippetCount = %d after sweep, want 0", s.SnippetCount())
	}
	if blobs.Len() != 0 {
		t.Errorf("blob count = %d after sweep, want 0", blobs.Len())
	}

	// Idempotent: a second sweep finds nothing.
	swept, err = m.SweepExpired(context.Background(), now.Add(testRetention+time.Hour))
	if err != nil {
		t.Fatalf("second SweepExpired() error = %v", err)
	}
	if swept != 0 {
		t.Errorf("second sweep swept = %d, want 0", swept)
	}
}

func TestSweepStopsOnCancel(t *testing.T) {
	s := storetest.New()
	blobs := blob.NewMemoryStorage()
	m := newTestManager(s, blobs)

	seedEvent(t, s, "evt-1")
	if _, err := m.Store(context.Background(), "evt-1", []byte("x"), "opus", 1); err != nil {
		t.Fatalf("Store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.SweepExpired(ctx, time.Now().UTC().Add(testRetention+time.Hour))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SweepExpired() error = %v, want context.Canceled", err)
	}
}
