package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/opennoisenet/noisenet/internal/model"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	payload := []byte("opus frames")
	if err := s.Put(ctx, "snp-1.opus", payload, "audio/opus"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, "snp-1.opus")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get() = %q, want %q", got, payload)
	}

	// The stored copy is isolated from later mutation of the caller's slice.
	payload[0] = 'X'
	got, _ = s.Get(ctx, "snp-1.opus")
	if got[0] == 'X' {
		t.Error("stored payload aliases the caller's buffer")
	}
}

func TestMemoryStorageGetMissing(t *testing.T) {
	s := NewMemoryStorage()
	_, err := s.Get(context.Background(), "snp-missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStorageDeleteIdempotent(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	if err := s.Put(ctx, "snp-1.opus", []byte("x"), "audio/opus"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Delete(ctx, "snp-1.opus"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// Deleting an absent key is not an error.
	if err := s.Delete(ctx, "snp-1.opus"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}
