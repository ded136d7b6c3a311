package snippet

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opennoisenet/noisenet/internal/blob"
	"github.com/opennoisenet/noisenet/internal/events"
	"github.com/opennoisenet/noisenet/internal/metrics"
	"github.com/opennoisenet/noisenet/internal/store/storetest"
)

func TestSweeperDeletesExpiredOnStart(t *testing.T) {
	s := storetest.New()
	blobs := blob.NewMemoryStorage()

	// Zero retention: everything stored is immediately expired.
	manager := New(s, blobs, &events.NoopPublisher{}, metrics.New(prometheus.NewRegistry()),
		testMaxBytes, 0, []string{"opus"})

	seedEvent(t, s, "evt-1")
	if _, err := manager.Store(context.Background(), "evt-1", []byte("x"), "opus", 1); err != nil {
		t.Fatalf("Store: %v", err)
	}

	sweeper := NewSweeper(manager, time.Hour, slog.Default())
	sweeper.Start()
	defer sweeper.Stop()

	deadline := time.After(2 * time.Second)
	for s.SnippetCount() > 0 {
		select {
		case <-deadline:
			t.Fatal("initial sweep did not delete the expired snippet")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if blobs.Len() != 0 {
		t.Errorf("payload survived the sweep")
	}
}

func TestSweeperStopIsIdempotentAndWaits(t *testing.T) {
	s := storetest.New()
	manager := New(s, blob.NewMemoryStorage(), &events.NoopPublisher{},
		metrics.New(prometheus.NewRegistry()), testMaxBytes, testRetention, []string{"opus"})

	sweeper := NewSweeper(manager, 10*time.Millisecond, slog.Default())
	sweeper.Start()
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
	// A second Stop must not panic or hang.
	sweeper.Stop()
}
