// Package storetest provides an in-memory store.Store used as a test
// double. It mirrors the Postgres implementation's contract: missing rows
// are model.ErrNotFound, duplicate creates are model.ErrConflict, and
// snippet linkage is at-most-once.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/store"
)

// MemStore is an in-memory store.Store for tests. The zero value is not
// usable; call New.
type MemStore struct {
	mu       sync.Mutex
	devices  map[string]*model.Device
	events   map[string]*model.NoiseEvent
	snippets map[string]*model.AudioSnippet

	// Err, when non-nil, is returned by every call. FailNext makes the
	// next call fail once with Err, then clears itself.
	Err      error
	FailNext bool

	// AppendErr is returned by AppendEvent while AppendFailures > 0,
	// decrementing each time. Lets tests exercise the retry path without
	// failing the rest of the pipeline.
	AppendErr      error
	AppendFailures int
}

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{
		devices:  make(map[string]*model.Device),
		events:   make(map[string]*model.NoiseEvent),
		snippets: make(map[string]*model.AudioSnippet),
	}
}

func (m *MemStore) fail() error {
	if m.Err == nil {
		return nil
	}
	if m.FailNext {
		m.FailNext = false
		err := m.Err
		m.Err = nil
		return err
	}
	return m.Err
}

func (m *MemStore) CreateDevice(_ context.Context, device *model.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.devices[device.ID]; ok {
		return model.ErrConflict
	}
	clone := *device
	m.devices[device.ID] = &clone
	return nil
}

func (m *MemStore) GetDevice(_ context.Context, id string) (*model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	d, ok := m.devices[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (m *MemStore) ListDevices(_ context.Context, filter model.DeviceFilter) ([]*model.Device, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, 0, err
	}
	var all []*model.Device
	for _, d := range m.devices {
		if filter.Trust != "" && d.Trust != filter.Trust {
			continue
		}
		clone := *d
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].RegisteredAt.Equal(all[j].RegisteredAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].RegisteredAt.After(all[j].RegisteredAt)
	})
	total := len(all)
	all = paginate(all, filter.Limit, filter.Offset)
	return all, total, nil
}

func (m *MemStore) TouchDevice(_ context.Context, id string, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	d, ok := m.devices[id]
	if !ok {
		return model.ErrNotFound
	}
	if d.LastSeenAt == nil || seenAt.After(*d.LastSeenAt) {
		t := seenAt
		d.LastSeenAt = &t
	}
	return nil
}

func (m *MemStore) SetDeviceTrust(_ context.Context, id string, trust model.TrustState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	d, ok := m.devices[id]
	if !ok {
		return model.ErrNotFound
	}
	d.Trust = trust
	return nil
}

func (m *MemStore) AppendEvent(_ context.Context, event *model.NoiseEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if m.AppendFailures > 0 {
		m.AppendFailures--
		return m.AppendErr
	}
	if _, ok := m.events[event.ID]; ok {
		return model.ErrConflict
	}
	clone := *event
	m.events[event.ID] = &clone
	return nil
}

func (m *MemStore) GetEvent(_ context.Context, id string) (*model.NoiseEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	e, ok := m.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *MemStore) matchEvents(filter model.EventFilter) []*model.NoiseEvent {
	var all []*model.NoiseEvent
	for _, e := range m.events {
		if filter.DeviceID != "" && e.DeviceID != filter.DeviceID {
			continue
		}
		if !filter.Time.From.IsZero() && e.RecordedAt.Before(filter.Time.From) {
			continue
		}
		if !filter.Time.To.IsZero() && !e.RecordedAt.Before(filter.Time.To) {
			continue
		}
		if filter.Box != nil && !filter.Box.Contains(e.Latitude, e.Longitude) {
			continue
		}
		if filter.Classification != "" && e.Classification != filter.Classification {
			continue
		}
		if filter.MinLevelDB != nil && e.LevelDB < *filter.MinLevelDB {
			continue
		}
		clone := *e
		all = append(all, &clone)
	}
	desc := strings.HasPrefix(filter.Sort, "-")
	sort.Slice(all, func(i, j int) bool {
		if all[i].RecordedAt.Equal(all[j].RecordedAt) {
			return all[i].ID < all[j].ID
		}
		if desc {
			return all[i].RecordedAt.After(all[j].RecordedAt)
		}
		return all[i].RecordedAt.Before(all[j].RecordedAt)
	})
	return all
}

func (m *MemStore) ListEvents(_ context.Context, filter model.EventFilter) ([]*model.NoiseEvent, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, 0, err
	}
	all := m.matchEvents(filter)
	total := len(all)
	all = paginate(all, filter.Limit, filter.Offset)
	return all, total, nil
}

func (m *MemStore) ForEachEvent(_ context.Context, filter model.EventFilter, fn func(*model.NoiseEvent) error) error {
	m.mu.Lock()
	if err := m.fail(); err != nil {
		m.mu.Unlock()
		return err
	}
	all := m.matchEvents(filter)
	m.mu.Unlock()
	for _, e := range all {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemStore) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.events[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.events, id)
	for sid, sn := range m.snippets {
		if sn.EventID == id {
			delete(m.snippets, sid)
		}
	}
	return nil
}

func (m *MemStore) LinkSnippet(_ context.Context, eventID, snippetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	e, ok := m.events[eventID]
	if !ok {
		return model.ErrNotFound
	}
	if e.SnippetID != nil {
		return model.ErrConflict
	}
	id := snippetID
	e.SnippetID = &id
	return nil
}

func (m *MemStore) ClearSnippetLink(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	e, ok := m.events[eventID]
	if !ok {
		return model.ErrNotFound
	}
	e.SnippetID = nil
	return nil
}

func (m *MemStore) CreateSnippet(_ context.Context, snippet *model.AudioSnippet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.snippets[snippet.ID]; ok {
		return model.ErrConflict
	}
	clone := *snippet
	m.snippets[snippet.ID] = &clone
	return nil
}

func (m *MemStore) GetSnippet(_ context.Context, id string) (*model.AudioSnippet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	s, ok := m.snippets[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *MemStore) ListExpiredSnippets(_ context.Context, now time.Time, limit int) ([]*model.AudioSnippet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	var expired []*model.AudioSnippet
	for _, s := range m.snippets {
		if !s.ExpiresAt.After(now) {
			clone := *s
			expired = append(expired, &clone)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].ExpiresAt.Equal(expired[j].ExpiresAt) {
			return expired[i].ID < expired[j].ID
		}
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (m *MemStore) DeleteSnippet(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.snippets[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.snippets, id)
	return nil
}

func (m *MemStore) Stats(_ context.Context) (*store.SystemStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	stats := &store.SystemStats{
		Devices:  int64(len(m.devices)),
		Events:   int64(len(m.events)),
		Snippets: int64(len(m.snippets)),
	}
	for _, d := range m.devices {
		switch d.Trust {
		case model.TrustActive:
			stats.ActiveDevices++
		case model.TrustRevoked:
			stats.RevokedDevices++
		}
	}
	for _, e := range m.events {
		if stats.LastEventAt == nil || e.RecordedAt.After(*stats.LastEventAt) {
			t := e.RecordedAt
			stats.LastEventAt = &t
		}
	}
	return stats, nil
}

// RunInTransaction runs fn against the store itself. The double has no
// rollback; tests needing failure injection use Err/FailNext instead.
func (m *MemStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *MemStore) Close() error { return nil }

// EventCount returns the number of stored events.
func (m *MemStore) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// SnippetCount returns the number of stored snippet records.
func (m *MemStore) SnippetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snippets)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
