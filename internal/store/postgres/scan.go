package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/opennoisenet/noisenet/internal/model"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanDevice(row scannable) (*model.Device, error) {
	var d model.Device
	var (
		latitude   sql.NullFloat64
		longitude  sql.NullFloat64
		lastSeenAt sql.NullTime
	)

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Trust,
		&latitude,
		&longitude,
		&d.RegisteredAt,
		&lastSeenAt,
	)
	if err != nil {
		return nil, err
	}

	d.Latitude = floatPtr(latitude)
	d.Longitude = floatPtr(longitude)
	if lastSeenAt.Valid {
		t := lastSeenAt.Time
		d.LastSeenAt = &t
	}

	return &d, nil
}

// scanDeviceWithTotal scans a row with a leading total_count column followed
// by the standard device columns. Used by queryListDevices with COUNT(*) OVER().
func scanDeviceWithTotal(row scannable) (*model.Device, int, error) {
	var total int
	var d model.Device
	var (
		latitude   sql.NullFloat64
		longitude  sql.NullFloat64
		lastSeenAt sql.NullTime
	)

	err := row.Scan(
		&total,
		&d.ID,
		&d.Name,
		&d.Trust,
		&latitude,
		&longitude,
		&d.RegisteredAt,
		&lastSeenAt,
	)
	if err != nil {
		return nil, 0, err
	}

	d.Latitude = floatPtr(latitude)
	d.Longitude = floatPtr(longitude)
	if lastSeenAt.Valid {
		t := lastSeenAt.Time
		d.LastSeenAt = &t
	}

	return &d, total, nil
}

func scanEvent(row scannable) (*model.NoiseEvent, error) {
	var e model.NoiseEvent
	var (
		peakDB     sql.NullFloat64
		confidence sql.NullFloat64
		snippetID  sql.NullString
	)

	err := row.Scan(
		&e.ID,
		&e.DeviceID,
		&e.RecordedAt,
		&e.LevelDB,
		&peakDB,
		&e.Classification,
		&confidence,
		&e.Latitude,
		&e.Longitude,
		&snippetID,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.PeakDB = floatPtr(peakDB)
	e.Confidence = floatPtr(confidence)
	if snippetID.Valid {
		s := snippetID.String
		e.SnippetID = &s
	}

	return &e, nil
}

// scanEventWithTotal scans a row with a leading total_count column followed
// by the standard event columns. Used by queryListEvents with COUNT(*) OVER().
func scanEventWithTotal(row scannable) (*model.NoiseEvent, int, error) {
	var total int
	var e model.NoiseEvent
	var (
		peakDB     sql.NullFloat64
		confidence sql.NullFloat64
		snippetID  sql.NullString
	)

	err := row.Scan(
		&total,
		&e.ID,
		&e.DeviceID,
		&e.RecordedAt,
		&e.LevelDB,
		&peakDB,
		&e.Classification,
		&confidence,
		&e.Latitude,
		&e.Longitude,
		&snippetID,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, 0, err
	}

	e.PeakDB = floatPtr(peakDB)
	e.Confidence = floatPtr(confidence)
	if snippetID.Valid {
		s := snippetID.String
		e.SnippetID = &s
	}

	return &e, total, nil
}

func scanSnippet(row scannable) (*model.AudioSnippet, error) {
	var s model.AudioSnippet

	err := row.Scan(
		&s.ID,
		&s.EventID,
		&s.StorageKey,
		&s.Codec,
		&s.DurationSeconds,
		&s.SizeBytes,
		&s.CreatedAt,
		&s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
