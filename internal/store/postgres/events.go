package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/store"
)

// eventColumns is the column list used for SELECT statements on the noise_events table.
const eventColumns = `id, device_id, recorded_at, level_db, peak_db,
	classification, confidence, latitude, longitude, snippet_id, created_at`

func queryAppendEvent(ctx context.Context, db executor, e *model.NoiseEvent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO noise_events (
			id, device_id, recorded_at, level_db, peak_db,
			classification, confidence, latitude, longitude, snippet_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID,
		e.DeviceID,
		e.RecordedAt,
		e.LevelDB,
		nullFloatPtr(e.PeakDB),
		string(e.Classification),
		nullFloatPtr(e.Confidence),
		e.Latitude,
		e.Longitude,
		nullStringPtr(e.SnippetID),
		e.CreatedAt,
	)
	return err
}

func queryGetEvent(ctx context.Context, db executor, id string) (*model.NoiseEvent, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM noise_events WHERE id = $1`, id)
	return scanEvent(row)
}

// buildEventWhere assembles the WHERE clause for an event filter. The
// bounding box is min-inclusive, max-exclusive to match
// model.BoundingBox.Contains, so adjacent boxes never double-count.
func buildEventWhere(filter model.EventFilter) (string, []any) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.DeviceID != "" {
		whereClauses = append(whereClauses, "device_id = "+nextArg())
		args = append(args, filter.DeviceID)
	}
	if !filter.Time.From.IsZero() {
		whereClauses = append(whereClauses, "recorded_at >= "+nextArg())
		args = append(args, filter.Time.From)
	}
	if !filter.Time.To.IsZero() {
		whereClauses = append(whereClauses, "recorded_at < "+nextArg())
		args = append(args, filter.Time.To)
	}
	if filter.Box != nil {
		b := filter.Box
		whereClauses = append(whereClauses, "latitude >= "+nextArg())
		args = append(args, b.MinLat)
		whereClauses = append(whereClauses, "latitude < "+nextArg())
		args = append(args, b.MaxLat)
		whereClauses = append(whereClauses, "longitude >= "+nextArg())
		args = append(args, b.MinLng)
		whereClauses = append(whereClauses, "longitude < "+nextArg())
		args = append(args, b.MaxLng)
	}
	if filter.Classification != "" {
		whereClauses = append(whereClauses, "classification = "+nextArg())
		args = append(args, string(filter.Classification))
	}
	if filter.MinLevelDB != nil {
		whereClauses = append(whereClauses, "level_db >= "+nextArg())
		args = append(args, *filter.MinLevelDB)
	}

	if len(whereClauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(whereClauses, " AND "), args
}

// eventSortColumns is the allow-list for the filter's sort field.
var eventSortColumns = map[string]bool{
	"recorded_at": true,
	"level_db":    true,
	"created_at":  true,
}

// parseEventSort turns a filter sort value ("level_db", "-recorded_at") into
// an ORDER BY clause. Unknown columns fall back to timestamp ascending. The
// id tiebreak keeps pagination stable when timestamps collide.
func parseEventSort(sort string) string {
	dir := "ASC"
	col := sort
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		col = sort[1:]
	}
	if !eventSortColumns[col] {
		col, dir = "recorded_at", "ASC"
	}
	return col + " " + dir + ", id ASC"
}

func queryListEvents(ctx context.Context, db executor, filter model.EventFilter) ([]*model.NoiseEvent, int, error) {
	whereSQL, args := buildEventWhere(filter)
	argIdx := len(args)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	query := "SELECT COUNT(*) OVER() AS total_count, " + eventColumns + " FROM noise_events" +
		whereSQL + " ORDER BY " + parseEventSort(filter.Sort)

	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*model.NoiseEvent
	var total int
	for rows.Next() {
		e, t, err := scanEventWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan events: %w", err)
		}
		total = t
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan events: %w", err)
	}

	return events, total, nil
}

// queryForEachEvent streams matching events through fn one row at a time.
// A single cursor gives the caller a snapshot-consistent pass without
// holding the full result set in memory. Errors from fn abort the scan and
// are returned unchanged; scan errors come back as StorageError.
func queryForEachEvent(ctx context.Context, db executor, filter model.EventFilter, fn func(*model.NoiseEvent) error) error {
	whereSQL, args := buildEventWhere(filter)
	query := "SELECT " + eventColumns + " FROM noise_events" + whereSQL +
		" ORDER BY " + parseEventSort(filter.Sort)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return &model.StorageError{Op: "scan events", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return &model.StorageError{Op: "scan events", Err: err}
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &model.StorageError{Op: "scan events", Err: err}
	}
	return nil
}

func queryDeleteEvent(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM noise_events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// queryLinkSnippet sets the event's snippet reference if and only if none is
// linked yet. The conditional UPDATE makes the at-most-once invariant hold
// under concurrent uploads without an explicit lock.
func queryLinkSnippet(ctx context.Context, db executor, eventID, snippetID string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE noise_events SET snippet_id = $2
		WHERE id = $1 AND snippet_id IS NULL`,
		eventID, snippetID,
	)
	if err != nil {
		return translateErr("link snippet", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translateErr("link snippet", err)
	}
	if n == 1 {
		return nil
	}

	// Zero rows: the event is missing or already has a snippet.
	var exists bool
	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM noise_events WHERE id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return translateErr("link snippet", err)
	}
	if !exists {
		return model.ErrNotFound
	}
	return model.ErrConflict
}

func queryClearSnippetLink(ctx context.Context, db executor, eventID string) error {
	_, err := db.ExecContext(ctx, `UPDATE noise_events SET snippet_id = NULL WHERE id = $1`, eventID)
	return err
}

func queryStats(ctx context.Context, db executor) (*store.SystemStats, error) {
	var st store.SystemStats

	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE trust = 'active'),
		       COUNT(*) FILTER (WHERE trust = 'revoked')
		FROM devices`).Scan(&st.Devices, &st.ActiveDevices, &st.RevokedDevices)
	if err != nil {
		return nil, err
	}

	var lastEvent sql.NullTime
	err = db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(recorded_at) FROM noise_events`).
		Scan(&st.Events, &lastEvent)
	if err != nil {
		return nil, err
	}
	if lastEvent.Valid {
		t := lastEvent.Time
		st.LastEventAt = &t
	}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audio_snippets`).Scan(&st.Snippets); err != nil {
		return nil, err
	}

	return &st, nil
}
