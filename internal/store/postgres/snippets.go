package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/opennoisenet/noisenet/internal/model"
)

// snippetColumns is the column list used for SELECT statements on the audio_snippets table.
const snippetColumns = `id, event_id, storage_key, codec, duration_seconds,
	size_bytes, created_at, expires_at`

func queryCreateSnippet(ctx context.Context, db executor, s *model.AudioSnippet) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO audio_snippets (
			id, event_id, storage_key, codec, duration_seconds,
			size_bytes, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID,
		s.EventID,
		s.StorageKey,
		string(s.Codec),
		s.DurationSeconds,
		s.SizeBytes,
		s.CreatedAt,
		s.ExpiresAt,
	)
	return err
}

func queryGetSnippet(ctx context.Context, db executor, id string) (*model.AudioSnippet, error) {
	row := db.QueryRowContext(ctx, `SELECT `+snippetColumns+` FROM audio_snippets WHERE id = $1`, id)
	return scanSnippet(row)
}

func queryListExpiredSnippets(ctx context.Context, db executor, now time.Time, limit int) ([]*model.AudioSnippet, error) {
	query := `SELECT ` + snippetColumns + ` FROM audio_snippets WHERE expires_at <= $1 ORDER BY expires_at, id`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expired snippets: %w", err)
	}
	defer rows.Close()

	var snippets []*model.AudioSnippet
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snippets: %w", err)
		}
		snippets = append(snippets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan snippets: %w", err)
	}

	return snippets, nil
}

func queryDeleteSnippet(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM audio_snippets WHERE id = $1`, id)
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
