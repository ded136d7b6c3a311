package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/opennoisenet/noisenet/internal/model"
)

// deviceColumns is the column list used for SELECT statements on the devices table.
const deviceColumns = `id, name, trust, latitude, longitude, registered_at, last_seen_at`

func queryCreateDevice(ctx context.Context, db executor, d *model.Device) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO devices (id, name, trust, latitude, longitude, registered_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID,
		d.Name,
		string(d.Trust),
		nullFloatPtr(d.Latitude),
		nullFloatPtr(d.Longitude),
		d.RegisteredAt,
		nullTimePtr(d.LastSeenAt),
	)
	return err
}

func queryGetDevice(ctx context.Context, db executor, id string) (*model.Device, error) {
	row := db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	return scanDevice(row)
}

func queryListDevices(ctx context.Context, db executor, filter model.DeviceFilter) ([]*model.Device, int, error) {
	query := `SELECT COUNT(*) OVER() AS total_count, ` + deviceColumns + ` FROM devices`
	var args []any
	argIdx := 0

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Trust != "" {
		query += " WHERE trust = " + nextArg()
		args = append(args, string(filter.Trust))
	}

	query += " ORDER BY registered_at DESC, id"

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
		return nil, 0, err
	}
	defer rows.Close()

	var devices []*model.Device
	var total int
	for rows.Next() {
		d, t, err := scanDeviceWithTotal(rows)
		if err != nil {
			return nil, 0, err
		}
		total = t
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return devices, total, nil
}

// queryTouchDevice records a heartbeat. GREATEST keeps the newest wall-clock
// timestamp, so racing heartbeats from the same device settle last-write-wins
// without ever moving last_seen_at backwards.
func queryTouchDevice(ctx context.Context, db executor, id string, seenAt time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE devices
		SET last_seen_at = GREATEST(COALESCE(last_seen_at, 'epoch'::timestamptz), $2)
		WHERE id = $1`,
		id, seenAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func querySetDeviceTrust(ctx context.Context, db executor, id string, trust model.TrustState) error {
	res, err := db.ExecContext(ctx, `UPDATE devices SET trust = $2 WHERE id = $1`, id, string(trust))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
