// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// translateErr maps driver-level errors to the model taxonomy: missing rows
// become model.ErrNotFound, unique violations become model.ErrConflict,
// and anything else (I/O, timeouts) becomes a retryable StorageError.
func translateErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, model.ErrNotFound) {
		return model.ErrNotFound
	}
	if errors.Is(err, model.ErrConflict) {
		return model.ErrConflict
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return model.ErrConflict
		case "23503": // foreign_key_violation: the referenced row is absent
			return model.ErrNotFound
		}
	}
	return &model.StorageError{Op: op, Err: err}
}

func (s *PostgresStore) CreateDevice(ctx context.Context, device *model.Device) error {
	return translateErr("create device", queryCreateDevice(ctx, s.db, device))
}

func (s *PostgresStore) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	d, err := queryGetDevice(ctx, s.db, id)
	return d, translateErr("get device", err)
}

func (s *PostgresStore) ListDevices(ctx context.Context, filter model.DeviceFilter) ([]*model.Device, int, error) {
	devices, total, err := queryListDevices(ctx, s.db, filter)
	return devices, total, translateErr("list devices", err)
}

func (s *PostgresStore) TouchDevice(ctx context.Context, id string, seenAt time.Time) error {
	return translateErr("touch device", queryTouchDevice(ctx, s.db, id, seenAt))
}

func (s *PostgresStore) SetDeviceTrust(ctx context.Context, id string, trust model.TrustState) error {
	return translateErr("set device trust", querySetDeviceTrust(ctx, s.db, id, trust))
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event *model.NoiseEvent) error {
	return translateErr("append event", queryAppendEvent(ctx, s.db, event))
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.NoiseEvent, error) {
	e, err := queryGetEvent(ctx, s.db, id)
	return e, translateErr("get event", err)
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.NoiseEvent, int, error) {
	events, total, err := queryListEvents(ctx, s.db, filter)
	return events, total, translateErr("list events", err)
}

func (s *PostgresStore) ForEachEvent(ctx context.Context, filter model.EventFilter, fn func(*model.NoiseEvent) error) error {
	return queryForEachEvent(ctx, s.db, filter, fn)
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	return translateErr("delete event", queryDeleteEvent(ctx, s.db, id))
}

func (s *PostgresStore) LinkSnippet(ctx context.Context, eventID, snippetID string) error {
	return queryLinkSnippet(ctx, s.db, eventID, snippetID)
}

func (s *PostgresStore) ClearSnippetLink(ctx context.Context, eventID string) error {
	return translateErr("clear snippet link", queryClearSnippetLink(ctx, s.db, eventID))
}

func (s *PostgresStore) CreateSnippet(ctx context.Context, snippet *model.AudioSnippet) error {
	return translateErr("create snippet", queryCreateSnippet(ctx, s.db, snippet))
}

func (s *PostgresStore) GetSnippet(ctx context.Context, id string) (*model.AudioSnippet, error) {
	sn, err := queryGetSnippet(ctx, s.db, id)
	return sn, translateErr("get snippet", err)
}

func (s *PostgresStore) ListExpiredSnippets(ctx context.Context, now time.Time, limit int) ([]*model.AudioSnippet, error) {
	sns, err := queryListExpiredSnippets(ctx, s.db, now, limit)
	return sns, translateErr("list expired snippets", err)
}

func (s *PostgresStore) DeleteSnippet(ctx context.Context, id string) error {
	return translateErr("delete snippet", queryDeleteSnippet(ctx, s.db, id))
}

func (s *PostgresStore) Stats(ctx context.Context) (*store.SystemStats, error) {
	st, err := queryStats(ctx, s.db)
	return st, translateErr("stats", err)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateErr("begin transaction", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return translateErr("commit transaction", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateDevice(ctx context.Context, device *model.Device) error {
	return translateErr("create device", queryCreateDevice(ctx, s.tx, device))
}

func (s *txStore) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	d, err := queryGetDevice(ctx, s.tx, id)
	return d, translateErr("get device", err)
}

func (s *txStore) ListDevices(ctx context.Context, filter model.DeviceFilter) ([]*model.Device, int, error) {
	devices, total, err := queryListDevices(ctx, s.tx, filter)
	return devices, total, translateErr("list devices", err)
}

func (s *txStore) TouchDevice(ctx context.Context, id string, seenAt time.Time) error {
	return translateErr("touch device", queryTouchDevice(ctx, s.tx, id, seenAt))
}

func (s *txStore) SetDeviceTrust(ctx context.Context, id string, trust model.TrustState) error {
	return translateErr("set device trust", querySetDeviceTrust(ctx, s.tx, id, trust))
}

func (s *txStore) AppendEvent(ctx context.Context, event *model.NoiseEvent) error {
	return translateErr("append event", queryAppendEvent(ctx, s.tx, event))
}

func (s *txStore) GetEvent(ctx context.Context, id string) (*model.NoiseEvent, error) {
	e, err := queryGetEvent(ctx, s.tx, id)
	return e, translateErr("get event", err)
}

func (s *txStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.NoiseEvent, int, error) {
	events, total, err := queryListEvents(ctx, s.tx, filter)
	return events, total, translateErr("list events", err)
}

func (s *txStore) ForEachEvent(ctx context.Context, filter model.EventFilter, fn func(*model.NoiseEvent) error) error {
	return queryForEachEvent(ctx, s.tx, filter, fn)
}

func (s *txStore) DeleteEvent(ctx context.Context, id string) error {
	return translateErr("delete event", queryDeleteEvent(ctx, s.tx, id))
}

func (s *txStore) LinkSnippet(ctx context.Context, eventID, snippetID string) error {
	return queryLinkSnippet(ctx, s.tx, eventID, snippetID)
}

func (s *txStore) ClearSnippetLink(ctx context.Context, eventID string) error {
	return translateErr("clear snippet link", queryClearSnippetLink(ctx, s.tx, eventID))
}

func (s *txStore) CreateSnippet(ctx context.Context, snippet *model.AudioSnippet) error {
	return translateErr("create snippet", queryCreateSnippet(ctx, s.tx, snippet))
}

func (s *txStore) GetSnippet(ctx context.Context, id string) (*model.AudioSnippet, error) {
	sn, err := queryGetSnippet(ctx, s.tx, id)
	return sn, translateErr("get snippet", err)
}

func (s *txStore) ListExpiredSnippets(ctx context.Context, now time.Time, limit int) ([]*model.AudioSnippet, error) {
	sns, err := queryListExpiredSnippets(ctx, s.tx, now, limit)
	return sns, translateErr("list expired snippets", err)
}

func (s *txStore) DeleteSnippet(ctx context.Context, id string) error {
	return translateErr("delete snippet", queryDeleteSnippet(ctx, s.tx, id))
}

func (s *txStore) Stats(ctx context.Context) (*store.SystemStats, error) {
	st, err := queryStats(ctx, s.tx)
	return st, translateErr("stats", err)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
