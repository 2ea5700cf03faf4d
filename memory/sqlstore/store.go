// Package sqlstore is the SQL reference backend for core.SessionMemory. Each
// session is one record {session_id, history, created_at, updated_at}; the
// history column holds the JSON encoded item sequence.
//
// The connection and the table are created lazily on first use. Appends are
// read-modify-write cycles serialized per session by an in-process mutex and
// executed inside a transaction, so concurrent appends to one session never
// interleave while different sessions proceed independently.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/lib/pq"              // postgres driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 driver

	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
)

// Options configures a Store.
type Options struct {
	// Driver is the database/sql driver name: "sqlite3", "postgres" or "mysql".
	Driver string
	// DSN is the data source name passed to sql.Open.
	DSN string
	// DB is an already opened handle. When set, Driver only selects the
	// dialect and Cleanup does not close the handle.
	DB *sql.DB
	// Table holds the session records.
	Table string

	MaxOpenConns int
	MaxIdleConns int

	Logger logging.Logger
	// Now is the clock used for created_at / updated_at.
	Now func() time.Time
}

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	SessionID string
	Items     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store implements core.SessionMemory on database/sql.
type Store struct {
	opts    Options
	dialect dialect
	locks   *sessionLocks
	logger  logging.Logger

	mu     sync.Mutex
	db     *sql.DB
	ready  bool
	closed bool
}

var _ core.SessionMemory = (*Store)(nil)

// New creates a Store. No connection is opened until the first operation.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Driver: "sqlite3",
		DSN:    ":memory:",
		Table:  "sessions",
		Logger: logging.NoOpLogger{},
		Now:    func() time.Time { return time.Now().UTC() },
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	if opts.Table == "" {
		opts.Table = "sessions"
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Store{
		opts:    opts,
		dialect: d,
		locks:   newSessionLocks(),
		logger:  opts.Logger,
		db:      opts.DB,
	}, nil
}

// OpenConfig creates a Store from a validated DatabaseConfig.
func OpenConfig(cfg config.DatabaseConfig, optFns ...func(o *Options)) (*Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	base := func(o *Options) {
		o.Driver = cfg.DriverName()
		o.DSN = cfg.DSN()
		o.Table = cfg.Table
		o.MaxOpenConns = cfg.MaxConns
		o.MaxIdleConns = cfg.MaxIdle
	}
	return New(append([]func(o *Options){base}, optFns...)...)
}

// conn returns the database handle, opening it and creating the schema on
// first use. A failed initialization is retried by the next call.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, core.ErrMemoryClosed
	}
	if s.ready {
		return s.db, nil
	}

	if s.db == nil {
		db, err := sql.Open(s.opts.Driver, s.opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.configurePool(db)
		s.db = db
	}

	if err := s.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if s.dialect.name == "sqlite" {
		// journal_mode is ignored by in-memory databases
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=10000"} {
			if _, err := s.db.ExecContext(ctx, pragma); err != nil {
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	for _, stmt := range s.dialect.schema(s.opts.Table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	s.ready = true
	s.logger.Debug("memory.sql.schema.ready", "dialect", s.dialect.name, "table", s.opts.Table)

	return s.db, nil
}

func (s *Store) configurePool(db *sql.DB) {
	if s.dialect.name == "sqlite" {
		// One connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		return
	}
	if s.opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.opts.MaxOpenConns)
	}
	if s.opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(s.opts.MaxIdleConns)
	}
}

// LoadSession returns the stored history, or an empty slice when the session
// does not exist. A history that fails to decode is reported as a StorageError.
func (s *Store) LoadSession(ctx context.Context, sessionID string) ([]core.Item, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, core.NewStorageError(sessionID, "load", err)
	}

	var raw string
	q := s.dialect.rebind(fmt.Sprintf(`SELECT history FROM %s WHERE session_id = ?`, s.opts.Table))
	err = db.QueryRowContext(ctx, q, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []core.Item{}, nil
	}
	if err != nil {
		return nil, core.NewStorageError(sessionID, "load", err)
	}

	items, err := core.UnmarshalItems([]byte(raw))
	if err != nil {
		return nil, core.NewStorageError(sessionID, "load", fmt.Errorf("corrupt history: %w", err))
	}
	return items, nil
}

// AppendToSession appends items in one transaction, creating the session if needed.
func (s *Store) AppendToSession(ctx context.Context, sessionID string, items []core.Item) error {
	db, err := s.conn(ctx)
	if err != nil {
		return core.NewStorageError(sessionID, "append", err)
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	err = s.withTx(ctx, db, func(tx *sql.Tx) error {
		var raw string
		existing := []core.Item{}
		err := tx.QueryRowContext(ctx, s.dialect.selectHistoryForUpdate(s.opts.Table), sessionID).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			if existing, err = core.UnmarshalItems([]byte(raw)); err != nil {
				return fmt.Errorf("corrupt history: %w", err)
			}
		}

		merged := make([]core.Item, 0, len(existing)+len(items))
		merged = append(merged, existing...)
		merged = append(merged, core.Renumber(items, len(existing))...)

		if err := s.upsert(ctx, tx, sessionID, merged); err != nil {
			return err
		}

		s.logger.Debug("memory.sql.append", "session_id", sessionID, "items", len(items), "total", len(merged))
		return nil
	})

	return core.NewStorageError(sessionID, "append", err)
}

// SaveSession replaces the stored history.
func (s *Store) SaveSession(ctx context.Context, sessionID string, items []core.Item) error {
	db, err := s.conn(ctx)
	if err != nil {
		return core.NewStorageError(sessionID, "save", err)
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	err = s.withTx(ctx, db, func(tx *sql.Tx) error {
		return s.upsert(ctx, tx, sessionID, core.Renumber(items, 0))
	})

	return core.NewStorageError(sessionID, "save", err)
}

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, sessionID string, items []core.Item) error {
	data, err := core.MarshalItems(items)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	now := s.opts.Now()
	_, err = tx.ExecContext(ctx, s.dialect.upsert(s.opts.Table), sessionID, string(data), now, now)
	return err
}

func (s *Store) withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ClearSession deletes the session record. Unknown ids are not an error.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return core.NewStorageError(sessionID, "clear", err)
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	q := s.dialect.rebind(fmt.Sprintf(`DELETE FROM %s WHERE session_id = ?`, s.opts.Table))
	if _, err := db.ExecContext(ctx, q, sessionID); err != nil {
		return core.NewStorageError(sessionID, "clear", err)
	}
	return nil
}

// ListSessions returns all session ids, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, core.NewStorageError("", "list", err)
	}

	q := fmt.Sprintf(`SELECT session_id FROM %s ORDER BY updated_at DESC, session_id ASC`, s.opts.Table)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, core.NewStorageError("", "list", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.NewStorageError("", "list", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("", "list", err)
	}
	return ids, nil
}

// SessionExists reports whether a record for the session exists.
func (s *Store) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, core.NewStorageError(sessionID, "exists", err)
	}

	var one int
	q := s.dialect.rebind(fmt.Sprintf(`SELECT 1 FROM %s WHERE session_id = ?`, s.opts.Table))
	err = db.QueryRowContext(ctx, q, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, core.NewStorageError(sessionID, "exists", err)
	}
	return true, nil
}

// Info returns metadata about a stored session.
func (s *Store) Info(ctx context.Context, sessionID string) (SessionInfo, bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return SessionInfo{}, false, core.NewStorageError(sessionID, "info", err)
	}

	var (
		raw       string
		createdAt time.Time
		updatedAt time.Time
	)
	q := s.dialect.rebind(fmt.Sprintf(`SELECT history, created_at, updated_at FROM %s WHERE session_id = ?`, s.opts.Table))
	err = db.QueryRowContext(ctx, q, sessionID).Scan(&raw, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionInfo{}, false, nil
	}
	if err != nil {
		return SessionInfo{}, false, core.NewStorageError(sessionID, "info", err)
	}

	items, err := core.UnmarshalItems([]byte(raw))
	if err != nil {
		return SessionInfo{}, false, core.NewStorageError(sessionID, "info", fmt.Errorf("corrupt history: %w", err))
	}

	return SessionInfo{
		SessionID: sessionID,
		Items:     len(items),
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}, true, nil
}

// Cleanup closes the connection (unless it was supplied through Options.DB)
// and invalidates the store. It is idempotent.
func (s *Store) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db == nil || s.opts.DB != nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return core.NewStorageError("", "cleanup", err)
	}
	s.logger.Debug("memory.sql.closed", "dialect", s.dialect.name)
	return nil
}
