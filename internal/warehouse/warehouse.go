// Package warehouse manages the single connection to the analytical store.
//
// A Manager opens the store lazily on the first Acquire and hands out the same
// Handle until Release. The Handle pins one connection and serializes every
// statement through a mutex, so pipeline stages running concurrently never
// interleave statements on it. Backends register a Dialect (see Register);
// "duckdb" and "sqlite" ship with the package.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrHandleClosed is returned by every operation on a released handle and
	// by Acquire after Release.
	ErrHandleClosed = errors.New("warehouse: handle closed")

	// ErrStoreLocked is returned when another process holds the store's
	// writer lock.
	ErrStoreLocked = errors.New("warehouse: store is locked by another writer")
)

// Config selects the backend and the store location.
type Config struct {
	// Kind is a registered backend name ("duckdb", "sqlite").
	Kind string
	// Path is the store file. ":memory:" or "" opens a private in-memory store
	// and skips locking.
	Path string
}

// Manager owns the configuration and at most one open Handle.
type Manager struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	h        *Handle
	released bool
}

// NewManager returns a Manager; nothing is opened until Acquire.
func NewManager(cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{cfg: cfg, log: log.Named("warehouse")}
}

// Acquire returns the shared handle, opening the store, taking the writer lock
// and creating missing tables on first use.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return nil, ErrHandleClosed
	}
	if m.h != nil {
		return m.h, nil
	}
	h, err := open(ctx, m.cfg, m.log)
	if err != nil {
		return nil, err
	}
	m.h = h
	return h, nil
}

// Release closes the handle if one was opened. Calling it again is a no-op.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return nil
	}
	m.released = true
	if m.h == nil {
		return nil
	}
	return m.h.Release()
}

// Handle is the live connection to the store.
type Handle struct {
	dialect Dialect
	log     *zap.Logger

	// txMu is held for the whole of InTx; statements from outside the
	// transaction wait on it.
	txMu sync.Mutex
	// mu serializes individual statements.
	mu     sync.Mutex
	db     *sql.DB
	conn   *sql.Conn
	tx     *sql.Tx
	unlock func() error
	closed bool
}

type txKey struct{}

func open(ctx context.Context, cfg Config, log *zap.Logger) (*Handle, error) {
	d, err := Lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}

	unlock := func() error { return nil }
	if !isMemory(cfg.Path) {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("warehouse: create store dir: %w", err)
			}
		}
		if unlock, err = lockStore(cfg.Path); err != nil {
			return nil, err
		}
	}

	db, err := d.Open(cfg.Path)
	if err != nil {
		_ = unlock()
		return nil, err
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		_ = unlock()
		return nil, fmt.Errorf("warehouse: connect %s: %w", d.Name(), err)
	}

	h := &Handle{dialect: d, log: log, db: db, conn: conn, unlock: unlock}
	if err := h.initSchema(ctx); err != nil {
		_ = h.Release()
		return nil, err
	}
	log.Info("store opened", zap.String("kind", d.Name()), zap.String("path", cfg.Path))
	return h, nil
}

// Dialect returns the backend dialect of the handle.
func (h *Handle) Dialect() Dialect { return h.dialect }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// enter takes the statement locks for ctx and returns the target to run on.
// Statements issued with the context passed to an InTx callback run inside
// that transaction.
func (h *Handle) enter(ctx context.Context) (execer, func(), error) {
	inTx := ctx.Value(txKey{}) == h
	if !inTx {
		h.txMu.Lock()
	}
	h.mu.Lock()
	leave := func() {
		h.mu.Unlock()
		if !inTx {
			h.txMu.Unlock()
		}
	}
	if h.closed {
		leave()
		return nil, nil, ErrHandleClosed
	}
	if inTx {
		if h.tx == nil {
			leave()
			return nil, nil, errors.New("warehouse: transaction already finished")
		}
		return h.tx, leave, nil
	}
	return h.conn, leave, nil
}

// Exec runs a statement that returns no rows.
func (h *Handle) Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	target, leave, err := h.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer leave()
	res, err := target.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("warehouse: exec: %w", err)
	}
	return res, nil
}

// QueryRows runs a query and calls scan once per row while the handle is
// held. Rows are always closed before QueryRows returns.
func (h *Handle) QueryRows(ctx context.Context, stmt string, scan func(*sql.Rows) error, args ...any) error {
	target, leave, err := h.enter(ctx)
	if err != nil {
		return err
	}
	defer leave()
	rows, err := target.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("warehouse: query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("warehouse: query: %w", err)
	}
	return nil
}

// QueryInt64 returns the first column of the first row. NULL reads as 0.
func (h *Handle) QueryInt64(ctx context.Context, stmt string, args ...any) (int64, error) {
	var (
		v    sql.NullInt64
		seen bool
	)
	err := h.QueryRows(ctx, stmt, func(r *sql.Rows) error {
		if seen {
			return nil
		}
		seen = true
		return r.Scan(&v)
	}, args...)
	if err != nil {
		return 0, err
	}
	return v.Int64, nil
}

// Count returns the number of rows currently in t.
func (h *Handle) Count(ctx context.Context, t Table) (int64, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("warehouse: count: unknown table %v", t)
	}
	n, err := h.QueryInt64(ctx, "SELECT COUNT(*) FROM "+t.String())
	if err != nil {
		return 0, fmt.Errorf("warehouse: count %s: %w", t, err)
	}
	return n, nil
}

// BulkRegister exposes rows as a queryable staging table called name,
// replacing any table of that name. It must not be called inside InTx.
func (h *Handle) BulkRegister(ctx context.Context, name string, cols []Column, rows [][]any) error {
	if err := checkStaging(name, cols, rows); err != nil {
		return err
	}
	if ctx.Value(txKey{}) == h {
		return fmt.Errorf("warehouse: bulk register %s: not allowed inside a transaction", name)
	}
	_, leave, err := h.enter(ctx)
	if err != nil {
		return err
	}
	defer leave()

	if _, err := h.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("warehouse: drop staging %s: %w", name, err)
	}
	if _, err := h.conn.ExecContext(ctx, stagingDDL(name, cols)); err != nil {
		return fmt.Errorf("warehouse: create staging %s: %w", name, err)
	}
	if err := h.dialect.Stage(ctx, h.conn, name, cols, rows); err != nil {
		_, _ = h.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+name)
		return fmt.Errorf("warehouse: stage %s: %w", name, err)
	}
	h.log.Debug("staged batch", zap.String("table", name), zap.Int("rows", len(rows)), zap.Int("columns", len(cols)))
	return nil
}

// Unregister drops a staging table created by BulkRegister.
func (h *Handle) Unregister(ctx context.Context, name string) error {
	if !ValidIdent(name) || isManaged(name) {
		return fmt.Errorf("warehouse: unregister: invalid staging name %q", name)
	}
	_, err := h.Exec(ctx, "DROP TABLE IF EXISTS "+name)
	return err
}

func checkStaging(name string, cols []Column, rows [][]any) error {
	if !ValidIdent(name) || isManaged(name) {
		return fmt.Errorf("warehouse: invalid staging name %q", name)
	}
	if len(cols) == 0 {
		return fmt.Errorf("warehouse: staging %s: no columns", name)
	}
	for _, c := range cols {
		if !ValidIdent(c.Name) {
			return fmt.Errorf("warehouse: staging %s: invalid column name %q", name, c.Name)
		}
	}
	for i, r := range rows {
		if len(r) != len(cols) {
			return fmt.Errorf("warehouse: staging %s: row %d has %d values, want %d", name, i, len(r), len(cols))
		}
	}
	return nil
}

func isManaged(name string) bool {
	for _, t := range Tables() {
		if strings.EqualFold(name, t.String()) {
			return true
		}
	}
	return false
}

// InTx runs fn inside one transaction on the pinned connection. Statements
// issued through the handle with the ctx given to fn join the transaction;
// statements from other goroutines wait until it ends. fn's error rolls back.
func (h *Handle) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == h {
		return fn(ctx)
	}
	h.txMu.Lock()
	defer h.txMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHandleClosed
	}
	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		h.mu.Unlock()
		return fmt.Errorf("warehouse: begin: %w", err)
	}
	h.tx = tx
	h.mu.Unlock()

	ferr := fn(context.WithValue(ctx, txKey{}, h))

	h.mu.Lock()
	defer h.mu.Unlock()
	h.tx = nil
	if ferr != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			h.log.Warn("rollback failed", zap.Error(rerr))
		}
		return ferr
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("warehouse: commit: %w", err)
	}
	return nil
}

// Release closes the connection and the store and drops the writer lock.
// Only the first call does anything.
func (h *Handle) Release() error {
	h.txMu.Lock()
	defer h.txMu.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	if err := h.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("warehouse: close conn: %w", err))
	}
	if err := h.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("warehouse: close store: %w", err))
	}
	if err := h.unlock(); err != nil {
		errs = append(errs, fmt.Errorf("warehouse: unlock: %w", err))
	}
	h.log.Info("store released")
	return errors.Join(errs...)
}
