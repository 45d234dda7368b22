// Package store persists dictionaries, profiles and records in SQLite and
// answers ranked lemma lookups.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"golang.org/x/sync/semaphore"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Executor is satisfied by both *sqlx.DB and *sqlx.Tx so helpers can run
// inside or outside a transaction.
type Executor interface {
	sqlx.ExtContext
}

// Options tunes a Store.
type Options struct {
	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration
	// MaxOpenConns caps the connection pool. Zero leaves the driver default.
	MaxOpenConns int
	// StrictDecode makes LookupLemma return decode errors next to the
	// entries it could decode, instead of only logging them.
	StrictDecode bool
	Logger       *slog.Logger
}

// Store is the SQLite-backed dictionary store.
type Store struct {
	db     *sqlx.DB
	log    *slog.Logger
	strict bool

	// writeSem admits one writer transaction (import or removal) at a time.
	writeSem *semaphore.Weighted
}

// builder emits "?" placeholders, which is what go-sqlite3 expects.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("open store: empty path")
	}
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d&_txlock=immediate",
		path, busy.Milliseconds())

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		db:       db,
		log:      log,
		strict:   opts.StrictDecode,
		writeSem: semaphore.NewWeighted(1),
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("goose new provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, r := range results {
		s.log.Debug("applied migration", slog.String("source", r.Source.Path), slog.Duration("duration", r.Duration))
	}
	return nil
}

// DB exposes the underlying handle for tests and maintenance.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// acquireWriter blocks until the writer permit is free or ctx is done.
func (s *Store) acquireWriter(ctx context.Context) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire write permit: %w", err)
	}
	return nil
}

func (s *Store) releaseWriter() { s.writeSem.Release(1) }

// withTx runs fn inside a transaction holding the writer permit.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := s.acquireWriter(ctx); err != nil {
		return err
	}
	defer s.releaseWriter()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// exec runs a squirrel statement on q.
func exec(ctx context.Context, q Executor, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.ExecContext(ctx, query, args...)
}

// nullable maps an absent term part to SQL NULL.
func nullable(s string, ok bool) any {
	if !ok {
		return nil
	}
	return s
}
