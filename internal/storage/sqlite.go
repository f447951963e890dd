package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/log"

	_ "modernc.org/sqlite"
)

var _ ledger.Store = (*Store)(nil)

// Store is the SQLite ledger. Reads run on the pool; every write runs inside
// its own transaction unless it is issued through WithTx.
type Store struct {
	*Queries
	db     *sql.DB
	logger *log.Logger
}

type Option func(*Store)

// WithClock sets the source of record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.Queries.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// DSN returns the connection string for dbPath. Foreign keys are enforced and
// transactions take the write lock when they begin, so concurrent writers
// queue on busy_timeout instead of failing on lock upgrade.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Open creates the database directory, applies migrations and returns a ready
// store.
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		Queries: &Queries{db: db, now: time.Now},
		db:      db,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentStorage),
	}
	for _, opt := range opts {
		opt(s)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s.logger.InfoContext(ctx, "SQLite ledger ready",
		"path", dbPath,
		log.FieldOperation, log.OpMigrate,
		log.FieldSchemaVersion, version)

	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a database transaction. The transaction commits only
// if fn returns nil; an error or a panic rolls it back.
func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.ErrorContext(ctx, "Rollback failed",
				log.FieldError, rbErr.Error())
		}
	}()

	if err := fn(s.Queries.withTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) SaveExpense(ctx context.Context, e core.Expense) (out core.Expense, err error) {
	err = s.WithTx(ctx, func(tx ledger.Tx) error {
		out, err = tx.SaveExpense(ctx, e)
		return err
	})
	return out, err
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.DeleteExpense(ctx, id)
	})
}

func (s *Store) SaveCategory(ctx context.Context, c core.Category) (out core.Category, err error) {
	err = s.WithTx(ctx, func(tx ledger.Tx) error {
		out, err = tx.SaveCategory(ctx, c)
		return err
	})
	return out, err
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.DeleteCategory(ctx, id)
	})
}

func (s *Store) SaveBudget(ctx context.Context, b core.Budget) (out core.Budget, err error) {
	err = s.WithTx(ctx, func(tx ledger.Tx) error {
		out, err = tx.SaveBudget(ctx, b)
		return err
	})
	return out, err
}

func (s *Store) DeleteBudget(ctx context.Context, categoryID int64, month core.YearMonth) error {
	return s.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.DeleteBudget(ctx, categoryID, month)
	})
}
