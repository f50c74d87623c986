package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"taskboard/internal/models"
)

// Store wraps access to the SQLite database and exposes high level helpers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx exposes the task, rule and column accessors bound to one transaction.
// Outside a transaction the store uses the same accessors on the bare pool.
type Tx struct {
	q   querier
	now func() time.Time
}

// Open initializes a new SQLite store, runs the required migrations and seeds
// the default columns into an empty board.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes transactions and keeps :memory: databases alive.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := s.seedColumns(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func ensureDir(dbPath string) error {
	if strings.Contains(dbPath, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS columns (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            color TEXT NOT NULL DEFAULT '#6366f1',
            order_index INTEGER NOT NULL,
            created_at TEXT NOT NULL
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_columns_order ON columns(order_index);`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            column_id TEXT NOT NULL,
            due_date TEXT,
            priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
            duration_hours INTEGER,
            duration_minutes INTEGER,
            start_time TEXT,
            end_time TEXT,
            is_recurring INTEGER NOT NULL DEFAULT 0,
            parent_task_id TEXT,
            last_generated TEXT,
            completed_at TEXT,
            created_at TEXT NOT NULL,
            FOREIGN KEY(column_id) REFERENCES columns(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_column ON tasks(column_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_recurring ON tasks(is_recurring);`,
		`CREATE TABLE IF NOT EXISTS task_recurrence (
            task_id TEXT PRIMARY KEY,
            unit TEXT NOT NULL CHECK (unit IN ('daily', 'weekly', 'monthly', 'yearly')),
            interval_value INTEGER NOT NULL CHECK (interval_value > 0),
            weekdays TEXT,
            month_days TEXT,
            end_date TEXT,
            max_occurrences INTEGER,
            created_at TEXT NOT NULL,
            FOREIGN KEY(task_id) REFERENCES tasks(id)
        );`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return s.addMissingColumns("tasks", addedTaskColumns)
}

// addedTaskColumns were added to tasks after its first release.
var addedTaskColumns = [][2]string{
	{"duration_hours", "INTEGER"},
	{"duration_minutes", "INTEGER"},
	{"start_time", "TEXT"},
	{"end_time", "TEXT"},
}

// addMissingColumns brings databases created by older builds up to date.
func (s *Store) addMissingColumns(table string, columns [][2]string) error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	existing := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("inspect %s: %w", table, err)
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}

	for _, col := range columns {
		if existing[col[0]] {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, col[0], col[1])); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, col[0], err)
		}
		s.logger.Info("added column", slog.String("table", table), slog.String("column", col[0]))
	}
	return nil
}

func (s *Store) seedColumns(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM columns`).Scan(&count); err != nil {
		return fmt.Errorf("count columns: %w", err)
	}
	if count > 0 {
		return nil
	}

	return s.Transaction(ctx, func(tx *Tx) error {
		for _, c := range models.DefaultColumns {
			if _, err := tx.q.ExecContext(ctx, `INSERT INTO columns(id, name, color, order_index, created_at) VALUES(?, ?, ?, ?, ?)`,
				c.ID, c.Name, c.Color, c.OrderIndex, formatTime(s.now())); err != nil {
				return fmt.Errorf("seed column %s: %w", c.ID, err)
			}
		}
		s.logger.Info("seeded default columns", slog.Int("count", len(models.DefaultColumns)))
		return nil
	})
}

// Transaction runs fn inside a database transaction. The transaction commits
// when fn returns nil and rolls back otherwise; fn's error is returned as is.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Error("rollback failed", slog.String("error", err.Error()))
		}
	}()

	if err := fn(&Tx{q: sqlTx, now: s.now}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) reader() *Tx {
	return &Tx{q: s.db, now: s.now}
}

// Times are stored as RFC 3339 text in UTC so they sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func parseNullTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
