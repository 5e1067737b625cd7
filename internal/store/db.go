package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"crypto-signal-engine/internal/logging"
)

const (
	busyRetries    = 3
	busyRetryDelay = 100 * time.Millisecond
)

// ErrDuplicateSignal is returned when inserting a signal whose signal_id
// already exists.
var ErrDuplicateSignal = errors.New("store: duplicate signal id")

// DB wraps the embedded SQLite database used for all persistence.
type DB struct {
	conn *sqlx.DB
	path string
	log  *logging.Logger

	queries  atomic.Int64
	failures atomic.Int64
}

// Open opens (creating if needed) the database at path, applies the
// runtime pragmas and ensures the schema exists.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids lock churn.
	conn.SetMaxOpenConns(1)

	db := &DB{
		conn: conn,
		path: path,
		log:  logging.Default().WithComponent("store"),
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	db.log.Info("Database opened", "path", path)
	return db, nil
}

func (d *DB) migrate() error {
	for _, stmt := range schema {
		if _, err := d.conn.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// retriable reports whether err is a transient SQLite lock error.
func retriable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked")
}

// withRetry runs fn, retrying on transient lock errors with linear
// backoff.
func (d *DB) withRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= busyRetries; attempt++ {
		d.queries.Add(1)
		if err = fn(); err == nil {
			return nil
		}
		if !retriable(err) {
			d.failures.Add(1)
			return err
		}
		d.failures.Add(1)
		d.log.Warn("Database busy, retrying",
			"attempt", attempt, "error", err.Error())
		time.Sleep(busyRetryDelay * time.Duration(attempt))
	}
	return err
}

// exec runs a statement under the retry policy.
func (d *DB) exec(query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	err := d.withRetry(func() error {
		var e error
		res, e = d.conn.Exec(query, args...)
		return e
	})
	return res, err
}

// CleanupOlderThan deletes price data, indicator samples and system logs
// older than the retention window. Resolved signals are kept.
func (d *DB) CleanupOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	var total int64
	for _, table := range []string{"price_data", "technical_indicators", "system_logs"} {
		res, err := d.exec(
			fmt.Sprintf("DELETE FROM %s WHERE timestamp < ?", table), cutoff)
		if err != nil {
			return total, fmt.Errorf("cleanup %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	d.log.Info("Old records cleaned up", "days", days, "deleted", total)
	return total, nil
}

// Optimize reclaims free pages and refreshes the query planner stats.
func (d *DB) Optimize() error {
	for _, stmt := range []string{"VACUUM", "ANALYZE"} {
		if _, err := d.conn.Exec(stmt); err != nil {
			return fmt.Errorf("optimize (%s): %w", stmt, err)
		}
	}
	d.log.Info("Database optimized")
	return nil
}

// Backup writes a consistent copy of the database to destPath.
func (d *DB) Backup(destPath string) error {
	if dir := filepath.Dir(destPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create backup directory: %w", err)
		}
	}
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("remove stale backup: %w", err)
		}
	}
	if _, err := d.conn.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backup database: %w", err)
	}
	d.log.Info("Database backed up", "dest", destPath)
	return nil
}

// Health describes the database's operational state.
type Health struct {
	Healthy        bool    `json:"healthy"`
	IntegrityOK    bool    `json:"integrity_ok"`
	FileSizeBytes  int64   `json:"file_size_bytes"`
	TotalQueries   int64   `json:"total_queries"`
	FailedQueries  int64   `json:"failed_queries"`
	ErrorRate      float64 `json:"error_rate"`
	IntegrityError string  `json:"integrity_error,omitempty"`
}

// HealthCheck runs an integrity check and reports file size and query
// error rate.
func (d *DB) HealthCheck(ctx context.Context) Health {
	h := Health{
		TotalQueries:  d.queries.Load(),
		FailedQueries: d.failures.Load(),
	}
	if h.TotalQueries > 0 {
		h.ErrorRate = float64(h.FailedQueries) / float64(h.TotalQueries)
	}

	var result string
	if err := d.conn.GetContext(ctx, &result, "PRAGMA integrity_check"); err != nil {
		h.IntegrityError = err.Error()
	} else if result == "ok" {
		h.IntegrityOK = true
	} else {
		h.IntegrityError = result
	}

	if info, err := os.Stat(d.path); err == nil {
		h.FileSizeBytes = info.Size()
	}

	h.Healthy = h.IntegrityOK && h.ErrorRate < 0.1
	return h
}

// Stats holds per-table row counts and the database file size.
type Stats struct {
	PriceDataRows int64 `json:"price_data_rows"`
	SignalRows    int64 `json:"signal_rows"`
	IndicatorRows int64 `json:"indicator_rows"`
	ConfigRows    int64 `json:"config_rows"`
	SystemLogRows int64 `json:"system_log_rows"`
	FileSizeBytes int64 `json:"file_size_bytes"`
	TotalQueries  int64 `json:"total_queries"`
	FailedQueries int64 `json:"failed_queries"`
}

// GetStats counts the rows in every table.
func (d *DB) GetStats() (Stats, error) {
	s := Stats{
		TotalQueries:  d.queries.Load(),
		FailedQueries: d.failures.Load(),
	}
	counts := []struct {
		table string
		dest  *int64
	}{
		{"price_data", &s.PriceDataRows},
		{"trading_signals", &s.SignalRows},
		{"technical_indicators", &s.IndicatorRows},
		{"configurations", &s.ConfigRows},
		{"system_logs", &s.SystemLogRows},
	}
	for _, c := range counts {
		if err := d.conn.Get(c.dest, "SELECT COUNT(*) FROM "+c.table); err != nil {
			return s, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	if info, err := os.Stat(d.path); err == nil {
		s.FileSizeBytes = info.Size()
	}
	return s, nil
}
