// Package journal persists one row per conversation turn in Postgres.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"barbearia-twowell/internal/common/errors"
	"barbearia-twowell/internal/common/metrics"
	"barbearia-twowell/internal/models"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "bot_turns"

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresJournal writes turn records through database/sql with lib/pq.
type PostgresJournal struct {
	db         *sql.DB
	table      string
	insertStmt string
}

func NewPostgresJournal(db *sql.DB, table string) (*PostgresJournal, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, errors.NewConfigurationError(fmt.Sprintf("journal.table %q is not a valid identifier", table))
	}
	return &PostgresJournal{
		db:    db,
		table: table,
		insertStmt: fmt.Sprintf(
			`INSERT INTO %s (id, sender_id, mode, outcome, error_code, link, duration_ms, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, table),
	}, nil
}

// Table returns the table the journal writes to.
func (j *PostgresJournal) Table() string {
	return j.table
}

// EnsureSchema creates the journal table if it does not exist.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id          UUID PRIMARY KEY,
		sender_id   TEXT NOT NULL,
		mode        TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		error_code  TEXT,
		link        TEXT,
		duration_ms BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`, j.table))
	if err != nil {
		return fmt.Errorf("create journal table: %w", err)
	}
	return nil
}

// Record inserts rec. Empty error codes and links are stored as NULL.
func (j *PostgresJournal) Record(ctx context.Context, rec models.TurnRecord) error {
	_, err := j.db.ExecContext(ctx, j.insertStmt,
		rec.ID,
		rec.SenderID,
		rec.Mode,
		rec.Outcome,
		nullString(rec.ErrorCode),
		nullString(rec.Link),
		rec.DurationMs,
		rec.CreatedAt,
	)
	if err != nil {
		metrics.JournalWrites.WithLabelValues("failed").Inc()
		return fmt.Errorf("insert turn %s: %w", rec.ID, err)
	}
	metrics.JournalWrites.WithLabelValues("written").Inc()
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
