package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultLimit caps how many deliveries a status query returns
const DefaultLimit = 20

// History is the delivery audit log, stored in SQLite. It records what the
// bot did and is never read back when reconciling a comment.
type History struct {
	db  *sql.DB
	now func() time.Time
}

// NewHistory opens (and migrates) the audit database at dbPath
func NewHistory(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db, now: time.Now}

	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// Close closes the database connection
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			delivery_id TEXT NOT NULL,
			repo TEXT NOT NULL,
			pr_number INTEGER NOT NULL,
			run_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			outcome TEXT NOT NULL,
			comment_id INTEGER,
			row_count INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			received_at TEXT NOT NULL,
			duration_seconds REAL NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_repo_pr
		ON deliveries(repo, pr_number, id DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// RecordDelivery inserts a delivery record. A zero ReceivedAt is stamped
// with the current time.
func (h *History) RecordDelivery(ctx context.Context, record *DeliveryRecord) (int64, error) {
	receivedAt := record.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = h.now()
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO deliveries
		(delivery_id, repo, pr_number, run_id, action, outcome, comment_id,
		 row_count, error_message, received_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.DeliveryID,
		record.Repo,
		record.PRNumber,
		record.RunID,
		record.Action,
		record.Outcome,
		record.CommentID,
		record.RowCount,
		record.ErrorMessage,
		receivedAt.UTC().Format(time.RFC3339Nano),
		record.DurationSeconds,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert delivery record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetDeliveries returns the most recent deliveries for one pull request,
// newest first
func (h *History) GetDeliveries(ctx context.Context, repo string, prNumber, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, delivery_id, repo, pr_number, run_id, action, outcome,
		       comment_id, row_count, error_message, received_at, duration_seconds
		FROM deliveries
		WHERE repo = ? AND pr_number = ?
		ORDER BY id DESC
		LIMIT ?
	`, repo, prNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	records := []DeliveryRecord{}
	for rows.Next() {
		record, err := scanDeliveryRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// GetLatestDelivery returns the newest delivery for a pull request, or nil
func (h *History) GetLatestDelivery(ctx context.Context, repo string, prNumber int) (*DeliveryRecord, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, delivery_id, repo, pr_number, run_id, action, outcome,
		       comment_id, row_count, error_message, received_at, duration_seconds
		FROM deliveries
		WHERE repo = ? AND pr_number = ?
		ORDER BY id DESC
		LIMIT 1
	`, repo, prNumber)

	record, err := scanDeliveryRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest delivery: %w", err)
	}

	return record, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDeliveryRecord(s scanner) (*DeliveryRecord, error) {
	var record DeliveryRecord
	var receivedAtStr string

	err := s.Scan(
		&record.ID,
		&record.DeliveryID,
		&record.Repo,
		&record.PRNumber,
		&record.RunID,
		&record.Action,
		&record.Outcome,
		&record.CommentID,
		&record.RowCount,
		&record.ErrorMessage,
		&receivedAtStr,
		&record.DurationSeconds,
	)
	if err != nil {
		return nil, err
	}

	receivedAt, err := time.Parse(time.RFC3339Nano, receivedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse received_at timestamp: %w", err)
	}
	record.ReceivedAt = receivedAt

	return &record, nil
}
