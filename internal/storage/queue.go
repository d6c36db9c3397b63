// ABOUTME: SQLite-backed queue of local status changes waiting to be sent to a sync service
// ABOUTME: Rows are selected for a send, deleted on success, and reset for retry on failure

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harper/feedsync/internal/models"
)

// PendingStatus is one queued status change.
type PendingStatus struct {
	ArticleID string
	Key       models.StatusKey
	Flag      bool
	QueuedAt  time.Time
}

// StatusQueue stores pending status changes.
type StatusQueue struct {
	db *sql.DB
}

// NewStatusQueue opens or creates the queue database at dbPath.
func NewStatusQueue(dbPath string) (*StatusQueue, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_statuses (
			article_id TEXT NOT NULL,
			key TEXT NOT NULL,
			flag INTEGER NOT NULL,
			selected INTEGER NOT NULL DEFAULT 0,
			queued_at TIMESTAMP NOT NULL,
			PRIMARY KEY (article_id, key)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize queue schema: %w", err)
	}
	return &StatusQueue{db: db}, nil
}

// Close closes the queue database.
func (q *StatusQueue) Close() error {
	return q.db.Close()
}

// Enqueue records changes. A newer change for the same article and key
// replaces the older one and makes it eligible for the next send.
func (q *StatusQueue) Enqueue(ctx context.Context, statuses []PendingStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for _, st := range statuses {
		queuedAt := st.QueuedAt
		if queuedAt.IsZero() {
			queuedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pending_statuses (article_id, key, flag, selected, queued_at) VALUES (?, ?, ?, 0, ?)
			ON CONFLICT(article_id, key) DO UPDATE SET flag = excluded.flag, selected = 0, queued_at = excluded.queued_at`,
			st.ArticleID, string(st.Key), boolToInt(st.Flag), queuedAt,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("enqueue status: %w", err)
		}
	}
	return tx.Commit()
}

// Select marks up to limit unselected rows as selected and returns them.
// A limit of zero selects everything.
func (q *StatusQueue) Select(ctx context.Context, limit int) ([]PendingStatus, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT article_id, key, flag, queued_at FROM pending_statuses WHERE selected = 0 ORDER BY queued_at`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	var selected []PendingStatus
	for rows.Next() {
		var st PendingStatus
		var key string
		var flag int
		if err := rows.Scan(&st.ArticleID, &key, &flag, &st.QueuedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		st.Key = models.StatusKey(key)
		st.Flag = flag == 1
		selected = append(selected, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, st := range selected {
		if _, err := tx.ExecContext(ctx,
			`UPDATE pending_statuses SET selected = 1 WHERE article_id = ? AND key = ?`,
			st.ArticleID, string(st.Key),
		); err != nil {
			return nil, fmt.Errorf("mark selected: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return selected, nil
}

// Delete removes sent rows that were not re-queued since selection.
func (q *StatusQueue) Delete(ctx context.Context, statuses []PendingStatus) error {
	for _, st := range statuses {
		if _, err := q.db.ExecContext(ctx,
			`DELETE FROM pending_statuses WHERE article_id = ? AND key = ? AND selected = 1`,
			st.ArticleID, string(st.Key),
		); err != nil {
			return fmt.Errorf("delete pending: %w", err)
		}
	}
	return nil
}

// ResetSelected makes every selected row eligible again.
func (q *StatusQueue) ResetSelected(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, `UPDATE pending_statuses SET selected = 0 WHERE selected = 1`); err != nil {
		return fmt.Errorf("reset selected: %w", err)
	}
	return nil
}

// PendingIDs returns the article IDs with a queued change for key.
func (q *StatusQueue) PendingIDs(ctx context.Context, key models.StatusKey) (map[string]bool, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT article_id FROM pending_statuses WHERE key = ?`, string(key))
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	ids, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// Count returns the number of queued changes.
func (q *StatusQueue) Count(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_statuses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}
