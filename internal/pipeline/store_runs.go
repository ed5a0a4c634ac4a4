package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldline/internal/portal"
)

// CreateRun persists a new extraction run over the given properties. The
// session ciphertext is stored as-is; the run never sees plaintext. Item
// creation order fixes the processing order.
func (s *Store) CreateRun(ctx context.Context, sessionCiphertext string, propertyIDs []int64) (*ExtractionRun, error) {
	if strings.TrimSpace(sessionCiphertext) == "" {
		return nil, portal.Wrap(portal.ErrValidation, "pipeline", "create run",
			"session ciphertext is required", nil)
	}
	if len(propertyIDs) == 0 {
		return nil, portal.Wrap(portal.ErrValidation, "pipeline", "create run",
			"at least one property is required", nil)
	}

	runID := uuid.NewString()
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO extraction_runs (id, status, session_ciphertext, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?)`,
			runID, RunPending, sessionCiphertext, timestamp, timestamp,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, propertyID := range propertyIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO extraction_run_items (run_id, property_id, status, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?)`,
				runID, propertyID, RunItemQueued, timestamp, timestamp,
			); err != nil {
				return fmt.Errorf("insert run item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetRun(ctx, runID)
}

// GetRun fetches a run by identifier. A missing run returns (nil, nil).
func (s *Store) GetRun(ctx context.Context, id string) (*ExtractionRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM extraction_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest-first.
func (s *Store) ListRuns(ctx context.Context) ([]*ExtractionRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM extraction_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*ExtractionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunItems returns every item of a run in ascending identity order, the same
// order the processor walks them.
func (s *Store) RunItems(ctx context.Context, runID string) ([]*ExtractionRunItem, error) {
	return s.runItems(ctx, runID, "")
}

// QueuedRunItems returns the still-queued items of a run in ascending
// identity order.
func (s *Store) QueuedRunItems(ctx context.Context, runID string) ([]*ExtractionRunItem, error) {
	return s.runItems(ctx, runID, RunItemQueued)
}

func (s *Store) runItems(ctx context.Context, runID string, status RunItemStatus) ([]*ExtractionRunItem, error) {
	query := `SELECT ` + runItemColumns + ` FROM extraction_run_items WHERE run_id = ?`
	args := []any{runID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run items: %w", err)
	}
	defer rows.Close()

	var items []*ExtractionRunItem
	for rows.Next() {
		item, err := scanRunItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkRunRunning moves a run to running, stamps started_at on first entry,
// and clears any stale error summary left by a previous attempt.
func (s *Store) MarkRunRunning(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE extraction_runs
         SET status = ?, error_summary = NULL,
             started_at = COALESCE(started_at, ?), updated_at = ?
         WHERE id = ?`,
		RunRunning, now, now, id,
	); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	return nil
}

// SetRunItemStatus updates one run item's status and error message.
func (s *Store) SetRunItemStatus(ctx context.Context, itemID int64, status RunItemStatus, errorMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE extraction_run_items SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(strings.TrimSpace(errorMessage)), now, itemID,
	); err != nil {
		return fmt.Errorf("set run item status: %w", err)
	}
	return nil
}

// RequeueProcessingItems returns items left processing by an interrupted
// invocation to queued so a resume re-attempts them. Returns how many
// items were requeued.
func (s *Store) RequeueProcessingItems(ctx context.Context, runID string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE extraction_run_items SET status = ?, error_message = NULL, updated_at = ?
         WHERE run_id = ? AND status = ?`,
		RunItemQueued, now, runID, RunItemProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue processing items: %w", err)
	}
	return res.RowsAffected()
}

// RunItemCounts tallies a run's terminal items from their persisted
// statuses. Aggregate run counters derive from these so resumed runs
// keep the progress of earlier invocations.
func (s *Store) RunItemCounts(ctx context.Context, runID string) (succeeded, failed int, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM extraction_run_items WHERE run_id = ? GROUP BY status`,
		runID)
	if err != nil {
		return 0, 0, fmt.Errorf("count run items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status RunItemStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, fmt.Errorf("scan run item count: %w", err)
		}
		switch status {
		case RunItemSucceeded:
			succeeded += count
		case RunItemFailed:
			failed += count
		}
	}
	return succeeded, failed, rows.Err()
}

// FailRemainingQueued bulk-fails every still-queued item of a run with the
// shared summary message and returns how many were failed. Used by the
// shared-session short-circuit; the extractor is never invoked for these.
func (s *Store) FailRemainingQueued(ctx context.Context, runID, message string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE extraction_run_items SET status = ?, error_message = ?, updated_at = ?
         WHERE run_id = ? AND status = ?`,
		RunItemFailed, nullableString(message), now, runID, RunItemQueued,
	)
	if err != nil {
		return 0, fmt.Errorf("fail remaining queued items: %w", err)
	}
	return res.RowsAffected()
}

// FinishRun records the final status and counters of a run. The error summary
// is only persisted when the shared-session short-circuit fired.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, processed, succeeded, failed int, errorSummary string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE extraction_runs
         SET status = ?, processed_count = ?, success_count = ?, failure_count = ?,
             error_summary = ?, finished_at = ?, updated_at = ?
         WHERE id = ?`,
		status, processed, succeeded, failed,
		nullableString(strings.TrimSpace(errorSummary)), now, now, id,
	); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
