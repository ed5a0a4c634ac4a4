package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldline/internal/portal"
)

// claimRetryAttempts bounds how many times a claim re-selects after losing
// the conditional update race before reporting no work available.
const claimRetryAttempts = 3

var errClaimLost = errors.New("claim lost")

// ClaimNextForScrape atomically claims the oldest-created property awaiting
// discovery, flipping it to scraping_in_progress. Returns (nil, nil) when no
// work is available. No two concurrent claims can return the same property:
// selection and conditional update share one transaction, and the update
// applies only while the row is still pending_scrape.
func (s *Store) ClaimNextForScrape(ctx context.Context) (*Property, error) {
	return s.claimNext(ctx, StatusPendingScrape, StatusScrapingInProgress, "created_at")
}

// ClaimNextForSubmission atomically claims the oldest-updated visited
// property, flipping it to submitting_in_progress. Returns (nil, nil) when no
// work is available.
func (s *Store) ClaimNextForSubmission(ctx context.Context) (*Property, error) {
	return s.claimNext(ctx, StatusVisited, StatusSubmittingInProgress, "updated_at")
}

func (s *Store) claimNext(ctx context.Context, from, to Status, orderColumn string) (*Property, error) {
	for attempt := 0; attempt < claimRetryAttempts; attempt++ {
		id, err := s.tryClaim(ctx, from, to, orderColumn)
		if errors.Is(err, errClaimLost) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if id == 0 {
			return nil, nil
		}
		return s.GetProperty(ctx, id)
	}
	// Every selection lost its race; indistinguishable from an empty queue.
	return nil, nil
}

func (s *Store) tryClaim(ctx context.Context, from, to Status, orderColumn string) (int64, error) {
	var claimedID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		query := `SELECT id FROM properties WHERE status = ? ORDER BY ` + orderColumn + `, id LIMIT 1`
		err := tx.QueryRowContext(ctx, query, from).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select claim candidate: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(ctx,
			`UPDATE properties
             SET status = ?, error_message = NULL, last_heartbeat = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			to, now, now, id, from,
		)
		if err != nil {
			return fmt.Errorf("claim update: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			return errClaimLost
		}
		claimedID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return claimedID, nil
}

// ConditionalUpdate applies mutate to the property only while its status
// still equals expected, all inside one transaction. Returns (nil, nil) when
// the condition no longer holds. Illegal status transitions are rejected
// with a conflict before any write.
func (s *Store) ConditionalUpdate(ctx context.Context, id int64, expected Status, mutate func(*Property)) (*Property, error) {
	var updated *Property
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
		property, err := scanProperty(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load property: %w", err)
		}
		if property.Status != expected {
			return nil
		}

		mutate(property)
		if property.Status != expected && !CanTransition(expected, property.Status) {
			return portal.Wrap(portal.ErrConflict, "pipeline", "conditional update",
				fmt.Sprintf("illegal transition %s -> %s", expected, property.Status), nil)
		}

		property.UpdatedAt = time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`UPDATE properties
             SET status = ?, customer_name = ?, customer_phone = ?, customer_email = ?,
                 data_extracted = ?, extracted_at = ?, sce_case_id = ?, error_message = ?,
                 last_heartbeat = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			property.Status,
			nullableString(property.CustomerName),
			nullableString(property.CustomerPhone),
			nullableString(property.CustomerEmail),
			boolToInt(property.DataExtracted),
			nullableTime(property.ExtractedAt),
			nullableString(property.SCECaseID),
			nullableString(property.ErrorMessage),
			nullableTime(property.LastHeartbeat),
			property.UpdatedAt.Format(time.RFC3339Nano),
			id, expected,
		)
		if err != nil {
			return fmt.Errorf("conditional update: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return nil
		}
		updated = property
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyExtractionSuccess records a usable portal extraction: customer fields,
// the extraction timestamp, and the move to ready_for_field. The update only
// lands while the property is still claimed for scraping.
func (s *Store) ApplyExtractionSuccess(ctx context.Context, id int64, name, phone, email string) (*Property, error) {
	now := time.Now().UTC()
	return s.ConditionalUpdate(ctx, id, StatusScrapingInProgress, func(p *Property) {
		p.CustomerName = name
		p.CustomerPhone = phone
		p.CustomerEmail = email
		p.DataExtracted = true
		p.ExtractedAt = &now
		p.Status = StatusReadyForField
		p.ErrorMessage = ""
		p.LastHeartbeat = nil
	})
}

// MarkFailed moves a claimed in-progress property to failed, retaining the
// reason for audit. Properties not currently claimed yield a conflict.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) error {
	property, err := s.GetProperty(ctx, id)
	if err != nil {
		return err
	}
	if property == nil {
		return portal.Wrap(portal.ErrConflict, "pipeline", "mark failed",
			fmt.Sprintf("property %d not found", id), nil)
	}
	if !property.IsInProgress() {
		return portal.Wrap(portal.ErrConflict, "pipeline", "mark failed",
			fmt.Sprintf("property %d is %s, not in progress", id, property.Status), nil)
	}

	updated, err := s.ConditionalUpdate(ctx, id, property.Status, func(p *Property) {
		p.Status = StatusFailed
		p.ErrorMessage = strings.TrimSpace(reason)
		p.LastHeartbeat = nil
	})
	if err != nil {
		return err
	}
	if updated == nil {
		return portal.Wrap(portal.ErrConflict, "pipeline", "mark failed",
			fmt.Sprintf("property %d changed state concurrently", id), nil)
	}
	return nil
}

// CompleteVisit gates the ready_for_field -> visited transition on the
// required document types existing for the property. Missing documents fail
// with a conflict naming them; nothing is mutated.
func (s *Store) CompleteVisit(ctx context.Context, id int64) (*Property, error) {
	var completed *Property
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
		property, err := scanProperty(row)
		if errors.Is(err, sql.ErrNoRows) {
			return portal.Wrap(portal.ErrConflict, "pipeline", "complete visit",
				fmt.Sprintf("property %d not found", id), nil)
		}
		if err != nil {
			return fmt.Errorf("load property: %w", err)
		}
		if property.Status != StatusReadyForField {
			return portal.Wrap(portal.ErrConflict, "pipeline", "complete visit",
				fmt.Sprintf("property %d is %s, expected %s", id, property.Status, StatusReadyForField), nil)
		}

		present := map[string]struct{}{}
		rows, err := tx.QueryContext(ctx,
			`SELECT DISTINCT doc_type FROM documents WHERE property_id = ?`, id)
		if err != nil {
			return fmt.Errorf("query documents: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var docType string
			if err := rows.Scan(&docType); err != nil {
				return err
			}
			present[strings.ToLower(strings.TrimSpace(docType))] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		var missing []string
		for _, required := range RequiredDocumentTypes {
			if _, ok := present[required]; !ok {
				missing = append(missing, required)
			}
		}
		if len(missing) > 0 {
			return portal.Wrap(portal.ErrConflict, "pipeline", "complete visit",
				fmt.Sprintf("missing required documents: %s", strings.Join(missing, ", ")), nil)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(ctx,
			`UPDATE properties SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			StatusVisited, now, id, StatusReadyForField,
		)
		if err != nil {
			return fmt.Errorf("complete visit: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return portal.Wrap(portal.ErrConflict, "pipeline", "complete visit",
				fmt.Sprintf("property %d changed state concurrently", id), nil)
		}

		property.Status = StatusVisited
		completed = property
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// RequeueSubmission is the compensating transition for aborted submissions:
// submitting_in_progress moves back to visited.
func (s *Store) RequeueSubmission(ctx context.Context, id int64) error {
	updated, err := s.ConditionalUpdate(ctx, id, StatusSubmittingInProgress, func(p *Property) {
		p.Status = StatusVisited
		p.LastHeartbeat = nil
	})
	if err != nil {
		return err
	}
	if updated == nil {
		return portal.Wrap(portal.ErrConflict, "pipeline", "requeue submission",
			fmt.Sprintf("property %d is not submitting", id), nil)
	}
	return nil
}

// RetryFailed moves failed properties back to pending_scrape for reprocessing.
// With no ids, every failed property is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(ctx,
			`UPDATE properties SET status = ?, error_message = NULL, updated_at = ? WHERE status = ?`,
			StatusPendingScrape, timestamp, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed properties: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPendingScrape, timestamp, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE properties SET status = ?, error_message = NULL, updated_at = ?
         WHERE status = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected properties: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat refreshes the heartbeat timestamp for a claimed property.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE properties SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleScraping returns scrape claims whose worker stopped
// heartbeating before the cutoff back to pending_scrape.
func (s *Store) ReclaimStaleScraping(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE properties
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPendingScrape, now, StatusScrapingInProgress,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale claims: %w", err)
	}
	return res.RowsAffected()
}
