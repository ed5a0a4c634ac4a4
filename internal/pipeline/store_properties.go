package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"fieldline/internal/portal"
)

// NewPropertyInput carries the immutable address fields used to queue a
// property for discovery.
type NewPropertyInput struct {
	StreetNumber string
	StreetName   string
	ZipCode      string
	FullAddress  string
	Latitude     *float64
	Longitude    *float64
}

func (in *NewPropertyInput) validate() error {
	if strings.TrimSpace(in.StreetNumber) == "" ||
		strings.TrimSpace(in.StreetName) == "" ||
		strings.TrimSpace(in.ZipCode) == "" {
		return portal.Wrap(portal.ErrValidation, "pipeline", "create property",
			"street number, street name, and zip code are required", nil)
	}
	for _, coord := range []*float64{in.Latitude, in.Longitude} {
		if coord != nil && (math.IsNaN(*coord) || math.IsInf(*coord, 0)) {
			return portal.Wrap(portal.ErrValidation, "pipeline", "create property",
				"coordinates must be finite", nil)
		}
	}
	return nil
}

// CreateProperties inserts a batch of properties queued for discovery.
// The whole batch is inserted in one transaction; a single invalid entry
// rejects the batch.
func (s *Store) CreateProperties(ctx context.Context, inputs []NewPropertyInput) ([]*Property, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	for i := range inputs {
		if err := inputs[i].validate(); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	ids := make([]int64, 0, len(inputs))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, in := range inputs {
			fullAddress := strings.TrimSpace(in.FullAddress)
			if fullAddress == "" {
				fullAddress = portal.Address{
					StreetNumber: in.StreetNumber,
					StreetName:   in.StreetName,
					ZipCode:      in.ZipCode,
				}.String()
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO properties (
                    street_number, street_name, zip_code, full_address,
                    latitude, longitude, status, created_at, updated_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				strings.TrimSpace(in.StreetNumber),
				strings.TrimSpace(in.StreetName),
				strings.TrimSpace(in.ZipCode),
				fullAddress,
				nullableFloat(in.Latitude),
				nullableFloat(in.Longitude),
				StatusPendingScrape,
				timestamp,
				timestamp,
			)
			if err != nil {
				return fmt.Errorf("insert property: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	properties := make([]*Property, 0, len(ids))
	for _, id := range ids {
		property, err := s.GetProperty(ctx, id)
		if err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}
	return properties, nil
}

// GetProperty fetches a property by identifier. A missing row returns (nil, nil).
func (s *Store) GetProperty(ctx context.Context, id int64) (*Property, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
	property, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	return property, nil
}

// PropertiesByStatus returns properties matching a status ordered by creation time.
func (s *Store) PropertiesByStatus(ctx context.Context, status Status) ([]*Property, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var properties []*Property
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}
	return properties, rows.Err()
}

// List returns properties filtered by status set (or all properties when no
// status is provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Property, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + propertyColumns + ` FROM properties`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var properties []*Property
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}
	return properties, rows.Err()
}

// CountByStatus returns the number of properties in the given status.
func (s *Store) CountByStatus(ctx context.Context, status Status) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM properties WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by status: %w", err)
	}
	return count, nil
}

// DeleteByStatus removes properties in the given statuses. This is an
// administrative operation for the CLI; in-progress statuses are refused so
// a live claim is never deleted out from under its worker.
func (s *Store) DeleteByStatus(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	for _, status := range statuses {
		if IsInProgress(status) {
			return 0, portal.Wrap(portal.ErrConflict, "pipeline", "delete properties",
				fmt.Sprintf("cannot delete properties in claimed status %s", status), nil)
		}
	}

	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM properties WHERE status IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete properties: %w", err)
	}
	return res.RowsAffected()
}

// Update persists mutable fields of an existing property. Status changes must
// already be legal; use the claim and transition helpers for gated moves.
func (s *Store) Update(ctx context.Context, property *Property) error {
	if property == nil {
		return errors.New("property is nil")
	}
	property.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE properties
         SET status = ?, customer_name = ?, customer_phone = ?, customer_email = ?,
             data_extracted = ?, extracted_at = ?, sce_case_id = ?, error_message = ?,
             last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
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
		property.ID,
	); err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	return nil
}
