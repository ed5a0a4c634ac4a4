package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fieldline/internal/portal"
)

// AddDocument records an uploaded artifact for a property.
func (s *Store) AddDocument(ctx context.Context, propertyID int64, docType, filePath string) (*Document, error) {
	docType = strings.ToLower(strings.TrimSpace(docType))
	if docType == "" {
		return nil, portal.Wrap(portal.ErrValidation, "pipeline", "add document",
			"document type is required", nil)
	}

	property, err := s.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, portal.Wrap(portal.ErrConflict, "pipeline", "add document",
			fmt.Sprintf("property %d not found", propertyID), nil)
	}

	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO documents (property_id, doc_type, file_path, created_at) VALUES (?, ?, ?, ?)`,
		propertyID, docType, nullableString(strings.TrimSpace(filePath)),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &Document{
		ID:         id,
		PropertyID: propertyID,
		DocType:    docType,
		FilePath:   strings.TrimSpace(filePath),
		CreatedAt:  now,
	}, nil
}

// DocumentTypes returns the distinct document types recorded for a property.
func (s *Store) DocumentTypes(ctx context.Context, propertyID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT doc_type FROM documents WHERE property_id = ? ORDER BY doc_type`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("query document types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var docType string
		if err := rows.Scan(&docType); err != nil {
			return nil, err
		}
		types = append(types, docType)
	}
	return types, rows.Err()
}
