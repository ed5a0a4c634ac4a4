package pipeline

import (
	"database/sql"
	"errors"
	"time"
)

const propertyColumns = "id, street_number, street_name, zip_code, full_address, latitude, longitude, status, customer_name, customer_phone, customer_email, data_extracted, extracted_at, sce_case_id, error_message, last_heartbeat, created_at, updated_at"

func scanProperty(scanner interface{ Scan(dest ...any) error }) (*Property, error) {
	var (
		id            int64
		streetNumber  string
		streetName    string
		zipCode       string
		fullAddress   sql.NullString
		latitude      sql.NullFloat64
		longitude     sql.NullFloat64
		statusStr     string
		customerName  sql.NullString
		customerPhone sql.NullString
		customerEmail sql.NullString
		dataExtracted sql.NullInt64
		extractedRaw  sql.NullString
		sceCaseID     sql.NullString
		errorMessage  sql.NullString
		heartbeatRaw  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&streetNumber,
		&streetName,
		&zipCode,
		&fullAddress,
		&latitude,
		&longitude,
		&statusStr,
		&customerName,
		&customerPhone,
		&customerEmail,
		&dataExtracted,
		&extractedRaw,
		&sceCaseID,
		&errorMessage,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	property := &Property{
		ID:            id,
		StreetNumber:  streetNumber,
		StreetName:    streetName,
		ZipCode:       zipCode,
		FullAddress:   fullAddress.String,
		Status:        Status(statusStr),
		CustomerName:  customerName.String,
		CustomerPhone: customerPhone.String,
		CustomerEmail: customerEmail.String,
		SCECaseID:     sceCaseID.String,
		ErrorMessage:  errorMessage.String,
	}
	if latitude.Valid {
		v := latitude.Float64
		property.Latitude = &v
	}
	if longitude.Valid {
		v := longitude.Float64
		property.Longitude = &v
	}
	if dataExtracted.Valid {
		property.DataExtracted = dataExtracted.Int64 != 0
	}
	if extractedRaw.Valid {
		if extracted, err := parseTimeString(extractedRaw.String); err == nil {
			property.ExtractedAt = &extracted
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			property.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		property.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		property.UpdatedAt = updated
	}
	return property, nil
}

const runColumns = "id, status, session_ciphertext, processed_count, success_count, failure_count, error_summary, started_at, finished_at, created_at, updated_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*ExtractionRun, error) {
	var (
		id           string
		statusStr    string
		ciphertext   string
		processed    int
		succeeded    int
		failed       int
		errorSummary sql.NullString
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&ciphertext,
		&processed,
		&succeeded,
		&failed,
		&errorSummary,
		&startedRaw,
		&finishedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	run := &ExtractionRun{
		ID:                id,
		Status:            RunStatus(statusStr),
		SessionCiphertext: ciphertext,
		ProcessedCount:    processed,
		SuccessCount:      succeeded,
		FailureCount:      failed,
		ErrorSummary:      errorSummary.String,
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			run.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	return run, nil
}

const runItemColumns = "id, run_id, property_id, status, error_message, created_at, updated_at"

func scanRunItem(scanner interface{ Scan(dest ...any) error }) (*ExtractionRunItem, error) {
	var (
		id           int64
		runID        string
		propertyID   int64
		statusStr    string
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&runID,
		&propertyID,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &ExtractionRunItem{
		ID:           id,
		RunID:        runID,
		PropertyID:   propertyID,
		Status:       RunItemStatus(statusStr),
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
