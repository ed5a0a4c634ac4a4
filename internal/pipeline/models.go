package pipeline

import (
	"math"
	"strings"
	"time"
)

// Status represents the lifecycle of a property.
type Status string

const (
	StatusPendingScrape        Status = "pending_scrape"
	StatusScrapingInProgress   Status = "scraping_in_progress"
	StatusReadyForField        Status = "ready_for_field"
	StatusVisited              Status = "visited"
	StatusSubmittingInProgress Status = "submitting_in_progress"
	StatusReadyForSubmission   Status = "ready_for_submission"
	StatusComplete             Status = "complete"
	StatusFailed               Status = "failed"
)

var allStatuses = []Status{
	StatusPendingScrape,
	StatusScrapingInProgress,
	StatusReadyForField,
	StatusVisited,
	StatusSubmittingInProgress,
	StatusReadyForSubmission,
	StatusComplete,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// inProgressStatuses are the states a worker holds exclusively after a claim.
var inProgressStatuses = map[Status]struct{}{
	StatusScrapingInProgress:   {},
	StatusSubmittingInProgress: {},
}

// transitions is the closed transition table. Every status mutation in the
// store goes through CanTransition; there are no ad hoc equality checks.
var transitions = map[Status][]Status{
	StatusPendingScrape:      {StatusScrapingInProgress},
	StatusScrapingInProgress: {StatusReadyForField, StatusFailed, StatusPendingScrape},
	StatusReadyForField:      {StatusVisited},
	StatusVisited:            {StatusSubmittingInProgress},
	StatusSubmittingInProgress: {
		StatusReadyForSubmission,
		StatusComplete,
		StatusFailed,
		StatusVisited, // compensating transition for aborted submissions
	},
	StatusFailed: {StatusPendingScrape}, // administrative re-queue only
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsInProgress reports whether a status reflects a claimed, in-flight operation.
func IsInProgress(status Status) bool {
	_, ok := inProgressStatuses[status]
	return ok
}

// Property is one address moving through the field-operations pipeline.
type Property struct {
	ID            int64
	StreetNumber  string
	StreetName    string
	ZipCode       string
	FullAddress   string
	Latitude      *float64
	Longitude     *float64
	Status        Status
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	DataExtracted bool
	ExtractedAt   *time.Time
	SCECaseID     string
	ErrorMessage  string
	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasCoordinates reports whether the property carries finite geo-coordinates.
func (p *Property) HasCoordinates() bool {
	if p.Latitude == nil || p.Longitude == nil {
		return false
	}
	if math.IsNaN(*p.Latitude) || math.IsInf(*p.Latitude, 0) {
		return false
	}
	if math.IsNaN(*p.Longitude) || math.IsInf(*p.Longitude, 0) {
		return false
	}
	return true
}

// IsInProgress reports whether the property is currently claimed by a worker.
func (p *Property) IsInProgress() bool {
	return IsInProgress(p.Status)
}

// RunStatus represents the lifecycle of an extraction run.
type RunStatus string

const (
	RunPending             RunStatus = "pending"
	RunRunning             RunStatus = "running"
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	RunFailed              RunStatus = "failed"
)

// RunItemStatus represents the state of one property inside a run.
type RunItemStatus string

const (
	RunItemQueued     RunItemStatus = "queued"
	RunItemProcessing RunItemStatus = "processing"
	RunItemSucceeded  RunItemStatus = "succeeded"
	RunItemFailed     RunItemStatus = "failed"
)

// ExtractionRun batches portal lookups that share one decrypted session.
type ExtractionRun struct {
	ID                string
	Status            RunStatus
	SessionCiphertext string
	ProcessedCount    int
	SuccessCount      int
	FailureCount      int
	ErrorSummary      string
	StartedAt         *time.Time
	FinishedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ExtractionRunItem references one property within a run. Items are processed
// in ascending identity order and that order is preserved in results.
type ExtractionRunItem struct {
	ID           int64
	RunID        string
	PropertyID   int64
	Status       RunItemStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Document records an uploaded artifact for a property. The visit completion
// gate requires RequiredDocumentTypes to be present.
type Document struct {
	ID         int64
	PropertyID int64
	DocType    string
	FilePath   string
	CreatedAt  time.Time
}

// RequiredDocumentTypes must exist before a field visit can complete.
var RequiredDocumentTypes = []string{"bill", "signature"}
