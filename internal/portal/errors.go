package portal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input rejected before any mutation.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a valid request whose precondition failed, e.g. a
	// status gate or a lost claim surfaced as an explicit operation.
	ErrConflict = errors.New("conflict")
	// ErrExtraction marks a per-property extraction failure recorded against
	// one run item without aborting the run.
	ErrExtraction = errors.New("extraction error")
	// ErrSession marks a failure of the shared automation session itself.
	// It aborts the remainder of the run.
	ErrSession = errors.New("session error")
	// ErrConfiguration marks missing or invalid configuration, fatal to the
	// current operation.
	ErrConfiguration = errors.New("configuration error")
	// ErrInfrastructure marks storage or transport failures that propagate
	// to the caller unmodified.
	ErrInfrastructure = errors.New("infrastructure error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrInfrastructure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "unspecified failure"
	}
	return strings.Join(parts, ": ")
}
