package portal

import (
	"fmt"
	"strings"
)

// sessionFailureSignatures are case-insensitive substrings that mark an error
// as a failure of the shared automation session rather than of one property.
// A match means the remaining batch cannot succeed either: the login expired
// or access was revoked, and the recovery action is operator re-authentication.
var sessionFailureSignatures = []string{
	"session expired",
	"session is expired",
	"log in",
	"login required",
	"logged out",
	"not authorized",
	"permission denied",
	"access denied",
	"unexpected page",
	"unexpected landing page",
	"could not find search",
	"could not find address field",
	"could not find the address input",
	"could not find required form",
}

// IsSessionFailure classifies an error message against the shared-session
// failure signatures. This is the single classification point; callers must
// not re-derive substring checks.
func IsSessionFailure(message string) bool {
	lowered := strings.ToLower(message)
	for _, signature := range sessionFailureSignatures {
		if strings.Contains(lowered, signature) {
			return true
		}
	}
	return false
}

// ClassifyExtractionError wraps err as a session failure when its message
// matches a shared-session signature, and as a per-item extraction failure
// otherwise. The original message is preserved for audit storage.
func ClassifyExtractionError(err error) error {
	if err == nil {
		return nil
	}
	if IsSessionFailure(err.Error()) {
		return fmt.Errorf("%w: %w", ErrSession, err)
	}
	return fmt.Errorf("%w: %w", ErrExtraction, err)
}
