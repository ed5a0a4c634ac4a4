package portal

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Address identifies one property on the portal's search form.
type Address struct {
	StreetNumber string
	StreetName   string
	ZipCode      string
}

// String renders the address the way the portal's search form expects it.
func (a Address) String() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{a.StreetNumber, a.StreetName, a.ZipCode} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// CustomerData is the result of one extraction call. Every field is optional;
// the portal frequently returns partial records.
type CustomerData struct {
	Name  string
	Phone string
	Email string
}

// HasUsableData reports whether at least one field survives trimming.
// An extraction returning only empty strings counts as a failure upstream.
func (c CustomerData) HasUsableData() bool {
	return strings.TrimSpace(c.Name) != "" ||
		strings.TrimSpace(c.Phone) != "" ||
		strings.TrimSpace(c.Email) != ""
}

var nameCaser = cases.Title(language.AmericanEnglish)

// Merge applies the ordered-fallback rule for customer fields: a non-empty
// extracted value wins, otherwise the previously stored value is kept.
// Names are normalized to title case since the portal returns them uppercased.
func (c CustomerData) Merge(existing CustomerData) CustomerData {
	merged := CustomerData{
		Name:  fallback(c.Name, existing.Name),
		Phone: fallback(c.Phone, existing.Phone),
		Email: fallback(c.Email, existing.Email),
	}
	if merged.Name != "" && merged.Name == strings.ToUpper(merged.Name) {
		merged.Name = nameCaser.String(strings.ToLower(merged.Name))
	}
	return merged
}

func fallback(primary, secondary string) string {
	if trimmed := strings.TrimSpace(primary); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(secondary)
}

// SubmitRequest carries the data for filing a case on the portal after a
// completed field visit.
type SubmitRequest struct {
	Address      Address
	CustomerName string
	SessionBlob  []byte
}

// SubmitResult reports the portal-assigned case identifier.
type SubmitResult struct {
	CaseID string
}

// AutomationClient drives the external portal through a shared
// browser-automation session. Implementations may fail with messages that
// carry enough portal text for shared-session-failure classification.
type AutomationClient interface {
	ExtractCustomerData(ctx context.Context, address Address, sessionBlob []byte) (CustomerData, error)
	SubmitCase(ctx context.Context, req SubmitRequest) (SubmitResult, error)
}
