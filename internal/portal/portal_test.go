package portal_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fieldline/internal/config"
	"fieldline/internal/portal"
)

func TestIsSessionFailure(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"Session expired, please log in again", true},
		{"SESSION EXPIRED", true},
		{"user is logged out", true},
		{"You are not authorized to view this account", true},
		{"Permission denied while searching", true},
		{"landed on unexpected page after navigation", true},
		{"could not find search input on page", true},
		{"could not find required form fields", true},
		{"no customer record for this address", false},
		{"timeout waiting for results table", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := portal.IsSessionFailure(tc.message); got != tc.want {
			t.Errorf("IsSessionFailure(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}

func TestClassifyExtractionError(t *testing.T) {
	sessionErr := portal.ClassifyExtractionError(errors.New("session expired"))
	if !errors.Is(sessionErr, portal.ErrSession) {
		t.Fatalf("expected ErrSession, got %v", sessionErr)
	}
	itemErr := portal.ClassifyExtractionError(errors.New("no customer found"))
	if !errors.Is(itemErr, portal.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", itemErr)
	}
	if errors.Is(itemErr, portal.ErrSession) {
		t.Fatal("item error must not classify as session error")
	}
	if portal.ClassifyExtractionError(nil) != nil {
		t.Fatal("nil error should stay nil")
	}
}

func TestHasUsableData(t *testing.T) {
	if (portal.CustomerData{}).HasUsableData() {
		t.Fatal("empty data should not be usable")
	}
	if (portal.CustomerData{Name: "   "}).HasUsableData() {
		t.Fatal("whitespace-only data should not be usable")
	}
	if !(portal.CustomerData{Phone: "555-0100"}).HasUsableData() {
		t.Fatal("phone alone should be usable")
	}
}

func TestMergeFallsBackToExisting(t *testing.T) {
	extracted := portal.CustomerData{Phone: "555-0100"}
	existing := portal.CustomerData{Name: "Ada Lovelace", Email: "ada@example.com"}

	merged := extracted.Merge(existing)
	if merged.Name != "Ada Lovelace" {
		t.Fatalf("existing name should survive, got %q", merged.Name)
	}
	if merged.Phone != "555-0100" {
		t.Fatalf("extracted phone should win, got %q", merged.Phone)
	}
	if merged.Email != "ada@example.com" {
		t.Fatalf("existing email should survive, got %q", merged.Email)
	}
}

func TestMergeTitleCasesShoutedNames(t *testing.T) {
	merged := portal.CustomerData{Name: "  GRACE HOPPER "}.Merge(portal.CustomerData{})
	if merged.Name != "Grace Hopper" {
		t.Fatalf("expected title-cased name, got %q", merged.Name)
	}

	kept := portal.CustomerData{Name: "Grace Hopper"}.Merge(portal.CustomerData{})
	if kept.Name != "Grace Hopper" {
		t.Fatalf("mixed-case name should pass through, got %q", kept.Name)
	}
}

func TestAddressString(t *testing.T) {
	addr := portal.Address{StreetNumber: "1234", StreetName: "Main St", ZipCode: "90210"}
	if got := addr.String(); got != "1234 Main St 90210" {
		t.Fatalf("unexpected address string: %q", got)
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*portal.Client, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	cfg := config.Default()
	cfg.Portal.SessionKey = "k"
	cfg.Portal.AutomationURL = server.URL
	client, err := portal.NewClient(&cfg, server.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, server.Close
}

func TestClientExtractCustomerData(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"customerName":"Ada Lovelace","customerPhone":"555-0100"}`))
	}))
	defer done()

	data, err := client.ExtractCustomerData(context.Background(), portal.Address{StreetNumber: "1", StreetName: "Main", ZipCode: "90210"}, []byte("session"))
	if err != nil {
		t.Fatalf("ExtractCustomerData failed: %v", err)
	}
	if data.Name != "Ada Lovelace" || data.Phone != "555-0100" {
		t.Fatalf("unexpected customer data: %+v", data)
	}
}

func TestClientSurfacesPortalErrorText(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"session expired, please log in"}`))
	}))
	defer done()

	_, err := client.ExtractCustomerData(context.Background(), portal.Address{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !portal.IsSessionFailure(err.Error()) {
		t.Fatalf("portal error text must survive for classification, got %q", err.Error())
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	cfg := config.Default()
	cfg.Portal.SessionKey = "k"
	if _, err := portal.NewClient(&cfg, nil); !errors.Is(err, portal.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
