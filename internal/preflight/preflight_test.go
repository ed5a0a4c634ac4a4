package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldline/internal/sessionvault"
	"fieldline/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := CheckDirectoryAccess("Data directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for writable directory, got %+v", result)
	}

	result = CheckDirectoryAccess("Data directory", filepath.Join(dir, "missing"))
	if result.Passed || !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("expected missing-directory failure, got %+v", result)
	}

	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result = CheckDirectoryAccess("Data directory", file)
	if result.Passed || !strings.Contains(result.Detail, "not a directory") {
		t.Fatalf("expected not-a-directory failure, got %+v", result)
	}
}

func TestCheckAutomationService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result := CheckAutomationService(context.Background(), server.URL)
	if !result.Passed {
		t.Fatalf("expected any HTTP response to count as reachable, got %+v", result)
	}

	server.Close()
	result = CheckAutomationService(context.Background(), server.URL)
	if result.Passed {
		t.Fatalf("expected failure for closed server, got %+v", result)
	}

	result = CheckAutomationService(context.Background(), "")
	if result.Passed || result.Detail != "missing url" {
		t.Fatalf("expected missing url failure, got %+v", result)
	}
}

func TestCheckSession(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSessionKey("preflight-key"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	result := CheckSession(cfg)
	if result.Passed || result.Detail != "not imported" {
		t.Fatalf("expected not-imported failure, got %+v", result)
	}

	vault, err := sessionvault.New(cfg.Portal.SessionKey)
	if err != nil {
		t.Fatal(err)
	}
	envelope, err := vault.Encrypt([]byte(`{"cookies":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.SessionEnvelopePath(), []byte(envelope), 0o600); err != nil {
		t.Fatal(err)
	}

	result = CheckSession(cfg)
	if !result.Passed {
		t.Fatalf("expected pass for decryptable session, got %+v", result)
	}

	cfg.Portal.SessionKey = "a-different-key"
	result = CheckSession(cfg)
	if result.Passed || !strings.Contains(result.Detail, "not decryptable") {
		t.Fatalf("expected decryption failure, got %+v", result)
	}

	cfg.Portal.SessionKey = ""
	result = CheckSession(cfg)
	if result.Passed || result.Detail != "session key missing" {
		t.Fatalf("expected missing-key failure, got %+v", result)
	}
}

func TestCheckNotifications(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	result := CheckNotifications(cfg)
	if !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("expected disabled pass, got %+v", result)
	}

	cfg.Notifications.NtfyTopic = "fieldline-alerts"
	result = CheckNotifications(cfg)
	if !result.Passed || !strings.Contains(result.Detail, "configured") {
		t.Fatalf("expected configured pass, got %+v", result)
	}
}

func TestRunAllCoversConfiguredChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	cfg.Portal.AutomationURL = ""

	results := RunAll(context.Background(), cfg)
	names := make(map[string]bool, len(results))
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Data directory", "Log directory", "Portal session", "Notifications"} {
		if !names[want] {
			t.Errorf("RunAll missing check %q", want)
		}
	}
	if names["Automation service"] {
		t.Error("RunAll should skip the automation check when no url is configured")
	}
}
