package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldline/internal/logging"
	"fieldline/internal/portal"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("claim won", logging.Int64("property_id", 42))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "claim won") {
		t.Fatalf("log output missing message: %q", text)
	}
	if !strings.Contains(text, "property_id=42") {
		t.Fatalf("log output missing attr: %q", text)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := portal.WithPropertyID(context.Background(), 7)
	ctx = portal.WithStage(ctx, "extraction")
	logging.WithContext(ctx, logger).Info("stage started")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"property_id":7`) {
		t.Fatalf("missing property_id field: %q", text)
	}
	if !strings.Contains(text, `"stage":"extraction"`) {
		t.Fatalf("missing stage field: %q", text)
	}
}
