package documents

import (
	"os"
	"path/filepath"
	"testing"
)

func TestArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "capture.pdf")
	content := []byte("scanned utility bill")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	stored, err := Archive(filepath.Join(dir, "archive"), 42, "bill", src)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "archive", "42", "bill.pdf")
	if stored != want {
		t.Fatalf("archived path = %q, want %q", stored, want)
	}

	got, err := os.ReadFile(stored)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestArchiveReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "signature.png")
	if err := os.WriteFile(src, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	root := filepath.Join(dir, "archive")

	if _, err := Archive(root, 7, "signature", src); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	stored, err := Archive(root, 7, "signature", src)
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(stored)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("expected replacement copy, got %q", got)
	}
}

func TestArchiveMissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := Archive(dir, 1, "bill", filepath.Join(dir, "nope.pdf")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestSanitizeSegment(t *testing.T) {
	cases := map[string]string{
		"bill":           "bill",
		"Proof of ID":    "proof_of_id",
		"  signature  ":  "signature",
		"../../etc/pw":   "etc_pw",
		"###":            "",
		"meter-reading2": "meter-reading2",
	}
	for input, want := range cases {
		if got := sanitizeSegment(input); got != want {
			t.Errorf("sanitizeSegment(%q) = %q, want %q", input, got, want)
		}
	}
}
