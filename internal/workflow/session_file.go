package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"fieldline/internal/portal"
	"fieldline/internal/sessionvault"
)

// ErrNoSession indicates no portal session has been imported yet.
var ErrNoSession = errors.New("no portal session imported")

// SessionFile stores the encrypted portal session envelope on disk. The
// daemon reads it when building extraction runs; the CLI writes it during
// `session import`. Only the sealed envelope ever touches the filesystem.
type SessionFile struct {
	path  string
	vault *sessionvault.Vault
}

func NewSessionFile(path string, vault *sessionvault.Vault) *SessionFile {
	return &SessionFile{path: path, vault: vault}
}

// Path returns the on-disk location of the envelope.
func (s *SessionFile) Path() string { return s.path }

// Import seals the plaintext session state and persists the envelope.
func (s *SessionFile) Import(plaintext []byte) error {
	if len(plaintext) == 0 {
		return portal.Wrap(portal.ErrValidation, "workflow", "session import",
			"session payload is empty", nil)
	}
	envelope, err := s.vault.Encrypt(plaintext)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(envelope), 0o600); err != nil {
		return fmt.Errorf("writing session envelope: %w", err)
	}
	return nil
}

// Envelope returns the stored sealed envelope, or ErrNoSession when the
// operator has not imported one.
func (s *SessionFile) Envelope() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("reading session envelope: %w", err)
	}
	envelope := strings.TrimSpace(string(data))
	if envelope == "" {
		return "", ErrNoSession
	}
	return envelope, nil
}

// Decrypt returns the plaintext session state for immediate use. Callers
// must not persist or log the result.
func (s *SessionFile) Decrypt() ([]byte, error) {
	envelope, err := s.Envelope()
	if err != nil {
		return nil, err
	}
	return s.vault.Decrypt(envelope)
}

// Clear removes the stored session, forcing re-import before further runs.
func (s *SessionFile) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session envelope: %w", err)
	}
	return nil
}
