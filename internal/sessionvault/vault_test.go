package sessionvault_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"fieldline/internal/portal"
	"fieldline/internal/sessionvault"
)

func TestRoundTrip(t *testing.T) {
	vault, err := sessionvault.New("correct horse battery staple")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	payload := []byte(`{"cookies":[{"name":"session","value":"abc123"}]}`)
	envelope, err := vault.Encrypt(payload)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	parts := strings.Split(envelope, ".")
	if len(parts) != 3 {
		t.Fatalf("envelope must have three segments, got %d: %q", len(parts), envelope)
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != 12 {
		t.Fatalf("nonce segment invalid: %v (len %d)", err, len(nonce))
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(tag) != 16 {
		t.Fatalf("tag segment invalid: %v (len %d)", err, len(tag))
	}

	decrypted, err := vault.Decrypt(envelope)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(decrypted) != string(payload) {
		t.Fatalf("round trip mismatch: %q", decrypted)
	}
}

func TestNonceUniqueness(t *testing.T) {
	vault, err := sessionvault.New("key")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	first, err := vault.Encrypt([]byte("same payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	second, err := vault.Encrypt([]byte("same payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if first == second {
		t.Fatal("two encryptions of the same payload must differ")
	}
}

func TestWrongKeyFails(t *testing.T) {
	vault, _ := sessionvault.New("right key")
	other, _ := sessionvault.New("wrong key")

	envelope, err := vault.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := other.Decrypt(envelope); !errors.Is(err, portal.ErrValidation) {
		t.Fatalf("expected validation failure with wrong key, got %v", err)
	}
}

func TestTamperedEnvelopeFails(t *testing.T) {
	vault, _ := sessionvault.New("key")
	envelope, err := vault.Encrypt([]byte("secret payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	parts := strings.Split(envelope, ".")
	cipherBytes, _ := base64.StdEncoding.DecodeString(parts[2])
	cipherBytes[0] ^= 0xFF
	parts[2] = base64.StdEncoding.EncodeToString(cipherBytes)

	if _, err := vault.Decrypt(strings.Join(parts, ".")); !errors.Is(err, portal.ErrValidation) {
		t.Fatalf("expected validation failure on tampered ciphertext, got %v", err)
	}
}

func TestMalformedEnvelopes(t *testing.T) {
	vault, _ := sessionvault.New("key")

	cases := map[string]string{
		"empty":         "",
		"two segments":  "aa.bb",
		"four segments": "aa.bb.cc.dd",
		"not base64":    "!!!.###.$$$",
		"short nonce":   base64.StdEncoding.EncodeToString([]byte("short")) + "." + base64.StdEncoding.EncodeToString(make([]byte, 16)) + "." + base64.StdEncoding.EncodeToString([]byte("x")),
		"short tag":     base64.StdEncoding.EncodeToString(make([]byte, 12)) + "." + base64.StdEncoding.EncodeToString([]byte("short")) + "." + base64.StdEncoding.EncodeToString([]byte("x")),
	}
	for name, envelope := range cases {
		if _, err := vault.Decrypt(envelope); !errors.Is(err, portal.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestEmptyPassphraseRejected(t *testing.T) {
	if _, err := sessionvault.New("  "); !errors.Is(err, portal.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
