package crypto

import (
	"errors"
	"testing"
)

// 32 bytes, base64 encoded
const testKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	if err != nil {
		t.Fatalf("NewCredentialEncryptor: %v", err)
	}

	plaintext := `{"account":"acme-xy12345","password":"hunter2"}`
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plaintext {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc1, _ := NewCredentialEncryptor(testKey)
	enc2, _ := NewCredentialEncryptor("a completely different passphrase")

	ciphertext, _ := enc1.Encrypt("secret")
	if _, err := enc2.Decrypt(ciphertext); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestNewCredentialEncryptor_EmptyKey(t *testing.T) {
	if _, err := NewCredentialEncryptor(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestNewCredentialEncryptor_Passphrase(t *testing.T) {
	// Non-base64 input must be accepted and hashed to a usable key.
	enc, err := NewCredentialEncryptor("not base64 at all!")
	if err != nil {
		t.Fatalf("passphrase key rejected: %v", err)
	}
	ct, _ := enc.Encrypt("x")
	got, err := enc.Decrypt(ct)
	if err != nil || got != "x" {
		t.Errorf("passphrase round trip failed: %q %v", got, err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	enc, _ := NewCredentialEncryptor(testKey)

	config := map[string]any{
		"account":   "acme-xy12345",
		"user":      "ANALYST",
		"password":  "hunter2",
		"warehouse": "COMPUTE_WH",
	}

	encrypted, err := enc.EncryptConfig(config)
	if err != nil {
		t.Fatalf("EncryptConfig: %v", err)
	}

	got, err := enc.DecryptConfig(encrypted)
	if err != nil {
		t.Fatalf("DecryptConfig: %v", err)
	}
	if got["account"] != "acme-xy12345" || got["password"] != "hunter2" {
		t.Errorf("config round trip mismatch: %v", got)
	}
}

func TestEmptyStringsPassThrough(t *testing.T) {
	enc, _ := NewCredentialEncryptor(testKey)

	if ct, err := enc.Encrypt(""); err != nil || ct != "" {
		t.Errorf("empty encrypt: %q %v", ct, err)
	}
	if pt, err := enc.Decrypt(""); err != nil || pt != "" {
		t.Errorf("empty decrypt: %q %v", pt, err)
	}
}
