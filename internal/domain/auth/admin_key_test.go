package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestHashAdminKeyRoundTrip(t *testing.T) {
	hash, err := HashAdminKey("swordfish")
	if err != nil {
		t.Fatalf("HashAdminKey failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected PHC format hash, got %q", hash)
	}

	match, err := VerifyAdminKey("swordfish", hash)
	if err != nil {
		t.Fatalf("VerifyAdminKey failed: %v", err)
	}
	if !match {
		t.Error("expected key to match its own hash")
	}

	match, err = VerifyAdminKey("not-the-key", hash)
	if err != nil {
		t.Fatalf("VerifyAdminKey failed: %v", err)
	}
	if match {
		t.Error("wrong key must not match")
	}
}

func TestVerifyAdminKeySHA256(t *testing.T) {
	sum := sha256.Sum256([]byte("legacy-key"))
	bareHex := hex.EncodeToString(sum[:])

	tests := []struct {
		name       string
		rawKey     string
		storedHash string
		wantMatch  bool
	}{
		{name: "bare hex match", rawKey: "legacy-key", storedHash: bareHex, wantMatch: true},
		{name: "prefixed match", rawKey: "legacy-key", storedHash: "sha256:" + bareHex, wantMatch: true},
		{name: "mismatch", rawKey: "other-key", storedHash: bareHex, wantMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := VerifyAdminKey(tt.rawKey, tt.storedHash)
			if err != nil {
				t.Fatalf("VerifyAdminKey failed: %v", err)
			}
			if match != tt.wantMatch {
				t.Errorf("match: got %v, want %v", match, tt.wantMatch)
			}
		})
	}
}

func TestVerifyAdminKeyUnknownFormat(t *testing.T) {
	_, err := VerifyAdminKey("key", "plain-text-secret")
	if !errors.Is(err, ErrUnknownHashType) {
		t.Errorf("expected ErrUnknownHashType, got %v", err)
	}
}

func TestVerifyAdminKeyMalformedArgon2idDoesNotPanic(t *testing.T) {
	// Zero rounds make the underlying library panic; it must come back
	// as an error.
	malformed := "$argon2id$v=19$m=47104,t=0,p=0$c29tZXNhbHQ$c29tZWhhc2g"
	match, err := VerifyAdminKey("key", malformed)
	if match {
		t.Error("malformed hash must not match")
	}
	if err == nil {
		t.Error("expected error for malformed hash")
	}
}

func TestDetectHashType(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   string
	}{
		{name: "argon2id", stored: "$argon2id$v=19$m=47104,t=1,p=1$abc$def", want: "argon2id"},
		{name: "prefixed sha256", stored: "sha256:" + strings.Repeat("ab", 32), want: "sha256"},
		{name: "bare sha256 hex", stored: strings.Repeat("ab", 32), want: "sha256"},
		{name: "too short hex", stored: "abcdef", want: "unknown"},
		{name: "not a hash", stored: "hello world", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectHashType(tt.stored); got != tt.want {
				t.Errorf("DetectHashType(%q) = %q, want %q", tt.stored, got, tt.want)
			}
		})
	}
}
