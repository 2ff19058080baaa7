package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashSecretRoundTrip(t *testing.T) {
	hash, err := HashSecret("correct horse battery")
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=2,p=1$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if !VerifySecret(hash, "correct horse battery") {
		t.Fatal("expected secret to verify")
	}
	if VerifySecret(hash, "correct horse battery!") {
		t.Fatal("expected wrong secret to fail")
	}

	other, err := HashSecret("correct horse battery")
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	if other == hash {
		t.Fatal("expected distinct salts")
	}
}

func TestHashSecretRejectsShort(t *testing.T) {
	if _, err := HashSecret("short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestVerifySecretLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if !VerifySecret(string(legacy), "legacy-secret") {
		t.Fatal("expected bcrypt hash to verify")
	}
	if !needsRehash(string(legacy)) {
		t.Fatal("expected bcrypt hash to need rehash")
	}
}

func TestVerifySecretMalformed(t *testing.T) {
	for _, h := range []string{"", "plain", "$argon2id$v=19$bad", "$argon2id$v=18$m=1,t=1,p=1$AAAA$AAAA"} {
		if VerifySecret(h, "whatever-secret") {
			t.Fatalf("malformed hash %q verified", h)
		}
	}
}
