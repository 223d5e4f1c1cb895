package utils

import (
	"strings"
	"testing"
)

func TestGenerateCredentialCode(t *testing.T) {
	code := GenerateCredentialCode("TL")

	if !strings.HasPrefix(code, "TL-") {
		t.Errorf("Expected code to start with TL-, got %s", code)
	}

	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		t.Fatalf("Expected prefix-random-date format, got %s", code)
	}
	if len(parts[1]) != 8 {
		t.Errorf("Expected 8 hex characters, got %q", parts[1])
	}

	if GenerateCredentialCode("TL") == code {
		t.Error("Two generated codes should not collide")
	}
}

func TestGeneratePassword(t *testing.T) {
	password := GeneratePassword(12)
	if len(password) != 12 {
		t.Errorf("Expected 12 characters, got %d", len(password))
	}

	for _, c := range password {
		if !strings.ContainsRune(passwordAlphabet, c) {
			t.Errorf("Character %q outside the allowed alphabet", c)
		}
	}

	// Non-positive lengths fall back to the default.
	if len(GeneratePassword(0)) != 12 {
		t.Error("Expected default length for zero")
	}
}
