package utils

import "testing"

func TestIsValidEmail(t *testing.T) {
	v := NewValidators()

	valid := []string{"user@example.com", "first.last@sub.domain.org"}
	for _, email := range valid {
		if !v.IsValidEmail(email) {
			t.Errorf("expected %q to be valid", email)
		}
	}

	invalid := []string{"not-an-email", "@example.com", ""}
	for _, email := range invalid {
		if v.IsValidEmail(email) {
			t.Errorf("expected %q to be invalid", email)
		}
	}
}

func TestIsValidUsername(t *testing.T) {
	v := NewValidators()

	if !v.IsValidUsername("alice_doe-1") {
		t.Error("expected alice_doe-1 to be valid")
	}
	if v.IsValidUsername("ab") {
		t.Error("expected a two character username to be invalid")
	}
	if v.IsValidUsername("has spaces") {
		t.Error("expected a username with spaces to be invalid")
	}
}

func TestIsValidFilename(t *testing.T) {
	v := NewValidators()

	if !v.IsValidFilename("report 2026.pdf") {
		t.Error("expected plain filename to be valid")
	}
	if v.IsValidFilename("../etc/passwd") {
		t.Error("expected path traversal to be invalid")
	}
	if v.IsValidFilename("pipe|name") {
		t.Error("expected pipe character to be invalid")
	}
}
