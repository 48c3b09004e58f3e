package models

import (
	"strings"
	"testing"
	"time"
)

func TestShareLinkIsExpired(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name      string
		createdAt time.Time
		validDays int
		want      bool
	}{
		{"no expiry", now.AddDate(0, 0, -100), 0, false},
		{"negative valid days", now.AddDate(0, 0, -100), -1, false},
		{"still valid", now.AddDate(0, 0, -2), 7, false},
		{"expired", now.AddDate(0, 0, -8), 7, true},
		{"expires today", now.AddDate(0, 0, -7), 7, false},
		{"zero created at", time.Time{}, 7, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			link := &ShareLink{CreatedAt: tc.createdAt, ValidDays: tc.validDays}
			if got := link.IsExpired(now); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRandomToken(t *testing.T) {
	token := RandomToken(ShareLinkLength)
	if len(token) != ShareLinkLength {
		t.Errorf("expected length %d, got %d", ShareLinkLength, len(token))
	}
	for _, c := range token {
		if !strings.ContainsRune(linkCharset, c) {
			t.Errorf("token contains character outside charset: %q", c)
		}
	}

	// Two tokens colliding would make share links guessable.
	if RandomToken(ShareLinkLength) == RandomToken(ShareLinkLength) {
		t.Error("expected distinct tokens")
	}
}

func TestVerificationCodeIsExpired(t *testing.T) {
	now := time.Now()

	code := NewVerificationCode("user-1")
	if len(code.Code) != 6 {
		t.Errorf("expected a six digit code, got %q", code.Code)
	}
	for _, c := range code.Code {
		if c < '0' || c > '9' {
			t.Errorf("code contains a non-digit: %q", code.Code)
		}
	}
	if code.IsExpired(now) {
		t.Error("fresh code must not be expired")
	}

	stale := &VerificationCode{Code: "123456", UserID: "user-1", IssuedAt: now.Add(-2 * time.Hour)}
	if !stale.IsExpired(now) {
		t.Error("two hour old code must be expired")
	}
}
