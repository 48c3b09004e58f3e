package models

import (
	"errors"
	"testing"
)

func TestParsePermissionKind(t *testing.T) {
	testCases := []struct {
		raw      string
		wantKind ResourceKind
		wantErr  bool
	}{
		{"download:file", ResourceKindFile, false},
		{"download:tag", ResourceKindTag, false},
		{"download:folder", "", true},
		{"admin", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			kind, err := ParsePermissionKind(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidPermission) {
					t.Errorf("expected ErrInvalidPermission, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if kind.ResourceKind() != tc.wantKind {
				t.Errorf("expected resource kind %s, got %s", tc.wantKind, kind.ResourceKind())
			}
		})
	}
}

func TestReviewStatusTerminal(t *testing.T) {
	if ReviewStatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if !ReviewStatusApproved.Terminal() {
		t.Error("approved must be terminal")
	}
	if !ReviewStatusRejected.Terminal() {
		t.Error("rejected must be terminal")
	}
}

func TestResourceRefString(t *testing.T) {
	ref := ResourceRef{Kind: ResourceKindFile, ID: "abc123"}
	if got := ref.String(); got != "file/abc123" {
		t.Errorf("expected file/abc123, got %s", got)
	}
}
