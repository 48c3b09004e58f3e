package models

import "errors"

var (
	// ErrNotFound reports that a referenced request, user, or resource does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPermission reports a permission string outside the closed
	// PermissionKind enumeration, or one whose resource kind does not match
	// the referenced object.
	ErrInvalidPermission = errors.New("invalid permission")

	// ErrAccessDenied reports that the subject holds no grant covering the
	// resource. The client may escalate by requesting a review.
	ErrAccessDenied = errors.New("access denied")

	// ErrStoreUnavailable reports a persistent-store timeout or connection
	// failure. Operations are idempotent at the request level, so callers
	// may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)
