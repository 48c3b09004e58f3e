package models

import (
	"fmt"
	"time"
)

type ResourceKind string

const (
	ResourceKindFile ResourceKind = "file"
	ResourceKindTag  ResourceKind = "tag"
)

// PermissionKind is the closed set of per-object capabilities the service
// knows about. Each kind is bound to exactly one resource kind, so a grant
// can never point at the wrong collection.
type PermissionKind string

const (
	PermissionDownloadFile PermissionKind = "download:file"
	PermissionDownloadTag  PermissionKind = "download:tag"
)

var permissionKinds = map[PermissionKind]ResourceKind{
	PermissionDownloadFile: ResourceKindFile,
	PermissionDownloadTag:  ResourceKindTag,
}

// ParsePermissionKind validates a raw permission string against the closed
// enumeration.
func ParsePermissionKind(raw string) (PermissionKind, error) {
	kind := PermissionKind(raw)
	if _, ok := permissionKinds[kind]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPermission, raw)
	}
	return kind, nil
}

// ResourceKind returns the resource kind this permission applies to.
func (p PermissionKind) ResourceKind() ResourceKind {
	return permissionKinds[p]
}

func (p PermissionKind) Valid() bool {
	_, ok := permissionKinds[p]
	return ok
}

// ResourceRef points at a concrete domain object (file, tag). The kind tag
// tells the resource directory which resolver can load it.
type ResourceRef struct {
	Kind ResourceKind `bson:"kind" json:"kind"`
	ID   string       `bson:"id" json:"id"`
}

func (r ResourceRef) String() string {
	return string(r.Kind) + "/" + r.ID
}

// Grant records that a subject holds a permission on one object. At most one
// grant exists per (subject, permission, resource) triple; the repository
// enforces this with an upsert keyed on the triple.
type Grant struct {
	SubjectID  string         `bson:"subjectId" json:"subjectId"`
	Permission PermissionKind `bson:"permission" json:"permission"`
	Resource   ResourceRef    `bson:"resource" json:"resource"`
	GrantedBy  string         `bson:"grantedBy,omitempty" json:"grantedBy,omitempty"`
	GrantedAt  time.Time      `bson:"grantedAt" json:"grantedAt"`
}
