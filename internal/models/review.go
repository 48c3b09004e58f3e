package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Terminal reports whether the status can never change again.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewStatusApproved || s == ReviewStatusRejected
}

// ReviewRequest is one row of the permission review ledger. Rows are created
// by a denied resource access that the requester escalated, decided exactly
// once by an administrator, and kept forever as an audit trail.
//
// At most one pending row exists per (requester, permission, resource)
// tuple; ReviewerID stays empty while the row is pending.
type ReviewRequest struct {
	ID          bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	Permission  PermissionKind `bson:"permission" json:"permission"`
	Resource    ResourceRef    `bson:"resource" json:"resource"`
	RequesterID string         `bson:"requesterId" json:"requesterId"`
	ReviewerID  string         `bson:"reviewerId,omitempty" json:"reviewerId,omitempty"`
	Status      ReviewStatus   `bson:"status" json:"status"`
	CreatedAt   time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time      `bson:"updatedAt" json:"updatedAt"`
}
