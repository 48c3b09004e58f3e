package models

import (
	"crypto/rand"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// File is the metadata for a file whose content lives in MinIO.
type File struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string        `bson:"name" json:"name"`
	Description   string        `bson:"description" json:"description"`
	Size          int64         `bson:"size" json:"size"`
	ContentType   string        `bson:"contentType" json:"contentType"`
	StoragePath   string        `bson:"storagePath" json:"storagePath"`
	BucketName    string        `bson:"bucketName" json:"bucketName"`
	IsPublic      bool          `bson:"isPublic" json:"isPublic"`
	Checksum      string        `bson:"checksum" json:"checksum"`
	DownloadCount int64         `bson:"downloadCount" json:"downloadCount"`
	TagID         bson.ObjectID `bson:"tagId,omitempty" json:"tagId,omitempty"`
	CreatedBy     string        `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	UpdatedBy     string        `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Ref returns the polymorphic reference used by the ACL store and the
// review ledger.
func (f *File) Ref() ResourceRef {
	return ResourceRef{Kind: ResourceKindFile, ID: f.ID.Hex()}
}

// Tag groups files so download permission can be granted on a whole group.
type Tag struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string        `bson:"name" json:"name"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt" json:"updatedAt"`
}

func (t *Tag) Ref() ResourceRef {
	return ResourceRef{Kind: ResourceKindTag, ID: t.ID.Hex()}
}

const linkCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	ShareLinkLength = 24
	ShareCodeLength = 4
)

// ShareLink is an anonymous download link for a single file, protected by a
// short code and an optional expiry in days. ValidDays < 1 means the link
// never expires.
type ShareLink struct {
	Link      string        `bson:"_id" json:"link"`
	Code      string        `bson:"code" json:"code"`
	ValidDays int           `bson:"validDays" json:"validDays"`
	FileID    bson.ObjectID `bson:"fileId" json:"fileId"`
	CreatedBy string        `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
}

func (s *ShareLink) IsExpired(now time.Time) bool {
	if s.CreatedAt.IsZero() || s.ValidDays < 1 {
		return false
	}
	return now.After(s.CreatedAt.AddDate(0, 0, s.ValidDays))
}

// RandomToken builds a random string over the share-link charset. Tokens are
// bearer credentials, so the bytes come from crypto/rand; modulo bias over a
// 62-character alphabet is negligible for this use.
func RandomToken(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic("models: crypto/rand unavailable: " + err.Error())
	}
	for i := range b {
		b[i] = linkCharset[int(b[i])%len(linkCharset)]
	}
	return string(b)
}
