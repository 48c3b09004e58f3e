package service

import (
	"context"
	"testing"

	"filestore-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestCanDownload(t *testing.T) {
	grants := newFakeGrantStore()
	svc := &FileService{grants: grants}
	ctx := context.Background()

	publicFile := &models.File{ID: bson.NewObjectID(), Name: "public.txt", IsPublic: true}
	grantedFile := &models.File{ID: bson.NewObjectID(), Name: "granted.txt"}
	taggedFile := &models.File{ID: bson.NewObjectID(), Name: "tagged.txt", TagID: bson.NewObjectID()}
	privateFile := &models.File{ID: bson.NewObjectID(), Name: "private.txt"}

	if err := grants.Grant(ctx, "alice", models.PermissionDownloadFile, grantedFile.Ref(), "admin"); err != nil {
		t.Fatalf("seed grant failed: %v", err)
	}
	tagRef := models.ResourceRef{Kind: models.ResourceKindTag, ID: taggedFile.TagID.Hex()}
	if err := grants.Grant(ctx, "alice", models.PermissionDownloadTag, tagRef, "admin"); err != nil {
		t.Fatalf("seed tag grant failed: %v", err)
	}

	testCases := []struct {
		name    string
		subject string
		file    *models.File
		want    bool
	}{
		{"public file without login", "", publicFile, true},
		{"public file with login", "alice", publicFile, true},
		{"direct grant", "alice", grantedFile, true},
		{"grant through tag", "alice", taggedFile, true},
		{"no grant", "alice", privateFile, false},
		{"other subject", "bob", grantedFile, false},
		{"anonymous private file", "", privateFile, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.CanDownload(ctx, tc.subject, tc.file)
			if err != nil {
				t.Fatalf("CanDownload failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
