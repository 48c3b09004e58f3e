package repository

import (
	"context"
	"errors"
	"time"

	"filestore-service/internal/database/mongo"
	"filestore-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodb "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// GrantRepository is the ACL store: one document per
// (subject, permission, resource) triple. Grant and Revoke are idempotent,
// so concurrent writers on the same triple converge on operation order
// without partial state.
type GrantRepository struct {
	collection *mongodb.Collection
}

func NewGrantRepository() *GrantRepository {
	return &GrantRepository{
		collection: mongo.GetCollection("grants"),
	}
}

func grantFilter(subject string, permission models.PermissionKind, resource models.ResourceRef) bson.M {
	return bson.M{
		"subjectId":     subject,
		"permission":    permission,
		"resource.kind": resource.Kind,
		"resource.id":   resource.ID,
	}
}

// Grant inserts the triple if absent. Re-asserting an existing grant is a
// no-op; the original grantedBy/grantedAt are kept.
func (r *GrantRepository) Grant(ctx context.Context, subject string, permission models.PermissionKind, resource models.ResourceRef, grantedBy string) error {
	update := bson.M{
		"$setOnInsert": bson.M{
			"subjectId":  subject,
			"permission": permission,
			"resource":   resource,
			"grantedBy":  grantedBy,
			"grantedAt":  time.Now(),
		},
	}

	opts := options.UpdateOne().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, grantFilter(subject, permission, resource), update, opts)
	return err
}

// Revoke deletes the triple. Revoking an absent grant is a no-op.
func (r *GrantRepository) Revoke(ctx context.Context, subject string, permission models.PermissionKind, resource models.ResourceRef) error {
	_, err := r.collection.DeleteOne(ctx, grantFilter(subject, permission, resource))
	return err
}

// Has reports whether the subject holds the permission on the resource.
func (r *GrantRepository) Has(ctx context.Context, subject string, permission models.PermissionKind, resource models.ResourceRef) (bool, error) {
	err := r.collection.FindOne(ctx, grantFilter(subject, permission, resource)).Err()
	if err != nil {
		if errors.Is(err, mongodb.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListResources returns every resource the subject holds the permission on.
func (r *GrantRepository) ListResources(ctx context.Context, subject string, permission models.PermissionKind) ([]models.ResourceRef, error) {
	filter := bson.M{"subjectId": subject, "permission": permission}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []models.Grant
	if err = cursor.All(ctx, &grants); err != nil {
		return nil, err
	}

	refs := make([]models.ResourceRef, len(grants))
	for i, g := range grants {
		refs[i] = g.Resource
	}
	return refs, nil
}

// ListSubjects returns every subject currently holding the permission on the
// resource.
func (r *GrantRepository) ListSubjects(ctx context.Context, permission models.PermissionKind, resource models.ResourceRef) ([]string, error) {
	filter := bson.M{
		"permission":    permission,
		"resource.kind": resource.Kind,
		"resource.id":   resource.ID,
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []models.Grant
	if err = cursor.All(ctx, &grants); err != nil {
		return nil, err
	}

	subjects := make([]string, len(grants))
	for i, g := range grants {
		subjects[i] = g.SubjectID
	}
	return subjects, nil
}

// ListBySubjects returns every grant of the permission, for admin auditing.
func (r *GrantRepository) ListBySubjects(ctx context.Context, permission models.PermissionKind) ([]models.Grant, error) {
	opts := options.Find().SetSort(bson.M{"subjectId": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"permission": permission}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []models.Grant
	if err = cursor.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

// RevokeAllForSubject drops every grant held by the subject, used when the
// account is removed.
func (r *GrantRepository) RevokeAllForSubject(ctx context.Context, subject string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"subjectId": subject})
	return err
}

// RevokeAllForResource drops every grant on the resource, used when the
// resource is deleted.
func (r *GrantRepository) RevokeAllForResource(ctx context.Context, resource models.ResourceRef) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{
		"resource.kind": resource.Kind,
		"resource.id":   resource.ID,
	})
	return err
}
