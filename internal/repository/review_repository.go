package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filestore-service/internal/database/mongo"
	"filestore-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodb "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ReviewRepository is the durable ledger of permission review requests.
// Rows are never deleted; a decided row is the audit trail for the grant or
// denial it produced.
type ReviewRepository struct {
	collection *mongodb.Collection
}

func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{
		collection: mongo.GetCollection("perm_reviews"),
	}
}

// CreatePending returns the pending request for
// (requester, permission, resource), inserting it when absent. The upsert is
// a single atomic operation, so two racing requesters end up sharing one
// row. The second return value reports whether this call created the row.
func (r *ReviewRepository) CreatePending(ctx context.Context, requester string, permission models.PermissionKind, resource models.ResourceRef) (*models.ReviewRequest, bool, error) {
	candidateID := bson.NewObjectID()
	now := time.Now()

	filter := bson.M{
		"requesterId":   requester,
		"permission":    permission,
		"resource.kind": resource.Kind,
		"resource.id":   resource.ID,
		"status":        models.ReviewStatusPending,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":         candidateID,
			"requesterId": requester,
			"permission":  permission,
			"resource":    resource,
			"status":      models.ReviewStatusPending,
			"createdAt":   now,
			"updatedAt":   now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var request models.ReviewRequest
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&request); err != nil {
		return nil, false, fmt.Errorf("failed to upsert pending review: %w", err)
	}

	return &request, request.ID == candidateID, nil
}

// FindByID loads a request by hex id.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.ReviewRequest, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: review request %q", models.ErrNotFound, id)
	}

	var request models.ReviewRequest
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongodb.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: review request %s", models.ErrNotFound, id)
		}
		return nil, err
	}
	return &request, nil
}

// Decide moves a pending request into a terminal status with a conditional
// update keyed on status == pending. Exactly one of two racing deciders wins;
// the loser gets decided=false and the already-final row.
func (r *ReviewRepository) Decide(ctx context.Context, id string, reviewer string, status models.ReviewStatus) (*models.ReviewRequest, bool, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, false, fmt.Errorf("%w: review request %q", models.ErrNotFound, id)
	}

	filter := bson.M{"_id": objectID, "status": models.ReviewStatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"reviewerId": reviewer,
			"updatedAt":  time.Now(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var request models.ReviewRequest
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&request)
	if err == nil {
		return &request, true, nil
	}
	if !errors.Is(err, mongodb.ErrNoDocuments) {
		return nil, false, err
	}

	// No pending row with that id: either already decided or unknown.
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Reopen puts a decided row back to pending. It exists only as compensation
// for a failed ACL write after a won Decide, so the caller can retry.
func (r *ReviewRepository) Reopen(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: review request %q", models.ErrNotFound, id)
	}

	update := bson.M{
		"$set":   bson.M{"status": models.ReviewStatusPending, "updatedAt": time.Now()},
		"$unset": bson.M{"reviewerId": ""},
	}
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	return err
}

// ListByStatus pages through the ledger, newest first. An empty status
// matches every row.
func (r *ReviewRepository) ListByStatus(ctx context.Context, status models.ReviewStatus, page, limit int) ([]*models.ReviewRequest, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if page > 0 && limit > 0 {
		opts.SetSkip(int64((page - 1) * limit))
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var requests []*models.ReviewRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, 0, err
	}

	return requests, count, nil
}
