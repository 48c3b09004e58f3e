package repository

import (
	"context"

	"filestore-service/internal/database/mongo"
	"filestore-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodb "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type OperationLogRepository struct {
	collection *mongodb.Collection
}

func NewOperationLogRepository() *OperationLogRepository {
	return &OperationLogRepository{
		collection: mongo.GetCollection("operation_logs"),
	}
}

func (r *OperationLogRepository) Insert(ctx context.Context, entry *models.OperationLog) error {
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

func (r *OperationLogRepository) List(ctx context.Context, operator string, page, limit int) ([]*models.OperationLog, int64, error) {
	filter := bson.M{}
	if operator != "" {
		filter["operator"] = operator
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.M{"actionTime": -1})
	if page > 0 && limit > 0 {
		opts.SetSkip(int64((page - 1) * limit))
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var entries []*models.OperationLog
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, count, nil
}
