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

type TagRepository struct {
	collection *mongodb.Collection
}

func NewTagRepository() *TagRepository {
	return &TagRepository{
		collection: mongo.GetCollection("tags"),
	}
}

func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	tag.CreatedAt = time.Now()
	tag.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tag: %w", err)
	}

	tag.ID = result.InsertedID.(bson.ObjectID)
	return tag, nil
}

func (r *TagRepository) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: tag %q", models.ErrNotFound, id)
	}

	var tag models.Tag
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&tag)
	if err != nil {
		if errors.Is(err, mongodb.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: tag %s", models.ErrNotFound, id)
		}
		return nil, err
	}
	return &tag, nil
}

func (r *TagRepository) Update(ctx context.Context, tag *models.Tag) error {
	tag.UpdatedAt = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": tag.ID}, bson.M{"$set": tag})
	return err
}

func (r *TagRepository) Delete(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: tag %q", models.ErrNotFound, id)
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}

func (r *TagRepository) List(ctx context.Context, search string) ([]*models.Tag, error) {
	filter := bson.M{}
	if search != "" {
		filter["name"] = bson.M{"$regex": search, "$options": "i"}
	}

	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tags []*models.Tag
	if err = cursor.All(ctx, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
