package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"filestore-service/internal/database/mongo"
	"filestore-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodb "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type FileRepository struct {
	collection *mongodb.Collection
}

// NewFileRepository creates a new file repository
func NewFileRepository() *FileRepository {
	return &FileRepository{
		collection: mongo.GetCollection("files"),
	}
}

// Create saves new file metadata
func (r *FileRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	file.CreatedAt = time.Now()
	file.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, file)
	if err != nil {
		log.Printf("Error creating file: %v", err)
		return nil, err
	}

	file.ID = result.InsertedID.(bson.ObjectID)
	return file, nil
}

// GetByID retrieves a file by hex id.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: file %q", models.ErrNotFound, id)
	}

	var file models.File
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&file)
	if err != nil {
		if errors.Is(err, mongodb.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: file %s", models.ErrNotFound, id)
		}
		return nil, err
	}

	return &file, nil
}

// Update updates a file's metadata
func (r *FileRepository) Update(ctx context.Context, file *models.File) error {
	file.UpdatedAt = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": file.ID},
		bson.M{"$set": file},
	)
	return err
}

// Delete deletes a file by ID
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: file %q", models.ErrNotFound, id)
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}

// IncrementDownloadCount bumps the counter without touching updatedAt.
func (r *FileRepository) IncrementDownloadCount(ctx context.Context, id bson.ObjectID) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"downloadCount": 1}},
	)
	return err
}

// ListVisible pages through the files a user may see: public files, files
// granted directly, and files under a granted tag. An optional search term
// matches name or description.
func (r *FileRepository) ListVisible(ctx context.Context, fileIDs, tagIDs []bson.ObjectID, search string, page, pageSize int) ([]*models.File, int64, error) {
	visible := []bson.M{
		{"isPublic": true},
		{"_id": bson.M{"$in": fileIDs}},
		{"tagId": bson.M{"$in": tagIDs}},
	}

	filter := bson.M{"$or": visible}
	if search != "" {
		filter = bson.M{
			"$and": []bson.M{
				{"$or": visible},
				{"$or": []bson.M{
					{"name": bson.M{"$regex": search, "$options": "i"}},
					{"description": bson.M{"$regex": search, "$options": "i"}},
				}},
			},
		}
	}

	return r.page(ctx, filter, page, pageSize)
}

// ListAll pages through every file, for administrators.
func (r *FileRepository) ListAll(ctx context.Context, search string, page, pageSize int) ([]*models.File, int64, error) {
	filter := bson.M{}
	if search != "" {
		filter["$or"] = []bson.M{
			{"name": bson.M{"$regex": search, "$options": "i"}},
			{"description": bson.M{"$regex": search, "$options": "i"}},
		}
	}
	return r.page(ctx, filter, page, pageSize)
}

func (r *FileRepository) page(ctx context.Context, filter bson.M, page, pageSize int) ([]*models.File, int64, error) {
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if page > 0 && pageSize > 0 {
		opts.SetSkip(int64((page - 1) * pageSize))
		opts.SetLimit(int64(pageSize))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var files []*models.File
	if err = cursor.All(ctx, &files); err != nil {
		return nil, 0, err
	}

	return files, count, nil
}

// ClearTag detaches every file from a deleted tag.
func (r *FileRepository) ClearTag(ctx context.Context, tagID bson.ObjectID) error {
	_, err := r.collection.UpdateMany(
		ctx,
		bson.M{"tagId": tagID},
		bson.M{"$unset": bson.M{"tagId": ""}},
	)
	return err
}
