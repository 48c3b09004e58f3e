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

type ShareLinkRepository struct {
	collection *mongodb.Collection
}

func NewShareLinkRepository() *ShareLinkRepository {
	return &ShareLinkRepository{
		collection: mongo.GetCollection("share_links"),
	}
}

// Create inserts a link, retrying with a fresh token on the unlikely key
// collision.
func (r *ShareLinkRepository) Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error) {
	link.CreatedAt = time.Now()

	for attempt := 0; attempt < 3; attempt++ {
		if link.Link == "" {
			link.Link = models.RandomToken(models.ShareLinkLength)
		}
		if link.Code == "" {
			link.Code = models.RandomToken(models.ShareCodeLength)
		}

		_, err := r.collection.InsertOne(ctx, link)
		if err == nil {
			return link, nil
		}
		if mongodb.IsDuplicateKeyError(err) {
			link.Link = ""
			continue
		}
		return nil, fmt.Errorf("failed to insert share link: %w", err)
	}

	return nil, errors.New("could not allocate a unique share link")
}

func (r *ShareLinkRepository) GetByLink(ctx context.Context, token string) (*models.ShareLink, error) {
	var link models.ShareLink
	err := r.collection.FindOne(ctx, bson.M{"_id": token}).Decode(&link)
	if err != nil {
		if errors.Is(err, mongodb.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: share link", models.ErrNotFound)
		}
		return nil, err
	}
	return &link, nil
}

func (r *ShareLinkRepository) Delete(ctx context.Context, token string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": token})
	return err
}

// DeleteByFile drops every link pointing at a deleted file.
func (r *ShareLinkRepository) DeleteByFile(ctx context.Context, fileID bson.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"fileId": fileID})
	return err
}

func (r *ShareLinkRepository) List(ctx context.Context, page, pageSize int) ([]*models.ShareLink, int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if page > 0 && pageSize > 0 {
		opts.SetSkip(int64((page - 1) * pageSize))
		opts.SetLimit(int64(pageSize))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var links []*models.ShareLink
	if err = cursor.All(ctx, &links); err != nil {
		return nil, 0, err
	}
	return links, count, nil
}
