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

type UserRepository struct {
	collection *mongodb.Collection
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		collection: mongo.GetCollection("users"),
	}
}

func (r *UserRepository) Create(ctx context.Context, user *models.UserAccount) (*models.UserAccount, error) {
	existing := r.collection.FindOne(ctx, bson.M{"email": user.Email})
	if err := existing.Err(); err == nil {
		return nil, fmt.Errorf("account with email %s already exists", user.Email)
	} else if !errors.Is(err, mongodb.ErrNoDocuments) {
		return nil, fmt.Errorf("error checking existing account: %w", err)
	}

	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.UserAccount, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: user %q", models.ErrNotFound, id)
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.UserAccount, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.UserAccount, error) {
	var user models.UserAccount
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongodb.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: user", models.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(ctx context.Context, user *models.UserAccount) error {
	user.UpdatedAt = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": user})
	return err
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: user %q", models.ErrNotFound, id)
	}
	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}

func (r *UserRepository) List(ctx context.Context, page, limit int) ([]*models.UserAccount, int64, error) {
	filter := bson.M{}

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

	var users []*models.UserAccount
	if err = cursor.All(ctx, &users); err != nil {
		return nil, 0, err
	}
	return users, count, nil
}
