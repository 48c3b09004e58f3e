package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"filestore-service/internal/database/redis"
	"filestore-service/internal/models"

	redis_v9 "github.com/redis/go-redis/v9"
)

const (
	verificationCodePrefix = "verification-code:"
	maintenanceKey         = "filestore:maintenance"
)

type RedisRepo struct {
	client *redis_v9.Client
}

func NewRedisRepo() *RedisRepo {
	return &RedisRepo{
		client: redis.Client,
	}
}

func (r *RedisRepo) SaveStructCached(ctx context.Context, key string, model any, expiry time.Duration) error {
	val, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("error saving struct to cache: %w", err)
	}
	if err := r.client.Set(ctx, key, val, expiry).Err(); err != nil {
		return fmt.Errorf("error saving struct to cache: %w", err)
	}
	return nil
}

func (r *RedisRepo) GetStructCached(ctx context.Context, key string, model any) error {
	coded, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis_v9.Nil) {
			return fmt.Errorf("%w: cache key %s", models.ErrNotFound, key)
		}
		return fmt.Errorf("error getting struct from cache: %w", err)
	}
	return json.Unmarshal(coded, model)
}

func (r *RedisRepo) DeleteKey(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("error deleting key %s: %w", key, err)
	}
	return nil
}

// SaveVerificationCode stores a password-reset code for one hour.
func (r *RedisRepo) SaveVerificationCode(ctx context.Context, code *models.VerificationCode) error {
	return r.SaveStructCached(ctx, verificationCodePrefix+code.UserID, code, time.Hour)
}

func (r *RedisRepo) GetVerificationCode(ctx context.Context, userID string) (*models.VerificationCode, error) {
	var code models.VerificationCode
	if err := r.GetStructCached(ctx, verificationCodePrefix+userID, &code); err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *RedisRepo) DeleteVerificationCode(ctx context.Context, userID string) error {
	return r.DeleteKey(ctx, verificationCodePrefix+userID)
}

// SetMaintenance raises or clears the maintenance flag. The flag has no TTL;
// it stays up until an administrator clears it.
func (r *RedisRepo) SetMaintenance(ctx context.Context, enabled bool) error {
	if !enabled {
		return r.DeleteKey(ctx, maintenanceKey)
	}
	if err := r.client.Set(ctx, maintenanceKey, "1", 0).Err(); err != nil {
		return fmt.Errorf("error setting maintenance flag: %w", err)
	}
	return nil
}

func (r *RedisRepo) InMaintenance(ctx context.Context) (bool, error) {
	if err := r.client.Get(ctx, maintenanceKey).Err(); err != nil {
		if errors.Is(err, redis_v9.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("error reading maintenance flag: %w", err)
	}
	return true, nil
}
