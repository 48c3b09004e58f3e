package service

import (
	"context"
	"fmt"

	"filestore-service/internal/models"
	"filestore-service/internal/repository"
)

// ResourceResolver loads the display name of one kind of domain object.
// Resolving an unknown id returns models.ErrNotFound.
type ResourceResolver interface {
	DisplayName(ctx context.Context, id string) (string, error)
}

// ResourceDirectory dispatches a ResourceRef to the resolver for its kind.
// The review workflow uses it to verify that a requested resource exists and
// to name it in notification mail.
type ResourceDirectory struct {
	resolvers map[models.ResourceKind]ResourceResolver
}

func NewResourceDirectory(fileRepo *repository.FileRepository, tagRepo *repository.TagRepository) *ResourceDirectory {
	return &ResourceDirectory{
		resolvers: map[models.ResourceKind]ResourceResolver{
			models.ResourceKindFile: fileResolver{repo: fileRepo},
			models.ResourceKindTag:  tagResolver{repo: tagRepo},
		},
	}
}

// Resolve returns the display name of the referenced object.
func (d *ResourceDirectory) Resolve(ctx context.Context, ref models.ResourceRef) (string, error) {
	resolver, ok := d.resolvers[ref.Kind]
	if !ok {
		return "", fmt.Errorf("%w: no resolver for resource kind %q", models.ErrInvalidPermission, ref.Kind)
	}
	return resolver.DisplayName(ctx, ref.ID)
}

type fileResolver struct {
	repo *repository.FileRepository
}

func (r fileResolver) DisplayName(ctx context.Context, id string) (string, error) {
	file, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return file.Name, nil
}

type tagResolver struct {
	repo *repository.TagRepository
}

func (r tagResolver) DisplayName(ctx context.Context, id string) (string, error) {
	tag, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return tag.Name, nil
}

// IdentityResolver loads the account behind a subject id, used to address
// decision mail and to name requesters in admin notifications.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (*models.UserAccount, error)
}

type userDirectory struct {
	repo *repository.UserRepository
}

func NewIdentityResolver(repo *repository.UserRepository) IdentityResolver {
	return userDirectory{repo: repo}
}

func (d userDirectory) Resolve(ctx context.Context, userID string) (*models.UserAccount, error) {
	return d.repo.FindByID(ctx, userID)
}
