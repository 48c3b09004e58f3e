package service

import (
	"context"
	"log"

	"filestore-service/internal/models"
	"filestore-service/internal/repository"
)

// TagService manages the groups files can be bundled into. Granting the
// download permission on a tag covers every file under it.
type TagService struct {
	tagRepository  *repository.TagRepository
	fileRepository *repository.FileRepository
	grants         GrantStore
}

func NewTagService(tagRepo *repository.TagRepository, fileRepo *repository.FileRepository, grants GrantStore) *TagService {
	return &TagService{
		tagRepository:  tagRepo,
		fileRepository: fileRepo,
		grants:         grants,
	}
}

func (s *TagService) Create(ctx context.Context, name string) (*models.Tag, error) {
	return s.tagRepository.Create(ctx, &models.Tag{Name: name})
}

func (s *TagService) Get(ctx context.Context, id string) (*models.Tag, error) {
	return s.tagRepository.GetByID(ctx, id)
}

func (s *TagService) List(ctx context.Context, search string) ([]*models.Tag, error) {
	return s.tagRepository.List(ctx, search)
}

func (s *TagService) Rename(ctx context.Context, id, name string) (*models.Tag, error) {
	tag, err := s.tagRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tag.Name = name
	if err := s.tagRepository.Update(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// Delete removes the tag, detaches its files, and drops every grant that
// pointed at it so no subject keeps reach through a dead group.
func (s *TagService) Delete(ctx context.Context, id string) error {
	tag, err := s.tagRepository.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.fileRepository.ClearTag(ctx, tag.ID); err != nil {
		return err
	}

	if err := s.tagRepository.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.grants.RevokeAllForResource(ctx, tag.Ref()); err != nil {
		log.Printf("Failed to revoke grants on deleted tag %s: %v", id, err)
	}
	return nil
}
