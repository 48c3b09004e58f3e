package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"filestore-service/internal/database/minio"
	"filestore-service/internal/models"
	"filestore-service/internal/repository"

	miniogh "github.com/minio/minio-go/v7"
)

// ShareLinkService issues anonymous download links for single files. A link
// bypasses the ACL entirely: whoever holds the token and the code can
// download the file until the link expires.
type ShareLinkService struct {
	shareLinkRepo  *repository.ShareLinkRepository
	fileRepository *repository.FileRepository
}

func NewShareLinkService(shareLinkRepo *repository.ShareLinkRepository, fileRepo *repository.FileRepository) *ShareLinkService {
	return &ShareLinkService{
		shareLinkRepo:  shareLinkRepo,
		fileRepository: fileRepo,
	}
}

// Create issues a link for the file. validDays < 1 means the link never
// expires.
func (s *ShareLinkService) Create(ctx context.Context, actorID, fileID string, validDays int) (*models.ShareLink, error) {
	file, err := s.fileRepository.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	link := &models.ShareLink{
		ValidDays: validDays,
		FileID:    file.ID,
		CreatedBy: actorID,
	}
	return s.shareLinkRepo.Create(ctx, link)
}

// Resolve validates the token and code and opens the shared file. Expired
// links are deleted on sight.
func (s *ShareLinkService) Resolve(ctx context.Context, token, code string) (*miniogh.Object, *models.File, error) {
	link, err := s.shareLinkRepo.GetByLink(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	if link.IsExpired(time.Now()) {
		if err := s.shareLinkRepo.Delete(ctx, token); err != nil {
			log.Printf("Failed to delete expired share link %s: %v", token, err)
		}
		return nil, nil, fmt.Errorf("%w: share link expired", models.ErrNotFound)
	}

	if link.Code != code {
		return nil, nil, fmt.Errorf("%w: wrong share code", models.ErrAccessDenied)
	}

	file, err := s.fileRepository.GetByID(ctx, link.FileID.Hex())
	if err != nil {
		return nil, nil, err
	}

	object, err := minio.GetFile(ctx, file.BucketName, file.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("error retrieving file from storage: %w", err)
	}

	if err := s.fileRepository.IncrementDownloadCount(ctx, file.ID); err != nil {
		log.Printf("Failed to increment download count for shared file %s: %v", file.ID.Hex(), err)
	}

	return object, file, nil
}

func (s *ShareLinkService) Delete(ctx context.Context, token string) error {
	return s.shareLinkRepo.Delete(ctx, token)
}

func (s *ShareLinkService) List(ctx context.Context, page, pageSize int) ([]*models.ShareLink, int64, error) {
	return s.shareLinkRepo.List(ctx, page, pageSize)
}
