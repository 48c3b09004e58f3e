package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"time"

	"filestore-service/internal/config"
	"filestore-service/internal/database/minio"
	"filestore-service/internal/events"
	"filestore-service/internal/models"
	"filestore-service/internal/repository"
	"filestore-service/pkg/utils"

	miniogh "github.com/minio/minio-go/v7"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const fileCacheTTL = 10 * time.Minute

// FileService stores file content in MinIO and metadata in MongoDB, and
// answers the visibility question: a subject sees the public files, the
// files granted directly, and the files under a granted tag.
type FileService struct {
	fileRepository  *repository.FileRepository
	shareLinkRepo   *repository.ShareLinkRepository
	grants          GrantStore
	cache           *repository.RedisRepo
	eventPublisher  events.Publisher
	contentDetector *utils.ContentTypeDetector
	config          *config.Config
}

func NewFileService(
	fileRepo *repository.FileRepository,
	shareLinkRepo *repository.ShareLinkRepository,
	grants GrantStore,
	cache *repository.RedisRepo,
	eventPublisher events.Publisher,
	cfg *config.Config,
) *FileService {
	return &FileService{
		fileRepository:  fileRepo,
		shareLinkRepo:   shareLinkRepo,
		grants:          grants,
		cache:           cache,
		eventPublisher:  eventPublisher,
		contentDetector: utils.NewContentTypeDetector(),
		config:          cfg,
	}
}

func fileCacheKey(id string) string {
	return "file:" + id
}

// Upload streams the file into MinIO while computing its MD5 checksum, then
// records the metadata.
func (s *FileService) Upload(ctx context.Context, fileHeader *multipart.FileHeader, actorID, description string, isPublic bool, tagID string) (*models.File, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer src.Close()

	var tagObjectID bson.ObjectID
	if tagID != "" {
		tagObjectID, err = bson.ObjectIDFromHex(tagID)
		if err != nil {
			return nil, fmt.Errorf("%w: tag %s", models.ErrNotFound, tagID)
		}
	}

	hashingReader := utils.NewMD5Reader(src)

	objectName := fmt.Sprintf("%s/%d%s", actorID, time.Now().UnixNano(), filepath.Ext(fileHeader.Filename))
	contentType := s.contentDetector.DetectContentTypeFromExtension(fileHeader.Filename)

	bucket := s.config.MinIO.FileBucket
	info, err := minio.UploadFileStream(ctx, bucket, objectName, hashingReader, fileHeader.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("error uploading file to storage: %w", err)
	}

	file := &models.File{
		Name:        fileHeader.Filename,
		Description: description,
		Size:        info.Size,
		ContentType: contentType,
		StoragePath: objectName,
		BucketName:  bucket,
		IsPublic:    isPublic,
		Checksum:    hashingReader.Checksum(),
		TagID:       tagObjectID,
		CreatedBy:   actorID,
		UpdatedBy:   actorID,
	}

	file, err = s.fileRepository.Create(ctx, file)
	if err != nil {
		// Metadata write failed; do not leave an orphaned object behind.
		if cleanupErr := minio.DeleteFile(ctx, bucket, objectName); cleanupErr != nil {
			log.Printf("Failed to clean up object %s after metadata failure: %v", objectName, cleanupErr)
		}
		return nil, err
	}

	event := events.NewFileEvent(events.EventTypeFileUploaded, file.ID.Hex(), actorID, file.Name, file.Size, file.IsPublic)
	if err := s.eventPublisher.PublishFileEvent(ctx, event); err != nil {
		log.Printf("Failed to publish file uploaded event: %v", err)
	}

	return file, nil
}

// Get loads file metadata, trying the cache first.
func (s *FileService) Get(ctx context.Context, id string) (*models.File, error) {
	var cached models.File
	if err := s.cache.GetStructCached(ctx, fileCacheKey(id), &cached); err == nil {
		return &cached, nil
	}

	file, err := s.fileRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SaveStructCached(ctx, fileCacheKey(id), file, fileCacheTTL); err != nil {
		log.Printf("Failed to cache file %s: %v", id, err)
	}
	return file, nil
}

// CanDownload reports whether the subject may download the file: it is
// public, the subject holds a direct grant on it, or the subject holds a
// grant on its tag.
func (s *FileService) CanDownload(ctx context.Context, subject string, file *models.File) (bool, error) {
	if file.IsPublic {
		return true, nil
	}
	if subject == "" {
		return false, nil
	}

	ok, err := s.grants.Has(ctx, subject, models.PermissionDownloadFile, file.Ref())
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	if file.TagID.IsZero() {
		return false, nil
	}
	tagRef := models.ResourceRef{Kind: models.ResourceKindTag, ID: file.TagID.Hex()}
	return s.grants.Has(ctx, subject, models.PermissionDownloadTag, tagRef)
}

// Download opens the file content for an authorized subject and bumps the
// download counter. An unauthorized subject gets ErrAccessDenied and may
// escalate through the review workflow.
func (s *FileService) Download(ctx context.Context, subject, id string) (*miniogh.Object, *models.File, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	allowed, err := s.CanDownload(ctx, subject, file)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		return nil, nil, fmt.Errorf("%w: file %s", models.ErrAccessDenied, id)
	}

	object, err := minio.GetFile(ctx, file.BucketName, file.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("error retrieving file from storage: %w", err)
	}

	if err := s.fileRepository.IncrementDownloadCount(ctx, file.ID); err != nil {
		log.Printf("Failed to increment download count for file %s: %v", id, err)
	}

	event := events.NewFileEvent(events.EventTypeFileDownloaded, file.ID.Hex(), subject, file.Name, file.Size, file.IsPublic)
	if err := s.eventPublisher.PublishFileEvent(ctx, event); err != nil {
		log.Printf("Failed to publish file downloaded event: %v", err)
	}

	return object, file, nil
}

// ListVisible pages through the files the subject can see. Administrators
// see everything.
func (s *FileService) ListVisible(ctx context.Context, subject string, isAdmin bool, search string, page, pageSize int) ([]*models.File, int64, error) {
	if isAdmin {
		return s.fileRepository.ListAll(ctx, search, page, pageSize)
	}

	fileIDs, err := s.grantedObjectIDs(ctx, subject, models.PermissionDownloadFile)
	if err != nil {
		return nil, 0, err
	}
	tagIDs, err := s.grantedObjectIDs(ctx, subject, models.PermissionDownloadTag)
	if err != nil {
		return nil, 0, err
	}

	return s.fileRepository.ListVisible(ctx, fileIDs, tagIDs, search, page, pageSize)
}

func (s *FileService) grantedObjectIDs(ctx context.Context, subject string, permission models.PermissionKind) ([]bson.ObjectID, error) {
	if subject == "" {
		return nil, nil
	}

	refs, err := s.grants.ListResources(ctx, subject, permission)
	if err != nil {
		return nil, err
	}

	ids := make([]bson.ObjectID, 0, len(refs))
	for _, ref := range refs {
		id, err := bson.ObjectIDFromHex(ref.ID)
		if err != nil {
			log.Printf("Skipping grant with malformed resource id %q: %v", ref.ID, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Update rewrites the mutable metadata fields.
func (s *FileService) Update(ctx context.Context, actorID, id, name, description string, isPublic bool, tagID string) (*models.File, error) {
	file, err := s.fileRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != "" {
		file.Name = name
	}
	file.Description = description
	file.IsPublic = isPublic
	file.UpdatedBy = actorID

	if tagID == "" {
		file.TagID = bson.ObjectID{}
	} else {
		tagObjectID, err := bson.ObjectIDFromHex(tagID)
		if err != nil {
			return nil, fmt.Errorf("%w: tag %s", models.ErrNotFound, tagID)
		}
		file.TagID = tagObjectID
	}

	if err := s.fileRepository.Update(ctx, file); err != nil {
		return nil, err
	}

	if err := s.cache.DeleteKey(ctx, fileCacheKey(id)); err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Printf("Failed to invalidate cache for file %s: %v", id, err)
	}
	return file, nil
}

// Delete removes the content, its share links, and the metadata.
func (s *FileService) Delete(ctx context.Context, actorID, id string) error {
	file, err := s.fileRepository.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := minio.DeleteFile(ctx, file.BucketName, file.StoragePath); err != nil {
		return fmt.Errorf("error deleting file from storage: %w", err)
	}

	if err := s.shareLinkRepo.DeleteByFile(ctx, file.ID); err != nil {
		log.Printf("Failed to delete share links for file %s: %v", id, err)
	}

	if err := s.fileRepository.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.grants.RevokeAllForResource(ctx, file.Ref()); err != nil {
		log.Printf("Failed to revoke grants on deleted file %s: %v", id, err)
	}

	if err := s.cache.DeleteKey(ctx, fileCacheKey(id)); err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Printf("Failed to invalidate cache for file %s: %v", id, err)
	}

	event := events.NewFileEvent(events.EventTypeFileDeleted, file.ID.Hex(), actorID, file.Name, file.Size, file.IsPublic)
	if err := s.eventPublisher.PublishFileEvent(ctx, event); err != nil {
		log.Printf("Failed to publish file deleted event: %v", err)
	}

	return nil
}

// PresignedURL builds a short-lived direct download URL for an authorized
// subject.
func (s *FileService) PresignedURL(ctx context.Context, subject, id string, expirySeconds int) (string, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	allowed, err := s.CanDownload(ctx, subject, file)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", fmt.Errorf("%w: file %s", models.ErrAccessDenied, id)
	}

	return minio.GetPresignedURL(ctx, file.BucketName, file.StoragePath, expirySeconds)
}
