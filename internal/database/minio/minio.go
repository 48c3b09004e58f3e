package minio

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"filestore-service/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var MinioClient *minio.Client

func InitMinioClient(cfg *config.MinIOConfig) error {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		log.Printf("Error initializing MinIO client: %v", err)
		return err
	}

	exists, err := MinioClient.BucketExists(context.Background(), cfg.FileBucket)
	if err != nil {
		log.Printf("Error checking if bucket %s exists: %v", cfg.FileBucket, err)
		return err
	}
	if !exists {
		err = MinioClient.MakeBucket(context.Background(), cfg.FileBucket, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			log.Printf("Error creating bucket %s: %v", cfg.FileBucket, err)
			return err
		}
		log.Printf("Created bucket: %s", cfg.FileBucket)
	}

	log.Println("Successfully initialized MinIO client")
	return nil
}

// UploadFileStream streams an object into MinIO without buffering it.
func UploadFileStream(ctx context.Context, bucketName, objectName string, reader io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	return MinioClient.PutObject(ctx, bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
}

// GetFile opens an object for reading.
func GetFile(ctx context.Context, bucketName, objectName string) (*minio.Object, error) {
	object, err := MinioClient.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		log.Printf("Error getting file from MinIO: %v", err)
		return nil, err
	}

	return object, nil
}

// DeleteFile removes an object.
func DeleteFile(ctx context.Context, bucketName, objectName string) error {
	err := MinioClient.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		log.Printf("Error deleting file from MinIO: %v", err)
		return err
	}

	return nil
}

// GetPresignedURL generates a presigned URL for direct object access.
func GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry int) (string, error) {
	if strings.Contains(objectName, "..") {
		return "", errors.New("invalid object name")
	}

	presignedURL, err := MinioClient.PresignedGetObject(ctx, bucketName, objectName, time.Duration(expiry)*time.Second, nil)
	if err != nil {
		log.Printf("Error generating presigned URL: %v", err)
		return "", err
	}

	return presignedURL.String(), nil
}
