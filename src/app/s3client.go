package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// ClientMinio is the part of the minio client the storage layer relies on.
type ClientMinio interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	RemoveObjects(ctx context.Context, bucketName string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

// MinioS3Client talks to the S3-compatible endpoint of the backend storage.
type MinioS3Client struct {
	endpoint   string
	bucketName string
	client     ClientMinio
	log        logrus.FieldLogger
}

const defaultContentType = "application/octet-stream"

var imageFormats = []string{"png", "jpg", "jpeg", "gif", "webp"}

// NewMinioS3Client creates a new MinioS3Client instance.
func NewMinioS3Client(endpoint, accessKeyID, secretAccessKey, region, bucketName string, useSSL bool, log logrus.FieldLogger) (*MinioS3Client, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client for %s: %w", endpoint, err)
	}
	return NewS3ClientWith(minioClient, endpoint, bucketName, log), nil
}

// NewS3ClientWith wraps an existing client; tests pass a fake here.
func NewS3ClientWith(client ClientMinio, endpoint, bucketName string, log logrus.FieldLogger) *MinioS3Client {
	return &MinioS3Client{
		endpoint:   endpoint,
		bucketName: bucketName,
		client:     client,
		log:        log,
	}
}

func (s3 *MinioS3Client) Bucket() string {
	return s3.bucketName
}

// ListKeys returns every object key under prefix.
func (s3 *MinioS3Client) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make([]string, 0)
	objectCh := s3.client.ListObjects(ctx, s3.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return result, &BackendError{Op: "list objects", Err: object.Err}
		}
		result = append(result, object.Key)
	}
	return result, nil
}

// UploadFile uploads an object to the bucket.
func (s3 *MinioS3Client) UploadFile(ctx context.Context, uploadPath string, object io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = defaultContentType
	}
	_, err := s3.client.PutObject(ctx,
		s3.bucketName,
		uploadPath,
		object,
		size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return &BackendError{Op: "upload object", Err: fmt.Errorf("upload %s: %w", uploadPath, err)}
	}
	return nil
}

func (s3 *MinioS3Client) DeleteFile(ctx context.Context, fileName string) error {
	err := s3.client.RemoveObject(ctx, s3.bucketName, fileName, minio.RemoveObjectOptions{})
	if err != nil {
		return &BackendError{Op: "remove object", Err: fmt.Errorf("remove %s: %w", fileName, err)}
	}
	s3.log.WithFields(logrus.Fields{"bucket": s3.bucketName, "key": fileName}).Debug("object removed")
	return nil
}

// DeleteFiles removes keys in one batch request. Every per-object failure is
// collected into the returned error.
func (s3 *MinioS3Client) DeleteFiles(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	var errs []error
	for rErr := range s3.client.RemoveObjects(ctx, s3.bucketName, objectsCh, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove %s: %w", rErr.ObjectName, rErr.Err))
	}
	if len(errs) > 0 {
		return &BackendError{Op: "remove objects", Err: errors.Join(errs...)}
	}
	return nil
}

// AllowedImage reports whether a file name carries an accepted image extension.
func AllowedImage(name string) bool {
	return checkIn(strings.ToLower(name), imageFormats)
}

func checkIn(key string, filters []string) bool {
	parsed := strings.Split(key, ".")
	if len(parsed) > 1 {
		for _, f := range filters {
			if f == parsed[len(parsed)-1] {
				return true
			}
		}
	}
	return false
}
