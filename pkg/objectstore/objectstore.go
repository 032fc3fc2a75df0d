package objectstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cnec-platform/pkg/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("objectstore", fx.Provide(registerClient, NewStore))

func registerClient(c *config.Config) *minio.Client {
	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		zap.L().Fatal("failed to create MinIO client", zap.Error(err))
	}
	exists, errBucketExists := client.BucketExists(context.Background(), c.Minio.BucketName)
	if errBucketExists != nil {
		zap.L().Fatal("failed to check if bucket exists", zap.String("bucket", c.Minio.BucketName), zap.Error(errBucketExists))
	}
	zap.L().Info("MinIO client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.Bool("bucketExists", exists))
	return client
}

// Store issues presigned URLs for video assets. The rest of the system only
// ever sees the opaque "bucket/object" reference; bytes move between the
// creator's browser and object storage directly.
type Store struct {
	client *minio.Client
	bucket string
}

func NewStore(client *minio.Client, c *config.Config) *Store {
	return &Store{client: client, bucket: c.Minio.BucketName}
}

// PresignUpload returns the opaque file reference together with a URL the
// caller can PUT the bytes to.
func (s *Store) PresignUpload(ctx context.Context, objectName string, expiry time.Duration) (string, string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, objectName, expiry)
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf("%s/%s", s.bucket, objectName), u.String(), nil
}

// PresignDownload resolves a stored file reference into a temporary GET URL.
func (s *Store) PresignDownload(ctx context.Context, fileReference string, expiry time.Duration) (string, error) {
	bucket, object, ok := strings.Cut(fileReference, "/")
	if !ok {
		return "", fmt.Errorf("malformed file reference: %s", fileReference)
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, object, expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
