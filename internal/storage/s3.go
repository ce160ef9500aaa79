package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"suture/internal/config"
	"suture/internal/services"
)

// S3 stores videos in an S3-compatible bucket via the MinIO client.
type S3 struct {
	client *minio.Client
	bucket string
	region string
}

// NewS3 creates a MinIO client from the storage configuration and makes
// sure the video bucket exists.
func NewS3(cfg *config.Config) (*S3, error) {
	client, err := minio.New(cfg.Storage.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.S3AccessKey, cfg.Storage.S3SecretKey, ""),
		Secure: cfg.Storage.S3UseSSL,
		Region: cfg.Storage.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	s := &S3{
		client: client,
		bucket: cfg.Storage.S3Bucket,
		region: cfg.Storage.S3Region,
	}
	if err := s.ensureBucket(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *S3) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *S3) Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	handle := handleFor(filename)
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, handle, r, size, opts); err != nil {
		return "", services.Wrap(services.ErrStorage, "storage", "save", "upload video object", err)
	}
	return handle, nil
}

func (s *S3) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, handle, minio.GetObjectOptions{})
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "storage", "open", handle, err)
	}
	// GetObject is lazy; surface missing objects now rather than on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, services.Wrap(services.ErrNotFound, "storage", "open", handle, nil)
		}
		return nil, services.Wrap(services.ErrStorage, "storage", "open", handle, err)
	}
	return obj, nil
}

// LocalPath stages the object into a temp file for the analyzer command.
func (s *S3) LocalPath(ctx context.Context, handle string) (string, func(), error) {
	obj, err := s.Open(ctx, handle)
	if err != nil {
		return "", nil, err
	}
	defer obj.Close()

	tmp, err := os.CreateTemp("", "suture-video-*"+filepath.Ext(handle))
	if err != nil {
		return "", nil, services.Wrap(services.ErrStorage, "storage", "local_path", "create staging file", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, obj); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", nil, services.Wrap(services.ErrStorage, "storage", "local_path", "stage video object", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", nil, services.Wrap(services.ErrStorage, "storage", "local_path", "close staging file", err)
	}
	cleanup := func() { os.Remove(tmpName) }
	return tmpName, cleanup, nil
}

func (s *S3) Remove(ctx context.Context, handle string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, handle, minio.RemoveObjectOptions{}); err != nil {
		return services.Wrap(services.ErrStorage, "storage", "remove", handle, err)
	}
	return nil
}
