package filestore

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
)

const minioNoSuchKey = "NoSuchKey"

type minioStore struct {
	client *minio.Client
	bucket string
}

var _ core.FileStore = (*minioStore)(nil)

// NewMinioStore connects to conf.MinioEndpoint and creates the bucket when missing.
func NewMinioStore(ctx context.Context, conf core.StorageConfig) (core.FileStore, error) {
	client, err := minio.New(conf.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.MinioAccessKey, conf.MinioSecretKey, ""),
		Secure: conf.MinioUseSSL,
		Region: conf.MinioRegion,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating minio client")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, conf.MinioBucket)
	if err != nil {
		return nil, errors.Wrap(err, "checking bucket existence")
	}
	if !exists {
		if err = client.MakeBucket(ctx, conf.MinioBucket, minio.MakeBucketOptions{Region: conf.MinioRegion}); err != nil {
			return nil, errors.Wrap(err, "creating bucket")
		}
	}

	return &minioStore{client: client, bucket: conf.MinioBucket}, nil
}

func (s *minioStore) Save(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if size <= 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, s.bucket, cleanKey(path), r, size, minio.PutObjectOptions{ContentType: contentType})
	return errors.Wrapf(err, "uploading %s", path)
}

func (s *minioStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, cleanKey(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "downloading %s", path)
	}
	// GetObject is lazy: Stat surfaces a missing key
	if _, err = obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == minioNoSuchKey {
			return nil, core.NewNotFoundError("file")
		}
		return nil, errors.Wrapf(err, "downloading %s", path)
	}
	return obj, nil
}

func (s *minioStore) Delete(ctx context.Context, path string) error {
	err := s.client.RemoveObject(ctx, s.bucket, cleanKey(path), minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != minioNoSuchKey {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}

func (s *minioStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, cleanKey(path), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == minioNoSuchKey {
			return false, nil
		}
		return false, errors.Wrapf(err, "checking %s", path)
	}
	return true, nil
}
