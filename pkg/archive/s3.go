package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/wxagent/pkg/config"
)

// S3Uploader кладёт транскрипты в бакет под общим префиксом.
type S3Uploader struct {
	api    *minio.Client
	bucket string
	prefix string
}

var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader создаёт клиент из настроек archive.s3.
func NewS3Uploader(cfg config.S3Config) (*S3Uploader, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 archive is not configured (endpoint and bucket are required)")
	}

	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Uploader{
		api:    api,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ObjectKey возвращает ключ объекта для имени файла.
func (u *S3Uploader) ObjectKey(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// Upload загружает data как application/json.
func (u *S3Uploader) Upload(ctx context.Context, name string, data []byte) error {
	key := u.ObjectKey(name)
	_, err := u.api.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
