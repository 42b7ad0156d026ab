// Package storage puts downloaded images somewhere durable: a local folder
// or an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
)

type ImageStore interface {
	// Put stores the file at localPath under name and returns where it
	// can be found afterwards.
	Put(ctx context.Context, name string, localPath string) (string, error)
}

type Dir struct {
	Path string
}

func NewDir(path string) *Dir {
	return &Dir{Path: path}
}

func (d *Dir) Put(_ context.Context, name string, localPath string) (string, error) {
	dst := filepath.Join(d.Path, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

type MinIOClient interface {
	FPutObject(ctx context.Context, bucketName, objectName string, filePath string, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
}

type MinIO struct {
	client    MinIOClient
	bucket    string
	prefix    string
	publicURL string
}

// NewMinIO stores objects as prefix/name in bucket. Returned locations are
// publicURL/bucket/prefix/name.
func NewMinIO(client MinIOClient, bucket, prefix, publicURL string) *MinIO {
	return &MinIO{
		client:    client,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func (m *MinIO) Put(ctx context.Context, name string, localPath string) (string, error) {
	key := name
	if m.prefix != "" {
		key = m.prefix + "/" + name
	}

	_, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return m.publicURL + "/" + m.bucket + "/" + key, nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
