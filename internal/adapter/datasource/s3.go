package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

// S3Config locates the dataset in an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Source fetches objects from an S3-compatible store.
type S3Source struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Source creates a MinIO client for cfg.
func NewS3Source(cfg S3Config) (*S3Source, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &S3Source{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Fetch implements Source.
func (s *S3Source) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := s.prefix + name
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.fetchError(name, err)
	}
	defer obj.Close()

	// GetObject is lazy; missing keys surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.fetchError(name, err)
	}
	return data, nil
}

func (s *S3Source) fetchError(name string, err error) error {
	resp := minio.ToErrorResponse(err)
	status := resp.StatusCode
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		status = http.StatusNotFound
	}
	return &domain.FetchError{Object: name, Status: status, Err: err}
}
