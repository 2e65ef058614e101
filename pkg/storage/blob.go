package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore holds binary assets (chat photos, driver documents) and
// returns the permanent public URL.
type BlobStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

type minioStore struct {
	client *minio.Client
	bucket string
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewMinioStore() (BlobStore, error) {
	endpoint := getEnv("BLOB_ENDPOINT", "localhost:9000")
	accessKey := getEnv("BLOB_ACCESS_KEY", "minioadmin")
	secretKey := getEnv("BLOB_SECRET_KEY", "minioadmin")
	bucket := getEnv("BLOB_BUCKET", "p7s-assets")
	useSSL := os.Getenv("BLOB_USE_SSL") == "true"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("blob store: %w", err)
		}
		log.Printf("[STORAGE] Bucket %s criado", bucket)
	}
	return &minioStore{client: client, bucket: bucket}, nil
}

func (s *minioStore) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL(), s.bucket, objectName), nil
}

// DecodeDataURL splits a base64 data URL ("data:image/png;base64,...")
// into bytes and content type. Inline previews arrive in this format.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, "", fmt.Errorf("data-URL inválido")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("data-URL inválido")
	}
	contentType := strings.TrimSuffix(meta, ";base64")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("data-URL inválido: %w", err)
	}
	return data, contentType, nil
}

// IsDataURL tells an inline preview apart from an already promoted URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}
