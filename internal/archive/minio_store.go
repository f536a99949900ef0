// Package archive stores generated exports in an object-storage bucket so a
// list's download history survives app restarts.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioArchive writes export results into a MinIO bucket.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

// New connects to MinIO and ensures the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioArchive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", bucket, err)
		}
	}

	return &MinioArchive{client: client, bucket: bucket}, nil
}

// ObjectName builds the bucket key for one export of a list.
func ObjectName(listID, filename string, now time.Time) string {
	return fmt.Sprintf("exports/%s/%s-%s", listID, now.UTC().Format("20060102T150405Z"), filename)
}

// Put uploads one export and returns the object name.
func (a *MinioArchive) Put(ctx context.Context, listID, filename, contentType string, data []byte) (string, error) {
	name := ObjectName(listID, filename, time.Now())
	_, err := a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put export %s: %w", name, err)
	}
	return name, nil
}
