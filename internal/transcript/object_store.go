package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ObjectStore mirrors transcript documents to an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

func NewObjectStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*ObjectStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		log.Info("creating bucket %s", bucket)
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return &ObjectStore{client: client, bucket: bucket}, nil
}

func (s *ObjectStore) Save(ctx context.Context, f File) error {
	key := objectKey(f.LectureID)
	ctx, span := tracer.Start(ctx, "transcript.object.save", trace.WithAttributes(
		attribute.String("object_key", key),
	))
	defer span.End()

	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upload transcript: %w", err)
	}
	span.SetAttributes(attribute.Int("size_bytes", len(data)))
	return nil
}
