package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Archiver.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver stores JSON snapshots of flagged items.
type S3Archiver struct {
	client S3API
	bucket string
}

// NewS3Archiver creates an archiver. If bucket is empty, Archive is a no-op.
func NewS3Archiver(client S3API, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// Enabled returns true if archival is configured.
func (a *S3Archiver) Enabled() bool {
	return a != nil && a.bucket != "" && a.client != nil
}

// ArchiveKey is the object key for item.
func ArchiveKey(item Item) string {
	at := item.FlaggedAt.UTC()
	return fmt.Sprintf("flagged/%d/%02d/%02d/%s.json", at.Year(), at.Month(), at.Day(), item.ID)
}

// Archive writes item and returns its key, or "" when archival is disabled.
func (a *S3Archiver) Archive(ctx context.Context, item Item) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	data, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("review: marshal snapshot: %w", err)
	}
	key := ArchiveKey(item)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("review: s3 put %s: %w", key, err)
	}
	return key, nil
}
