// Package s3store keeps avatars in an S3-compatible bucket under
// "avatars/<userID>.png".
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sakif/task-manager/internal/apperror"
)

// Config describes the bucket. Endpoint and the static keys are optional;
// without them the default AWS endpoint and credential chain are used.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // e.g. http://localhost:9000 for MinIO
	AccessKeyID     string
	SecretAccessKey string
}

type Store struct {
	client *s3.Client
	bucket string
}

// New builds the S3 client. Path-style addressing is used whenever a custom
// endpoint is set, which MinIO and DigitalOcean Spaces require.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
			// Most S3-compatible servers reject the default flexible checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

func objectKey(userID string) string {
	return "avatars/" + userID + ".png"
}

func (s *Store) Put(ctx context.Context, userID string, png []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey(userID)),
		Body:          bytes.NewReader(png),
		ContentLength: aws.Int64(int64(len(png))),
		ContentType:   aws.String("image/png"),
		ACL:           types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("s3store: uploading avatar of %s: %w", userID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(userID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, apperror.NotFound("avatar", userID)
		}
		return nil, fmt.Errorf("s3store: downloading avatar of %s: %w", userID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store: reading avatar of %s: %w", userID, err)
	}
	return data, nil
}

// Delete removes the object. S3 reports success for keys that do not exist.
func (s *Store) Delete(ctx context.Context, userID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(userID)),
	})
	if err != nil {
		return fmt.Errorf("s3store: deleting avatar of %s: %w", userID, err)
	}
	return nil
}

func (s *Store) External() bool { return true }
