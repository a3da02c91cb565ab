package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"lifelog/internal/apperr"
)

// S3Config holds the connection details for an S3-compatible image store
// (AWS S3 or MinIO).
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicBaseURL is the prefix references are built from, e.g.
	// "https://cdn.example.com/lifelog". Defaults to Endpoint + "/" + Bucket.
	PublicBaseURL string
	// Timeout bounds every remote call. Zero means 10s.
	Timeout time.Duration
}

// S3Store implements Store on top of an S3-compatible object store.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
	timeout time.Duration
}

// NewS3Store creates an S3-backed image store with static credentials and
// path-style addressing (MinIO compatible).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
	}, nil
}

// storageKey builds a dated random object key, e.g.
// "images/2026/9/1/9f1c...-....png".
func storageKey(ext string) string {
	d := time.Now()
	return fmt.Sprintf("images/%d/%d/%d/%s.%s", d.Year(), int(d.Month()), d.Day(), uuid.New(), ext)
}

// Upload decodes the payload and writes it as an object, recording the
// normalization constraints as object metadata.
func (s *S3Store) Upload(ctx context.Context, payload string, c Constraints) (string, error) {
	data, contentType, err := decodePayload(payload)
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, "invalid image payload", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := storageKey(extensionFor(contentType))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"max-width":  strconv.Itoa(c.MaxWidth),
			"max-height": strconv.Itoa(c.MaxHeight),
			"quality":    c.Quality,
		},
	})
	if err != nil {
		return "", apperr.Wrap(apperr.Dependency, "image upload failed", err)
	}

	return s.baseURL + "/" + key, nil
}

// Delete removes the object behind reference. References that do not belong
// to this store, or that are already gone, report StatusAlreadyAbsent.
func (s *S3Store) Delete(ctx context.Context, reference string) (DeleteStatus, error) {
	key, ok := s.keyFromReference(reference)
	if !ok {
		return StatusAlreadyAbsent, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return StatusAlreadyAbsent, nil
		}
		return StatusFailed, apperr.Wrap(apperr.Dependency, "image store unreachable", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return StatusFailed, apperr.Wrap(apperr.Dependency, "image delete failed", err)
	}

	return StatusDeleted, nil
}

func (s *S3Store) keyFromReference(reference string) (string, bool) {
	if !strings.HasPrefix(reference, s.baseURL+"/") {
		return "", false
	}
	key := strings.TrimPrefix(reference, s.baseURL+"/")
	return key, key != ""
}
