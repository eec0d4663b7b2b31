// Package photo stores chore completion photos in S3-compatible storage.
package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned when photo storage credentials are missing.
var ErrNotConfigured = errors.New("photo storage not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c Config) enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Store uploads and serves completion photos under opaque UUID keys.
type Store struct {
	cfg      Config
	client   s3Client
	presign  presigner
	linkTTL  time.Duration
}

func NewStore(cfg Config) *Store {
	st := &Store{cfg: cfg, linkTTL: 15 * time.Minute}
	if cfg.enabled() {
		client := newS3Client(cfg)
		st.client = client
		st.presign = s3.NewPresignClient(client)
	}
	return st
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Configured reports whether uploads can be accepted.
func (s *Store) Configured() bool {
	return s.client != nil
}

// Upload stores a photo and returns its object key.
func (s *Store) Upload(ctx context.Context, familyID int64, contentType string, body io.Reader) (string, error) {
	if s.client == nil {
		return "", ErrNotConfigured
	}

	key := fmt.Sprintf("families/%d/photos/%s", familyID, uuid.New().String())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return key, nil
}

// ReviewURL returns a short-lived presigned GET link for a stored photo.
func (s *Store) ReviewURL(ctx context.Context, key string) (string, error) {
	if s.presign == nil {
		return "", ErrNotConfigured
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.linkTTL))
	if err != nil {
		return "", fmt.Errorf("presign photo: %w", err)
	}
	return req.URL, nil
}

// Delete removes a stored photo, e.g. after a rejected completion is redone.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return ErrNotConfigured
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}
