// Package storage issues presigned object-storage URLs for activity attachments.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("attachment storage is not configured")

// Config describes the S3-compatible backend.
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	TTL          time.Duration
	UsePathStyle bool
}

// Upload is a presigned request the client uses to upload a file directly.
type Upload struct {
	Key       string
	URL       string
	Method    string
	ExpiresAt time.Time
}

// Presigner signs attachment upload and download requests.
type Presigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

// NewPresigner builds the S3 client once. Static credentials are used when an access key is
// configured, otherwise the default AWS credential chain applies.
func NewPresigner(ctx context.Context, cfg Config) (*Presigner, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrDisabled
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Presigner{
		client: s3.NewPresignClient(client),
		bucket: cfg.Bucket,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// PresignUpload returns a PUT URL for a new attachment of activityID.
func (p *Presigner) PresignUpload(ctx context.Context, activityID, fileName, contentType string) (Upload, error) {
	key := StorageKey(activityID, fileName)
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	req, err := presignPutObject(p.client, ctx, in, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return Upload{}, fmt.Errorf("presign upload: %w", err)
	}
	return Upload{Key: key, URL: req.URL, Method: req.Method, ExpiresAt: p.now().Add(p.ttl)}, nil
}

// PresignDownload returns a GET URL for a stored attachment.
func (p *Presigner) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := presignGetObject(p.client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return req.URL, nil
}

// KeyPrefix prefixes every attachment key issued by the presigner.
const KeyPrefix = "activities/"

// StorageKey places an attachment under its activity with a unique prefix.
func StorageKey(activityID, fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	name = strings.ReplaceAll(name, " ", "_")
	return fmt.Sprintf("%s%s/%s/%s", KeyPrefix, activityID, uuid.NewString(), name)
}
