package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrInvalidKey is returned for empty object keys.
var ErrInvalidKey = errors.New("document: invalid object key")

// Store persists exported documents and returns a link to them. An empty
// link means the store keeps nothing.
type Store interface {
	Put(ctx context.Context, key string, doc Document) (string, error)
}

// NopStore discards documents. It is used when object storage is not configured.
type NopStore struct{}

func (NopStore) Put(context.Context, string, Document) (string, error) { return "", nil }

// S3Config configures the S3 document store.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	LinkTTL   time.Duration
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store uploads documents to a bucket and hands out presigned GET links.
type S3Store struct {
	bucket    string
	ttl       time.Duration
	client    objectPutter
	presigner objectPresigner
}

// NewS3Store builds the AWS client from cfg. A custom endpoint (MinIO and
// friends) switches the client to path-style addressing.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("document: s3 bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("document: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(cfg.Bucket, cfg.LinkTTL, client, s3.NewPresignClient(client)), nil
}

func newS3Store(bucket string, ttl time.Duration, client objectPutter, presigner objectPresigner) *S3Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &S3Store{bucket: bucket, ttl: ttl, client: client, presigner: presigner}
}

func (s *S3Store) Put(ctx context.Context, key string, doc Document) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(doc.Body),
		ContentType:        aws.String(doc.ContentType),
		ContentDisposition: aws.String(fmt.Sprintf("inline; filename=%q", doc.Name)),
	})
	if err != nil {
		return "", fmt.Errorf("document: put object: %w", err)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("document: presign get: %w", err)
	}
	return req.URL, nil
}
