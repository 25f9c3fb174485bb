package metadata

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client the bundle source uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config locates a metadata bundle: a single YAML or JSON document
// holding the whole tree.
type S3Config struct {
	Bucket       string
	Key          string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3Source fetches metadata bundles from object storage.
type S3Source struct {
	api    S3API
	bucket string
	key    string
	etag   string
}

// NewS3Client creates an S3 client from the configuration. Static
// credentials are used when given, otherwise the default chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Source creates a bundle source.
func NewS3Source(api S3API, bucket, key string) *S3Source {
	return &S3Source{api: api, bucket: bucket, key: key}
}

// Fetch downloads and decodes the bundle. The second result is false when
// the object is unchanged since the previous fetch.
func (s *S3Source) Fetch(ctx context.Context) (map[string]any, bool, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get metadata bundle s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	etag := aws.ToString(out.ETag)
	if etag != "" && etag == s.etag {
		return nil, false, nil
	}

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read metadata bundle: %w", err)
	}
	data, err := Parse(b)
	if err != nil {
		return nil, false, err
	}
	s.etag = etag
	return data, true, nil
}

// Sync fetches the bundle into the store.
func (s *S3Source) Sync(ctx context.Context, store *Store) error {
	data, changed, err := s.Fetch(ctx)
	if err != nil || !changed {
		return err
	}
	store.Replace(data)
	return nil
}
