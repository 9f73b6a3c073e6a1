// Package s3ds reads a sales export from an S3-compatible object store.
package s3ds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"salesetl/internal/datasource"
)

// Config selects the object and how to reach it.
type Config struct {
	// URI is s3://bucket/key.
	URI    string
	Region string
	// Endpoint overrides the service endpoint (MinIO, localstack) and
	// switches to path-style addressing.
	Endpoint string

	// AccessKeyID and SecretAccessKey pin static credentials; when empty the
	// default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// HTTPClient replaces the SDK's HTTP client.
	HTTPClient *http.Client
}

// Source is one S3 object.
type Source struct {
	client *s3.Client
	bucket string
	key    string
}

// ParseURI splits s3://bucket/key.
func ParseURI(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("s3ds: parse %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("s3ds: %q: scheme must be s3", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("s3ds: %q: want s3://bucket/key", raw)
	}
	return u.Host, key, nil
}

// New loads the AWS configuration and returns a Source for cfg.URI.
func New(ctx context.Context, cfg Config) (*Source, error) {
	bucket, key, err := ParseURI(cfg.URI)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3ds: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	return &Source{client: client, bucket: bucket, key: key}, nil
}

// Describe implements datasource.Describer.
func (s *Source) Describe() string { return "s3://" + s.bucket + "/" + s.key }

// Open streams the object body.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &s.key})
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	return out.Body, nil
}

// Size implements datasource.Sizer with HeadObject.
func (s *Source) Size(ctx context.Context) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &s.key})
	if err != nil {
		return 0, s.classify(ctx, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Peek implements datasource.Peeker with a ranged GetObject.
func (s *Source) Peek(ctx context.Context, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("s3ds: n must be > 0")
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &s.key,
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", n-1)),
	})
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(io.LimitReader(out.Body, int64(n)))
	if err != nil {
		return nil, datasource.Unreadable(s.Describe(), err)
	}
	return b, nil
}

func (s *Source) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isNotFound(err) {
		return datasource.Missing(s.Describe(), err)
	}
	return datasource.Unreadable(s.Describe(), err)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
