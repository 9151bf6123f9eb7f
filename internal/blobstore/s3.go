package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the part of the S3 client the store uses.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 stores objects in one bucket. Objects are expected to be publicly
// readable at URL(key).
type S3 struct {
	client     S3API
	bucket     string
	region     string
	publicBase string
}

// S3Options configures NewS3.
type S3Options struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint, e.g. for an S3-compatible server.
	Endpoint string
	// PublicBaseURL replaces the default virtual path URL when set.
	PublicBaseURL string
}

// NewS3 builds a client from the default AWS credential chain.
func NewS3(ctx context.Context, o S3Options) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(o.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})
	return NewS3WithClient(client, o), nil
}

// NewS3WithClient uses an existing client.
func NewS3WithClient(client S3API, o S3Options) *S3 {
	return &S3{client: client, bucket: o.Bucket, region: o.Region, publicBase: o.PublicBaseURL}
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	return err
}

func (s *S3) Get(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	obj := &Object{Key: key, ContentType: aws.ToString(out.ContentType), Data: data}
	if out.LastModified != nil {
		obj.Created = *out.LastModified
	}
	return obj, nil
}

// URL follows the region-qualified path style the bucket has always used.
func (s *S3) URL(key string) string {
	if s.publicBase != "" {
		return strings.TrimRight(s.publicBase, "/") + "/" + url.PathEscape(key)
	}
	return fmt.Sprintf("https://s3-%s.amazonaws.com/%s/%s", s.region, s.bucket, url.PathEscape(key))
}

func isNotFound(err error) bool {
	var (
		nf  *types.NotFound
		nsk *types.NoSuchKey
	)
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
