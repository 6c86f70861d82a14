package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store holds attachment blobs in an S3-compatible bucket.
// It implements the attachment package's BlobStore interface.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	cfg       Config
}

// New creates an S3Store with the given configuration.
func New(cfg Config) (*S3Store, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)
		},
	}

	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	client := s3.New(s3.Options{}, opts...)

	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		cfg:       cfg,
	}, nil
}

// Put writes the content at the given path with the given content type.
func (s *S3Store) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	// The SDK needs a seekable body to compute the payload hash.
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("%w: read input: %v", ErrUploadFailed, err)
		}
		body = bytes.NewReader(data)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(path),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPrivate,
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return wrapS3Error(err, ErrUploadFailed)
	}
	return nil
}

// Remove deletes the objects at the given paths in one call.
// Already-absent objects are treated as removed, so Remove is safe to retry
// and usable as a compensating action.
func (s *S3Store) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	objects := make([]types.ObjectIdentifier, len(paths))
	for i, p := range paths {
		objects[i] = types.ObjectIdentifier{Key: aws.String(p)}
	}

	input := &s3.DeleteObjectsInput{
		Bucket: aws.String(s.cfg.Bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	}

	out, err := s.client.DeleteObjects(ctx, input)
	if err != nil {
		return wrapS3Error(err, ErrDeleteFailed)
	}

	for _, e := range out.Errors {
		if e.Code != nil && isMissingObjectCode(*e.Code) {
			continue
		}
		return fmt.Errorf("%w: %s: %s", ErrDeleteFailed,
			aws.ToString(e.Key), aws.ToString(e.Message))
	}
	return nil
}

// SignedURL mints a presigned GET URL for the object at path, valid for ttl,
// with a Content-Disposition header suggesting downloadName for saving.
// Returns ErrNotFound when the object is absent: existence is verified with a
// HeadObject first, since presigning alone never touches the bucket.
func (s *S3Store) SignedURL(ctx context.Context, path string, ttl time.Duration, downloadName string) (string, error) {
	head := &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(path),
	}
	if _, err := s.client.HeadObject(ctx, head); err != nil {
		return "", wrapS3Error(err, ErrNotFound)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(path),
	}
	if downloadName != "" {
		disposition := fmt.Sprintf("attachment; filename=%q", downloadName)
		input.ResponseContentDisposition = aws.String(disposition)
	}

	result, err := s.presigner.PresignGetObject(ctx, input, func(po *s3.PresignOptions) {
		po.Expires = ttl
	})
	if err != nil {
		return "", wrapS3Error(err, ErrPresignFailed)
	}
	return result.URL, nil
}

// Healthcheck returns a readiness check function for the bucket.
func Healthcheck(s *S3Store) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		input := &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)}
		if _, err := s.client.HeadBucket(ctx, input); err != nil {
			return wrapS3Error(err, ErrAccessDenied)
		}
		return nil
	}
}
