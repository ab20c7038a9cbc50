package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	gwerr "github.com/storegate/storegate/internal/errors"
)

// S3API defines the subset of the AWS S3 client interface that the gateway
// uses. This allows mocking in tests.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// PresignAPI defines the subset of the S3 presign client the gateway uses.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configures an S3Client. It is an explicit struct passed at
// construction time; the gateway never reads process-wide storage state.
type Options struct {
	// Bucket is the upstream bucket name. Required.
	Bucket string
	// Region is the upstream region.
	Region string
	// EndpointURL overrides the S3 endpoint (MinIO-style deployments).
	EndpointURL string
	// UsePathStyle enables path-style addressing.
	UsePathStyle bool
	// AccessKeyID and SecretAccessKey are static credentials. When empty,
	// the standard AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	// Prefix is an optional key prefix applied to every object key.
	Prefix string
}

// S3Client implements Client against an upstream S3-compatible bucket.
type S3Client struct {
	bucket  string
	prefix  string
	client  S3API
	presign PresignAPI
}

// NewS3Client creates an S3Client from the given options. Credentials are
// resolved via static keys when provided, otherwise the standard AWS
// credential chain. The upstream bucket is probed once so a misconfigured
// deployment fails at startup rather than on the first request.
func NewS3Client(ctx context.Context, opts Options) (*S3Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.EndpointURL != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		})
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, s3Opts...)

	c := &S3Client{
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
		client:  client,
		presign: s3.NewPresignClient(client),
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(opts.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("cannot access upstream bucket %q: %w", opts.Bucket, err)
	}

	slog.Info("storage client initialized", "bucket", opts.Bucket, "region", opts.Region, "prefix", opts.Prefix)
	return c, nil
}

// NewS3ClientWith creates an S3Client with pre-configured API clients.
// This is primarily used for testing with mocks.
func NewS3ClientWith(bucket, prefix string, client S3API, presign PresignAPI) *S3Client {
	return &S3Client{
		bucket:  bucket,
		prefix:  prefix,
		client:  client,
		presign: presign,
	}
}

// s3Key maps a gateway object key to an upstream S3 key.
func (c *S3Client) s3Key(key string) string {
	return c.prefix + key
}

// Get retrieves an object together with its system and custom metadata.
func (c *S3Client) Get(ctx context.Context, key string) (*Object, error) {
	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.s3Key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, gwerr.ErrNotFound
		}
		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	obj := &Object{
		Body:          resp.Body,
		ContentLength: aws.ToInt64(resp.ContentLength),
		ContentType:   aws.ToString(resp.ContentType),
		ETag:          aws.ToString(resp.ETag),
		Metadata:      NormalizeMetadata(resp.Metadata),
	}
	if resp.LastModified != nil {
		obj.LastModified = *resp.LastModified
	}
	return obj, nil
}

// CreateUpload starts a multipart upload session and returns its upload ID.
func (c *S3Client) CreateUpload(ctx context.Context, key, contentType string, metadata map[string]string) (string, error) {
	resp, err := c.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.s3Key(key)),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		return "", fmt.Errorf("creating multipart upload for %q: %w", key, err)
	}
	return aws.ToString(resp.UploadId), nil
}

// UploadPart sends one part of an open session and returns the ETag the
// backend assigned to the part's bytes.
func (c *S3Client) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error) {
	resp, err := c.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(c.s3Key(key)),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("uploading part %d: %w", partNumber, err)
	}
	return aws.ToString(resp.ETag), nil
}

// CompleteUpload finalizes a session from its recorded parts.
func (c *S3Client) CompleteUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		})
	}

	_, err := c.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(c.s3Key(key)),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return fmt.Errorf("completing multipart upload %q: %w", uploadID, err)
	}
	return nil
}

// AbortUpload discards a session and any parts uploaded so far.
func (c *S3Client) AbortUpload(ctx context.Context, key, uploadID string) error {
	_, err := c.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(c.s3Key(key)),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("aborting multipart upload %q: %w", uploadID, err)
	}
	return nil
}

// ReplaceMetadata copies an object onto itself with metadata-replace
// semantics: the supplied set overwrites the stored set wholesale.
func (c *S3Client) ReplaceMetadata(ctx context.Context, key, contentType string, metadata map[string]string) error {
	s3key := c.s3Key(key)
	copySource := url.PathEscape(c.bucket + "/" + s3key)

	_, err := c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(c.bucket),
		Key:               aws.String(s3key),
		CopySource:        aws.String(copySource),
		ContentType:       aws.String(contentType),
		Metadata:          metadata,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		if isNotFound(err) {
			return gwerr.ErrNotFound
		}
		return fmt.Errorf("replacing metadata on %q: %w", key, err)
	}
	return nil
}

// Delete removes an object. S3 DeleteObject does not error on missing keys.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.s3Key(key)),
	})
	if err != nil {
		return fmt.Errorf("deleting object %q: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-limited URL granting read access to key.
func (c *S3Client) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.s3Key(key)),
	}, func(o *s3.PresignOptions) {
		o.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presigning GET for %q: %w", key, err)
	}
	return req.URL, nil
}

// isNotFound checks if an AWS error is a 404/NoSuchKey/NotFound error.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404", "NoSuchBucket":
			return true
		}
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	return false
}

// NormalizeMetadata lowercases metadata keys. S3 returns user metadata keys
// lowercased, so normalizing on the way in keeps round-trips stable.
func NormalizeMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[strings.ToLower(k)] = v
	}
	return out
}

var _ Client = (*S3Client)(nil)
