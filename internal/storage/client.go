// Package storage provides the S3 client adapter for StoreGate.
//
// The gateway proxies all data operations to an upstream S3-compatible
// bucket via the AWS SDK for Go v2. The gateway itself holds no object
// state; every object and multipart session lives in the upstream store.
package storage

import (
	"context"
	"io"
	"time"
)

// Object is a read view of a stored object. The caller owns Body and must
// close it.
type Object struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	ETag          string
	LastModified  time.Time
	// Metadata is the custom metadata set. Keys are the lowercased
	// header-name suffix after the x-store- prefix.
	Metadata map[string]string
}

// CompletedPart records one uploaded part of a multipart session: its
// 1-based sequence number and the integrity tag the backend returned.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// Client is the storage operations surface the gateway depends on. It is an
// interface so handlers and the upload coordinator can be tested against a
// fake store.
type Client interface {
	// Get retrieves an object. Returns errors.ErrNotFound when the key
	// does not exist upstream.
	Get(ctx context.Context, key string) (*Object, error)

	// CreateUpload starts a multipart upload session for key, attaching
	// the content type and custom metadata that the durable object will
	// carry. Returns the backend-issued upload ID.
	CreateUpload(ctx context.Context, key, contentType string, metadata map[string]string) (string, error)

	// UploadPart sends one part of an open session and returns its ETag.
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error)

	// CompleteUpload finalizes a session from its recorded parts, making
	// the object durable.
	CompleteUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error

	// AbortUpload discards a session and any parts uploaded so far.
	AbortUpload(ctx context.Context, key, uploadID string) error

	// ReplaceMetadata overwrites an object's custom metadata set wholesale
	// via a copy-in-place. Content bytes are unchanged. Returns
	// errors.ErrNotFound when the key does not exist.
	ReplaceMetadata(ctx context.Context, key, contentType string, metadata map[string]string) error

	// Delete removes an object. Idempotent.
	Delete(ctx context.Context, key string) error

	// PresignGet returns a time-limited URL granting read access to key.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
