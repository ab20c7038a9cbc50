// Package upload implements the multipart upload coordinator, the state
// machine at the heart of StoreGate's PUT path.
//
// A session moves Created -> Uploading -> {Completed | Aborted}. The
// coordinator streams an unbounded request body into bounded parts, tracks
// part ETags in order, and guarantees that a failed upload aborts the
// session server-side instead of leaving orphaned parts behind.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	gwerr "github.com/storegate/storegate/internal/errors"
	"github.com/storegate/storegate/internal/metrics"
	"github.com/storegate/storegate/internal/storage"
)

// DefaultPartSize is the part-size target in bytes. 5 MiB is the S3 minimum
// for every part except the last.
const DefaultPartSize = 5 * 1024 * 1024

// abortTimeout bounds the detached abort call so a wedged backend cannot
// hold the request goroutine open indefinitely.
const abortTimeout = 30 * time.Second

// Coordinator drives the part-by-part lifecycle of one multipart upload.
// It holds no state across calls; each Upload invocation owns its session
// exclusively.
type Coordinator struct {
	store    storage.Client
	partSize int64
}

// New creates a Coordinator uploading parts of the given size target.
// Sizes below DefaultPartSize are raised to it.
func New(store storage.Client, partSize int64) *Coordinator {
	if partSize < DefaultPartSize {
		partSize = DefaultPartSize
	}
	return &Coordinator{store: store, partSize: partSize}
}

// NewWithPartSize creates a Coordinator with an unclamped part size. Only
// tests use this; production callers go through New.
func NewWithPartSize(store storage.Client, partSize int64) *Coordinator {
	return &Coordinator{store: store, partSize: partSize}
}

// Upload streams body into a new multipart session for key and makes the
// result durable. On success the durable object's bytes equal the exact
// concatenation of the body's chunks. On any failure after initiation the
// session is aborted exactly once before the triggering error is returned;
// no partial object survives.
//
// An empty body is not an error: it completes the session with an empty
// part list, producing a zero-byte durable object.
func (c *Coordinator) Upload(ctx context.Context, key, contentType string, metadata map[string]string, body io.Reader) error {
	uploadID, err := c.store.CreateUpload(ctx, key, contentType, metadata)
	if err != nil {
		// No session exists yet, so there is nothing to clean up.
		return gwerr.Initiation(err)
	}

	parts, size, err := c.uploadParts(ctx, key, uploadID, body)
	if err != nil {
		c.abort(ctx, key, uploadID)
		return err
	}

	// Ascending part-number order regardless of upload order.
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].PartNumber < parts[j].PartNumber
	})

	if err := c.store.CompleteUpload(ctx, key, uploadID, parts); err != nil {
		c.abort(ctx, key, uploadID)
		return gwerr.Completion(err)
	}

	metrics.UploadedBytesTotal.Add(float64(size))
	slog.Debug("upload completed", "key", key, "upload_id", uploadID, "parts", len(parts), "bytes", size)
	return nil
}

// uploadParts reads body into partSize buffers and uploads each full buffer
// as one part, assigning part numbers 1..N in read order. The final partial
// buffer becomes the last part. Part uploads are strictly sequential: part
// N+1 is not sent until part N's call has returned.
func (c *Coordinator) uploadParts(ctx context.Context, key, uploadID string, body io.Reader) ([]storage.CompletedPart, int64, error) {
	var (
		parts      []storage.CompletedPart
		total      int64
		partNumber int32
	)

	buf := make([]byte, c.partSize)
	for {
		n, readErr := io.ReadFull(body, buf)
		if n > 0 {
			partNumber++
			etag, err := c.store.UploadPart(ctx, key, uploadID, partNumber, bytes.NewReader(buf[:n]), int64(n))
			if err != nil {
				return nil, 0, gwerr.PartUpload(err)
			}
			parts = append(parts, storage.CompletedPart{PartNumber: partNumber, ETag: etag})
			total += int64(n)
			metrics.UploadPartsTotal.Inc()
		}

		switch readErr {
		case nil:
			// Buffer filled exactly; keep reading.
		case io.EOF, io.ErrUnexpectedEOF:
			// End of stream. Residual bytes (if any) were just uploaded.
			return parts, total, nil
		default:
			// A dropped connection mid-body lands here and aborts the
			// session like any other failure.
			return nil, 0, gwerr.PartUpload(fmt.Errorf("reading body: %w", readErr))
		}
	}
}

// abort issues exactly one abort-multipart call for the session. It is
// best-effort: a failed abort is logged and counted but never replaces the
// error that triggered it. Either way the session is terminal afterwards.
//
// The failure that triggers the abort is often the client dropping the
// connection, which cancels the request context. The abort must still reach
// the backend, so it runs detached from the request's cancellation with its
// own deadline.
func (c *Coordinator) abort(ctx context.Context, key, uploadID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	if err := c.store.AbortUpload(ctx, key, uploadID); err != nil {
		abortErr := gwerr.Abort(err)
		slog.Error("failed to abort multipart upload", "key", key, "upload_id", uploadID, "error", abortErr)
		metrics.UploadAbortsTotal.WithLabelValues("failed").Inc()
		return
	}
	slog.Warn("aborted multipart upload", "key", key, "upload_id", uploadID)
	metrics.UploadAbortsTotal.WithLabelValues("ok").Inc()
}
