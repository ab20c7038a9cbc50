// Package handlers implements the StoreGate resource handlers: one stored
// object per filename, manipulated through GET, PUT, PATCH, and DELETE.
package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/storegate/storegate/internal/auth"
	"github.com/storegate/storegate/internal/contenttype"
	gwerr "github.com/storegate/storegate/internal/errors"
	"github.com/storegate/storegate/internal/metrics"
	"github.com/storegate/storegate/internal/storage"
	"github.com/storegate/storegate/internal/upload"
)

// ObjectHandler serves the four object verbs. It owns no object state; all
// mutation happens in the upstream store.
type ObjectHandler struct {
	store         storage.Client
	authz         auth.Authorizer
	uploader      *upload.Coordinator
	presignExpiry time.Duration
}

// NewObjectHandler creates an ObjectHandler with injected dependencies.
func NewObjectHandler(store storage.Client, authz auth.Authorizer, uploader *upload.Coordinator, presignExpiry time.Duration) *ObjectHandler {
	return &ObjectHandler{
		store:         store,
		authz:         authz,
		uploader:      uploader,
		presignExpiry: presignExpiry,
	}
}

// authorize gates a mutating verb. On denial it writes 401 and returns false.
func (h *ObjectHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.authz.Allow(r) {
		return true
	}
	metrics.UnauthorizedTotal.WithLabelValues(r.Method).Inc()
	WriteError(w, r, gwerr.ErrUnauthorized)
	return false
}

// GetObject streams an object back to the client with its derived headers.
//
// Reads of non-public objects are gated by the authorization predicate, and
// a denied read is answered exactly like a missing key (404) so callers
// cannot probe for existence.
func (h *ObjectHandler) GetObject(w http.ResponseWriter, r *http.Request, key string) {
	obj, err := h.store.Get(r.Context(), key)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	defer obj.Body.Close()

	if obj.Metadata[metaVisibility] != visibilityPublic && !h.authz.Allow(r) {
		WriteError(w, r, gwerr.ErrNotFound)
		return
	}

	// Custom metadata entries become response headers verbatim.
	for k, v := range obj.Metadata {
		w.Header().Set(MetaHeaderPrefix+k, v)
	}

	ct := obj.ContentType
	if contenttype.IsDefault(ct) {
		ct = contenttype.Resolve(key)
	}
	if obj.Metadata[metaType] == storeTypeText {
		ct = contenttype.TextType
	}
	w.Header().Set("Content-Type", ct)

	if obj.ETag != "" {
		w.Header().Set("ETag", obj.ETag)
	}
	if !obj.LastModified.IsZero() {
		w.Header().Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		// Headers are gone; all we can do is log the broken transfer.
		slog.Warn("object stream interrupted", "key", key, "error", err)
	}
}

// PutObject streams the request body into a multipart upload session for
// key. The content type is inferred from the key's extension and the
// x-store-* request headers become the object's custom metadata set.
func (h *ObjectHandler) PutObject(w http.ResponseWriter, r *http.Request, key string) {
	if !h.authorize(w, r) {
		return
	}

	ct := contenttype.Resolve(key)
	meta := extractMetadata(r.Header)

	if err := h.uploader.Upload(r.Context(), key, ct, meta, r.Body); err != nil {
		WriteError(w, r, err)
		return
	}
	writeOK(w)
}

// PatchMetadata replaces the object's custom metadata set wholesale with the
// x-store-* headers of this request. Content bytes are unchanged; keys
// absent from the new set are gone afterwards.
func (h *ObjectHandler) PatchMetadata(w http.ResponseWriter, r *http.Request, key string) {
	if !h.authorize(w, r) {
		return
	}

	meta := extractMetadata(r.Header)
	if err := h.store.ReplaceMetadata(r.Context(), key, contenttype.Resolve(key), meta); err != nil {
		WriteError(w, r, err)
		return
	}
	writeOK(w)
}

// DeleteObject removes the object.
func (h *ObjectHandler) DeleteObject(w http.ResponseWriter, r *http.Request, key string) {
	if !h.authorize(w, r) {
		return
	}

	if err := h.store.Delete(r.Context(), key); err != nil {
		WriteError(w, r, err)
		return
	}
	writeOK(w)
}

// PresignObject returns a time-limited presigned GET URL for key as plain
// text. Unlike public reads, presigning always requires authorization: the
// returned URL itself grants access.
func (h *ObjectHandler) PresignObject(w http.ResponseWriter, r *http.Request, key string) {
	if !h.authorize(w, r) {
		return
	}

	url, err := h.store.PresignGet(r.Context(), key, h.presignExpiry)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, url)
}
