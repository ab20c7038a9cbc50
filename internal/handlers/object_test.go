package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gwerr "github.com/storegate/storegate/internal/errors"
	"github.com/storegate/storegate/internal/storage"
	"github.com/storegate/storegate/internal/upload"
)

// fakeObject is one stored object in the in-memory fake.
type fakeObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

// fakeClient is an in-memory storage.Client for handler tests.
type fakeClient struct {
	objects      map[string]*fakeObject
	uploads      map[string]*fakeUpload
	nextUploadID int
	presignCalls int
}

type fakeUpload struct {
	key         string
	contentType string
	metadata    map[string]string
	parts       map[int32][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects: make(map[string]*fakeObject),
		uploads: make(map[string]*fakeUpload),
	}
}

func (f *fakeClient) Get(ctx context.Context, key string) (*storage.Object, error) {
	obj, ok := f.objects[key]
	if !ok {
		return nil, gwerr.ErrNotFound
	}
	return &storage.Object{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: int64(len(obj.data)),
		ContentType:   obj.contentType,
		ETag:          `"fake-etag"`,
		LastModified:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Metadata:      obj.metadata,
	}, nil
}

func (f *fakeClient) CreateUpload(ctx context.Context, key, contentType string, metadata map[string]string) (string, error) {
	f.nextUploadID++
	id := fmt.Sprintf("upload-%d", f.nextUploadID)
	f.uploads[id] = &fakeUpload{
		key:         key,
		contentType: contentType,
		metadata:    metadata,
		parts:       make(map[int32][]byte),
	}
	return id, nil
}

func (f *fakeClient) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error) {
	up, ok := f.uploads[uploadID]
	if !ok {
		return "", fmt.Errorf("no such upload %q", uploadID)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	up.parts[partNumber] = data
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (f *fakeClient) CompleteUpload(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) error {
	up, ok := f.uploads[uploadID]
	if !ok {
		return fmt.Errorf("no such upload %q", uploadID)
	}
	var assembled bytes.Buffer
	for _, p := range parts {
		assembled.Write(up.parts[p.PartNumber])
	}
	f.objects[up.key] = &fakeObject{
		data:        assembled.Bytes(),
		contentType: up.contentType,
		metadata:    up.metadata,
	}
	delete(f.uploads, uploadID)
	return nil
}

func (f *fakeClient) AbortUpload(ctx context.Context, key, uploadID string) error {
	delete(f.uploads, uploadID)
	return nil
}

func (f *fakeClient) ReplaceMetadata(ctx context.Context, key, contentType string, metadata map[string]string) error {
	obj, ok := f.objects[key]
	if !ok {
		return gwerr.ErrNotFound
	}
	obj.metadata = metadata
	obj.contentType = contentType
	return nil
}

func (f *fakeClient) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeClient) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	f.presignCalls++
	return "https://example.test/signed/" + key, nil
}

var _ storage.Client = (*fakeClient)(nil)

// stubAuthorizer answers every Allow call with a fixed verdict.
type stubAuthorizer struct{ allow bool }

func (a stubAuthorizer) Allow(r *http.Request) bool { return a.allow }

func newHandler(store *fakeClient, allow bool) *ObjectHandler {
	return NewObjectHandler(store, stubAuthorizer{allow: allow},
		upload.NewWithPartSize(store, 8), 15*time.Minute)
}

func doPut(t *testing.T, h *ObjectHandler, key, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPut, "/"+key, strings.NewReader(body))
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.PutObject(w, r, key)
	return w
}

func doGet(t *testing.T, h *ObjectHandler, key string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/"+key, nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.GetObject(w, r, key)
	return w
}

func TestPutThenGetPublicObject(t *testing.T) {
	store := newFakeClient()

	// Authorized PUT with a public visibility flag.
	w := doPut(t, newHandler(store, true), "a.txt", "hello world",
		map[string]string{"X-Store-Visibility": "public"})
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("PUT = %d %q", w.Code, w.Body.String())
	}

	// Anonymous GET must succeed: the object is public, so the predicate
	// is never consulted even though it would deny.
	w = doGet(t, newHandler(store, false), "a.txt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d", w.Code)
	}
	if w.Body.String() != "hello world" {
		t.Errorf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if got := w.Header().Get("X-Store-Visibility"); got != "public" {
		t.Errorf("x-store-visibility = %q", got)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("ETag missing")
	}
	if w.Header().Get("Last-Modified") == "" {
		t.Error("Last-Modified missing")
	}
}

func TestGetMissingAndUnauthorizedAreIndistinguishable(t *testing.T) {
	store := newFakeClient()
	doPut(t, newHandler(store, true), "secret.txt", "classified", nil)

	h := newHandler(store, false)
	missing := doGet(t, h, "absent.txt", nil)
	denied := doGet(t, h, "secret.txt", nil)

	if missing.Code != http.StatusNotFound {
		t.Errorf("GET missing = %d, want 404", missing.Code)
	}
	if denied.Code != missing.Code || denied.Body.String() != missing.Body.String() {
		t.Errorf("denied (%d %q) must be indistinguishable from missing (%d %q)",
			denied.Code, denied.Body.String(), missing.Code, missing.Body.String())
	}
}

func TestGetNonPublicAuthorized(t *testing.T) {
	store := newFakeClient()
	doPut(t, newHandler(store, true), "secret.txt", "classified", nil)

	w := doGet(t, newHandler(store, true), "secret.txt", nil)
	if w.Code != http.StatusOK || w.Body.String() != "classified" {
		t.Errorf("GET = %d %q", w.Code, w.Body.String())
	}
}

func TestPutUnauthorized(t *testing.T) {
	store := newFakeClient()
	w := doPut(t, newHandler(store, false), "a.txt", "nope", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("PUT unauthorized = %d, want 401", w.Code)
	}
	if len(store.objects) != 0 {
		t.Error("unauthorized PUT must not create an object")
	}
	if len(store.uploads) != 0 {
		t.Error("unauthorized PUT must not open an upload session")
	}
}

func TestPutEmptyBody(t *testing.T) {
	store := newFakeClient()
	w := doPut(t, newHandler(store, true), "empty.bin", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT empty = %d", w.Code)
	}
	obj, ok := store.objects["empty.bin"]
	if !ok {
		t.Fatal("zero-byte object missing")
	}
	if len(obj.data) != 0 {
		t.Errorf("object has %d bytes, want 0", len(obj.data))
	}
}

func TestPutInfersContentTypeFromExtension(t *testing.T) {
	store := newFakeClient()
	doPut(t, newHandler(store, true), "data.json", `{"a":1}`, nil)

	if ct := store.objects["data.json"].contentType; !strings.HasPrefix(ct, "application/json") {
		t.Errorf("stored content type = %q", ct)
	}
}

func TestTokenHeaderNotPersistedAsMetadata(t *testing.T) {
	store := newFakeClient()
	doPut(t, newHandler(store, true), "a.txt", "x", map[string]string{
		"X-Store-Token": "s3cret",
		"X-Store-Owner": "alice",
	})

	meta := store.objects["a.txt"].metadata
	if _, ok := meta["token"]; ok {
		t.Error("auth token leaked into object metadata")
	}
	if meta["owner"] != "alice" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestStoreTypeTextForcesPlainText(t *testing.T) {
	store := newFakeClient()
	doPut(t, newHandler(store, true), "log.bin", "plain log lines", map[string]string{
		"X-Store-Type":       "text",
		"X-Store-Visibility": "public",
	})

	w := doGet(t, newHandler(store, false), "log.bin", nil)
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("content type = %q, want forced text/plain", ct)
	}
}

func TestGetRederivesDefaultContentType(t *testing.T) {
	store := newFakeClient()
	// Simulate an object stored with the generic fallback type.
	store.objects["page.html"] = &fakeObject{
		data:        []byte("<html></html>"),
		contentType: "application/octet-stream",
		metadata:    map[string]string{"visibility": "public"},
	}

	w := doGet(t, newHandler(store, false), "page.html", nil)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want re-derived text/html", ct)
	}
}

func TestPatchReplacesMetadataWholesale(t *testing.T) {
	store := newFakeClient()
	h := newHandler(store, true)
	doPut(t, h, "doc.txt", "body", map[string]string{
		"X-Store-Visibility": "public",
		"X-Store-Owner":      "alice",
	})

	r := httptest.NewRequest(http.MethodPatch, "/doc.txt", nil)
	r.Header.Set("X-Store-Owner", "bob")
	w := httptest.NewRecorder()
	h.PatchMetadata(w, r, "doc.txt")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("PATCH = %d %q", w.Code, w.Body.String())
	}

	meta := store.objects["doc.txt"].metadata
	if meta["owner"] != "bob" {
		t.Errorf("owner = %q", meta["owner"])
	}
	if _, ok := meta["visibility"]; ok {
		t.Error("visibility must be gone: PATCH replaces, it does not merge")
	}
	if string(store.objects["doc.txt"].data) != "body" {
		t.Error("PATCH must not change content bytes")
	}
}

func TestPatchUnauthorized(t *testing.T) {
	store := newFakeClient()
	doPut(t, newHandler(store, true), "doc.txt", "body", nil)

	r := httptest.NewRequest(http.MethodPatch, "/doc.txt", nil)
	w := httptest.NewRecorder()
	newHandler(store, false).PatchMetadata(w, r, "doc.txt")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("PATCH unauthorized = %d, want 401", w.Code)
	}
}

func TestPatchMissingKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPatch, "/absent.txt", nil)
	w := httptest.NewRecorder()
	newHandler(newFakeClient(), true).PatchMetadata(w, r, "absent.txt")
	if w.Code != http.StatusNotFound {
		t.Errorf("PATCH missing = %d, want 404", w.Code)
	}
}

func TestDeleteObject(t *testing.T) {
	store := newFakeClient()
	h := newHandler(store, true)
	doPut(t, h, "gone.txt", "bye", nil)

	r := httptest.NewRequest(http.MethodDelete, "/gone.txt", nil)
	w := httptest.NewRecorder()
	h.DeleteObject(w, r, "gone.txt")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("DELETE = %d %q", w.Code, w.Body.String())
	}

	if got := doGet(t, h, "gone.txt", nil); got.Code != http.StatusNotFound {
		t.Errorf("GET after DELETE = %d, want 404", got.Code)
	}
}

func TestDeleteUnauthorized(t *testing.T) {
	store := newFakeClient()
	doPut(t, newHandler(store, true), "keep.txt", "still here", nil)

	r := httptest.NewRequest(http.MethodDelete, "/keep.txt", nil)
	w := httptest.NewRecorder()
	newHandler(store, false).DeleteObject(w, r, "keep.txt")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("DELETE unauthorized = %d, want 401", w.Code)
	}
	if _, ok := store.objects["keep.txt"]; !ok {
		t.Error("unauthorized DELETE must not remove the object")
	}
}

func TestPresignRequiresAuth(t *testing.T) {
	store := newFakeClient()
	doPut(t, newHandler(store, true), "share.pdf", "pdf bytes", nil)

	r := httptest.NewRequest(http.MethodGet, "/share.pdf?presign", nil)
	w := httptest.NewRecorder()
	newHandler(store, false).PresignObject(w, r, "share.pdf")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("presign unauthorized = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	newHandler(store, true).PresignObject(w, r, "share.pdf")
	if w.Code != http.StatusOK {
		t.Fatalf("presign = %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "https://example.test/signed/") {
		t.Errorf("presign body = %q", w.Body.String())
	}
}

func TestExtractMetadata(t *testing.T) {
	h := http.Header{}
	h.Set("X-Store-Visibility", "public")
	h.Set("X-Store-Type", "text")
	h.Set("X-Store-Token", "never-stored")
	h.Set("Content-Type", "text/plain")
	h.Set("Authorization", "Bearer tok")

	meta := extractMetadata(h)
	if len(meta) != 2 {
		t.Fatalf("metadata = %v, want exactly visibility and type", meta)
	}
	if meta["visibility"] != "public" || meta["type"] != "text" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestExtractMetadataEmpty(t *testing.T) {
	if meta := extractMetadata(http.Header{}); meta != nil {
		t.Errorf("metadata = %v, want nil", meta)
	}
}
