package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	gwerr "github.com/storegate/storegate/internal/errors"
)

// MetaHeaderPrefix is the canonical form of the "x-store-" metadata header
// prefix as produced by Go's textproto.CanonicalMIMEHeaderKey. Request
// headers carrying it become object metadata; on responses the middleware
// layer lowercases it back to wire form.
const MetaHeaderPrefix = "X-Store-"

// tokenHeader carries the auth credential. It shares the metadata prefix but
// must never be persisted as object metadata.
const tokenHeader = "X-Store-Token"

// Reserved metadata keys with protocol meaning.
const (
	// metaVisibility set to "public" grants anonymous read.
	metaVisibility = "visibility"
	// metaType set to "text" forces a plain-text content type on read.
	metaType = "type"

	visibilityPublic = "public"
	storeTypeText    = "text"
)

// extractMetadata collects the custom metadata set from request headers:
// every header whose name carries the x-store- prefix, keyed by the
// lowercased suffix after the prefix. The auth token header is excluded.
func extractMetadata(h http.Header) map[string]string {
	var meta map[string]string
	for name, values := range h {
		if !strings.HasPrefix(name, MetaHeaderPrefix) || name == tokenHeader {
			continue
		}
		if len(values) == 0 {
			continue
		}
		if meta == nil {
			meta = make(map[string]string)
		}
		suffix := strings.ToLower(name[len(MetaHeaderPrefix):])
		meta[suffix] = values[0]
	}
	return meta
}

// WriteError maps a domain error to its HTTP status and writes the response
// body. Server-side failures are logged; the client only ever sees the
// mapped message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := gwerr.StatusOf(err)
	if status >= 500 {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, gwerr.MessageOf(err))
}

// writeOK writes the fixed 200 "OK" success response used by mutating verbs.
func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}
