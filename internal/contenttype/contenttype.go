// Package contenttype maps filename extensions to MIME types.
package contenttype

import (
	"mime"
	"path/filepath"
	"strings"
)

// DefaultType is the fallback content type when the extension is unknown.
const DefaultType = "application/octet-stream"

// TextType is the content type forced on read when the store-type metadata
// flag equals "text".
const TextType = "text/plain; charset=utf-8"

// Resolve maps a filename's extension to a MIME type. Unknown or missing
// extensions resolve to DefaultType.
func Resolve(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return DefaultType
	}
	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return DefaultType
	}
	return ct
}

// IsDefault reports whether ct is the generic fallback type. The read path
// re-derives the content type from the key's extension when the stored value
// is the fallback.
func IsDefault(ct string) bool {
	return ct == "" || strings.HasPrefix(ct, DefaultType)
}
