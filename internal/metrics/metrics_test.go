package metrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/docs", "/docs"},
		{"/docs/assets/app.js", "/docs"},
		{"/openapi.json", "/openapi.json"},
		{"/", "/"},
		{"", "/"},
		{"/report.pdf", "/{filename}"},
		{"/nested/path/file.txt", "/{filename}"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestRegisterIdempotent(t *testing.T) {
	// MustRegister panics on duplicate registration; calling twice must not.
	Register()
	Register()
}
