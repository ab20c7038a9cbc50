// Package server implements the StoreGate HTTP server and request router.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/storegate/storegate/internal/auth"
	"github.com/storegate/storegate/internal/config"
	gwerr "github.com/storegate/storegate/internal/errors"
	"github.com/storegate/storegate/internal/handlers"
	"github.com/storegate/storegate/internal/storage"
	"github.com/storegate/storegate/internal/upload"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the StoreGate HTTP server. It routes incoming requests to the
// object handler by HTTP method; everything else is a fixed rejection.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	api        huma.API
	object     *handlers.ObjectHandler
	httpServer *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// New creates a Server wired to the given storage client. The authorization
// predicate and upload coordinator are built from the config.
func New(cfg *config.Config, store storage.Client) *Server {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("StoreGate API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	authz := auth.NewTokenAuthorizer(cfg.Auth.Token)
	uploader := upload.New(store, cfg.Upload.PartSize)
	presignExpiry := time.Duration(cfg.Upload.PresignExpiry) * time.Second

	s := &Server{
		cfg:    cfg,
		router: router,
		api:    api,
		object: handlers.NewObjectHandler(store, authz, uploader, presignExpiry),
	}

	s.registerRoutes()
	return s
}

// ListenAndServe starts the HTTP server on the given address.
// Middleware chain: metricsMiddleware -> commonHeaders -> metaHeaderMiddleware -> router.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped HTTP handler:
// metricsMiddleware -> commonHeaders -> metaHeaderMiddleware -> router.
// The meta-header rewrite must be the innermost wrapper so it sees the
// headers the handlers actually set. Tests use this to drive the server
// without a listening socket.
func (s *Server) Handler() http.Handler {
	return metricsMiddleware(commonHeaders(metaHeaderMiddleware(s.router)))
}

// registerRoutes configures all routes on the Chi router. Huma routes
// (/health, /docs, /openapi.json) and /metrics are registered first; the
// object catch-all /* is registered last. Chi matches more specific routes
// first.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the StoreGate server.",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
	})

	// Register HEAD /health separately (Huma only does one method per registration).
	s.router.Head("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	})

	s.router.Handle("/metrics", promhttp.Handler())

	// Object catch-all: all remaining requests go through the dispatcher.
	s.router.HandleFunc("/*", s.dispatch)
}

// objectKey extracts the object key from the request path. Nested paths are
// legal keys; an empty remainder means the request names no object.
func objectKey(path string) string {
	return strings.TrimPrefix(path, "/")
}

// dispatch routes a request by HTTP method to the matching object handler.
// Unmatched methods produce the fixed 405 rejection.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	key := objectKey(r.URL.Path)
	if key == "" {
		handlers.WriteError(w, r, gwerr.ErrNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Has("presign") {
			s.object.PresignObject(w, r, key)
		} else {
			s.object.GetObject(w, r, key)
		}
	case http.MethodPut:
		s.object.PutObject(w, r, key)
	case http.MethodPatch:
		s.object.PatchMetadata(w, r, key)
	case http.MethodDelete:
		s.object.DeleteObject(w, r, key)
	default:
		handlers.WriteError(w, r, gwerr.ErrMethodNotAllowed)
	}
}
