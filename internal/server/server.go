// Package server exposes builds and source images over HTTP.
//
// Routes:
//
//	GET|POST /image/atlas?bucket=<key>            list buckets, build an atlas
//	GET|POST /image/pixels?bucket=<key>&db=<key>  list buckets, build pixels, import colours
//	GET      /image/{shard}/{filename}            full-size image by shard
//	GET      /image/{id}?s=mini|full              image of one item
//	GET      /artifacts/atlas/..., /artifacts/pixels/...
//	GET      /metrics, /healthz
//
// Builds for the same bucket and kind are serialized; the engine leaves
// that to its callers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/danieljhkim/mosaic/internal/engine"
	"github.com/danieljhkim/mosaic/internal/locator"
	"github.com/danieljhkim/mosaic/internal/store"
)

// Service is the engine surface the server drives.
type Service interface {
	ListBuckets(ctx context.Context) ([]store.Bucket, error)
	BuildAtlas(ctx context.Context, bucket store.Bucket) (*engine.Artifact, error)
	BuildPixels(ctx context.Context, bucket store.Bucket) (*engine.Artifact, error)
	ImportColors(ctx context.Context, bucket store.Bucket) (*engine.ImportResult, error)
	LookupFilename(ctx context.Context, id string) (string, error)
	Locator() *locator.Locator
}

var _ Service = (*engine.Engine)(nil)

// Options configures a Server.
type Options struct {
	// AtlasDir and PixelsDir are served under /artifacts/
	AtlasDir  string
	PixelsDir string

	// Metrics serves /metrics when set
	Metrics http.Handler

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP request surface.
type Server struct {
	svc    Service
	opts   Options
	locks  *keyedMutex
	logger *zap.Logger
	mux    *http.ServeMux
}

// New creates a Server and registers its routes.
func New(svc Service, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:    svc,
		opts:   opts,
		locks:  newKeyedMutex(),
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /image/atlas", s.handleAtlas)
	s.mux.HandleFunc("POST /image/atlas", s.handleAtlas)
	s.mux.HandleFunc("GET /image/pixels", s.handlePixels)
	s.mux.HandleFunc("POST /image/pixels", s.handlePixels)
	s.mux.HandleFunc("GET /image/{shard}/{filename}", s.handleShardFile)
	s.mux.HandleFunc("GET /image/{id}", s.handleItemFile)

	s.mux.Handle("GET "+atlasPrefix, http.StripPrefix(atlasPrefix, dotfileDenier(http.FileServer(http.Dir(s.opts.AtlasDir)))))
	s.mux.Handle("GET "+pixelsPrefix, http.StripPrefix(pixelsPrefix, dotfileDenier(http.FileServer(http.Dir(s.opts.PixelsDir)))))

	if s.opts.Metrics != nil {
		s.mux.Handle("GET /metrics", s.opts.Metrics)
	}
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the routes wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(cors(s.mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
