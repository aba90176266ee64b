package web

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server configured for the given address and session.
func NewServer(addr string, broadcaster *StatusBroadcaster, sess Session) (*Server, error) {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("sub static fs: %w", err)
	}
	return &Server{
		addr:     addr,
		handlers: NewHandlers(broadcaster, sess, subFS),
	}, nil
}

// Router returns an http.Handler with all routes registered.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handlers.ServeIndex).Methods(http.MethodGet)
	r.HandleFunc("/state", s.handlers.HandleState).Methods(http.MethodGet)
	r.HandleFunc("/frame", s.handlers.HandleFrame).Methods(http.MethodGet)
	r.HandleFunc("/capture", s.handlers.HandleCapture).Methods(http.MethodPost)
	r.HandleFunc("/lens", s.handlers.HandleLens).Methods(http.MethodPost)
	r.HandleFunc("/flash", s.handlers.HandleFlash).Methods(http.MethodPost)
	r.HandleFunc("/dismiss", s.handlers.HandleDismiss).Methods(http.MethodPost)
	r.HandleFunc("/status/stream", s.handlers.HandleStatusStream).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.FS(s.handlers.staticFS))))

	return r
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("Web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
