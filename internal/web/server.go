// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/hashfs"

	"go.astrophena.name/bountybot/internal/logger"
)

// Server configures the HTTP server started by [Server.ListenAndServe].
//
// Fields of Server can't be modified after ListenAndServe is called.
type Server struct {
	// Addr is a network address to listen on (in the form of "host:port").
	Addr string
	// Mux is a http.ServeMux to serve.
	Mux *http.ServeMux
	// Logger is used for server messages. If nil, the logger from the context
	// passed to ListenAndServe is used.
	Logger *slog.Logger
	// Logs, if set, is served at /debug/logs.
	Logs logger.Streamer
	// Ready, if set, is called once the server is listening.
	Ready func(addr string)
}

var (
	errNoAddr = errors.New("server: Addr is empty")
	errNilMux = errors.New("server: Mux is nil")
)

// ListenAndServe starts the HTTP server and blocks until ctx is canceled or
// the server fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Addr == "" {
		return errNoAddr
	}
	if s.Mux == nil {
		return errNilMux
	}
	log := s.Logger
	if log == nil {
		log = logger.Get(ctx)
	}

	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer l.Close()
	log.Info("listening", "addr", l.Addr().String())

	s.Mux.Handle("GET /static/", hashfs.FileServer(StaticFS))
	Health(s.Mux)
	if s.Logs != nil {
		s.Mux.Handle("GET /debug/logs", s.Logs)
	}

	httpSrv := &http.Server{
		Handler:           withLogger(log, s.Mux),
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if s.Ready != nil {
		s.Ready(l.Addr().String())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

func withLogger(l *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logger.Put(r.Context(), l)))
	})
}
