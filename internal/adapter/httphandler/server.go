package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerConfig struct {
	Addr           string
	RequestTimeout time.Duration
}

type HTTPServer struct {
	httpServer *http.Server
}

// NewHTTPServer serves mux with request ids, route metrics and
// the JSON body check. The /metrics route is registered on mux.
func NewHTTPServer(cfg ServerConfig, mux *http.ServeMux) HTTPServer {
	mux.Handle("GET /metrics", promhttp.Handler())

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var handler http.Handler = mux
	handler = AllowJSON(handler)
	handler = Metrics(handler)
	handler = RequestID(handler)
	handler = http.TimeoutHandler(handler, timeout, "unavailable")

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Second,
	}
	return HTTPServer{s}
}

func (s HTTPServer) Run(stopFn context.CancelFunc) {
	const op = "HTTPServer.Run"
	log := slog.With("op", op)

	defer stopFn()
	log.Info("http server is running", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		log.Error("unexpected servers shutdown", "err", err)
	}
}

func (s HTTPServer) Close(ctx context.Context) {
	const op = "HTTPServer.Close"
	log := slog.With("op", op)

	log.Info("closing http server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		log.Error("failed to shutdown gracefully", "err", err)
	}
	log.Info("http server is closed")
}

func (s HTTPServer) Handler() http.Handler {
	return s.httpServer.Handler
}
