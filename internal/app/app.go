// Package app wires the hub, transports, and HTTP surface into one runnable
// server.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nova-strike/server"
	"nova-strike/server/internal/net/tcp"
	"nova-strike/server/internal/net/udp"
	"nova-strike/server/internal/net/ws"
	"nova-strike/server/internal/telemetry"
)

// Run boots the server and blocks until ctx is cancelled or a listener
// fails. Shutdown is graceful: listeners close first, then the HTTP server
// drains.
func Run(ctx context.Context, cfg server.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, sync := telemetry.NewZapLogger(telemetry.LogConfig{
		FilePath: cfg.LogFile,
		Debug:    cfg.Debug,
	})
	defer sync()

	metrics := telemetry.NewPromMetrics(prometheus.DefaultRegisterer)
	hub := server.NewHub(cfg, logger, metrics)

	tcpSrv := tcp.NewServer(hub, logger)
	if err := tcpSrv.Listen(cfg.TCPAddr); err != nil {
		return err
	}
	udpSrv := udp.NewServer(hub, logger)
	if err := udpSrv.Listen(cfg.UDPAddr); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	go func() { errCh <- tcpSrv.Serve(ctx) }()
	go func() { errCh <- udpSrv.Serve(ctx) }()
	go hub.Run(ctx)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: newRouter(hub, logger),
	}
	go func() {
		logger.Infof("http listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	return runErr
}

// newRouter builds the operator HTTP surface: health, diagnostics, metrics,
// and the websocket bridge.
func newRouter(hub *server.Hub, logger telemetry.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/diagnostics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.DiagnosticsSnapshot()); err != nil {
			logger.Warnf("diagnostics encode: %v", err)
		}
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/ws", ws.NewHandler(hub, logger))

	return r
}
