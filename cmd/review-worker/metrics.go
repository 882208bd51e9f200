package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

func metricsRouter(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metricsHandler)
	return r
}

func serveMetrics(port string, metricsHandler http.Handler, logger *logging.Logger) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           metricsRouter(metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("review worker metrics listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", "error", err)
	}
}
