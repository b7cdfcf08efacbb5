// Package api exposes the crawler's minimal operator-facing admin surface:
// a liveness probe, a Prometheus scrape endpoint and a recent-alerts
// listing. The full REST API the teacher builds with fiber is out of scope
// here (see DESIGN.md); three endpoints don't justify pulling in a web
// framework.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeffrey/intellinieuws/internal/alerting"
	"github.com/jeffrey/intellinieuws/pkg/logger"
)

// Config controls the admin server's bind address.
type Config struct {
	Port int
}

// Server serves /healthz, /metrics, and /alerts over plain net/http.
type Server struct {
	cfg  Config
	http *http.Server
	log  *logger.Logger
}

// NewServer wires the admin mux. alerts may be nil, in which case /alerts
// reports an empty snapshot instead of 500ing.
func NewServer(cfg Config, reg *prometheus.Registry, alerts *alerting.Manager, log *logger.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/alerts", alertsHandler(alerts))

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.WithComponent("admin-server"),
	}
}

// alertsHandler reports recent alert history and per-(type, service) rate
// limit budgets, for operator introspection (spec §4.4's GetHistory and the
// SUPPLEMENT rate-limit-status mirror of alert_manager.py).
func alertsHandler(alerts *alerting.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if alerts == nil {
			w.Write([]byte(`{"history":[],"rate_limits":[]}`))
			return
		}
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		payload := struct {
			History    []alerting.Alert           `json:"history"`
			RateLimits []alerting.RateLimitEntry `json:"rate_limits"`
		}{
			History:    alerts.GetHistory(limit),
			RateLimits: alerts.RateLimitStatus(),
		}
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Start blocks serving until the listener is closed.
func (s *Server) Start() error {
	s.log.Infof("admin server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
