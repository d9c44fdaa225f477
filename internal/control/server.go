package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rezoom-ai/promptgate/internal/infra/llm/registry"
)

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	service *Service
	server  *http.Server
}

// NewServer creates a new health server.
func NewServer(service *Service, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		service: service,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth reports aggregate health: healthy when at least one
// provider is available, degraded when some are down, critical when
// none are up or the database is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.service.registry.Statuses()

	available := 0
	for _, st := range statuses {
		if st.Available {
			available++
		}
	}

	status := "healthy"
	if available < len(statuses) {
		status = "degraded"
	}
	if available == 0 {
		status = "critical"
	}

	if s.service.db != nil {
		if err := s.service.db.Health(r.Context()); err != nil {
			status = "critical"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status == "critical" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

type detailedReport struct {
	Providers []registry.Status `json:"providers"`
	Database  string            `json:"database,omitempty"`
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := detailedReport{Providers: s.service.registry.Statuses()}

	if s.service.db != nil {
		report.Database = "healthy"
		if err := s.service.db.Health(r.Context()); err != nil {
			report.Database = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
