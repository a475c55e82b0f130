package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"apbeeper/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const Version = "1.0.0"

// What the health endpoint reports about the discord connection
type Status struct {
	Connected bool       `json:"connected"`
	ReadyAt   *time.Time `json:"readyAt,omitempty"`
	Guilds    int        `json:"guilds"`
}

type StatusFunc func() Status

// Database reachability, nil when healthy
type PingFunc func() error

type Server struct {
	server  *http.Server
	status  StatusFunc
	ping    PingFunc
	started time.Time
}

func NewServer(port int, status StatusFunc, ping PingFunc, m *metrics.Metrics) *Server {
	server := &Server{status: status, ping: ping, started: time.Now()}
	server.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.routes(m),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server
}

func (server *Server) routes(m *metrics.Metrics) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/health", server.health)
	router.Handle("/metrics", m.Handler())
	router.Get("/", server.root)
	return router
}

func (server *Server) health(w http.ResponseWriter, r *http.Request) {

	status := server.status()
	response := map[string]interface{}{
		"status":    "healthy",
		"uptime":    int64(time.Since(server.started).Seconds()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"bot":       status,
		"version":   Version,
	}
	code := http.StatusOK
	if server.ping != nil {
		if err := server.ping(); err != nil {
			response["status"] = "unhealthy"
			response["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, response)
}

func (server *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":      "APBeeper Discord Bot",
		"version":   Version,
		"status":    "running",
		"endpoints": []string{"/health", "/metrics"},
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Could not write health response")
	}
}

// Serve until the context is done
func (server *Server) Run(ctx context.Context) error {

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.server.Addr).Msg("Health server listening")
		errs <- server.server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.server.Shutdown(shutdown); err != nil {
			return err
		}
		log.Info().Msg("Health server stopped")
		return nil
	}
}
