// Package report exposes the fleet's live state over HTTP so external
// tooling can list connected bots and maintain the shared target list.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arven-dev/botfleet/internal/application"
	"github.com/arven-dev/botfleet/internal/ports"
)

func NewRouter(registry *application.Registry, targets *application.TargetList) http.Handler {
	s := &server{registry: registry, targets: targets}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/bots", s.handleBots)
	r.Post("/target", s.handleTarget)

	return r
}

type server struct {
	registry *application.Registry
	targets  *application.TargetList
}

func (s *server) handleBots(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"bots":    s.registry.Snapshot(),
	})
}

type targetRequest struct {
	Username string `json:"username"`
	Location string `json:"location"`
	Action   string `json:"action"`
}

func (s *server) handleTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Location = strings.TrimSpace(req.Location)

	// Both fields are required even for remove, which only filters by name.
	if req.Username == "" || req.Location == "" {
		writeAPIError(w, http.StatusBadRequest, "username and location are required")
		return
	}

	switch req.Action {
	case "", "add":
		s.targets.Add(application.Target{Username: req.Username, Location: req.Location})
	case "remove":
		s.targets.Remove(req.Username)
	default:
		writeAPIError(w, http.StatusBadRequest, "action must be add or remove")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"targetLocations": s.targets.Snapshot(),
	})
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs the report server until ctx is cancelled, then drains
// in-flight requests with a short grace period.
func Serve(ctx context.Context, addr string, handler http.Handler, status ports.StatusSink) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	status.Statusf("report server listening on %s", addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
