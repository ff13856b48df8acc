package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/ordsyncgo/internal/config"
	"github.com/xelth-com/ordsyncgo/internal/database"
	"github.com/xelth-com/ordsyncgo/internal/errlog"
	"github.com/xelth-com/ordsyncgo/internal/middleware"
	"github.com/xelth-com/ordsyncgo/internal/sync"
	"github.com/xelth-com/ordsyncgo/internal/websocket"
)

// Router wraps the mux router with the engine's collaborators
type Router struct {
	*mux.Router
	db           *database.DB
	cfg          *config.Config
	orchestrator *sync.Orchestrator
	runner       *sync.Runner
	states       *sync.StateStore
	manual       *sync.ManualQueue
	errors       *errlog.Logger
	hub          *websocket.Hub
}

// NewRouter creates the HTTP API. Everything under /api/sync is JWT-protected;
// /health, /api/auth/login and /ws are open.
func NewRouter(
	db *database.DB,
	cfg *config.Config,
	orchestrator *sync.Orchestrator,
	runner *sync.Runner,
	states *sync.StateStore,
	manual *sync.ManualQueue,
	errors *errlog.Logger,
	hub *websocket.Hub,
) *Router {
	r := &Router{
		Router:       mux.NewRouter(),
		db:           db,
		cfg:          cfg,
		orchestrator: orchestrator,
		runner:       runner,
		states:       states,
		manual:       manual,
		errors:       errors,
		hub:          hub,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")

	// Sync routes (protected)
	api := r.PathPrefix("/api/sync").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg))
	api.HandleFunc("/order/{id}", r.syncOrder).Methods("POST")
	api.HandleFunc("/bulk", r.startBulkSync).Methods("POST")
	api.HandleFunc("/jobs/{id}", r.getJobStatus).Methods("GET")
	api.HandleFunc("/jobs/{id}", r.cancelJob).Methods("DELETE")
	api.HandleFunc("/stats", r.getSyncStats).Methods("GET")
	api.HandleFunc("/state/{id}", r.getOrderState).Methods("GET")
	api.HandleFunc("/conflicts", r.listConflicts).Methods("GET")
	api.HandleFunc("/conflicts/resolve", r.resolveConflict).Methods("POST")
	api.HandleFunc("/errors", r.listErrors).Methods("GET")
	api.HandleFunc("/recovery/run", r.runRecovery).Methods("POST")

	// WebSocket event stream for admin UIs
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWs(hub, w, req)
	})

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "ordsync",
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
