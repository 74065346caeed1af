package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ywcorp/corploango/internal/config"
	"github.com/ywcorp/corploango/internal/database"
	"github.com/ywcorp/corploango/internal/events"
	"github.com/ywcorp/corploango/internal/middleware"
	"github.com/ywcorp/corploango/internal/storage"
	"github.com/ywcorp/corploango/internal/workflow"
)

// Router holds the HTTP layer and its injected dependencies.
type Router struct {
	*mux.Router
	db       *database.DB
	workflow *workflow.Service
	store    *storage.Store
	hub      *events.Hub
	cfg      *config.Config
}

// NewRouter creates the router and registers all routes.
func NewRouter(db *database.DB, svc *workflow.Service, store *storage.Store, hub *events.Hub, cfg *config.Config) *Router {
	r := &Router{
		Router:   mux.NewRouter(),
		db:       db,
		workflow: svc,
		store:    store,
		hub:      hub,
		cfg:      cfg,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.HandleFunc("/api/health", r.handleHealth).Methods("GET")

	// Auth endpoints are always open
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", r.handleRegister).Methods("POST")
	auth.HandleFunc("/login", r.handleLogin).Methods("POST")
	auth.HandleFunc("/logout", r.handleLogout).Methods("POST")

	api := r.PathPrefix("/api/loans").Subrouter()
	if r.cfg.AuthRequired {
		api.Use(middleware.Auth(r.cfg.JWTSecret))
	}

	// /stats must register before /{id} or mux treats "stats" as a loan id
	api.HandleFunc("/stats", r.handleGetStats).Methods("GET")

	api.HandleFunc("", r.handleListLoans).Methods("GET")
	api.HandleFunc("", r.handleCreateLoan).Methods("POST")
	api.HandleFunc("/{id}", r.handleGetLoan).Methods("GET")
	api.HandleFunc("/{id}", r.handleDeleteLoan).Methods("DELETE")

	api.HandleFunc("/{id}/documents", r.handleUploadDocuments).Methods("POST")
	api.HandleFunc("/{id}/documents", r.handleListDocuments).Methods("GET")
	api.HandleFunc("/{id}/documents/{docId}/download", r.handleDownloadDocument).Methods("GET")

	api.HandleFunc("/{id}/workflow", r.handleWorkflowStatus).Methods("GET")
	api.HandleFunc("/{id}/workflow/advance", r.handleAdvanceStage).Methods("POST")
	api.HandleFunc("/{id}/stage", r.handleUpdateStage).Methods("PUT")

	api.HandleFunc("/{id}/report", r.handleLoanReport).Methods("GET")

	r.HandleFunc("/ws/events", func(w http.ResponseWriter, req *http.Request) {
		events.Serve(r.hub, w, req)
	}).Methods("GET")
}

// envelope is the single response shape every JSON endpoint uses.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: false, Error: message}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
