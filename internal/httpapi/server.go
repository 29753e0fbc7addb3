package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labgate/labgate/internal/labgate/service"
	"github.com/labgate/labgate/internal/labgate/store"
	"github.com/labgate/labgate/internal/labgate/types"
	"github.com/labgate/labgate/internal/obs"
)

// maxRequestBody caps the scan request body.  The only POST payload is a
// single identifier, so 4 KiB is generous.
const maxRequestBody = 4096

// Pinger is the slice of *sql.DB that healthz needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Dependencies struct {
	Logger *log.Logger
	Addr   string

	Toggle *service.ToggleService
	Views  *service.ViewService
	Roster *service.RosterService

	// DB is optional; when set, healthz verifies the storage layer.
	DB Pinger

	// Per-IP rate limit on the scan endpoint; 0 disables.
	ScanRatePerSec int
	ScanBurst      int
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	toggle     *service.ToggleService
	views      *service.ViewService
	roster     *service.RosterService
	db         Pinger
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger: d.Logger,
		mux:    mux,
		toggle: d.Toggle,
		views:  d.Views,
		roster: d.Roster,
		db:     d.DB,
	}

	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)
	mux.HandleFunc("PUT /api/users/{id}/authorized", s.handleSetAuthorized)
	mux.Handle("POST /api/scan",
		rateLimitMiddleware(http.HandlerFunc(s.handleScan), d.ScanRatePerSec, d.ScanBurst))
	mux.HandleFunc("GET /api/logs", s.handleRecentHistory)
	mux.HandleFunc("GET /api/active", s.handleCurrentlyInside)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", obs.Handler())

	handler := requestIDMiddleware(obs.Instrument(loggingMiddleware(d.Logger, mux)))

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req types.ScanRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.toggle.RecordScan(r.Context(), req.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyIdentifier):
			writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
			return
		case errors.Is(err, service.ErrInvalidUser):
			// Expected outcome, not an HTTP failure: the kiosk shows the
			// message and keeps scanning.
			writeJSON(w, http.StatusOK, types.ScanResponse{
				Success: false,
				Message: "Invalid user",
			})
			return
		default:
			s.logger.Printf("scan error: %v", err)
			writeJSON(w, http.StatusInternalServerError, types.ScanResponse{
				Success: false,
				Message: "internal error, try again",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.roster.ListAuthorized(r.Context())
	if err != nil {
		s.logger.Printf("list users error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if users == nil {
		users = []types.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.roster.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		s.logger.Printf("get user error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleSetAuthorized(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req struct {
		Authorized *bool `json:"authorized"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil || req.Authorized == nil {
		writeError(w, http.StatusBadRequest, "bad_json", "body must be {\"authorized\": true|false}")
		return
	}

	err := s.roster.SetAuthorized(r.Context(), r.PathValue("id"), *req.Authorized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		s.logger.Printf("set authorized error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleRecentHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.views.RecentHistory(r.Context())
	if err != nil {
		s.logger.Printf("recent history error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if entries == nil {
		entries = []types.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCurrentlyInside(w http.ResponseWriter, r *http.Request) {
	entries, err := s.views.CurrentlyInside(r.Context())
	if err != nil {
		s.logger.Printf("currently inside error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if entries == nil {
		entries = []types.ActiveEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Printf("healthz db ping: %v", err)
			writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "database ping failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
