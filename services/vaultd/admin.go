package vaultd

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	"github.com/hustletexas/cyber-arcade-verse-rally/services/vaultd/audit"
)

// AdminServer exposes HTTP endpoints for operator controls.
type AdminServer struct {
	app    *app.App
	audit  *audit.Store
	hub    *Hub
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewAdminServer constructs a server wrapping the app. Every route sits
// behind auth.
func NewAdminServer(a *app.App, store *audit.Store, hub *Hub, auth *BearerAuthenticator, logger *slog.Logger) *AdminServer {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	server := &AdminServer{app: a, audit: store, hub: hub, logger: logger, mux: mux}
	mux.Handle("/pause", auth.Middleware(http.HandlerFunc(server.handlePause)))
	mux.Handle("/resume", auth.Middleware(http.HandlerFunc(server.handleResume)))
	mux.Handle("/status", auth.Middleware(http.HandlerFunc(server.handleStatus)))
	mux.Handle("/audit/verify", auth.Middleware(http.HandlerFunc(server.handleVerify)))
	return server
}

// ServeHTTP implements http.Handler.
func (s *AdminServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *AdminServer) handlePause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, true)
}

func (s *AdminServer) handleResume(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, false)
}

func (s *AdminServer) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.togglePause(r.Context(), paused); err != nil {
		writeJSON(w, StatusFor(err), errorResponse{Error: err.Error()})
		return
	}
	s.logger.InfoContext(r.Context(), "operator toggled pause", slog.Bool("paused", paused))
	w.WriteHeader(http.StatusNoContent)
}

func (s *AdminServer) togglePause(ctx context.Context, paused bool) error {
	admin, err := s.app.Admin(ctx)
	if err != nil {
		return err
	}
	return s.app.SetPaused(ctx, admin, paused)
}

// Status summarises the daemon for operators.
type Status struct {
	Sequence    uint64          `json:"sequence"`
	Paused      map[string]bool `json:"paused"`
	AuditIndex  uint64          `json:"audit_index"`
	AuditHead   string          `json:"audit_head,omitempty"`
	Subscribers int             `json:"subscribers"`
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	paused, err := s.app.Paused(r.Context())
	if err != nil {
		writeJSON(w, StatusFor(err), errorResponse{Error: err.Error()})
		return
	}
	seq, err := s.app.Runtime().Sequence()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	status := Status{Sequence: seq, Paused: paused}
	if s.audit != nil {
		if head := s.audit.Head(); head != nil {
			status.AuditIndex = head.Index
			status.AuditHead = head.Hash
		}
	}
	if s.hub != nil {
		status.Subscribers = s.hub.Subscribers()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *AdminServer) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.audit == nil {
		http.Error(w, "audit store unavailable", http.StatusServiceUnavailable)
		return
	}
	checked, err := s.audit.VerifyChain()
	if err != nil {
		s.logger.ErrorContext(r.Context(), "audit chain verification failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "checked": strconv.FormatUint(checked, 10)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"checked": checked})
}
