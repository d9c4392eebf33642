package vaultd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hustletexas/cyber-arcade-verse-rally/config"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/observability"
)

const maxRequestBody = 1 << 20

// ServerConfig captures the dependencies of the public API.
type ServerConfig struct {
	App            *app.App
	Hub            *Hub
	Auth           *TokenAuthenticator
	RateLimiter    *RateLimiter
	Logger         *slog.Logger
	OriginPatterns []string
}

// Server serves the public protocol API.
type Server struct {
	app            *app.App
	hub            *Hub
	auth           *TokenAuthenticator
	limiter        *RateLimiter
	logger         *slog.Logger
	originPatterns []string

	router http.Handler
}

// NewServer wires the router.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app required")
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("token authenticator required")
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.OriginPatterns) == 0 {
		cfg.OriginPatterns = []string{"*"}
	}
	s := &Server{
		app:            cfg.App,
		hub:            cfg.Hub,
		auth:           cfg.Auth,
		limiter:        cfg.RateLimiter,
		logger:         cfg.Logger,
		originPatterns: cfg.OriginPatterns,
	}
	s.router = s.buildRouter()
	return s, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler { return s.router }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.auth.Middleware)
		if s.limiter != nil {
			api.Use(s.limiter.Middleware("api"))
		}

		api.Route("/vault", func(v chi.Router) {
			v.Use(instrument("vault"))
			v.Route("/tournaments", func(t chi.Router) {
				t.Post("/", s.handleCreateTournament)
				t.Get("/{id}", s.handleGetTournament)
				t.Post("/{id}/enter", s.handleEnterTournament)
				t.Post("/{id}/payout", s.handlePayout)
				t.Get("/{id}/payouts/{nonce}", s.handleGetReceipt)
				t.Post("/{id}/refund", s.handleRefund)
				t.Post("/{id}/finalize", s.handleFinalize)
			})
			v.Post("/global-cap", s.handleSetGlobalCap)
			v.Post("/admin", s.handleRotateVaultAdmin)
			v.Post("/attestors", s.handleSetVaultAttestors)
			v.Post("/multisig", s.handleConfigureMultisig)
		})
		api.Route("/treasury", func(t chi.Router) {
			t.Use(instrument("treasury"))
			t.Post("/fund", s.handleFundTreasury)
			t.Get("/balance", s.handleTreasuryBalance)
			t.Post("/proposals", s.handlePropose)
			t.Get("/proposals/{id}", s.handleGetProposal)
			t.Post("/proposals/{id}/approve", s.handleApprove)
		})
		api.Route("/nodes", func(n chi.Router) {
			n.Use(instrument("nodes"))
			n.Post("/purchase", s.handlePurchaseNode)
			n.Post("/claim", s.handleClaimNodeRewards)
			n.Post("/tiers/{tier}", s.handleUpdateTier)
			n.Get("/{owner}", s.handleListNodes)
			n.Get("/{owner}/pending", s.handlePendingNodeRewards)
		})
		api.Route("/hosts", func(h chi.Router) {
			h.Use(instrument("hosts"))
			h.Post("/register", s.handleRegisterHost)
			h.Post("/stake", s.handleAddStake)
			h.Post("/withdraw", s.handleWithdrawStake)
			h.Post("/heartbeat", s.handleHeartbeat)
			h.Post("/pool", s.handleFundHostPool)
			h.Post("/claim", s.handleHostClaim)
			h.Post("/jobs", s.handleCreateJob)
			h.Get("/jobs/{id}", s.handleGetJob)
			h.Post("/jobs/{id}/complete", s.handleCompleteJob)
			h.Post("/jobs/{id}/dispute", s.handleDisputeJob)
			h.Post("/jobs/{id}/cancel", s.handleCancelJob)
			h.Get("/{host}", s.handleGetHost)
			h.Post("/{host}/slash", s.handleSlashHost)
		})
		api.Route("/lp", func(l chi.Router) {
			l.Use(instrument("lp"))
			l.Post("/rewards", s.handleFundRewards)
			l.Route("/pools/{id}", func(p chi.Router) {
				p.Get("/", s.handleGetPool)
				p.Post("/stake", s.handleStake)
				p.Post("/unstake", s.handleUnstake)
				p.Post("/claim", s.handleClaimLP)
				p.Get("/positions/{owner}", s.handleGetPosition)
			})
		})
		api.Route("/raffles", func(rf chi.Router) {
			rf.Use(instrument("raffle"))
			rf.Post("/", s.handleCreateRaffle)
			rf.Get("/{id}", s.handleGetRaffle)
			rf.Post("/{id}/tickets", s.handleBuyTickets)
			rf.Post("/{id}/draw", s.handleDrawRaffle)
			rf.Post("/{id}/cancel", s.handleCancelRaffle)
		})
		api.Route("/tokens", func(t chi.Router) {
			t.Use(instrument("tokens"))
			t.Post("/transfer", s.handleTransfer)
			t.Post("/approve", s.handleApprove)
			t.Post("/mint", s.handleMint)
			t.Post("/burn", s.handleBurn)
			t.Get("/{addr}/balance", s.handleBalance)
		})
		api.Route("/results", func(rs chi.Router) {
			rs.Use(instrument("results"))
			rs.Post("/matches", s.handleAttestMatch)
			rs.Get("/matches/{id}", s.handleGetMatch)
			rs.Post("/matches/{id}/verify", s.handleVerifyMatch)
			rs.Get("/matches/{id}/disputes", s.handleMatchDisputes)
			rs.Post("/tournaments", s.handleAttestTournament)
			rs.Get("/tournaments/{id}", s.handleGetStanding)
			rs.Post("/disputes", s.handleFileDispute)
			rs.Get("/disputes/{id}", s.handleGetDispute)
			rs.Post("/disputes/{id}/resolve", s.handleResolveDispute)
			rs.Get("/keys", s.handleListResultKeys)
			rs.Post("/keys", s.handleAddResultKey)
			rs.Delete("/keys/{key}", s.handleRemoveResultKey)
		})
		api.Route("/brackets", func(b chi.Router) {
			b.Use(instrument("bracket"))
			b.Post("/", s.handleCreateBracket)
			b.Get("/{id}", s.handleGetBracket)
			b.Get("/{id}/standings", s.handleBracketStandings)
			b.Post("/{id}/join", s.handleJoinBracket)
			b.Post("/{id}/start", s.handleStartBracket)
			b.Post("/{id}/scores", s.handleSubmitScore)
			b.Post("/{id}/complete", s.handleCompleteBracket)
			b.Post("/{id}/cancel", s.handleCancelBracket)
		})
		api.Route("/credits", func(c chi.Router) {
			c.Use(instrument("credits"))
			c.Get("/packages", s.handleListPackages)
			c.Post("/packages", s.handleCreatePackage)
			c.Post("/buy", s.handleBuyCredits)
			c.Post("/rewards", s.handleRewardActivity)
			c.Post("/awards", s.handleAwardCredits)
			c.Post("/spend", s.handleSpendCredits)
			c.Post("/transfer", s.handleTransferCredits)
			c.Post("/burn", s.handleBurnCredits)
			c.Get("/accounts/{addr}", s.handleCreditAccount)
		})
		api.Get("/events/ws", s.handleEventsWS)
	})

	return otelhttp.NewHandler(r, "vaultd")
}

func instrument(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			observability.ModuleMetrics().Observe(module, routeName(r), status, time.Since(start))
		})
	}
}

func routeName(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return r.Method + " " + pattern
		}
	}
	return r.Method
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready, err := s.app.Initialized(r.Context())
	if err != nil || !ready {
		writeError(w, http.StatusServiceUnavailable, "not initialized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Class string `json:"class,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// StatusFor maps a protocol error onto an HTTP status by its class.
func StatusFor(err error) int {
	switch coreerrors.Classify(err) {
	case coreerrors.ClassSetup:
		return http.StatusServiceUnavailable
	case coreerrors.ClassNeverRetry:
		if errors.Is(err, coreerrors.ErrUnauthorized) {
			return http.StatusForbidden
		}
		return http.StatusConflict
	case coreerrors.ClassRetryLater:
		if errors.Is(err, coreerrors.ErrContractPaused) {
			return http.StatusServiceUnavailable
		}
		return http.StatusConflict
	case coreerrors.ClassCallerError:
		switch {
		case errors.Is(err, coreerrors.ErrNotFound):
			return http.StatusNotFound
		case errors.Is(err, coreerrors.ErrAlreadyExists),
			errors.Is(err, coreerrors.ErrDuplicateApproval),
			errors.Is(err, coreerrors.ErrAlreadyExecuted),
			errors.Is(err, coreerrors.ErrFinalized):
			return http.StatusConflict
		default:
			return http.StatusBadRequest
		}
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	resp := errorResponse{Error: err.Error(), Kind: coreerrors.Kind(err), Class: coreerrors.Classify(err).String()}
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("route", routeName(r)),
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		resp = errorResponse{Error: "internal error", Kind: "internal"}
	}
	writeJSON(w, status, resp)
}

// badRequest wraps a decoding failure so it classifies as a caller error.
func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", coreerrors.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("decode request: %v", err)
	}
	return nil
}

func caller(r *http.Request) ([20]byte, error) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: no principal", coreerrors.ErrUnauthorized)
	}
	return principal, nil
}

func parseAddress(field, value string) ([20]byte, error) {
	addr, err := crypto.ParsePrincipal(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, badRequest("%s: %v", field, err)
	}
	return addr, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, err := config.ParseAmount(value)
	if err != nil {
		return nil, badRequest("%s: %v", field, err)
	}
	return amount, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
