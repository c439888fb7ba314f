package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"safetymodule/native/auction"
	"safetymodule/native/common"
	"safetymodule/native/rewards"
	"safetymodule/native/safety"
	"safetymodule/native/stakepool"
	"safetymodule/observability"
	telemetry "safetymodule/observability/otel"
)

// RequestIDHeader carries the per-request correlation id. Clients may supply
// one; otherwise a UUID is assigned.
const RequestIDHeader = "X-Request-ID"

// PoolReader is the stakepool surface exposed over HTTP.
type PoolReader interface {
	Pools() ([][20]byte, error)
	Pool(addr [20]byte) (*stakepool.Pool, error)
	SharesOf(addr, holder [20]byte) (*big.Int, error)
	CooldownStart(addr, holder [20]byte) (uint64, error)
	PreviewRedeem(addr [20]byte, shares *big.Int) (*big.Int, error)
}

// RewardReader is the distributor surface exposed over HTTP.
type RewardReader interface {
	Params() (*rewards.Params, error)
	AllRewardTokens() ([]string, error)
	TokenConfig(token string) (*rewards.TokenConfig, error)
	InflationRate(token string) (*big.Int, error)
	RewardTokens(market [20]byte) ([]string, error)
	CumulativeRewardPerShare(market [20]byte, token string) (*big.Int, error)
	Claimable(user [20]byte, token string) (*big.Int, error)
	Multiplier(market, user [20]byte) (*big.Int, error)
}

// AuctionReader is the auction surface exposed over HTTP.
type AuctionReader interface {
	Auction(id uint64) (*auction.Auction, error)
	CurrentLotSize(id uint64) (*big.Int, error)
	ExpiredAuctions() ([]uint64, error)
}

// SafetyReader is the orchestrator surface exposed over HTTP.
type SafetyReader interface {
	Params() (*safety.Params, error)
	PoolAuction(pool [20]byte) (*safety.PoolAuction, bool, error)
}

// Backends groups the engines served by the API. A nil member disables its
// routes.
type Backends struct {
	Pools    PoolReader
	Rewards  RewardReader
	Auctions AuctionReader
	Safety   SafetyReader
}

// Config tunes the HTTP surface.
type Config struct {
	RateLimit RateLimit
	// Lock serialises reads against the daemon's state mutations. Optional.
	Lock sync.Locker
}

// Server serves read-only queries over the safety module engines.
type Server struct {
	backends Backends
	lock     sync.Locker
	limiter  *RateLimiter
	tracer   trace.Tracer
	router   chi.Router
}

// NewServer builds the router for the supplied backends.
func NewServer(cfg Config, backends Backends) *Server {
	lock := cfg.Lock
	if lock == nil {
		lock = &sync.Mutex{}
	}
	s := &Server{
		backends: backends,
		lock:     lock,
		limiter:  NewRateLimiter(cfg.RateLimit, 0),
		tracer:   telemetry.Tracer("safetymodule/rpc"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	if s.backends.Pools != nil {
		r.Route("/pools", func(r chi.Router) {
			r.Use(s.limiter.Middleware("stakepool"), s.observe("stakepool"))
			r.Get("/", s.handleListPools)
			r.Get("/{pool}", s.handleGetPool)
			r.Get("/{pool}/holders/{holder}", s.handleGetHolder)
		})
	}
	if s.backends.Rewards != nil {
		r.Route("/rewards", func(r chi.Router) {
			r.Use(s.limiter.Middleware("rewards"), s.observe("rewards"))
			r.Get("/params", s.handleRewardParams)
			r.Get("/tokens", s.handleRewardTokens)
			r.Get("/tokens/{token}", s.handleRewardToken)
			r.Get("/markets/{market}", s.handleMarketRewards)
			r.Get("/markets/{market}/users/{user}", s.handleUserMultiplier)
			r.Get("/users/{user}/claimable/{token}", s.handleClaimable)
		})
	}
	if s.backends.Auctions != nil {
		r.Route("/auctions", func(r chi.Router) {
			r.Use(s.limiter.Middleware("auction"), s.observe("auction"))
			r.Get("/expired", s.handleExpiredAuctions)
			r.Get("/{id}", s.handleGetAuction)
		})
	}
	if s.backends.Safety != nil {
		r.Route("/safety", func(r chi.Router) {
			r.Use(s.limiter.Middleware("safety"), s.observe("safety"))
			r.Get("/params", s.handleSafetyParams)
			r.Get("/pools/{pool}/auction", s.handlePoolAuction)
		})
	}
	return r
}

// observe records latency, outcome and a trace span per request. The route
// label is the chi pattern so path parameters do not explode cardinality.
func (s *Server) observe(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)
			ctx, span := s.tracer.Start(r.Context(), module, trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.request_id", requestID),
				attribute.String("safety.module", module),
			))
			defer span.End()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(ctx))

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", recorder.status),
			)
			observability.ModuleMetrics().Observe(module, route, recorder.status, time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

type errorResponse struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Deadline uint64 `json:"deadline,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeEngineError maps the shared error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError
	switch kind := common.KindOf(err); {
	case errors.Is(err, common.ErrModulePaused):
		status = http.StatusServiceUnavailable
		resp.Kind = "paused"
	case kind != nil:
		resp.Kind = kind.Error()
		switch kind {
		case common.ErrValidation:
			status = http.StatusBadRequest
		case common.ErrAuthorization:
			status = http.StatusForbidden
		default:
			status = http.StatusConflict
		}
	}
	if errors.Is(err, stakepool.ErrPoolNotFound) ||
		errors.Is(err, auction.ErrAuctionNotFound) ||
		errors.Is(err, rewards.ErrTokenNotFound) {
		status = http.StatusNotFound
	}
	if deadline, ok := common.DeadlineOf(err); ok {
		resp.Deadline = deadline
	}
	writeJSON(w, status, resp)
}
