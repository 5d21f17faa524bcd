// Package api exposes deployed contracts over HTTP. Every mutating request
// is one runtime invocation authorized by the principals listed in the
// X-Settle-Signers header. The handler trusts that header, so it belongs
// behind an authenticating gateway.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/settle"
	"github.com/xraph/settle/genesis"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/runtime"
	"github.com/xraph/settle/types"
)

// SignersHeader carries the comma-separated principals authorizing a request.
const SignersHeader = "X-Settle-Signers"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to contract operations.
type Server struct {
	rt         *runtime.Runtime
	logger     *slog.Logger
	deployment *genesis.Deployment
	timeout    time.Duration
	router     chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithDeployment restricts each route to the contracts deployed with the
// matching kind. Without it any address is accepted.
func WithDeployment(d *genesis.Deployment) Option {
	return func(s *Server) { s.deployment = d }
}

// WithTimeout bounds request handling. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a Server over rt.
func New(rt *runtime.Runtime, opts ...Option) *Server {
	s := &Server{
		rt:      rt,
		logger:  slog.Default(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/split", s.handleSplit)

		r.Route("/asset/{contract}", func(r chi.Router) {
			r.Get("/", s.handleAssetInfo)
			r.Get("/balances/{account}", s.handleAssetBalance)
			r.Post("/transfer", s.handleAssetTransfer)
		})

		r.Route("/exchange/{contract}", func(r chi.Router) {
			r.Get("/config", s.handleExchangeConfig)
			r.Post("/listings", s.handleCreateListing)
			r.Get("/listings/{id}", s.handleGetListing)
			r.Post("/listings/{id}/cancel", s.handleCancelListing)
			r.Post("/listings/{id}/fulfill", s.handleFulfillListing)
		})

		r.Route("/entitlement/{contract}", func(r chi.Router) {
			r.Get("/config", s.handleEntitlementConfig)
			r.Post("/purchase", s.handlePurchase)
			r.Get("/members/{user}", s.handleMember)
		})

		r.Route("/invoice/{contract}", func(r chi.Router) {
			r.Get("/count", s.handleInvoiceCount)
			r.Post("/invoices", s.handleIssueInvoice)
			r.Get("/invoices/{id}", s.handleGetInvoice)
			r.Post("/invoices/{id}/mark-paid", s.handleMarkInvoicePaid)
			r.Post("/invoices/{id}/pay", s.handlePayInvoice)
		})

		r.Route("/directory/{contract}", func(r chi.Router) {
			r.Get("/names/{name}", s.handleResolveName)
			r.Put("/names/{name}", s.handleSetName)
			r.Delete("/names/{name}", s.handleRemoveName)
		})

		r.Route("/badge/{contract}", func(r chi.Router) {
			r.Post("/mint", s.handleMintBadge)
			r.Get("/tokens/{id}", s.handleGetBadge)
			r.Post("/tokens/{id}/transfer", s.handleTransferBadge)
			r.Post("/tokens/{id}/burn", s.handleBurnBadge)
			r.Get("/holders/{holder}", s.handleBadgeBalance)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.Store().Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ──────────────────────────────────────────────────
// Request helpers
// ──────────────────────────────────────────────────

// signers parses SignersHeader. A missing header means no signers.
func signers(r *http.Request) ([]types.Address, error) {
	raw := r.Header.Get(SignersHeader)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]types.Address, 0, len(parts))
	for _, p := range parts {
		addr, err := types.ParseAddress(p)
		if err != nil {
			return nil, settle.Invalid("signers", err.Error())
		}
		out = append(out, addr)
	}
	return out, nil
}

// contract resolves the {contract} path parameter and checks it against the
// deployment.
func (s *Server) contract(r *http.Request, kind genesis.Kind) (types.Address, error) {
	addr, err := types.ParseAddress(chi.URLParam(r, "contract"))
	if err != nil {
		return "", settle.Invalid("contract", err.Error())
	}
	if s.deployment != nil && !s.deployment.Is(addr, kind) {
		return "", fmt.Errorf("%w: no %s deployed at %s", settle.ErrNotFound, kind, addr)
	}
	return addr, nil
}

func pathAddress(r *http.Request, name string) (types.Address, error) {
	addr, err := types.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return "", settle.Invalid(name, err.Error())
	}
	return addr, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return settle.Invalid("body", err.Error())
	}
	return nil
}

// call runs fn as one invocation authorized by the request signers and
// writes its result.
func call[T any](s *Server, w http.ResponseWriter, r *http.Request, status int, fn func(env *host.Env) (T, error)) {
	who, err := signers(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := runtime.Call(r.Context(), s.rt, who, fn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, out)
}

// query runs fn read-only and writes its result.
func query[T any](s *Server, w http.ResponseWriter, r *http.Request, fn func(env *host.Env) (T, error)) {
	out, err := runtime.Query(r.Context(), s.rt, fn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ──────────────────────────────────────────────────
// Errors
// ──────────────────────────────────────────────────

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// Status maps an invocation error to an HTTP status and error code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return 499, "canceled"
	case settle.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, settle.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, settle.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, settle.ErrUninitialized):
		return http.StatusPreconditionFailed, "uninitialized"
	case settle.IsStateError(err):
		return http.StatusConflict, "invalid_state"
	case settle.IsValidation(err), errors.Is(err, settle.ErrNoAsset):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, settle.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, settle.ErrFrozen):
		return http.StatusUnprocessableEntity, "frozen"
	case errors.Is(err, settle.ErrOverflow):
		return http.StatusUnprocessableEntity, "overflow"
	case errors.Is(err, settle.ErrCommitFailed), errors.Is(err, settle.ErrStoreClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Status(err)
	resp := errorResponse{Error: code}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		resp.Description = err.Error()
	}
	writeJSON(w, status, resp)
}
