package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/orchestrator"
)

// Error states reported in the response body.
const (
	StateInvalidAddress      = "invalid_address"
	StateInvalidRequest      = "invalid_request"
	StateUpstreamUnavailable = "upstream_unavailable"
	StateComputeFailed       = "compute_failed"
	StateTimeout             = "timeout"
	StateInternal            = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	State string `json:"state"`
}

// HistoryResponse wraps a wallet's profile history.
type HistoryResponse struct {
	Wallet   string                  `json:"wallet"`
	Profiles []*domain.WalletProfile `json:"profiles"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	force, err := parseBool(r.URL.Query().Get("force_refresh"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "force_refresh must be a boolean", State: StateInvalidRequest})
		return
	}

	p, err := s.svc.GetProfile(r.Context(), chi.URLParam(r, "address"), orchestrator.GetOptions{ForceRefresh: force})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Refresh(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Invalidate(r.Context(), chi.URLParam(r, "address")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.RecordInvalidation("api")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > MaxHistoryLimit {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "limit must be between 1 and " + strconv.Itoa(MaxHistoryLimit),
				State: StateInvalidRequest,
			})
			return
		}
		limit = n
	}

	wallet := chi.URLParam(r, "address")
	profiles, err := s.svc.History(r.Context(), wallet, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []*domain.WalletProfile{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Wallet: wallet, Profiles: profiles})
}

// writeError maps the service error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, state := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Str("state", state).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), State: state})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidAddress):
		return http.StatusBadRequest, StateInvalidAddress
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, domain.ErrRateLimited):
		return http.StatusServiceUnavailable, StateUpstreamUnavailable
	case errors.Is(err, domain.ErrComputeFailed):
		return http.StatusBadGateway, StateComputeFailed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, StateTimeout
	default:
		return http.StatusInternalServerError, StateInternal
	}
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
