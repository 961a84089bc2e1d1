package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/adapter"
	"github.com/erocrawler/gmanimato/internal/infra/metrics"
	red "github.com/erocrawler/gmanimato/internal/infra/redis"
	"github.com/erocrawler/gmanimato/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps domain errors onto distinct, human-readable HTTP
// rejections. Unknown errors become a generic 503 so internals never leak.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "entry not found")
	case errors.Is(err, domain.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrTooManyActiveJobs):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrPaidFeatureRequired):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEntryProcessing):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRemoteNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "generation backend unavailable, try again later")
	default:
		writeError(w, http.StatusServiceUnavailable, "try again later")
	}
}

type entryResponse struct {
	ID                 string          `json:"id"`
	Status             string          `json:"status"`
	IsLocalJob         bool            `json:"is_local_job"`
	JobID              string          `json:"job_id,omitempty"`
	FinalVideoURL      string          `json:"final_video_url,omitempty"`
	ProgressPercentage *int            `json:"progress_percentage,omitempty"`
	ProgressDetails    *model.Progress `json:"progress_details,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func toEntryResponse(e *model.Entry) entryResponse {
	return entryResponse{
		ID:                 e.ID,
		Status:             string(e.Status),
		IsLocalJob:         e.Route.IsLocal(),
		JobID:              e.Route.JobID,
		FinalVideoURL:      e.FinalVideoURL,
		ProgressPercentage: e.ProgressPercentage,
		ProgressDetails:    e.ProgressDetails,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entryID := chi.URLParam(r, "id")

	entry, err := s.submitUC.Submit(r.Context(), user, entryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncRouted(string(entry.Route.Kind))
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entryID := chi.URLParam(r, "id")

	allowed, err := s.rate.Allow(r.Context(), red.UserPollKey(user.ID), s.pollLimit, s.pollWindow)
	if err != nil {
		// Rate limiting is advisory; a redis hiccup must not block polling.
		s.log.Warn().Err(err).Msg("poll rate limiter unavailable")
	} else if !allowed {
		writeError(w, http.StatusTooManyRequests, "polling too fast")
		return
	}

	if _, err := s.entryUC.Get(r.Context(), user.ID, entryID); err != nil {
		writeDomainError(w, err)
		return
	}
	entry, err := s.reconciler.Poll(r.Context(), entryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entryID := chi.URLParam(r, "id")

	if _, err := s.entryUC.Get(r.Context(), user.ID, entryID); err != nil {
		writeDomainError(w, err)
		return
	}
	entry, err := s.reconciler.Retry(r.Context(), entryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.entryUC.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type claimResponse struct {
	EntryID string          `json:"entry_id"`
	JobID   string          `json:"job_id"`
	Payload json.RawMessage `json:"payload"`
}

// handleWorkerClaim is the authenticated pull endpoint for local workers.
// 204 means "no tasks", the steady state workers poll against.
func (s *Server) handleWorkerClaim(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Worker-Secret") != s.workerSecret {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entry, payload, err := s.claimUC.ClaimNext(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "claim failed")
		return
	}
	if entry == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	metrics.IncClaimed()
	writeJSON(w, http.StatusOK, claimResponse{
		EntryID: entry.ID,
		JobID:   entry.Route.JobID,
		Payload: payload,
	})
}

type webhookRequest struct {
	ID       string               `json:"id"`
	Status   string               `json:"status"`
	Files    []adapter.OutputFile `json:"files,omitempty"`
	Progress *model.Progress     `json:"progress,omitempty"`
}

func (req *webhookRequest) validate() error {
	if req.Status == "" {
		return errors.New("status is required")
	}
	if len(req.Files) > 32 {
		return errors.New("too many files")
	}
	for _, f := range req.Files {
		if len(f.Filename) > 512 || len(f.URL) > 2048 {
			return errors.New("oversized file field")
		}
	}
	if p := req.Progress; p != nil {
		if p.Percentage < 0 || p.Percentage > 100 {
			return errors.New("percentage out of range")
		}
		if len(p.CurrentNode) > 256 {
			return errors.New("oversized current_node")
		}
	}
	return nil
}

// handleWebhook receives push reports from local workers and the remote
// backend. Invalid payloads are rejected whole; nothing is partially applied.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.IncWebhook("rejected")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		metrics.IncWebhook("rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := s.reconciler.ApplyCallback(r.Context(), entryID, usecase.CallbackUpdate{
		Status:   req.Status,
		Files:    req.Files,
		Progress: req.Progress,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			metrics.IncWebhook("rejected")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}

	metrics.IncWebhook("applied")
	if entry.Status.Terminal() {
		metrics.IncFinished(string(entry.Status))
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

type queueHealthResponse struct {
	Local  model.QueueStats        `json:"local"`
	Remote *adapter.HealthResponse `json:"remote,omitempty"`
}

func (s *Server) handleQueueHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.routerUC.LocalQueueStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	metrics.SetLocalQueue(stats.InQueue, stats.Processing)

	resp := queueHealthResponse{Local: stats}
	if remote, err := s.routerUC.RemoteHealth(r.Context()); err == nil {
		resp.Remote = remote
	} else if !errors.Is(err, domain.ErrRemoteNotConfigured) {
		s.log.Warn().Err(err).Msg("remote health query failed")
	}
	writeJSON(w, http.StatusOK, resp)
}

type adminLoginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.adminAPIKey == "" {
		s.log.Error().Msg("admin API key is not configured")
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.APIKey != s.adminAPIKey {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		writeError(w, http.StatusInternalServerError, "could not mint session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Get(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.AdminSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if settings.MaxConcurrentJobs <= 0 || settings.QuotaPerDay == nil {
		writeError(w, http.StatusBadRequest, "max_concurrent_jobs and quota_per_day are required")
		return
	}
	if err := s.settings.Save(r.Context(), nil, &settings); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
