package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/erocrawler/gmanimato/internal/config"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
	red "github.com/erocrawler/gmanimato/internal/infra/redis"
	"github.com/erocrawler/gmanimato/internal/usecase"
)

// Server exposes the generation-job HTTP surface: user entry operations, the
// worker claim endpoint, the webhook callback, queue health and the admin
// settings API.
type Server struct {
	submitUC   *usecase.SubmissionUseCase
	entryUC    *usecase.EntryUseCase
	claimUC    *usecase.ClaimUseCase
	reconciler *usecase.ReconcilerUseCase
	routerUC   *usecase.RouterUseCase
	settings   repository.SettingsRepository

	rate         *red.RateLimiter
	auth         *AuthManager
	adminAPIKey  string
	workerSecret string
	pollLimit    int
	pollWindow   time.Duration

	log *zerolog.Logger
}

func NewServer(
	submitUC *usecase.SubmissionUseCase,
	entryUC *usecase.EntryUseCase,
	claimUC *usecase.ClaimUseCase,
	reconciler *usecase.ReconcilerUseCase,
	routerUC *usecase.RouterUseCase,
	settings repository.SettingsRepository,
	rate *red.RateLimiter,
	auth *AuthManager,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		submitUC:     submitUC,
		entryUC:      entryUC,
		claimUC:      claimUC,
		reconciler:   reconciler,
		routerUC:     routerUC,
		settings:     settings,
		rate:         rate,
		auth:         auth,
		adminAPIKey:  cfg.Admin.APIKey,
		workerSecret: cfg.Worker.Secret,
		pollLimit:    cfg.Poll.RateLimit,
		pollWindow:   cfg.Poll.RateWindow,
		log:          &l,
	}
}

// Routes builds the chi router for the whole service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/entries/{id}", func(r chi.Router) {
			r.Post("/submit", s.handleSubmit)
			r.Get("/status", s.handleStatus)
			r.Post("/retry", s.handleRetry)
			r.Delete("/", s.handleDelete)
		})

		r.Post("/worker/claim", s.handleWorkerClaim)
		r.Post("/webhook/{id}", s.handleWebhook)
		r.Get("/queue/health", s.handleQueueHealth)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.handleAdminLogin)
			r.Group(func(r chi.Router) {
				r.Use(s.adminAuthMiddleware)
				r.Get("/settings", s.handleGetSettings)
				r.Put("/settings", s.handlePutSettings)
			})
		})
	})

	return r
}

// userFromRequest reads the identity the upstream auth layer attaches. User
// and session storage are outside this service; the gateway forwards the
// resolved identity in headers.
func userFromRequest(r *http.Request) (*model.User, bool) {
	id := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if id == "" {
		return nil, false
	}
	var roles []string
	for _, role := range strings.Split(r.Header.Get("X-User-Roles"), ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return &model.User{ID: id, Roles: roles}, true
}

// adminAuthMiddleware guards settings mutation behind the admin JWT session.
func (s *Server) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
