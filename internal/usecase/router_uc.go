package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/adapter"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
)

// webhookURL builds the per-entry callback URL handed to workers and the
// remote backend.
func webhookURL(base, entryID string) string {
	return strings.TrimRight(base, "/") + "/api/v1/webhook/" + entryID
}

// RouterUseCase decides local-vs-remote placement for each submission.
//
// The threshold comparison is read-then-act; queue depth may move in between.
// That is accepted as a soft threshold, not admission control.
type RouterUseCase struct {
	entries      repository.EntryRepository
	settings     repository.SettingsRepository
	backend      adapter.RenderBackend // nil when no remote backend is configured
	payloads     adapter.PayloadBuilder
	callbackBase string
	log          *zerolog.Logger
}

func NewRouterUseCase(
	entries repository.EntryRepository,
	settings repository.SettingsRepository,
	backend adapter.RenderBackend,
	payloads adapter.PayloadBuilder,
	callbackBase string,
	logger *zerolog.Logger,
) *RouterUseCase {
	l := logger.With().Str("component", "router").Logger()
	return &RouterUseCase{
		entries:      entries,
		settings:     settings,
		backend:      backend,
		payloads:     payloads,
		callbackBase: callbackBase,
		log:          &l,
	}
}

// LocalQueueStats exposes the local pool's by-status counts.
func (uc *RouterUseCase) LocalQueueStats(ctx context.Context) (model.QueueStats, error) {
	return uc.entries.LocalQueueStats(ctx)
}

// RemoteHealth reports the remote queue's health, or ErrRemoteNotConfigured.
func (uc *RouterUseCase) RemoteHealth(ctx context.Context) (*adapter.HealthResponse, error) {
	if uc.backend == nil {
		return nil, domain.ErrRemoteNotConfigured
	}
	return uc.backend.Health(ctx)
}

// Submit routes the entry and persists the chosen route. The status
// transition to in_queue is left to the caller. A remote submission error
// propagates unchanged; there is no silent fallback to local.
func (uc *RouterUseCase) Submit(ctx context.Context, entry *model.Entry) (model.Route, error) {
	settings, err := uc.settings.Get(ctx, nil)
	if err != nil {
		return model.Route{}, fmt.Errorf("load settings: %w", err)
	}

	if settings.LocalQueueThreshold <= 0 {
		// Local routing disabled by the admin.
		return uc.submitRemote(ctx, entry)
	}

	stats, err := uc.entries.LocalQueueStats(ctx)
	if err != nil {
		return model.Route{}, fmt.Errorf("local queue stats: %w", err)
	}
	if stats.Depth() < settings.LocalQueueThreshold {
		return uc.routeLocal(ctx, entry)
	}

	uc.log.Debug().Str("entry_id", entry.ID).Int("depth", stats.Depth()).
		Int("threshold", settings.LocalQueueThreshold).Msg("local queue full, routing remote")
	return uc.submitRemote(ctx, entry)
}

func (uc *RouterUseCase) routeLocal(ctx context.Context, entry *model.Entry) (model.Route, error) {
	route := model.LocalRoute(entry.ID)
	if _, err := uc.entries.Update(ctx, nil, entry.ID, repository.EntryPatch{Route: &route}); err != nil {
		return model.Route{}, fmt.Errorf("persist local route: %w", err)
	}
	entry.Route = route
	uc.log.Info().Str("entry_id", entry.ID).Str("job_id", route.JobID).Msg("routed to local pool")
	return route, nil
}

// SubmitRemote forces a remote submission regardless of local queue depth.
// Used by the router itself, by retries and by the migration sweeper.
func (uc *RouterUseCase) SubmitRemote(ctx context.Context, entry *model.Entry) (model.Route, error) {
	return uc.submitRemote(ctx, entry)
}

func (uc *RouterUseCase) submitRemote(ctx context.Context, entry *model.Entry) (model.Route, error) {
	if uc.backend == nil {
		// Configuration error, distinct from a transient backend failure.
		return model.Route{}, domain.ErrRemoteNotConfigured
	}

	payload, err := uc.payloads.Build(entry, webhookURL(uc.callbackBase, entry.ID))
	if err != nil {
		return model.Route{}, fmt.Errorf("build render payload: %w", err)
	}

	jobID, err := uc.backend.Submit(ctx, payload)
	if err != nil {
		return model.Route{}, fmt.Errorf("remote submit: %w", err)
	}

	route := model.RemoteRoute(jobID)
	if _, err := uc.entries.Update(ctx, nil, entry.ID, repository.EntryPatch{Route: &route}); err != nil {
		return model.Route{}, fmt.Errorf("persist remote route: %w", err)
	}
	entry.Route = route
	uc.log.Info().Str("entry_id", entry.ID).Str("job_id", jobID).Msg("submitted to remote backend")
	return route, nil
}
