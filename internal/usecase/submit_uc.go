package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
)

// SubmissionUseCase is the full submission pipeline: feature gates, daily
// quota, concurrency ceiling, routing, then the in_queue transition. Routing
// never re-checks quota; the guard runs exactly once, here.
type SubmissionUseCase struct {
	entries  repository.EntryRepository
	settings repository.SettingsRepository
	quota    *QuotaUseCase
	router   *RouterUseCase
	now      func() time.Time
	log      *zerolog.Logger
}

func NewSubmissionUseCase(
	entries repository.EntryRepository,
	settings repository.SettingsRepository,
	quota *QuotaUseCase,
	router *RouterUseCase,
	logger *zerolog.Logger,
) *SubmissionUseCase {
	l := logger.With().Str("component", "submission").Logger()
	return &SubmissionUseCase{
		entries:  entries,
		settings: settings,
		quota:    quota,
		router:   router,
		now:      time.Now,
		log:      &l,
	}
}

// Submit enqueues an uploaded entry owned by the user.
func (uc *SubmissionUseCase) Submit(ctx context.Context, user *model.User, entryID string) (*model.Entry, error) {
	entry, err := uc.entries.FindByID(ctx, nil, entryID)
	if err != nil {
		return nil, err
	}
	if entry.OwnerID != user.ID {
		return nil, domain.ErrNotFound
	}
	if entry.Status != model.EntryStatusUploaded {
		return nil, fmt.Errorf("%w: entry is %s, expected uploaded", domain.ErrInvalidArgument, entry.Status)
	}

	settings, err := uc.settings.Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if err := uc.quota.CheckFeatureGate(user, entry); err != nil {
		return nil, err
	}
	q, err := uc.quota.CheckDailyQuota(ctx, user, settings)
	if err != nil {
		return nil, err
	}
	if q.Exceeded {
		return nil, fmt.Errorf("%w: %d of %d used today", domain.ErrQuotaExceeded, q.Used, q.Limit)
	}
	if err := uc.quota.CheckConcurrency(ctx, user.ID, settings); err != nil {
		return nil, err
	}

	if _, err := uc.router.Submit(ctx, entry); err != nil {
		if errors.Is(err, domain.ErrRemoteNotConfigured) {
			// Server misconfiguration: surface immediately, leave the entry
			// uploaded so it can be submitted once config is fixed.
			return nil, err
		}
		// Transient backend failure: the request fails and the entry is
		// marked failed so the user sees a retryable state.
		uc.log.Error().Err(err).Str("entry_id", entry.ID).Msg("routing failed, marking entry failed")
		status := model.EntryStatusFailed
		_, _ = uc.entries.Update(ctx, nil, entry.ID, repository.EntryPatch{Status: &status})
		return nil, err
	}

	status := model.EntryStatusInQueue
	started := uc.now()
	startedPtr := &started
	updated, err := uc.entries.Update(ctx, nil, entry.ID, repository.EntryPatch{
		Status:              &status,
		ProcessingStartedAt: &startedPtr,
	})
	if err != nil {
		return nil, fmt.Errorf("mark in_queue: %w", err)
	}
	return updated, nil
}
