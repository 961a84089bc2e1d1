package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
	"github.com/erocrawler/gmanimato/internal/infra/metrics"
	red "github.com/erocrawler/gmanimato/internal/infra/redis"
	"github.com/erocrawler/gmanimato/internal/infra/worker"
	"github.com/erocrawler/gmanimato/internal/usecase"
)

const sweepLockKey = "sweep:migration"

// MigrationSweeper periodically promotes long-waiting local jobs to the
// remote backend. A redis lock keeps the sweep single-instance; promotion is
// best-effort and tolerates the same TOCTOU window as routing.
type MigrationSweeper struct {
	entries  repository.EntryRepository
	settings repository.SettingsRepository
	router   *usecase.RouterUseCase
	locker   red.Locker
	pool     *worker.Pool

	interval time.Duration
	batch    int
	log      *zerolog.Logger
}

func NewMigrationSweeper(
	entries repository.EntryRepository,
	settings repository.SettingsRepository,
	router *usecase.RouterUseCase,
	locker red.Locker,
	pool *worker.Pool,
	interval time.Duration,
	batch int,
	logger *zerolog.Logger,
) *MigrationSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 20
	}
	l := logger.With().Str("component", "migration_sweeper").Logger()
	return &MigrationSweeper{
		entries:  entries,
		settings: settings,
		router:   router,
		locker:   locker,
		pool:     pool,
		interval: interval,
		batch:    batch,
		log:      &l,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *MigrationSweeper) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("migration sweeper started")
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("migration sweeper stopping")
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *MigrationSweeper) tick(ctx context.Context) {
	token, err := s.locker.TryLock(ctx, sweepLockKey, s.interval)
	if err != nil {
		if !errors.Is(err, domain.ErrSweepLockHeld) {
			s.log.Warn().Err(err).Msg("sweep lock unavailable")
		}
		return
	}
	defer func() { _ = s.locker.Unlock(ctx, sweepLockKey, token) }()

	settings, err := s.settings.Get(ctx, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("load settings")
		return
	}

	// Remote admission gate: never promote into a saturated remote queue.
	health, err := s.router.RemoteHealth(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrRemoteNotConfigured) {
			s.log.Warn().Err(err).Msg("remote health query failed, skipping sweep")
		}
		return
	}
	if settings.MaxQueueThreshold > 0 && health.Jobs.InQueue >= settings.MaxQueueThreshold {
		s.log.Debug().Int("remote_in_queue", health.Jobs.InQueue).Msg("remote queue full, skipping sweep")
		return
	}

	stats, err := s.entries.LocalQueueStats(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("local queue stats")
		return
	}
	metrics.SetLocalQueue(stats.InQueue, stats.Processing)

	// When the local pool is over capacity the shorter (paid) wait ceiling
	// applies to everything; otherwise only jobs past the free-tier wait
	// threshold migrate.
	waitMinutes := settings.FreeWaitMinutes
	if settings.LocalQueueThreshold > 0 && stats.Depth() > settings.LocalQueueThreshold {
		waitMinutes = settings.PaidWaitMinutes
	}
	if waitMinutes <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(waitMinutes) * time.Minute)

	candidates, err := s.entries.ListLocalWaitingSince(ctx, nil, cutoff, s.batch)
	if err != nil {
		s.log.Error().Err(err).Msg("list waiting local jobs")
		return
	}

	for _, entry := range candidates {
		e := entry
		_ = s.pool.Submit(func(ctx context.Context) error {
			return s.promote(ctx, e)
		})
	}
}

func (s *MigrationSweeper) promote(ctx context.Context, entry *model.Entry) error {
	// Re-check under current state: a worker may have claimed the job since
	// the listing.
	current, err := s.entries.FindByID(ctx, nil, entry.ID)
	if err != nil {
		return err
	}
	if current.Status != model.EntryStatusInQueue || !current.Route.IsLocal() {
		return nil
	}

	if _, err := s.router.SubmitRemote(ctx, current); err != nil {
		return err
	}
	metrics.IncPromoted()
	s.log.Info().Str("entry_id", current.ID).Msg("promoted waiting local job to remote backend")
	return nil
}
