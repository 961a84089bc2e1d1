package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
)

var _ repository.SettingsRepository = (*settingsRepo)(nil)

// settingsRepo stores the AdminSettings singleton in a one-row table.
type settingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) *settingsRepo {
	return &settingsRepo{pool: pool}
}

func (r *settingsRepo) Get(ctx context.Context, tx repository.Tx) (*model.AdminSettings, error) {
	const q = `
SELECT quota_per_day, max_concurrent_jobs, max_queue_threshold, local_queue_threshold,
       free_queue_limit, free_wait_minutes, paid_wait_minutes, updated_at
FROM admin_settings WHERE id = 1`

	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}

	var s model.AdminSettings
	var quotaJSON []byte
	err = row.Scan(&quotaJSON, &s.MaxConcurrentJobs, &s.MaxQueueThreshold, &s.LocalQueueThreshold,
		&s.FreeQueueLimit, &s.FreeWaitMinutes, &s.PaidWaitMinutes, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Nothing saved yet: serve defaults until an admin writes.
			return model.DefaultAdminSettings(), nil
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.QuotaPerDay = map[string]int{}
	if err := json.Unmarshal(quotaJSON, &s.QuotaPerDay); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}

func (r *settingsRepo) Save(ctx context.Context, tx repository.Tx, s *model.AdminSettings) error {
	quotaJSON, err := json.Marshal(s.QuotaPerDay)
	if err != nil {
		return err
	}
	s.UpdatedAt = time.Now()

	const q = `
INSERT INTO admin_settings (id, quota_per_day, max_concurrent_jobs, max_queue_threshold,
  local_queue_threshold, free_queue_limit, free_wait_minutes, paid_wait_minutes, updated_at)
VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  quota_per_day = EXCLUDED.quota_per_day,
  max_concurrent_jobs = EXCLUDED.max_concurrent_jobs,
  max_queue_threshold = EXCLUDED.max_queue_threshold,
  local_queue_threshold = EXCLUDED.local_queue_threshold,
  free_queue_limit = EXCLUDED.free_queue_limit,
  free_wait_minutes = EXCLUDED.free_wait_minutes,
  paid_wait_minutes = EXCLUDED.paid_wait_minutes,
  updated_at = EXCLUDED.updated_at;`

	_, err = execSQL(ctx, r.pool, tx, q, quotaJSON, s.MaxConcurrentJobs, s.MaxQueueThreshold,
		s.LocalQueueThreshold, s.FreeQueueLimit, s.FreeWaitMinutes, s.PaidWaitMinutes, s.UpdatedAt)
	return err
}
