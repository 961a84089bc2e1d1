package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
)

var _ repository.EntryRepository = (*entryRepo)(nil)

type entryRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewEntryRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *entryRepo {
	return &entryRepo{pool: pool, tm: tm}
}

const entryColumns = `id, owner_id, status, is_local_job, job_id, processing_started_at,
final_video_url, progress_percentage, progress_details, workflow_id, iteration_steps,
video_duration, video_resolution, lora_weights, seed, created_at, updated_at`

func scanEntry(row pgx.Row) (*model.Entry, error) {
	var (
		e           model.Entry
		statusStr   string
		isLocal     bool
		jobID       string
		detailsJSON []byte
	)
	err := row.Scan(
		&e.ID, &e.OwnerID, &statusStr, &isLocal, &jobID, &e.ProcessingStartedAt,
		&e.FinalVideoURL, &e.ProgressPercentage, &detailsJSON, &e.WorkflowID, &e.IterationSteps,
		&e.VideoDuration, &e.VideoResolution, &e.LoraWeights, &e.Seed, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	e.Status = model.EntryStatus(statusStr)
	e.Route = model.RouteFromColumns(isLocal, jobID)
	if len(detailsJSON) > 0 {
		var p model.Progress
		if json.Unmarshal(detailsJSON, &p) == nil {
			e.ProgressDetails = &p
		}
	}
	return &e, nil
}

func (r *entryRepo) Save(ctx context.Context, tx repository.Tx, e *model.Entry) error {
	if e.ID == "" {
		// ULIDs sort by creation time, so FIFO tie-breaks on id stay stable.
		e.ID = ulid.Make().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.UpdatedAt = time.Now()

	var detailsJSON []byte
	if e.ProgressDetails != nil {
		detailsJSON, _ = json.Marshal(e.ProgressDetails)
	}

	const q = `
INSERT INTO entries (` + entryColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  is_local_job = EXCLUDED.is_local_job,
  job_id = EXCLUDED.job_id,
  processing_started_at = EXCLUDED.processing_started_at,
  final_video_url = EXCLUDED.final_video_url,
  progress_percentage = EXCLUDED.progress_percentage,
  progress_details = EXCLUDED.progress_details,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.OwnerID, string(e.Status), e.Route.IsLocal(), e.Route.JobID, e.ProcessingStartedAt,
		e.FinalVideoURL, e.ProgressPercentage, detailsJSON, e.WorkflowID, e.IterationSteps,
		e.VideoDuration, e.VideoResolution, e.LoraWeights, e.Seed, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *entryRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM entries WHERE id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanEntry(row)
}

func (r *entryRepo) Update(ctx context.Context, tx repository.Tx, id string, patch repository.EntryPatch) (*model.Entry, error) {
	set := []string{"updated_at = now()"}
	args := []interface{}{id}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Status != nil {
		set = append(set, "status = "+arg(string(*patch.Status)))
	}
	if patch.Route != nil {
		set = append(set, "is_local_job = "+arg(patch.Route.IsLocal()))
		set = append(set, "job_id = "+arg(patch.Route.JobID))
	}
	if patch.ProcessingStartedAt != nil {
		set = append(set, "processing_started_at = "+arg(*patch.ProcessingStartedAt))
	}
	if patch.FinalVideoURL != nil {
		set = append(set, "final_video_url = "+arg(*patch.FinalVideoURL))
	}
	if patch.ProgressPercentage != nil {
		set = append(set, "progress_percentage = "+arg(*patch.ProgressPercentage))
	}
	if patch.ProgressDetails != nil {
		var detailsJSON []byte
		if *patch.ProgressDetails != nil {
			detailsJSON, _ = json.Marshal(*patch.ProgressDetails)
		}
		set = append(set, "progress_details = "+arg(detailsJSON))
	}

	q := "UPDATE entries SET " + joinSet(set) + " WHERE id = $1 RETURNING " + entryColumns
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanEntry(row)
}

func joinSet(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

func (r *entryRepo) CountActiveForUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	const q = `
SELECT COUNT(*) FROM entries
WHERE owner_id = $1 AND status IN ('in_queue', 'processing')`
	return r.countOne(ctx, tx, q, userID)
}

func (r *entryRepo) CountDailyUsageForUser(ctx context.Context, tx repository.Tx, userID string, since time.Time) (int, error) {
	// Deleted-before-completion attempts don't consume quota; entries that
	// rendered a video and were deleted afterwards still do.
	const q = `
SELECT COUNT(*) FROM entries
WHERE owner_id = $1 AND created_at >= $2
  AND (status IN ('completed', 'in_queue', 'processing')
       OR (status = 'deleted' AND final_video_url <> ''))`
	return r.countOne(ctx, tx, q, userID, since)
}

func (r *entryRepo) countOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

// ClaimOldestLocal selects the oldest waiting local job with SKIP LOCKED and
// marks it processing before the transaction commits, so no two workers can
// ever receive the same job and there is no window where a job is selected
// but not yet marked.
func (r *entryRepo) ClaimOldestLocal(ctx context.Context) (*model.Entry, error) {
	var claimed *model.Entry

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT ` + entryColumns + `
FROM entries
WHERE is_local_job AND status IN ('uploaded', 'in_queue')
ORDER BY created_at, id
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery)
		if err != nil {
			return err
		}
		entry, err := scanEntry(row)
		if err != nil {
			return err
		}

		const markQuery = `
UPDATE entries SET
  status = 'processing',
  processing_started_at = COALESCE(processing_started_at, now()),
  updated_at = now()
WHERE id = $1
RETURNING ` + entryColumns

		row, err = pickRow(ctx, r.pool, tx, markQuery, entry.ID)
		if err != nil {
			return err
		}
		claimed, err = scanEntry(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *entryRepo) LocalQueueStats(ctx context.Context) (model.QueueStats, error) {
	const q = `
SELECT status, COUNT(*) FROM entries
WHERE is_local_job
GROUP BY status`

	rows, err := pickRows(ctx, r.pool, nil, q)
	if err != nil {
		return model.QueueStats{}, err
	}
	defer rows.Close()

	var stats model.QueueStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return model.QueueStats{}, domain.ErrReadDatabaseRow
		}
		switch model.EntryStatus(status) {
		case model.EntryStatusInQueue, model.EntryStatusUploaded:
			stats.InQueue += n
		case model.EntryStatusProcessing:
			stats.Processing += n
		case model.EntryStatusCompleted:
			stats.Completed += n
		case model.EntryStatusFailed:
			stats.Failed += n
		}
	}
	return stats, rows.Err()
}

func (r *entryRepo) ListLocalWaitingSince(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Entry, error) {
	q := `
SELECT ` + entryColumns + `
FROM entries
WHERE is_local_job AND status = 'in_queue' AND created_at < $1
ORDER BY created_at, id
LIMIT $2`

	rows, err := pickRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
