package repository

import (
	"context"
	"time"

	"github.com/erocrawler/gmanimato/internal/domain/model"
)

// EntryPatch is a partial update of an entry's mutable fields. Nil fields are
// left untouched. Workflow inputs and ownership are immutable and therefore
// have no patch fields.
type EntryPatch struct {
	Status              *model.EntryStatus
	Route               *model.Route
	ProcessingStartedAt **time.Time
	FinalVideoURL       *string
	ProgressPercentage  **int
	ProgressDetails     **model.Progress
}

// EntryRepository is the Job Record Store port.
type EntryRepository interface {
	Save(ctx context.Context, tx Tx, e *model.Entry) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Entry, error)
	Update(ctx context.Context, tx Tx, id string, patch EntryPatch) (*model.Entry, error)

	// CountActiveForUser counts the user's entries with status in
	// {in_queue, processing}.
	CountActiveForUser(ctx context.Context, tx Tx, userID string) (int, error)

	// CountDailyUsageForUser counts the user's entries created at or after
	// `since` that consume quota: completed, in_queue and processing entries
	// unconditionally, and deleted entries only when they rendered a final
	// video before deletion.
	CountDailyUsageForUser(ctx context.Context, tx Tx, userID string, since time.Time) (int, error)

	// ClaimOldestLocal atomically pops the oldest eligible local job and marks
	// it processing, stamping processing_started_at if unset, all in one
	// transaction. Returns domain.ErrNotFound when no job is eligible.
	ClaimOldestLocal(ctx context.Context) (*model.Entry, error)

	// LocalQueueStats counts local jobs by status. It reads the store
	// directly and shares the claim operation's consistency domain.
	LocalQueueStats(ctx context.Context) (model.QueueStats, error)

	// ListLocalWaitingSince returns local in_queue entries created before the
	// cutoff, oldest first, for the migration sweeper.
	ListLocalWaitingSince(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Entry, error)
}
