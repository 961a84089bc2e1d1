package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
)

// Render parameters gated behind a paid capability role.
const (
	paidIterationSteps  = 8
	paidVideoResolution = "720p"
)

// QuotaResult is the outcome of a daily-quota check.
type QuotaResult struct {
	Used     int  `json:"used"`
	Limit    int  `json:"limit"`
	Exceeded bool `json:"exceeded"`
}

// QuotaUseCase computes admission decisions for new submissions: daily quota,
// concurrent-job ceiling and paid feature gates. All checks are pure reads.
type QuotaUseCase struct {
	entries repository.EntryRepository
	now     func() time.Time
}

func NewQuotaUseCase(entries repository.EntryRepository) *QuotaUseCase {
	return &QuotaUseCase{entries: entries, now: time.Now}
}

// CheckDailyQuota resolves the most generous limit among the user's roles and
// counts today's quota-consuming entries. Callers must check Exceeded before
// enqueueing; the check itself has no side effects.
func (uc *QuotaUseCase) CheckDailyQuota(ctx context.Context, user *model.User, settings *model.AdminSettings) (QuotaResult, error) {
	limit := settings.DailyQuotaFor(user.Roles)

	now := uc.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	used, err := uc.entries.CountDailyUsageForUser(ctx, nil, user.ID, midnight)
	if err != nil {
		return QuotaResult{}, fmt.Errorf("count daily usage: %w", err)
	}

	return QuotaResult{Used: used, Limit: limit, Exceeded: used >= limit}, nil
}

// CheckConcurrency rejects a submission when the user already has
// MaxConcurrentJobs entries in flight.
func (uc *QuotaUseCase) CheckConcurrency(ctx context.Context, userID string, settings *model.AdminSettings) error {
	active, err := uc.entries.CountActiveForUser(ctx, nil, userID)
	if err != nil {
		return fmt.Errorf("count active jobs: %w", err)
	}
	if active >= settings.MaxConcurrentJobs {
		return domain.ErrTooManyActiveJobs
	}
	return nil
}

// CheckFeatureGate fails with a distinct error when the entry requests
// paid-only render parameters and the user lacks the capability. Parameters
// are never silently downgraded.
func (uc *QuotaUseCase) CheckFeatureGate(user *model.User, entry *model.Entry) error {
	if user.HasPaidCapability() {
		return nil
	}
	if entry.IterationSteps >= paidIterationSteps {
		return domain.ErrPaidFeatureRequired
	}
	if entry.VideoResolution == paidVideoResolution {
		return domain.ErrPaidFeatureRequired
	}
	return nil
}
