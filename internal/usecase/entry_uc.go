package usecase

import (
	"context"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
)

// EntryUseCase covers the small entry operations that sit outside routing and
// reconciliation: lookup and soft deletion.
type EntryUseCase struct {
	entries repository.EntryRepository
}

func NewEntryUseCase(entries repository.EntryRepository) *EntryUseCase {
	return &EntryUseCase{entries: entries}
}

func (uc *EntryUseCase) Get(ctx context.Context, userID, entryID string) (*model.Entry, error) {
	entry, err := uc.entries.FindByID(ctx, nil, entryID)
	if err != nil {
		return nil, err
	}
	if entry.OwnerID != userID {
		return nil, domain.ErrNotFound
	}
	return entry, nil
}

// Delete soft-deletes an entry. Deletion is allowed from any state except
// processing, where a worker may still be holding the job.
func (uc *EntryUseCase) Delete(ctx context.Context, userID, entryID string) error {
	entry, err := uc.Get(ctx, userID, entryID)
	if err != nil {
		return err
	}
	if entry.Status == model.EntryStatusProcessing {
		return domain.ErrEntryProcessing
	}
	status := model.EntryStatusDeleted
	patch := repository.EntryPatch{Status: &status}
	clearProgress(&patch)
	_, err = uc.entries.Update(ctx, nil, entryID, patch)
	return err
}
