package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/adapter"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
)

// ClaimUseCase hands out local jobs to pulling workers. The claim itself is a
// single atomic store operation, so under concurrent pollers each job is
// granted to exactly one worker exactly once.
type ClaimUseCase struct {
	entries      repository.EntryRepository
	payloads     adapter.PayloadBuilder
	callbackBase string
	log          *zerolog.Logger
}

func NewClaimUseCase(
	entries repository.EntryRepository,
	payloads adapter.PayloadBuilder,
	callbackBase string,
	logger *zerolog.Logger,
) *ClaimUseCase {
	l := logger.With().Str("component", "claim").Logger()
	return &ClaimUseCase{entries: entries, payloads: payloads, callbackBase: callbackBase, log: &l}
}

// ClaimNext pops the oldest eligible local job, already marked processing by
// the store, and builds its render payload. Returns (nil, nil, nil) when the
// queue is empty; workers poll every few seconds, so the empty case is the
// steady state and must stay cheap.
func (uc *ClaimUseCase) ClaimNext(ctx context.Context) (*model.Entry, json.RawMessage, error) {
	entry, err := uc.entries.ClaimOldestLocal(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("claim local job: %w", err)
	}

	payload, err := uc.payloads.Build(entry, webhookURL(uc.callbackBase, entry.ID))
	if err != nil {
		// The job is already marked processing; fail it rather than leave it
		// stuck until the timeout sweep.
		uc.log.Error().Err(err).Str("entry_id", entry.ID).Msg("payload build failed for claimed job")
		status := model.EntryStatusFailed
		_, _ = uc.entries.Update(ctx, nil, entry.ID, repository.EntryPatch{Status: &status})
		return nil, nil, fmt.Errorf("build payload for claimed job: %w", err)
	}

	uc.log.Info().Str("entry_id", entry.ID).Str("job_id", entry.Route.JobID).Msg("local job claimed")
	return entry, payload, nil
}
