package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/adapter"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
)

// ProcessingTimeout is the hard ceiling on a job's processing phase. Once
// exceeded the entry is failed regardless of what the backend reports, which
// protects against orphaned jobs that never call back.
const ProcessingTimeout = 30 * time.Minute

// ReconcilerUseCase maps local-worker and remote-provider status into the
// internal vocabulary and persists transitions. Poll is idempotent: with no
// backend-side change, repeated calls leave persisted state untouched.
type ReconcilerUseCase struct {
	entries repository.EntryRepository
	backend adapter.RenderBackend // nil when no remote backend is configured
	router  *RouterUseCase
	now     func() time.Time
	log     *zerolog.Logger
}

func NewReconcilerUseCase(
	entries repository.EntryRepository,
	backend adapter.RenderBackend,
	router *RouterUseCase,
	logger *zerolog.Logger,
) *ReconcilerUseCase {
	l := logger.With().Str("component", "reconciler").Logger()
	return &ReconcilerUseCase{
		entries: entries,
		backend: backend,
		router:  router,
		now:     time.Now,
		log:     &l,
	}
}

// Poll reconciles one entry's status. Decision order matters: terminal short
// circuit, self-heal, timeout, then route-specific resolution.
func (uc *ReconcilerUseCase) Poll(ctx context.Context, entryID string) (*model.Entry, error) {
	entry, err := uc.entries.FindByID(ctx, nil, entryID)
	if err != nil {
		return nil, err
	}

	if entry.Status.Terminal() || !entry.Status.Active() {
		return entry, nil
	}

	// A queued or processing entry with no job id means a submission updated
	// status but crashed before acquiring one. Reset to uploaded so the user
	// can resubmit; this is a fixed point for subsequent polls.
	if entry.Route.Empty() {
		uc.log.Warn().Str("entry_id", entry.ID).Str("status", string(entry.Status)).
			Msg("entry has no job id, resetting to uploaded")
		status := model.EntryStatusUploaded
		route := model.Route{}
		var started *time.Time
		return uc.entries.Update(ctx, nil, entry.ID, repository.EntryPatch{
			Status:              &status,
			Route:               &route,
			ProcessingStartedAt: &started,
		})
	}

	if entry.Status == model.EntryStatusProcessing && entry.ProcessingStartedAt != nil &&
		uc.now().Sub(*entry.ProcessingStartedAt) > ProcessingTimeout {
		uc.log.Warn().Str("entry_id", entry.ID).Time("started_at", *entry.ProcessingStartedAt).
			Msg("processing timeout exceeded, failing entry")
		return uc.failEntry(ctx, entry)
	}

	// Local jobs are push-driven: workers report through the webhook, the
	// local pool is never queried here.
	if entry.Route.IsLocal() {
		return entry, nil
	}

	return uc.pollRemote(ctx, entry)
}

func (uc *ReconcilerUseCase) pollRemote(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	if uc.backend == nil {
		uc.log.Error().Str("entry_id", entry.ID).Msg("remote entry but no backend configured")
		return entry, nil
	}

	resp, err := uc.backend.Status(ctx, entry.Route.JobID)
	if err != nil {
		// Degrade to last-known status; the provider remains source of truth
		// and the next poll will try again.
		uc.log.Warn().Err(err).Str("entry_id", entry.ID).Str("job_id", entry.Route.JobID).
			Msg("remote status query failed, returning last known status")
		return entry, nil
	}

	mapped, known := adapter.MapProviderStatus(resp.Status)
	if !known {
		uc.log.Warn().Str("entry_id", entry.ID).Str("provider_status", resp.Status).
			Msg("unrecognized provider status, treating as in_queue")
	}

	videoURL := ""
	if mapped == model.EntryStatusCompleted {
		if resp.Output != nil {
			videoURL = adapter.FindVideoURL(resp.Output.Files)
		}
		if videoURL == "" {
			// Completion without a resolvable artifact is a failure, never an
			// ambiguous completed entry with an empty URL.
			uc.log.Warn().Str("entry_id", entry.ID).Msg("provider completed without video output")
			mapped = model.EntryStatusFailed
		}
	}

	if mapped == entry.Status && (videoURL == "" || videoURL == entry.FinalVideoURL) {
		return entry, nil // no change, skip the redundant write
	}

	patch := repository.EntryPatch{Status: &mapped}
	if videoURL != "" {
		patch.FinalVideoURL = &videoURL
	}
	if mapped == model.EntryStatusProcessing && entry.ProcessingStartedAt == nil {
		started := uc.now()
		startedPtr := &started
		patch.ProcessingStartedAt = &startedPtr
	}
	if mapped.Terminal() {
		clearProgress(&patch)
	}
	return uc.entries.Update(ctx, nil, entry.ID, patch)
}

// Retry re-runs a failed entry. Local failures always escalate to the remote
// backend. Remote failures are first re-checked against the provider so an
// already-running job is resynced instead of double-submitted.
func (uc *ReconcilerUseCase) Retry(ctx context.Context, entryID string) (*model.Entry, error) {
	entry, err := uc.entries.FindByID(ctx, nil, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.EntryStatusFailed {
		return nil, domain.ErrNotRetryable
	}

	if !entry.Route.IsRemote() {
		return uc.resubmitRemote(ctx, entry)
	}

	if uc.backend == nil {
		return nil, domain.ErrRemoteNotConfigured
	}

	resp, err := uc.backend.Status(ctx, entry.Route.JobID)
	if adapter.IsNotFound(err) {
		// The provider no longer knows the job; start over with a fresh one.
		return uc.resubmitRemote(ctx, entry)
	}
	if err != nil {
		return nil, fmt.Errorf("query provider before retry: %w", err)
	}

	mapped, _ := adapter.MapProviderStatus(resp.Status)
	switch mapped {
	case model.EntryStatusInQueue, model.EntryStatusProcessing:
		// Still alive provider-side: resync instead of double-submitting.
		uc.log.Info().Str("entry_id", entry.ID).Str("provider_status", resp.Status).
			Msg("provider still running job, resyncing status")
		return uc.markQueued(ctx, entry, entry.Route, mapped)
	case model.EntryStatusCompleted:
		if resp.Output != nil {
			if url := adapter.FindVideoURL(resp.Output.Files); url != "" {
				status := model.EntryStatusCompleted
				patch := repository.EntryPatch{Status: &status, FinalVideoURL: &url}
				clearProgress(&patch)
				return uc.entries.Update(ctx, nil, entry.ID, patch)
			}
		}
		fallthrough
	default:
		// Provider confirms the failure: retry in place.
		newID, err := uc.backend.Retry(ctx, entry.Route.JobID)
		if err != nil {
			return nil, fmt.Errorf("provider retry: %w", err)
		}
		uc.log.Info().Str("entry_id", entry.ID).Str("job_id", newID).Msg("provider retry accepted")
		return uc.markQueued(ctx, entry, model.RemoteRoute(newID), model.EntryStatusInQueue)
	}
}

// ApplyCallback handles a push report from a worker or the remote backend.
// Invalid status values are rejected before any state is touched; a terminal
// entry ignores late callbacks.
func (uc *ReconcilerUseCase) ApplyCallback(ctx context.Context, entryID string, upd CallbackUpdate) (*model.Entry, error) {
	mapped, ok := adapter.MapCallbackStatus(upd.Status)
	if !ok {
		return nil, fmt.Errorf("%w: callback status %q", domain.ErrInvalidArgument, upd.Status)
	}

	entry, err := uc.entries.FindByID(ctx, nil, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status.Terminal() {
		uc.log.Debug().Str("entry_id", entry.ID).Str("callback_status", upd.Status).
			Msg("ignoring callback for terminal entry")
		return entry, nil
	}

	patch := repository.EntryPatch{}
	if mapped == model.EntryStatusCompleted {
		url := adapter.FindVideoURL(upd.Files)
		if url == "" {
			uc.log.Warn().Str("entry_id", entry.ID).Msg("completion callback without video output, failing entry")
			mapped = model.EntryStatusFailed
		} else {
			patch.FinalVideoURL = &url
		}
	}
	patch.Status = &mapped

	if mapped.Terminal() {
		clearProgress(&patch)
	} else if upd.Progress != nil {
		pct := upd.Progress.Percentage
		pctPtr := &pct
		details := *upd.Progress
		detailsPtr := &details
		patch.ProgressPercentage = &pctPtr
		patch.ProgressDetails = &detailsPtr
	}

	if mapped == model.EntryStatusProcessing && entry.ProcessingStartedAt == nil {
		started := uc.now()
		startedPtr := &started
		patch.ProcessingStartedAt = &startedPtr
	}

	return uc.entries.Update(ctx, nil, entry.ID, patch)
}

// CallbackUpdate is the validated body of a webhook push.
type CallbackUpdate struct {
	Status   string
	Files    []adapter.OutputFile
	Progress *model.Progress
}

func (uc *ReconcilerUseCase) resubmitRemote(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	route, err := uc.router.SubmitRemote(ctx, entry)
	if err != nil {
		return nil, err
	}
	return uc.markQueued(ctx, entry, route, model.EntryStatusInQueue)
}

func (uc *ReconcilerUseCase) markQueued(ctx context.Context, entry *model.Entry, route model.Route, status model.EntryStatus) (*model.Entry, error) {
	started := uc.now()
	startedPtr := &started
	patch := repository.EntryPatch{
		Status:              &status,
		Route:               &route,
		ProcessingStartedAt: &startedPtr,
	}
	clearProgress(&patch)
	return uc.entries.Update(ctx, nil, entry.ID, patch)
}

func (uc *ReconcilerUseCase) failEntry(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	status := model.EntryStatusFailed
	patch := repository.EntryPatch{Status: &status}
	clearProgress(&patch)
	return uc.entries.Update(ctx, nil, entry.ID, patch)
}

func clearProgress(patch *repository.EntryPatch) {
	var pct *int
	var details *model.Progress
	patch.ProgressPercentage = &pct
	patch.ProgressDetails = &details
}
