package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/adapter"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memEntryRepo is a small in-memory implementation used by unit tests. Its
// claim operation holds the same mutex as every other mutation, mirroring
// the row-level atomicity of the real store.
type memEntryRepo struct {
	mu      sync.Mutex
	entries map[string]*model.Entry
	nextID  int
}

func newMemEntryRepo() *memEntryRepo {
	return &memEntryRepo{entries: make(map[string]*model.Entry)}
}

func (m *memEntryRepo) Save(ctx context.Context, tx repository.Tx, e *model.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		m.nextID++
		e.ID = fmt.Sprintf("entry-%04d", m.nextID)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.UpdatedAt = time.Now()
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *memEntryRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func applyPatch(e *model.Entry, patch repository.EntryPatch) {
	if patch.Status != nil {
		e.Status = *patch.Status
	}
	if patch.Route != nil {
		e.Route = *patch.Route
	}
	if patch.ProcessingStartedAt != nil {
		e.ProcessingStartedAt = *patch.ProcessingStartedAt
	}
	if patch.FinalVideoURL != nil {
		e.FinalVideoURL = *patch.FinalVideoURL
	}
	if patch.ProgressPercentage != nil {
		e.ProgressPercentage = *patch.ProgressPercentage
	}
	if patch.ProgressDetails != nil {
		e.ProgressDetails = *patch.ProgressDetails
	}
	e.UpdatedAt = time.Now()
}

func (m *memEntryRepo) Update(ctx context.Context, tx repository.Tx, id string, patch repository.EntryPatch) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	applyPatch(e, patch)
	cp := *e
	return &cp, nil
}

func (m *memEntryRepo) CountActiveForUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.OwnerID == userID && e.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (m *memEntryRepo) CountDailyUsageForUser(ctx context.Context, tx repository.Tx, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.OwnerID != userID || e.CreatedAt.Before(since) {
			continue
		}
		switch e.Status {
		case model.EntryStatusCompleted, model.EntryStatusInQueue, model.EntryStatusProcessing:
			n++
		case model.EntryStatusDeleted:
			if e.FinalVideoURL != "" {
				n++
			}
		}
	}
	return n, nil
}

func (m *memEntryRepo) ClaimOldestLocal(ctx context.Context) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var eligible []*model.Entry
	for _, e := range m.entries {
		if e.Route.IsLocal() && (e.Status == model.EntryStatusUploaded || e.Status == model.EntryStatusInQueue) {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].ID < eligible[j].ID
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	e := eligible[0]
	e.Status = model.EntryStatusProcessing
	if e.ProcessingStartedAt == nil {
		now := time.Now()
		e.ProcessingStartedAt = &now
	}
	cp := *e
	return &cp, nil
}

func (m *memEntryRepo) LocalQueueStats(ctx context.Context) (model.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats model.QueueStats
	for _, e := range m.entries {
		if !e.Route.IsLocal() {
			continue
		}
		switch e.Status {
		case model.EntryStatusUploaded, model.EntryStatusInQueue:
			stats.InQueue++
		case model.EntryStatusProcessing:
			stats.Processing++
		case model.EntryStatusCompleted:
			stats.Completed++
		case model.EntryStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (m *memEntryRepo) ListLocalWaitingSince(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Entry
	for _, e := range m.entries {
		if e.Route.IsLocal() && e.Status == model.EntryStatusInQueue && e.CreatedAt.Before(cutoff) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memSettingsRepo serves a fixed settings value.
type memSettingsRepo struct {
	mu sync.Mutex
	s  *model.AdminSettings
}

func newMemSettingsRepo(s *model.AdminSettings) *memSettingsRepo {
	if s == nil {
		s = model.DefaultAdminSettings()
	}
	return &memSettingsRepo{s: s}
}

func (m *memSettingsRepo) Get(ctx context.Context, tx repository.Tx) (*model.AdminSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.s
	return &cp, nil
}

func (m *memSettingsRepo) Save(ctx context.Context, tx repository.Tx, s *model.AdminSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.s = &cp
	return nil
}

// fakeBackend lets each test script the remote provider's behavior.
type fakeBackend struct {
	mu        sync.Mutex
	submitted int
	SubmitFn  func(ctx context.Context, payload json.RawMessage) (string, error)
	StatusFn  func(ctx context.Context, jobID string) (*adapter.StatusResponse, error)
	RetryFn   func(ctx context.Context, jobID string) (string, error)
	HealthFn  func(ctx context.Context) (*adapter.HealthResponse, error)
}

func (f *fakeBackend) Submit(ctx context.Context, payload json.RawMessage) (string, error) {
	f.mu.Lock()
	f.submitted++
	n := f.submitted
	f.mu.Unlock()
	if f.SubmitFn != nil {
		return f.SubmitFn(ctx, payload)
	}
	return fmt.Sprintf("remote-%d", n), nil
}

func (f *fakeBackend) Status(ctx context.Context, jobID string) (*adapter.StatusResponse, error) {
	if f.StatusFn != nil {
		return f.StatusFn(ctx, jobID)
	}
	return &adapter.StatusResponse{ID: jobID, Status: "IN_QUEUE"}, nil
}

func (f *fakeBackend) Retry(ctx context.Context, jobID string) (string, error) {
	if f.RetryFn != nil {
		return f.RetryFn(ctx, jobID)
	}
	return jobID, nil
}

func (f *fakeBackend) Health(ctx context.Context) (*adapter.HealthResponse, error) {
	if f.HealthFn != nil {
		return f.HealthFn(ctx)
	}
	return &adapter.HealthResponse{}, nil
}

func (f *fakeBackend) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

// staticPayloads builds a trivial payload; the core treats it as opaque.
type staticPayloads struct{}

func (staticPayloads) Build(entry *model.Entry, callbackURL string) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"entry_id": entry.ID, "webhook": callbackURL})
}

func seedEntry(t interface{ Fatalf(string, ...interface{}) }, repo *memEntryRepo, e *model.Entry) *model.Entry {
	if err := repo.Save(context.Background(), nil, e); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return e
}
