package web

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/erocrawler/gmanimato/internal/config"
	"github.com/erocrawler/gmanimato/internal/domain"
	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
	red "github.com/erocrawler/gmanimato/internal/infra/redis"
	"github.com/erocrawler/gmanimato/internal/usecase"
)

// ---- in-memory repositories ----

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

func (m *memEntryRepo) Update(ctx context.Context, tx repository.Tx, id string, patch repository.EntryPatch) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
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

// ---- fake redis ----

type memRedis struct {
	mu       sync.Mutex
	counters map[string]int64
	values   map[string]string
}

func newMemRedis() *memRedis {
	return &memRedis{counters: make(map[string]int64), values: make(map[string]string)}
}

func (m *memRedis) Ping(ctx context.Context) error { return nil }

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = fmt.Sprint(value)
	return nil
}

func (m *memRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("key %q missing", key)
	}
	return v, nil
}

func (m *memRedis) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (m *memRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
		delete(m.counters, k)
	}
	return nil
}

func (m *memRedis) Close() error { return nil }

// ---- payloads ----

type testPayloads struct{}

func (testPayloads) Build(entry *model.Entry, callbackURL string) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"entry_id": entry.ID, "webhook": callbackURL})
}

// ---- server harness ----

type testEnv struct {
	repo     *memEntryRepo
	settings *memSettingsRepo
	server   *Server
}

func newTestEnv(settings *model.AdminSettings) *testEnv {
	l := zerolog.Nop()
	repo := newMemEntryRepo()
	settingsRepo := newMemSettingsRepo(settings)

	quotaUC := usecase.NewQuotaUseCase(repo)
	routerUC := usecase.NewRouterUseCase(repo, settingsRepo, nil, testPayloads{}, "https://app.example", &l)
	reconciler := usecase.NewReconcilerUseCase(repo, nil, routerUC, &l)
	claimUC := usecase.NewClaimUseCase(repo, testPayloads{}, "https://app.example", &l)
	submitUC := usecase.NewSubmissionUseCase(repo, settingsRepo, quotaUC, routerUC, &l)
	entryUC := usecase.NewEntryUseCase(repo)

	cfg := &config.Config{}
	cfg.Worker.Secret = "worker-secret"
	cfg.Admin.APIKey = "admin-key"
	cfg.Poll.RateLimit = 100
	cfg.Poll.RateWindow = 10 * time.Second

	auth := NewAuthManager("jwt-test-secret", false, "", 30*time.Minute)
	rate := red.NewRateLimiter(newMemRedis())
	srv := NewServer(submitUC, entryUC, claimUC, reconciler, routerUC, settingsRepo, rate, auth, cfg, &l)
	return &testEnv{repo: repo, settings: settingsRepo, server: srv}
}
