package postgres

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
)

// fakeSettingsRepo counts reads so cache tests can tell hits from misses.
type fakeSettingsRepo struct {
	mu   sync.Mutex
	s    *model.AdminSettings
	gets int
}

func (f *fakeSettingsRepo) Get(ctx context.Context, tx repository.Tx) (*model.AdminSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.s == nil {
		return model.DefaultAdminSettings(), nil
	}
	cp := *f.s
	return &cp, nil
}

func (f *fakeSettingsRepo) Save(ctx context.Context, tx repository.Tx, s *model.AdminSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.s = &cp
	return nil
}

func (f *fakeSettingsRepo) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// fakeRedis is a plain map store; TTLs are recorded, not enforced.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	default:
		return errors.New("unsupported value type")
	}
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeRedis) Close() error { return nil }
