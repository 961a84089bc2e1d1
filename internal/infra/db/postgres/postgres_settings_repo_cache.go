package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/repository"
	"github.com/erocrawler/gmanimato/internal/infra/metrics"
	red "github.com/erocrawler/gmanimato/internal/infra/redis"
)

var _ repository.SettingsRepository = (*settingsRepoCacheDecorator)(nil)

const settingsCacheKey = "settings:admin"

// settingsRepoCacheDecorator caches the settings singleton with a short TTL.
// The router reads settings on every submission; stale reads up to one
// request are acceptable, so a few seconds of cache is safe.
type settingsRepoCacheDecorator struct {
	inner repository.SettingsRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewSettingsRepoCacheDecorator(inner repository.SettingsRepository, cache red.RedisClient) repository.SettingsRepository {
	return &settingsRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   5 * time.Second,
	}
}

func (d *settingsRepoCacheDecorator) Get(ctx context.Context, tx repository.Tx) (*model.AdminSettings, error) {
	if val, err := d.cache.Get(ctx, settingsCacheKey); err == nil {
		var s model.AdminSettings
		if json.Unmarshal([]byte(val), &s) == nil {
			metrics.IncCacheRequest("settings", "hit")
			return &s, nil
		}
	}

	metrics.IncCacheRequest("settings", "miss")
	s, err := d.inner.Get(ctx, tx)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(s); err == nil {
		_ = d.cache.Set(ctx, settingsCacheKey, bytes, d.ttl)
	}
	return s, nil
}

// Save invalidates before writing through so the next read repopulates.
func (d *settingsRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, s *model.AdminSettings) error {
	_ = d.cache.Del(ctx, settingsCacheKey)
	return d.inner.Save(ctx, tx, s)
}
