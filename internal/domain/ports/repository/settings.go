package repository

import (
	"context"

	"github.com/erocrawler/gmanimato/internal/domain/model"
)

// SettingsRepository stores the AdminSettings singleton. Get must return
// defaults when nothing has been saved yet.
type SettingsRepository interface {
	Get(ctx context.Context, tx Tx) (*model.AdminSettings, error)
	Save(ctx context.Context, tx Tx, s *model.AdminSettings) error
}
