package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/uptrace/bun"
)

type SettingRepository interface {
	GetAll(ctx context.Context) ([]*models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	// Set upserts a key and bumps its version monotonically.
	Set(ctx context.Context, key, value string) error
}

type settingRepository struct {
	*BaseRepository
}

func NewSettingRepository(db *bun.DB) SettingRepository {
	return &settingRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *settingRepository) GetAll(ctx context.Context) ([]*models.Setting, error) {
	var settings []*models.Setting
	err := r.GetDB().NewSelect().
		Model(&settings).
		Order("key ASC").
		Scan(ctx)
	return settings, r.HandleError("get_all", "setting", err)
}

func (r *settingRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	setting := new(models.Setting)
	err := r.GetDB().NewSelect().
		Model(setting).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "setting", ID: key}
		}
		return nil, r.HandleErrorWithID("get", "setting", key, err)
	}
	return setting, nil
}

func (r *settingRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.GetDB().ExecContext(ctx, `
        INSERT INTO bank_settings (key, value, version, updated_at)
        VALUES (?, ?, 1, CURRENT_TIMESTAMP)
        ON CONFLICT (key)
        DO UPDATE SET value = EXCLUDED.value,
                      version = bank_settings.version + 1,
                      updated_at = CURRENT_TIMESTAMP
    `, key, value)
	return r.HandleErrorWithID("set", "setting", key, err)
}
