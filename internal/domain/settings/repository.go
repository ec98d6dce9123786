package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type settingRow struct {
	Key   string          `db:"key"`
	Value json.RawMessage `db:"value"`
}

// All returns the raw JSON value of every stored setting.
func (r *Repository) All(ctx context.Context) (map[string]json.RawMessage, error) {
	var rows []settingRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT key, value FROM site_settings`); err != nil {
		return nil, fmt.Errorf("settings repository all: %w", err)
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func (r *Repository) Upsert(ctx context.Context, key string, value json.RawMessage, updatedBy uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO site_settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = now()
	`, key, []byte(value), updatedBy)
	if err != nil {
		return fmt.Errorf("settings repository upsert: %w", err)
	}
	return nil
}
