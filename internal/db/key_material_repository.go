package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/pagelock/internal/model"
)

// KeyMaterialRepository хранит ключевой материал между перезапусками.
// Реализует keys.Store.
type KeyMaterialRepository struct {
	db *pgxpool.Pool
}

// NewKeyMaterialRepository создаёт новый KeyMaterialRepository.
func NewKeyMaterialRepository(db *pgxpool.Pool) *KeyMaterialRepository {
	return &KeyMaterialRepository{db: db}
}

// Load returns the stored record for key. found is false when nothing is stored.
func (r *KeyMaterialRepository) Load(ctx context.Context, key model.CacheKey) (model.KeyRecord, bool, error) {
	rec := model.KeyRecord{Key: key}
	err := r.db.QueryRow(ctx,
		`SELECT payload, fetched_at FROM key_material WHERE site = $1 AND scope = $2`,
		key.Site, key.Scope,
	).Scan(&rec.Payload, &rec.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.KeyRecord{}, false, nil
	}
	if err != nil {
		return model.KeyRecord{}, false, fmt.Errorf("loading key material %s: %w", key, err)
	}
	return rec, true, nil
}

// Save upserts rec.
func (r *KeyMaterialRepository) Save(ctx context.Context, rec model.KeyRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO key_material (site, scope, payload, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (site, scope) DO UPDATE
		SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at`,
		rec.Key.Site, rec.Key.Scope, rec.Payload, rec.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("saving key material %s: %w", rec.Key, err)
	}
	return nil
}

// Delete removes the record for key. Missing records are not an error.
func (r *KeyMaterialRepository) Delete(ctx context.Context, key model.CacheKey) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM key_material WHERE site = $1 AND scope = $2`,
		key.Site, key.Scope,
	)
	if err != nil {
		return fmt.Errorf("deleting key material %s: %w", key, err)
	}
	return nil
}

// Count returns the number of stored records.
func (r *KeyMaterialRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM key_material`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting key material: %w", err)
	}
	return n, nil
}
