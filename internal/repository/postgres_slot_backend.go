package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	selectSlotQuery = `
		SELECT snapshot FROM battle_session_slots
		WHERE slot_key = $1 AND (expires_at IS NULL OR expires_at > NOW())`

	upsertSlotQuery = `
		INSERT INTO battle_session_slots (slot_key, snapshot, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (slot_key) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`

	deleteSlotQuery = `DELETE FROM battle_session_slots WHERE slot_key = $1`

	purgeSlotsQuery = `DELETE FROM battle_session_slots WHERE expires_at IS NOT NULL AND expires_at <= NOW()`
)

// PostgresSlotBackend slot de persistance dans la table battle_session_slots
type PostgresSlotBackend struct {
	db    *sqlx.DB
	clock func() time.Time
}

// NewPostgresSlotBackend crée un backend PostgreSQL
func NewPostgresSlotBackend(db *sqlx.DB) *PostgresSlotBackend {
	return &PostgresSlotBackend{db: db, clock: time.Now}
}

// Get implémente SlotBackend
func (b *PostgresSlotBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var snapshot []byte
	err := b.db.GetContext(ctx, &snapshot, selectSlotQuery, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot %s: %w", key, err)
	}
	return snapshot, nil
}

// Set implémente SlotBackend
func (b *PostgresSlotBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: b.clock().Add(ttl), Valid: true}
	}

	if _, err := b.db.ExecContext(ctx, upsertSlotQuery, key, value, expiresAt); err != nil {
		return fmt.Errorf("failed to save slot %s: %w", key, err)
	}
	return nil
}

// Delete implémente SlotBackend
func (b *PostgresSlotBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, deleteSlotQuery, key); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}

// Ping implémente SlotBackend
func (b *PostgresSlotBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// PurgeExpired implémente SlotPurger
func (b *PostgresSlotBackend) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := b.db.ExecContext(ctx, purgeSlotsQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired slots: %w", err)
	}
	return result.RowsAffected()
}
