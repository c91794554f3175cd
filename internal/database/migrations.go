package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration 1: slots de persistance des sessions de combat (un par joueur)
const createBattleSessionSlotsTable = `
CREATE TABLE IF NOT EXISTS battle_session_slots (
    slot_key VARCHAR(255) PRIMARY KEY,
    snapshot JSONB NOT NULL,
    expires_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

// Migration 2: Index pour la purge des slots expirés
const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_battle_session_slots_expires_at ON battle_session_slots(expires_at);`

// RunMigrations crée le schéma nécessaire au store PostgreSQL
func RunMigrations(ctx context.Context, db *DB) error {
	logrus.Info("Running encounter database migrations...")

	migrations := []string{
		createBattleSessionSlotsTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	logrus.WithField("count", len(migrations)).Info("Encounter database migrations completed")
	return nil
}
