package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"encounter/internal/config"
)

// DB encapsule la connexion sqlx du service
type DB struct {
	*sqlx.DB
	Config *config.DatabaseConfig
}

// NewConnection ouvre et vérifie la connexion PostgreSQL
func NewConnection(cfg *config.Config) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"service":  "encounter",
	}).Info("Connected to PostgreSQL database")

	return &DB{DB: db, Config: &cfg.Database}, nil
}

// Close ferme la connexion
func (db *DB) Close() error {
	if db.DB != nil {
		logrus.Info("Closing encounter database connection")
		return db.DB.Close()
	}
	return nil
}

// Ping vérifie que la base répond
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("encounter database health check failed: %w", err)
	}
	return nil
}
