package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"encounter/internal/models"
	"encounter/internal/monitoring"
)

const (
	sessionKeyPrefix = "encounter:session:"
	snapshotVersion  = 1
)

// BattleSessionStoreInterface slot de persistance de la session en cours d'un joueur.
// Les échecs sont non fatals: le combat continue en mémoire.
type BattleSessionStoreInterface interface {
	Save(ctx context.Context, playerID string, session models.BattleSession) error
	Load(ctx context.Context, playerID string) (*models.BattleSession, bool)
	Clear(ctx context.Context, playerID string) error
}

// snapshotEnvelope format sérialisé d'un slot
type snapshotEnvelope struct {
	Version int                  `json:"version"`
	SavedAt time.Time            `json:"saved_at"`
	Session models.BattleSession `json:"session"`
}

// BattleSessionStore implémente BattleSessionStoreInterface sur un SlotBackend
type BattleSessionStore struct {
	backend SlotBackend
	ttl     time.Duration
	timeout time.Duration
	metrics *monitoring.EncounterMetrics
	clock   func() time.Time
}

// NewBattleSessionStore crée un store. ttl <= 0 désactive l'expiration des slots.
func NewBattleSessionStore(backend SlotBackend, ttl, timeout time.Duration, metrics *monitoring.EncounterMetrics) *BattleSessionStore {
	return &BattleSessionStore{
		backend: backend,
		ttl:     ttl,
		timeout: timeout,
		metrics: metrics,
		clock:   time.Now,
	}
}

// SessionKey retourne la clé du slot d'un joueur
func SessionKey(playerID string) string {
	return sessionKeyPrefix + playerID
}

// Save écrase le slot du joueur avec le snapshot complet de la session
func (s *BattleSessionStore) Save(ctx context.Context, playerID string, session models.BattleSession) error {
	payload, err := json.Marshal(snapshotEnvelope{
		Version: snapshotVersion,
		SavedAt: s.clock().UTC(),
		Session: session,
	})
	if err != nil {
		return s.warn("save", playerID, fmt.Errorf("failed to marshal session: %w", err))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err = s.backend.Set(ctx, SessionKey(playerID), payload, s.ttl)
	s.metrics.ObserveStore("save", time.Since(start), err)
	if err != nil {
		return s.warn("save", playerID, err)
	}

	logrus.WithFields(logrus.Fields{
		"player_id":  playerID,
		"session_id": session.ID,
		"status":     session.Status,
	}).Debug("Battle session saved")
	return nil
}

// Load restaure la session du joueur. Un slot absent, illisible ou incohérent est traité comme absent.
func (s *BattleSessionStore) Load(ctx context.Context, playerID string) (*models.BattleSession, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	payload, err := s.backend.Get(ctx, SessionKey(playerID))
	if errors.Is(err, ErrSlotEmpty) {
		s.metrics.ObserveStore("load", time.Since(start), nil)
		return nil, false
	}
	s.metrics.ObserveStore("load", time.Since(start), err)
	if err != nil {
		s.warn("load", playerID, err)
		return nil, false
	}

	session, err := decodeSnapshot(payload)
	if err != nil {
		s.warn("load", playerID, err)
		if delErr := s.backend.Delete(ctx, SessionKey(playerID)); delErr != nil {
			s.warn("clear", playerID, delErr)
		}
		return nil, false
	}

	return session, true
}

// Clear supprime le slot du joueur
func (s *BattleSessionStore) Clear(ctx context.Context, playerID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err := s.backend.Delete(ctx, SessionKey(playerID))
	s.metrics.ObserveStore("clear", time.Since(start), err)
	if err != nil {
		return s.warn("clear", playerID, err)
	}
	return nil
}

// Ping vérifie que le backend répond
func (s *BattleSessionStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// PurgeExpired supprime les slots expirés quand le backend ne le fait pas lui-même
func (s *BattleSessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	purger, ok := s.backend.(SlotPurger)
	if !ok {
		return 0, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return purger.PurgeExpired(ctx)
}

func decodeSnapshot(payload []byte) (*models.BattleSession, error) {
	var envelope snapshotEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("malformed session snapshot: %w", err)
	}
	if envelope.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported session snapshot version %d", envelope.Version)
	}
	if err := envelope.Session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session snapshot: %w", err)
	}
	return &envelope.Session, nil
}

func (s *BattleSessionStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *BattleSessionStore) warn(operation, playerID string, err error) error {
	logrus.WithFields(logrus.Fields{
		"player_id": playerID,
		"operation": operation,
		"error":     err.Error(),
	}).Warn("Battle session store failure, continuing in memory")
	return err
}
