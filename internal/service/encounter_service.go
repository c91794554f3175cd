package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"encounter/internal/config"
	"encounter/internal/external"
	"encounter/internal/models"
	"encounter/internal/monitoring"
	"encounter/internal/repository"
)

// EncounterServiceInterface définit les méthodes du service de rencontres
type EncounterServiceInterface interface {
	StartEncounter(ctx context.Context, playerID string, req models.StartEncounterRequest) (*models.EncounterResponse, error)
	CurrentEncounter(ctx context.Context, playerID string) (*models.EncounterResponse, error)
	SubmitAction(ctx context.Context, playerID string, action models.ActionType) (*models.ActionResponse, error)
	Abandon(ctx context.Context, playerID string) error
	LastResult(playerID string) (*models.BattleResult, bool)
}

// EncounterServiceDeps collaborateurs du service de rencontres
type EncounterServiceDeps struct {
	Factory   CombatantFactoryInterface
	Roster    external.RosterClientInterface
	Store     repository.BattleSessionStoreInterface
	Resolver  *ActionResolver
	Rewards   RewardProcessorInterface
	Scheduler Scheduler
	Publisher EventPublisherInterface
	Metrics   *monitoring.EncounterMetrics
}

// EncounterService tient au plus un orchestrateur par joueur
type EncounterService struct {
	config *config.EncounterConfig
	deps   EncounterServiceDeps
	clock  func() time.Time
	cron   *cron.Cron

	mu            sync.Mutex
	orchestrators map[string]*Orchestrator
	results       map[string]*models.BattleResult
}

// NewEncounterService crée une nouvelle instance du service de rencontres
func NewEncounterService(cfg *config.EncounterConfig, deps EncounterServiceDeps) *EncounterService {
	return &EncounterService{
		config:        cfg,
		deps:          deps,
		clock:         time.Now,
		orchestrators: make(map[string]*Orchestrator),
		results:       make(map[string]*models.BattleResult),
	}
}

// Start démarre le nettoyage périodique des orchestrateurs inactifs
func (s *EncounterService) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.config.SweepSchedule, s.Sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.config.SweepSchedule, err)
	}
	s.cron.Start()

	logrus.WithFields(logrus.Fields{
		"schedule":      s.config.SweepSchedule,
		"idle_eviction": s.config.IdleEviction,
	}).Info("Encounter sweeper started")
	return nil
}

// Stop arrête le nettoyage et démonte tous les orchestrateurs; les slots restent pour reprise
func (s *EncounterService) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}

	s.mu.Lock()
	orchestrators := s.orchestrators
	s.orchestrators = make(map[string]*Orchestrator)
	s.mu.Unlock()

	for _, o := range orchestrators {
		o.Teardown()
	}
	s.deps.Metrics.SetActive(0)
	logrus.WithField("torn_down", len(orchestrators)).Info("Encounter service stopped")
}

// StartEncounter démarre une rencontre fraîche pour le joueur.
// Sans espèce demandée, l'espèce sauvage est tirée au hasard.
func (s *EncounterService) StartEncounter(ctx context.Context, playerID string, req models.StartEncounterRequest) (*models.EncounterResponse, error) {
	o, err := s.claim(ctx, playerID)
	if err != nil {
		return nil, err
	}

	seed, err := s.buildSeed(ctx, playerID, req)
	if err != nil {
		s.release(playerID, o)
		return nil, err
	}

	session, err := o.Start(ctx, seed)
	if err != nil {
		s.release(playerID, o)
		return nil, err
	}

	return &models.EncounterResponse{State: string(o.State()), Session: session}, nil
}

// CurrentEncounter retourne la rencontre du joueur, reprise depuis le slot si nécessaire
func (s *EncounterService) CurrentEncounter(ctx context.Context, playerID string) (*models.EncounterResponse, error) {
	o, err := s.resume(ctx, playerID)
	if err != nil {
		return nil, err
	}

	session, state := o.Snapshot()
	return &models.EncounterResponse{State: string(state), Session: session}, nil
}

// SubmitAction transmet une action du joueur à son orchestrateur
func (s *EncounterService) SubmitAction(ctx context.Context, playerID string, action models.ActionType) (*models.ActionResponse, error) {
	o, err := s.resume(ctx, playerID)
	if err != nil {
		return nil, err
	}

	session, err := o.SubmitAction(ctx, action)
	if errors.Is(err, ErrActionIgnored) {
		session, state := o.Snapshot()
		return &models.ActionResponse{Accepted: false, State: string(state), Session: session}, nil
	}
	if err != nil {
		return nil, err
	}

	return &models.ActionResponse{Accepted: true, State: string(o.State()), Session: session}, nil
}

// Abandon met fin à la rencontre du joueur sans récompense
func (s *EncounterService) Abandon(ctx context.Context, playerID string) error {
	o, err := s.resume(ctx, playerID)
	if err != nil {
		return err
	}

	if err := o.Abandon(ctx); err != nil {
		return err
	}
	s.release(playerID, o)
	return nil
}

// LastResult retourne le résultat de la dernière rencontre terminée du joueur
func (s *EncounterService) LastResult(playerID string) (*models.BattleResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[playerID]
	return result, ok
}

// ActiveCount retourne le nombre d'orchestrateurs en mémoire
func (s *EncounterService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orchestrators)
}

// Sweep retire les orchestrateurs terminés et démonte ceux inactifs depuis trop longtemps
func (s *EncounterService) Sweep() {
	now := s.clock()
	var evicted, dropped int

	s.mu.Lock()
	for playerID, o := range s.orchestrators {
		state := o.State()
		switch {
		case state.IsFinal() || o.Closed():
			delete(s.orchestrators, playerID)
			dropped++
		case state == StateOngoing && s.config.IdleEviction > 0 && o.IdleSince(now) > s.config.IdleEviction:
			o.Teardown()
			delete(s.orchestrators, playerID)
			evicted++
		}
	}
	active := len(s.orchestrators)
	s.mu.Unlock()

	s.deps.Metrics.SetActive(active)

	var purged int64
	if purger, ok := s.deps.Store.(interface {
		PurgeExpired(ctx context.Context) (int64, error)
	}); ok {
		var err error
		if purged, err = purger.PurgeExpired(context.Background()); err != nil {
			logrus.WithError(err).Warn("Failed to purge expired session slots")
		}
	}

	if evicted > 0 || dropped > 0 || purged > 0 {
		logrus.WithFields(logrus.Fields{
			"evicted": evicted,
			"dropped": dropped,
			"purged":  purged,
			"active":  active,
		}).Info("Encounter sweep completed")
	}
}

// claim réserve l'emplacement du joueur pour une nouvelle rencontre
func (s *EncounterService) claim(ctx context.Context, playerID string) (*Orchestrator, error) {
	s.mu.Lock()
	if existing, ok := s.orchestrators[playerID]; ok {
		if !existing.State().IsFinal() && !existing.Closed() {
			s.mu.Unlock()
			return nil, ErrEncounterInProgress
		}
		delete(s.orchestrators, playerID)
	}
	o := s.newOrchestrator(playerID)
	s.orchestrators[playerID] = o
	active := len(s.orchestrators)
	s.mu.Unlock()

	s.deps.Metrics.SetActive(active)

	// Une session stockée (autre instance, rechargement) doit être reprise, pas écrasée
	if _, ok := s.deps.Store.Load(ctx, playerID); ok {
		s.release(playerID, o)
		return nil, ErrEncounterInProgress
	}
	return o, nil
}

// resume retourne l'orchestrateur du joueur, en le recréant depuis le slot si besoin
func (s *EncounterService) resume(ctx context.Context, playerID string) (*Orchestrator, error) {
	s.mu.Lock()
	if existing, ok := s.orchestrators[playerID]; ok && !existing.Closed() {
		state := existing.State()
		if state != StateAborted && state != StateAbandoned {
			s.mu.Unlock()
			if state == StateUninitialized || state == StateLoading {
				return nil, ErrEncounterInProgress
			}
			return existing, nil
		}
	}
	o := s.newOrchestrator(playerID)
	s.orchestrators[playerID] = o
	s.mu.Unlock()

	if _, err := o.Start(ctx, nil); err != nil {
		s.release(playerID, o)
		if errors.Is(err, ErrMissingSeed) {
			return nil, ErrNoActiveEncounter
		}
		return nil, err
	}

	s.mu.Lock()
	active := len(s.orchestrators)
	s.mu.Unlock()
	s.deps.Metrics.SetActive(active)
	return o, nil
}

// release retire o du registre s'il y est encore
func (s *EncounterService) release(playerID string, o *Orchestrator) {
	s.mu.Lock()
	if current, ok := s.orchestrators[playerID]; ok && current == o {
		delete(s.orchestrators, playerID)
	}
	active := len(s.orchestrators)
	s.mu.Unlock()

	s.deps.Metrics.SetActive(active)
}

func (s *EncounterService) buildSeed(ctx context.Context, playerID string, req models.StartEncounterRequest) (*EncounterSeed, error) {
	entry, err := s.deps.Roster.GetRosterEntry(ctx, playerID, req.RosterEntryID)
	if err != nil {
		if errors.Is(err, external.ErrNotFound) {
			return nil, fmt.Errorf("%w: roster entry %s not found", ErrInvalidRosterEntry, req.RosterEntryID)
		}
		return nil, fmt.Errorf("failed to fetch roster entry: %w", err)
	}
	if entry.PlayerID != "" && entry.PlayerID != playerID {
		return nil, fmt.Errorf("%w: roster entry %s belongs to another player", ErrInvalidRosterEntry, req.RosterEntryID)
	}

	player, err := s.deps.Factory.ConvertRosterEntryToCombatant(ctx, entry)
	if err != nil {
		return nil, err
	}
	if player.IsFainted() {
		return nil, fmt.Errorf("%w: %s has fainted", ErrInvalidRosterEntry, player.DisplayName())
	}

	var wild models.Combatant
	if req.SpeciesID != "" {
		wild, err = s.deps.Factory.CreateWildCombatant(ctx, req.SpeciesID)
	} else {
		wild, err = s.deps.Factory.CreateRandomWildCombatant(ctx)
	}
	if err != nil {
		return nil, err
	}

	return &EncounterSeed{Wild: &wild, Player: &player}, nil
}

func (s *EncounterService) newOrchestrator(playerID string) *Orchestrator {
	return NewOrchestrator(playerID, OrchestratorDeps{
		Store:         s.deps.Store,
		Resolver:      s.deps.Resolver,
		Rewards:       s.deps.Rewards,
		Scheduler:     s.deps.Scheduler,
		Publisher:     s.deps.Publisher,
		Metrics:       s.deps.Metrics,
		OpponentDelay: s.config.OpponentDelay,
		ResolveDelay:  s.config.ResolveDelay,
		OnFinished:    s.recordResult,
	})
}

func (s *EncounterService) recordResult(playerID string, result *models.BattleResult) {
	s.mu.Lock()
	s.results[playerID] = result
	s.mu.Unlock()
}
