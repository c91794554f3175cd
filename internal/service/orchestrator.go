package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"encounter/internal/models"
	"encounter/internal/monitoring"
	"encounter/internal/repository"
)

// OrchestratorState étapes du cycle de vie d'une rencontre
type OrchestratorState string

const (
	StateUninitialized OrchestratorState = "uninitialized"
	StateLoading       OrchestratorState = "loading"
	StateOngoing       OrchestratorState = "ongoing"
	StateResolving     OrchestratorState = "resolving"
	StateDone          OrchestratorState = "done"
	StateAborted       OrchestratorState = "aborted"
	StateAbandoned     OrchestratorState = "abandoned"
)

// IsFinal indique qu'aucune transition n'aura plus lieu
func (s OrchestratorState) IsFinal() bool {
	return s == StateDone || s == StateAborted || s == StateAbandoned
}

// EncounterSeed combattants fournis par l'appelant pour une rencontre fraîche
type EncounterSeed struct {
	Wild   *models.Combatant
	Player *models.Combatant
}

// OrchestratorDeps collaborateurs d'un orchestrateur
type OrchestratorDeps struct {
	Store         repository.BattleSessionStoreInterface
	Resolver      *ActionResolver
	Rewards       RewardProcessorInterface
	Scheduler     Scheduler
	Publisher     EventPublisherInterface
	Metrics       *monitoring.EncounterMetrics
	OpponentDelay time.Duration
	ResolveDelay  time.Duration
	// OnFinished est appelé une fois le résultat remis, hors de tout verrou
	OnFinished func(playerID string, result *models.BattleResult)
	Clock      func() time.Time
}

// Orchestrator possède une rencontre de bout en bout pour un joueur.
// Le flag processing sérialise les transitions: il est levé avant l'application d'une action
// et baissé après la persistance du snapshot obtenu.
type Orchestrator struct {
	playerID string
	deps     OrchestratorDeps
	ctx      context.Context
	cancel   context.CancelFunc

	mu           sync.Mutex
	state        OrchestratorState
	session      models.BattleSession
	restored     bool
	processing   bool
	pending      func()
	generation   uint64
	closed       bool
	result       *models.BattleResult
	resultErr    error
	lastActivity time.Time

	done     chan struct{}
	doneOnce sync.Once
}

// NewOrchestrator crée un orchestrateur non initialisé
func NewOrchestrator(playerID string, deps OrchestratorDeps) *Orchestrator {
	if deps.Scheduler == nil {
		deps.Scheduler = NewTimerScheduler()
	}
	if deps.Publisher == nil {
		deps.Publisher = NopPublisher{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		playerID:     playerID,
		deps:         deps,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateUninitialized,
		lastActivity: deps.Clock(),
		done:         make(chan struct{}),
	}
}

// PlayerID retourne le joueur propriétaire de la rencontre
func (o *Orchestrator) PlayerID() string {
	return o.playerID
}

// Start restaure la session du slot si elle existe, sinon en crée une depuis seed.
// Sans session stockée ni seed complet, la rencontre est abandonnée avec ErrMissingSeed.
func (o *Orchestrator) Start(ctx context.Context, seed *EncounterSeed) (models.BattleSession, error) {
	o.mu.Lock()
	if o.state != StateUninitialized {
		o.mu.Unlock()
		return models.BattleSession{}, fmt.Errorf("%w: orchestrator already started", ErrEncounterInProgress)
	}
	o.state = StateLoading
	o.mu.Unlock()

	session, restored, err := o.load(ctx, seed)
	if err != nil {
		o.mu.Lock()
		o.state = StateAborted
		o.closed = true
		o.mu.Unlock()
		o.cancel()
		o.finish()

		logrus.WithFields(logrus.Fields{
			"player_id": o.playerID,
			"error":     err.Error(),
		}).Error("Encounter setup failed")
		return models.BattleSession{}, err
	}

	o.mu.Lock()
	o.state = StateOngoing
	o.session = session
	o.restored = restored
	if o.closed {
		snapshot := session.Clone()
		o.mu.Unlock()

		// La session est dans le slot: le joueur la reprendra
		logrus.WithFields(logrus.Fields{
			"player_id":  o.playerID,
			"session_id": snapshot.ID,
		}).Warn("Encounter torn down during setup")
		return snapshot, fmt.Errorf("%w: orchestrator torn down during setup", ErrEncounterInProgress)
	}
	o.lastActivity = o.deps.Clock()
	o.scheduleNextLocked()
	snapshot := session.Clone()
	o.mu.Unlock()

	origin := monitoring.OriginFresh
	if restored {
		origin = monitoring.OriginRestored
	}
	o.deps.Metrics.IncStarted(origin)

	logrus.WithFields(logrus.Fields{
		"player_id":  o.playerID,
		"session_id": snapshot.ID,
		"origin":     origin,
		"turn_owner": snapshot.TurnOwner,
		"status":     snapshot.Status,
	}).Info("Encounter started")

	o.publish(ctx, models.EventEncounterStarted, StateOngoing, snapshot, nil)
	return snapshot, nil
}

func (o *Orchestrator) load(ctx context.Context, seed *EncounterSeed) (models.BattleSession, bool, error) {
	if stored, ok := o.deps.Store.Load(ctx, o.playerID); ok {
		return *stored, true, nil
	}

	if seed == nil || seed.Wild == nil || seed.Player == nil {
		return models.BattleSession{}, false, ErrMissingSeed
	}

	session, err := o.deps.Resolver.NewSession(*seed.Wild, *seed.Player)
	if err != nil {
		return models.BattleSession{}, false, err
	}

	// Échec non fatal: la rencontre continue en mémoire
	_ = o.deps.Store.Save(context.WithoutCancel(ctx), o.playerID, session)
	return session, false, nil
}

// SubmitAction applique une action du joueur.
// Retourne ErrActionIgnored si une transition est en cours, si ce n'est pas le tour du joueur
// ou si la session est terminée. La fuite est acceptée pendant le tour adverse.
func (o *Orchestrator) SubmitAction(ctx context.Context, action models.ActionType) (models.BattleSession, error) {
	return o.transition(ctx, models.SidePlayer, action, 0)
}

func (o *Orchestrator) opponentTurn(gen uint64) {
	if _, err := o.transition(o.ctx, models.SideWild, models.ActionAttack, gen); err != nil && !errors.Is(err, ErrActionIgnored) {
		logrus.WithFields(logrus.Fields{
			"player_id": o.playerID,
			"error":     err.Error(),
		}).Error("Opponent turn failed")
	}
}

func (o *Orchestrator) transition(ctx context.Context, side models.Side, action models.ActionType, gen uint64) (models.BattleSession, error) {
	o.mu.Lock()
	if side == models.SideWild {
		if o.closed || gen != o.generation {
			o.mu.Unlock()
			return models.BattleSession{}, ErrActionIgnored
		}
		o.pending = nil
	}

	if err := o.acceptLocked(side, action); err != nil {
		snapshot := o.session.Clone()
		o.mu.Unlock()
		return snapshot, err
	}

	next, outcome, err := o.deps.Resolver.ApplyAction(o.session, side, action)
	if err != nil {
		snapshot := o.session.Clone()
		o.mu.Unlock()
		return snapshot, err
	}

	if side == models.SidePlayer && action == models.ActionEscape {
		o.cancelPendingLocked()
	}

	o.processing = true
	o.session = next
	o.lastActivity = o.deps.Clock()
	snapshot := next.Clone()
	o.mu.Unlock()

	storeCtx := context.WithoutCancel(ctx)
	_ = o.deps.Store.Save(storeCtx, o.playerID, snapshot)
	o.deps.Metrics.IncAction(string(side), string(action))

	logrus.WithFields(logrus.Fields{
		"player_id":  o.playerID,
		"session_id": snapshot.ID,
		"side":       side,
		"action":     action,
		"damage":     outcome.Damage,
		"status":     snapshot.Status,
		"turn_owner": snapshot.TurnOwner,
		"turn_count": snapshot.TurnCount,
	}).Debug("Encounter transition applied")

	o.mu.Lock()
	o.processing = false
	abandoned := o.state == StateAbandoned
	if !abandoned {
		o.scheduleNextLocked()
	}
	state := o.state
	o.mu.Unlock()

	if abandoned {
		// Abandon pendant la persistance: le slot vient d'être réécrit
		_ = o.deps.Store.Clear(storeCtx, o.playerID)
		return snapshot, nil
	}

	o.publish(ctx, models.EventEncounterUpdated, state, snapshot, nil)
	return snapshot, nil
}

func (o *Orchestrator) acceptLocked(side models.Side, action models.ActionType) error {
	if o.closed || o.state != StateOngoing || o.processing || !o.session.IsOngoing() {
		return ErrActionIgnored
	}
	if side == models.SidePlayer && action != models.ActionEscape && o.session.TurnOwner != models.SidePlayer {
		return ErrActionIgnored
	}
	return nil
}

func (o *Orchestrator) resolve(gen uint64) {
	o.mu.Lock()
	if o.closed || gen != o.generation || o.state != StateOngoing {
		o.mu.Unlock()
		return
	}
	o.pending = nil
	o.state = StateResolving
	final := o.session.Clone()
	o.mu.Unlock()

	ctx := context.WithoutCancel(o.ctx)
	result, err := o.deps.Rewards.Process(ctx, o.playerID, final)
	if result == nil {
		result = &models.BattleResult{
			SessionID:       final.ID,
			Status:          final.Status,
			PlayerCombatant: final.PlayerCombatant,
			TotalTurns:      final.TurnCount,
			Log:             final.Log,
		}
		if err != nil {
			result.RewardError = err.Error()
		}
	}

	_ = o.deps.Store.Clear(ctx, o.playerID)
	o.deps.Metrics.IncOutcome(string(final.Status))

	o.mu.Lock()
	o.state = StateDone
	o.result = result
	o.resultErr = err
	o.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"player_id":   o.playerID,
		"session_id":  final.ID,
		"status":      final.Status,
		"total_turns": final.TurnCount,
	}).Info("Encounter resolved")

	o.publish(ctx, models.EventEncounterResolved, StateDone, final, result)
	if o.deps.OnFinished != nil {
		o.deps.OnFinished(o.playerID, result)
	}
	o.finish()
}

// Abandon met fin à la rencontre sans récompense et supprime le slot
func (o *Orchestrator) Abandon(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.state == StateResolving, o.state == StateOngoing && o.session.Status.IsTerminal():
		o.mu.Unlock()
		return ErrSessionTerminal
	case o.state != StateOngoing, o.closed:
		o.mu.Unlock()
		return ErrNoActiveEncounter
	}

	o.cancelPendingLocked()
	o.state = StateAbandoned
	o.closed = true
	snapshot := o.session.Clone()
	o.mu.Unlock()
	o.cancel()

	_ = o.deps.Store.Clear(context.WithoutCancel(ctx), o.playerID)
	o.deps.Metrics.IncOutcome(string(StateAbandoned))

	logrus.WithFields(logrus.Fields{
		"player_id":  o.playerID,
		"session_id": snapshot.ID,
	}).Info("Encounter abandoned")

	o.publish(ctx, models.EventEncounterAbandoned, StateAbandoned, snapshot, nil)
	o.finish()
	return nil
}

// Teardown annule toute tâche planifiée sans toucher au slot: la rencontre pourra reprendre
func (o *Orchestrator) Teardown() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.cancelPendingLocked()
	state := o.state
	o.mu.Unlock()
	o.cancel()

	logrus.WithFields(logrus.Fields{
		"player_id": o.playerID,
		"state":     state,
	}).Debug("Encounter orchestrator torn down")
}

// Snapshot retourne une copie de la session courante et l'état de l'orchestrateur
func (o *Orchestrator) Snapshot() (models.BattleSession, OrchestratorState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastActivity = o.deps.Clock()
	return o.session.Clone(), o.state
}

// State retourne l'état courant
func (o *Orchestrator) State() OrchestratorState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Restored indique si la session provient du slot de persistance
func (o *Orchestrator) Restored() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.restored
}

// Closed indique si l'orchestrateur a été démonté ou abandonné
func (o *Orchestrator) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// IdleSince retourne la durée écoulée depuis la dernière activité
func (o *Orchestrator) IdleSince(now time.Time) time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return now.Sub(o.lastActivity)
}

// Result retourne le résultat une fois l'état Done atteint (nil avant)
func (o *Orchestrator) Result() (*models.BattleResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result, o.resultErr
}

// Done est fermé quand la rencontre atteint Done, Aborted ou Abandoned
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) scheduleNextLocked() {
	if o.closed || o.state != StateOngoing || o.pending != nil {
		return
	}

	switch {
	case o.session.Status.IsTerminal():
		o.scheduleLocked(o.deps.ResolveDelay, o.resolve)
	case o.session.TurnOwner == models.SideWild:
		o.scheduleLocked(o.deps.OpponentDelay, o.opponentTurn)
	}
}

func (o *Orchestrator) scheduleLocked(delay time.Duration, task func(gen uint64)) {
	o.generation++
	gen := o.generation
	o.pending = o.deps.Scheduler.Schedule(delay, func() { task(gen) })
}

func (o *Orchestrator) cancelPendingLocked() {
	if o.pending != nil {
		o.pending()
		o.pending = nil
	}
	o.generation++
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, state OrchestratorState, session models.BattleSession, result *models.BattleResult) {
	o.deps.Publisher.Publish(ctx, models.EncounterEvent{
		Type:     eventType,
		PlayerID: o.playerID,
		State:    string(state),
		Session:  session,
		Result:   result,
	})
}

func (o *Orchestrator) finish() {
	o.doneOnce.Do(func() { close(o.done) })
}
