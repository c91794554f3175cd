package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"encounter/internal/config"
	"encounter/internal/models"
	"encounter/internal/utils"
)

// Rules constantes de combat
type Rules struct {
	PlayerAttackDamage int
	WildAttackDamage   int
	CaptureThreshold   float64
	CaptureSuccessRate float64
}

// DefaultRules retourne les règles par défaut
func DefaultRules() Rules {
	return Rules{
		PlayerAttackDamage: 10,
		WildAttackDamage:   8,
		CaptureThreshold:   0.5,
		CaptureSuccessRate: 0.5,
	}
}

// RulesFromConfig construit les règles depuis la configuration
func RulesFromConfig(cfg config.EncounterConfig) Rules {
	return Rules{
		PlayerAttackDamage: cfg.PlayerAttackDamage,
		WildAttackDamage:   cfg.WildAttackDamage,
		CaptureThreshold:   cfg.CaptureThreshold,
		CaptureSuccessRate: cfg.CaptureSuccessRate,
	}
}

func (r Rules) damageFor(attacker models.Side) int {
	if attacker == models.SidePlayer {
		return r.PlayerAttackDamage
	}
	return r.WildAttackDamage
}

// ActionOutcome valeurs produites par une action, interprétées par l'orchestrateur
type ActionOutcome struct {
	Side             models.Side       `json:"side"`
	Action           models.ActionType `json:"action"`
	Damage           int               `json:"damage,omitempty"`
	CaptureEligible  bool              `json:"capture_eligible,omitempty"`
	CaptureSucceeded bool              `json:"capture_succeeded,omitempty"`
	Terminal         bool              `json:"terminal"`
}

// ActionResolver applique les actions sur des snapshots de session.
// Il ne conserve aucune référence vers les sessions qu'il traite.
type ActionResolver struct {
	rules Rules
	rng   utils.RandomSource
	clock func() time.Time
	newID func() string
}

// NewActionResolver crée un nouveau résolveur d'actions
func NewActionResolver(rules Rules, rng utils.RandomSource) *ActionResolver {
	return &ActionResolver{
		rules: rules,
		rng:   rng,
		clock: func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Rules retourne les règles appliquées
func (r *ActionResolver) Rules() Rules {
	return r.rules
}

// NewSession crée une session fraîche entre deux combattants
func (r *ActionResolver) NewSession(wild, player models.Combatant) (models.BattleSession, error) {
	if wild.SpeciesID == "" || player.ID == "" {
		return models.BattleSession{}, ErrMissingSeed
	}
	if err := wild.Validate(); err != nil {
		return models.BattleSession{}, fmt.Errorf("%w: wild combatant: %v", ErrMissingSeed, err)
	}
	if err := player.Validate(); err != nil {
		return models.BattleSession{}, fmt.Errorf("%w: player combatant: %v", ErrInvalidRosterEntry, err)
	}

	wild.ID = ""
	session := models.BattleSession{
		ID:              r.newID(),
		WildCombatant:   wild,
		PlayerCombatant: player,
		TurnOwner:       DecideFirstTurn(player.CurrentHitPoints, wild.CurrentHitPoints, r.rng),
		Status:          models.BattleStatusOngoing,
		TurnCount:       1,
	}
	session.Log = []models.LogEntry{
		r.entry(fmt.Sprintf("A wild %s appeared!", wild.SpeciesName), models.LogCategoryInfo, ""),
		r.entry(fmt.Sprintf("Go, %s!", player.DisplayName()), models.LogCategoryInfo, ""),
	}
	return session, nil
}

// IsCaptureEligible indique si le combattant est assez affaibli pour être capturé
func (r *ActionResolver) IsCaptureEligible(c models.Combatant) bool {
	return float64(c.CurrentHitPoints) <= float64(c.MaxHitPoints)*r.rules.CaptureThreshold
}

// ApplyAction applique une action du camp side et retourne le nouveau snapshot.
// La session reçue n'est jamais modifiée.
func (r *ActionResolver) ApplyAction(session models.BattleSession, side models.Side, action models.ActionType) (models.BattleSession, ActionOutcome, error) {
	outcome := ActionOutcome{Side: side, Action: action}

	if session.Status.IsTerminal() {
		return session, outcome, ErrSessionTerminal
	}
	if !side.IsValid() {
		return session, outcome, fmt.Errorf("%w: side %q", ErrActionNotAllowed, side)
	}

	switch action {
	case models.ActionAttack:
	case models.ActionCapture, models.ActionEscape:
		if side != models.SidePlayer {
			return session, outcome, fmt.Errorf("%w: %s by %s", ErrActionNotAllowed, action, side)
		}
	default:
		return session, outcome, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	// La fuite reste possible pendant le tour adverse
	if action != models.ActionEscape && session.TurnOwner != side {
		return session, outcome, ErrNotYourTurn
	}

	next := session.Clone()
	if side == models.SidePlayer {
		if next.PlayerActions > 0 {
			next.TurnCount++
		}
		next.PlayerActions++
	}

	switch action {
	case models.ActionAttack:
		r.attack(&next, side, &outcome)
	case models.ActionCapture:
		r.capture(&next, &outcome)
	case models.ActionEscape:
		next.Status = models.BattleStatusEscaped
		next.Log = append(next.Log, r.entry("Got away safely!", models.LogCategoryEscape, side))
	}

	outcome.Terminal = next.Status.IsTerminal()
	next.TurnOwner = nextTurnOwner(next)
	return next, outcome, nil
}

func (r *ActionResolver) attack(s *models.BattleSession, attacker models.Side, outcome *ActionOutcome) {
	defenderSide := attacker.Opponent()
	attackerName := displayName(s.Combatant(attacker), attacker)
	defender := s.Combatant(defenderSide)
	defenderName := displayName(defender, defenderSide)

	before := defender.CurrentHitPoints
	defender = defender.WithHitPoints(before - r.rules.damageFor(attacker))
	outcome.Damage = before - defender.CurrentHitPoints

	if defenderSide == models.SidePlayer {
		s.PlayerCombatant = defender
	} else {
		s.WildCombatant = defender
	}

	s.Log = append(s.Log,
		r.entry(fmt.Sprintf("%s attacks!", attackerName), models.LogCategoryAttack, attacker),
		r.entry(fmt.Sprintf("%s takes %d damage! (%d/%d HP)", defenderName, outcome.Damage,
			defender.CurrentHitPoints, defender.MaxHitPoints), models.LogCategoryDamage, attacker),
	)

	if !defender.IsFainted() {
		return
	}

	if attacker == models.SidePlayer {
		s.Status = models.BattleStatusVictory
		s.Log = append(s.Log, r.entry(fmt.Sprintf("%s fainted! You won the battle!", defenderName), models.LogCategoryVictory, attacker))
	} else {
		s.Status = models.BattleStatusDefeat
		s.Log = append(s.Log, r.entry(fmt.Sprintf("%s fainted! You lost the battle...", defenderName), models.LogCategoryDefeat, attacker))
	}
}

func (r *ActionResolver) capture(s *models.BattleSession, outcome *ActionOutcome) {
	wildName := displayName(s.WildCombatant, models.SideWild)

	if !r.IsCaptureEligible(s.WildCombatant) {
		s.Log = append(s.Log, r.entry(
			fmt.Sprintf("%s is too strong to be captured! Weaken it first.", wildName),
			models.LogCategoryInfo, models.SidePlayer))
		return
	}

	outcome.CaptureEligible = true
	if r.rng.Float64() >= r.rules.CaptureSuccessRate {
		s.Log = append(s.Log, r.entry(fmt.Sprintf("Oh no! %s broke free!", wildName), models.LogCategoryCapture, models.SidePlayer))
		return
	}

	outcome.CaptureSucceeded = true
	s.Status = models.BattleStatusCaptured
	s.Log = append(s.Log,
		r.entry(fmt.Sprintf("Gotcha! %s was caught!", wildName), models.LogCategoryCapture, models.SidePlayer),
		r.entry(fmt.Sprintf("%s joined your team!", s.WildCombatant.SpeciesName), models.LogCategoryVictory, models.SidePlayer),
	)
}

func (r *ActionResolver) entry(message string, category models.LogCategory, side models.Side) models.LogEntry {
	return models.LogEntry{
		ID:        r.newID(),
		Message:   message,
		Category:  category,
		Side:      side,
		Timestamp: r.clock(),
	}
}

func displayName(c models.Combatant, side models.Side) string {
	if side == models.SideWild {
		return "Wild " + c.SpeciesName
	}
	return c.DisplayName()
}
