package models

import (
	"fmt"
	"strings"
)

// BattleStatus définit les status d'une session de combat
type BattleStatus string

const (
	BattleStatusOngoing  BattleStatus = "ongoing"
	BattleStatusVictory  BattleStatus = "victory"
	BattleStatusDefeat   BattleStatus = "defeat"
	BattleStatusCaptured BattleStatus = "captured"
	BattleStatusEscaped  BattleStatus = "escaped"
)

// IsTerminal indique si aucune transition n'est plus possible
func (s BattleStatus) IsTerminal() bool {
	return s != BattleStatusOngoing
}

// IsValid vérifie que le status est connu
func (s BattleStatus) IsValid() bool {
	switch s {
	case BattleStatusOngoing, BattleStatusVictory, BattleStatusDefeat, BattleStatusCaptured, BattleStatusEscaped:
		return true
	}
	return false
}

// ActionType actions disponibles pendant un tour
type ActionType string

const (
	ActionAttack  ActionType = "attack"
	ActionCapture ActionType = "capture"
	ActionEscape  ActionType = "escape"
)

// ParseActionType convertit une saisie utilisateur en action
func ParseActionType(raw string) (ActionType, error) {
	switch a := ActionType(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionAttack, ActionCapture, ActionEscape:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

// BattleSession état complet d'une rencontre.
// Une session est une valeur: les résolveurs en produisent une nouvelle à chaque transition.
type BattleSession struct {
	ID              string       `json:"id"`
	WildCombatant   Combatant    `json:"wild_combatant"`
	PlayerCombatant Combatant    `json:"player_combatant"`
	TurnOwner       Side         `json:"turn_owner"`
	Status          BattleStatus `json:"status"`
	TurnCount       int          `json:"turn_count"`
	PlayerActions   int          `json:"player_actions"`
	Log             []LogEntry   `json:"log"`
}

// Clone retourne une copie indépendante de la session
func (s BattleSession) Clone() BattleSession {
	clone := s
	clone.Log = make([]LogEntry, len(s.Log))
	copy(clone.Log, s.Log)
	return clone
}

// IsOngoing indique si la session attend encore des actions
func (s BattleSession) IsOngoing() bool {
	return s.Status == BattleStatusOngoing
}

// Combatant retourne le combattant d'un camp
func (s BattleSession) Combatant(side Side) Combatant {
	if side == SidePlayer {
		return s.PlayerCombatant
	}
	return s.WildCombatant
}

// Validate vérifie les invariants d'une session restaurée
func (s BattleSession) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if err := s.WildCombatant.Validate(); err != nil {
		return fmt.Errorf("wild combatant: %w", err)
	}
	if err := s.PlayerCombatant.Validate(); err != nil {
		return fmt.Errorf("player combatant: %w", err)
	}
	if s.PlayerCombatant.ID == "" {
		return fmt.Errorf("player combatant id is required")
	}
	if !s.TurnOwner.IsValid() {
		return fmt.Errorf("invalid turn owner %q", s.TurnOwner)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid status %q", s.Status)
	}
	if s.TurnCount < 1 {
		return fmt.Errorf("turn count must start at 1, got %d", s.TurnCount)
	}
	if s.PlayerActions < 0 {
		return fmt.Errorf("player actions must not be negative")
	}
	for i, entry := range s.Log {
		if entry.ID == "" || !entry.Category.IsValid() {
			return fmt.Errorf("malformed log entry at index %d", i)
		}
	}
	return nil
}

// BattleResult résultat exposé à l'appelant une fois la rencontre terminée
type BattleResult struct {
	SessionID         string       `json:"session_id"`
	Status            BattleStatus `json:"status"`
	PlayerCombatant   Combatant    `json:"player_combatant"`
	CapturedCombatant *RosterEntry `json:"captured_combatant,omitempty"`
	TotalTurns        int          `json:"total_turns"`
	Log               []LogEntry   `json:"log"`
	RewardError       string       `json:"reward_error,omitempty"`
}
