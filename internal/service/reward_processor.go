package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"encounter/internal/external"
	"encounter/internal/models"
	"encounter/internal/monitoring"
)

// RewardProcessorInterface remet le résultat d'une rencontre terminée au service roster
type RewardProcessorInterface interface {
	Process(ctx context.Context, playerID string, session models.BattleSession) (*models.BattleResult, error)
}

// RewardProcessor implémente RewardProcessorInterface
type RewardProcessor struct {
	roster  external.RosterClientInterface
	metrics *monitoring.EncounterMetrics
}

// NewRewardProcessor crée un nouveau processeur de récompenses
func NewRewardProcessor(roster external.RosterClientInterface, metrics *monitoring.EncounterMetrics) *RewardProcessor {
	return &RewardProcessor{roster: roster, metrics: metrics}
}

// Process reporte les points de vie finaux et, après une capture, ajoute le monstre au roster.
// Une défaite restaure le combattant du joueur à son maximum avant le report.
// Le résultat est toujours retourné; un échec de remise est signalé par ErrRewardHandoff.
func (p *RewardProcessor) Process(ctx context.Context, playerID string, session models.BattleSession) (*models.BattleResult, error) {
	if !session.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: session %s is still ongoing", ErrRewardHandoff, session.ID)
	}

	final := session.Clone()
	result := &models.BattleResult{
		SessionID:       final.ID,
		Status:          final.Status,
		PlayerCombatant: final.PlayerCombatant,
		TotalTurns:      final.TurnCount,
		Log:             final.Log,
	}

	if final.Status == models.BattleStatusDefeat {
		result.PlayerCombatant = final.PlayerCombatant.WithHitPoints(final.PlayerCombatant.MaxHitPoints)
	}

	var errs []error
	if err := p.roster.WriteBackHitPoints(ctx, result.PlayerCombatant.ID, result.PlayerCombatant.CurrentHitPoints); err != nil {
		errs = append(errs, err)
	}

	if final.Status == models.BattleStatusCaptured {
		entry, err := p.roster.AddCapturedMonster(ctx, playerID, final.WildCombatant.SpeciesID)
		if err != nil {
			errs = append(errs, err)
		} else {
			result.CapturedCombatant = entry
		}
	}

	fields := logrus.Fields{
		"player_id":  playerID,
		"session_id": final.ID,
		"status":     final.Status,
		"hit_points": result.PlayerCombatant.CurrentHitPoints,
	}

	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", ErrRewardHandoff, errors.Join(errs...))
		result.RewardError = err.Error()
		p.metrics.IncRewardFailure()
		logrus.WithFields(fields).WithError(err).Error("Reward hand-off failed")
		return result, err
	}

	logrus.WithFields(fields).Info("Encounter rewards processed")
	return result, nil
}
