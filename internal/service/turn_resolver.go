package service

import (
	"encounter/internal/models"
	"encounter/internal/utils"
)

// DecideFirstTurn choisit le camp qui ouvre le combat.
// Le plus de points de vie courants commence; à égalité, pile ou face.
func DecideFirstTurn(playerHP, wildHP int, rng utils.RandomSource) models.Side {
	switch {
	case playerHP > wildHP:
		return models.SidePlayer
	case wildHP > playerHP:
		return models.SideWild
	}

	if rng.Intn(2) == 0 {
		return models.SidePlayer
	}
	return models.SideWild
}

// nextTurnOwner retourne le propriétaire du tour après une action terminée
func nextTurnOwner(session models.BattleSession) models.Side {
	if session.Status.IsTerminal() {
		return session.TurnOwner
	}
	return session.TurnOwner.Opponent()
}
