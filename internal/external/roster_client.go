package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"encounter/internal/config"
	"encounter/internal/models"
)

// RosterClientInterface définit les méthodes pour communiquer avec le service Roster
type RosterClientInterface interface {
	GetRosterEntry(ctx context.Context, playerID, entryID string) (*models.RosterEntry, error)
	WriteBackHitPoints(ctx context.Context, combatantID string, hitPoints int) error
	AddCapturedMonster(ctx context.Context, playerID, speciesID string) (*models.RosterEntry, error)
}

// RosterClient implémente l'interface RosterClientInterface
type RosterClient struct {
	client httpClient
}

// NewRosterClient crée une nouvelle instance du client Roster
func NewRosterClient(cfg *config.Config) *RosterClient {
	return &RosterClient{
		client: newHTTPClient(cfg.Services.RosterService.URL, cfg.Services.RosterService.Timeout, "roster"),
	}
}

// GetRosterEntry récupère un monstre possédé par le joueur.
// La réponse n'est pas validée ici: c'est le rôle de la fabrique de combattants.
func (c *RosterClient) GetRosterEntry(ctx context.Context, playerID, entryID string) (*models.RosterEntry, error) {
	path := fmt.Sprintf("/api/v1/players/%s/monsters/%s", url.PathEscape(playerID), url.PathEscape(entryID))

	var entry models.RosterEntry
	if err := c.client.doJSON(ctx, http.MethodGet, path, nil, &entry); err != nil {
		return nil, fmt.Errorf("failed to get roster entry: %w", err)
	}
	return &entry, nil
}

// WriteBackHitPoints reporte les points de vie d'après-combat
func (c *RosterClient) WriteBackHitPoints(ctx context.Context, combatantID string, hitPoints int) error {
	path := "/api/v1/monsters/" + url.PathEscape(combatantID)
	body := models.UpdateHitPointsRequest{CurrentHitPoints: hitPoints}

	if err := c.client.doJSON(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to write back hit points: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"combatant_id": combatantID,
		"hit_points":   hitPoints,
	}).Debug("Hit points written back")
	return nil
}

// AddCapturedMonster ajoute un monstre capturé au roster du joueur
func (c *RosterClient) AddCapturedMonster(ctx context.Context, playerID, speciesID string) (*models.RosterEntry, error) {
	path := fmt.Sprintf("/api/v1/players/%s/monsters", url.PathEscape(playerID))
	body := models.AddMonsterRequest{SpeciesID: speciesID}

	var entry models.RosterEntry
	if err := c.client.doJSON(ctx, http.MethodPost, path, body, &entry); err != nil {
		return nil, fmt.Errorf("failed to add captured monster: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"player_id":  playerID,
		"species_id": speciesID,
		"entry_id":   entry.ID,
	}).Info("Captured monster added to roster")
	return &entry, nil
}
