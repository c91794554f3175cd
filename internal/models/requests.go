package models

// StartEncounterRequest requête de démarrage d'une rencontre.
// SpeciesID vide: une espèce sauvage est tirée au hasard dans le catalogue.
type StartEncounterRequest struct {
	SpeciesID     string `json:"species_id"`
	RosterEntryID string `json:"roster_entry_id" binding:"required"`
}

// SubmitActionRequest requête d'action du joueur
type SubmitActionRequest struct {
	Action string `json:"action" binding:"required"`
}

// UpdateHitPointsRequest corps envoyé au service roster pour le report des points de vie
type UpdateHitPointsRequest struct {
	CurrentHitPoints int `json:"current_hit_points"`
}

// AddMonsterRequest corps envoyé au service roster après une capture
type AddMonsterRequest struct {
	SpeciesID string `json:"species_id"`
}
