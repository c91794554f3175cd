package models

// EncounterResponse vue d'une rencontre renvoyée par l'API
type EncounterResponse struct {
	State   string        `json:"state"`
	Session BattleSession `json:"session"`
}

// ActionResponse réponse après une action du joueur
type ActionResponse struct {
	Accepted bool          `json:"accepted"`
	State    string        `json:"state"`
	Session  BattleSession `json:"session"`
}

// EncounterEvent événement diffusé à chaque transition d'une rencontre
type EncounterEvent struct {
	Type     string        `json:"type"`
	PlayerID string        `json:"player_id"`
	State    string        `json:"state"`
	Session  BattleSession `json:"session"`
	Result   *BattleResult `json:"result,omitempty"`
}

// Types d'événements de rencontre
const (
	EventEncounterStarted   = "started"
	EventEncounterUpdated   = "updated"
	EventEncounterResolved  = "resolved"
	EventEncounterAbandoned = "abandoned"
)
