package service

import "errors"

// Erreurs de mise en place d'une rencontre
var (
	ErrSpeciesNotFound    = errors.New("species not found")
	ErrInvalidSpecies     = errors.New("invalid species")
	ErrInvalidRosterEntry = errors.New("invalid roster entry")
	ErrEmptyCatalog       = errors.New("species catalog is empty")
	ErrMissingSeed        = errors.New("missing encounter seed combatants")
)

// Erreurs d'utilisation du résolveur d'actions
var (
	ErrSessionTerminal  = errors.New("battle session is already over")
	ErrNotYourTurn      = errors.New("side does not own the turn")
	ErrActionNotAllowed = errors.New("action not allowed for this side")
	ErrUnknownAction    = errors.New("unknown action")
)

// Erreurs de l'orchestrateur et du service
var (
	ErrActionIgnored       = errors.New("action ignored")
	ErrNoActiveEncounter   = errors.New("no active encounter")
	ErrEncounterInProgress = errors.New("an encounter is already in progress")
	ErrRewardHandoff       = errors.New("reward hand-off failed")
)
