package models

import "fmt"

// Side identifie un camp dans une rencontre
type Side string

const (
	SidePlayer Side = "player"
	SideWild   Side = "wild"
)

// Opponent retourne le camp adverse
func (s Side) Opponent() Side {
	if s == SidePlayer {
		return SideWild
	}
	return SidePlayer
}

// IsValid vérifie que le camp est connu
func (s Side) IsValid() bool {
	return s == SidePlayer || s == SideWild
}

// Species représente une entrée du catalogue d'espèces
type Species struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	BaseHitPoints int    `json:"base_hit_points"`
	Icon          string `json:"icon,omitempty"`
}

// SpeciesInfo informations d'espèce parfois fournies par le roster
type SpeciesInfo struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// RosterEntry représente un monstre possédé tel que renvoyé par le service roster.
// Les contraintes sont vérifiées par la fabrique de combattants avant tout combat.
type RosterEntry struct {
	ID               string       `json:"id" validate:"required"`
	PlayerID         string       `json:"player_id,omitempty"`
	SpeciesID        string       `json:"species_id" validate:"required"`
	SpeciesName      string       `json:"species_name,omitempty"`
	Nickname         string       `json:"nickname,omitempty"`
	CurrentHitPoints int          `json:"current_hit_points" validate:"gte=0,ltefield=MaxHitPoints"`
	MaxHitPoints     int          `json:"max_hit_points" validate:"gt=0"`
	Species          *SpeciesInfo `json:"species,omitempty"`
}

// Combatant représente un camp d'un combat.
// ID est vide pour le combattant sauvage, qui n'existe que le temps de la rencontre.
type Combatant struct {
	ID               string `json:"id,omitempty"`
	SpeciesID        string `json:"species_id"`
	SpeciesName      string `json:"species_name"`
	Icon             string `json:"icon,omitempty"`
	Nickname         string `json:"nickname,omitempty"`
	CurrentHitPoints int    `json:"current_hit_points"`
	MaxHitPoints     int    `json:"max_hit_points"`
}

// DisplayName retourne le surnom, ou le nom de l'espèce à défaut
func (c Combatant) DisplayName() string {
	if c.Nickname != "" {
		return c.Nickname
	}
	return c.SpeciesName
}

// IsFainted indique si le combattant n'a plus de points de vie
func (c Combatant) IsFainted() bool {
	return c.CurrentHitPoints <= 0
}

// WithHitPoints retourne une copie avec des points de vie bornés à [0, max]
func (c Combatant) WithHitPoints(hp int) Combatant {
	if hp < 0 {
		hp = 0
	}
	if hp > c.MaxHitPoints {
		hp = c.MaxHitPoints
	}
	c.CurrentHitPoints = hp
	return c
}

// Validate vérifie les invariants d'un combattant
func (c Combatant) Validate() error {
	if c.SpeciesID == "" {
		return fmt.Errorf("species id is required")
	}
	if c.MaxHitPoints <= 0 {
		return fmt.Errorf("max hit points must be positive, got %d", c.MaxHitPoints)
	}
	if c.CurrentHitPoints < 0 || c.CurrentHitPoints > c.MaxHitPoints {
		return fmt.Errorf("current hit points %d out of range [0, %d]", c.CurrentHitPoints, c.MaxHitPoints)
	}
	return nil
}
