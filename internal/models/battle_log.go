package models

import "time"

// LogCategory catégorie d'un événement narré
type LogCategory string

const (
	LogCategoryInfo    LogCategory = "info"
	LogCategoryAttack  LogCategory = "attack"
	LogCategoryDamage  LogCategory = "damage"
	LogCategoryCapture LogCategory = "capture"
	LogCategoryEscape  LogCategory = "escape"
	LogCategoryVictory LogCategory = "victory"
	LogCategoryDefeat  LogCategory = "defeat"
)

// IsValid vérifie que la catégorie est connue
func (c LogCategory) IsValid() bool {
	switch c {
	case LogCategoryInfo, LogCategoryAttack, LogCategoryDamage, LogCategoryCapture,
		LogCategoryEscape, LogCategoryVictory, LogCategoryDefeat:
		return true
	}
	return false
}

// LogEntry représente une entrée du journal de combat
type LogEntry struct {
	ID        string      `json:"id"`
	Message   string      `json:"message"`
	Category  LogCategory `json:"category"`
	Side      Side        `json:"side,omitempty"` // camp à l'origine de l'événement, vide pour la narration
	Timestamp time.Time   `json:"timestamp"`
}
