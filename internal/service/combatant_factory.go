package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"encounter/internal/external"
	"encounter/internal/models"
	"encounter/internal/utils"
)

// CombatantFactoryInterface construit les deux camps d'une rencontre
type CombatantFactoryInterface interface {
	CreateWildCombatant(ctx context.Context, speciesID string) (models.Combatant, error)
	CreateRandomWildCombatant(ctx context.Context) (models.Combatant, error)
	ConvertRosterEntryToCombatant(ctx context.Context, entry *models.RosterEntry) (models.Combatant, error)
}

// CombatantFactory implémente CombatantFactoryInterface
type CombatantFactory struct {
	catalog  external.SpeciesCatalogInterface
	rng      utils.RandomSource
	validate *validator.Validate
}

// NewCombatantFactory crée une nouvelle fabrique de combattants
func NewCombatantFactory(catalog external.SpeciesCatalogInterface, rng utils.RandomSource) *CombatantFactory {
	return &CombatantFactory{
		catalog:  catalog,
		rng:      rng,
		validate: validator.New(),
	}
}

// CreateWildCombatant crée un combattant sauvage à pleine vie depuis le catalogue
func (f *CombatantFactory) CreateWildCombatant(ctx context.Context, speciesID string) (models.Combatant, error) {
	species, err := f.catalog.LookupByID(ctx, speciesID)
	if err != nil {
		if errors.Is(err, external.ErrNotFound) {
			return models.Combatant{}, fmt.Errorf("%w: %s", ErrSpeciesNotFound, speciesID)
		}
		return models.Combatant{}, fmt.Errorf("failed to lookup species %s: %w", speciesID, err)
	}

	return wildFromSpecies(*species)
}

// CreateRandomWildCombatant tire uniformément une espèce du catalogue
func (f *CombatantFactory) CreateRandomWildCombatant(ctx context.Context) (models.Combatant, error) {
	all, err := f.catalog.All(ctx)
	if err != nil {
		return models.Combatant{}, fmt.Errorf("failed to list species: %w", err)
	}
	if len(all) == 0 {
		return models.Combatant{}, ErrEmptyCatalog
	}

	species := all[f.rng.Intn(len(all))]
	logrus.WithFields(logrus.Fields{
		"species_id": species.ID,
		"species":    species.Name,
	}).Debug("Random wild species selected")

	return wildFromSpecies(species)
}

// ConvertRosterEntryToCombatant valide une entrée du roster et la convertit en combattant.
// Le nom et l'icône viennent des infos d'espèce du roster, sinon du catalogue (par id, puis par nom).
func (f *CombatantFactory) ConvertRosterEntryToCombatant(ctx context.Context, entry *models.RosterEntry) (models.Combatant, error) {
	if entry == nil {
		return models.Combatant{}, fmt.Errorf("%w: entry is nil", ErrInvalidRosterEntry)
	}
	if err := f.validate.Struct(entry); err != nil {
		return models.Combatant{}, fmt.Errorf("%w: %s", ErrInvalidRosterEntry, describeValidation(err))
	}

	name, icon, err := f.resolveSpeciesDisplay(ctx, entry)
	if err != nil {
		return models.Combatant{}, fmt.Errorf("%w: %v", ErrInvalidRosterEntry, err)
	}

	return models.Combatant{
		ID:               entry.ID,
		SpeciesID:        entry.SpeciesID,
		SpeciesName:      name,
		Icon:             icon,
		Nickname:         strings.TrimSpace(entry.Nickname),
		CurrentHitPoints: entry.CurrentHitPoints,
		MaxHitPoints:     entry.MaxHitPoints,
	}, nil
}

func (f *CombatantFactory) resolveSpeciesDisplay(ctx context.Context, entry *models.RosterEntry) (string, string, error) {
	if entry.Species != nil && strings.TrimSpace(entry.Species.Name) != "" {
		return entry.Species.Name, entry.Species.Icon, nil
	}

	species, err := f.catalog.LookupByID(ctx, entry.SpeciesID)
	if err == nil {
		return species.Name, species.Icon, nil
	}
	if !errors.Is(err, external.ErrNotFound) {
		return "", "", fmt.Errorf("species lookup failed: %w", err)
	}

	if entry.SpeciesName != "" {
		species, err = f.catalog.LookupByName(ctx, entry.SpeciesName)
		if err == nil {
			return species.Name, species.Icon, nil
		}
	}

	return "", "", fmt.Errorf("unresolved species %q", entry.SpeciesID)
}

func wildFromSpecies(species models.Species) (models.Combatant, error) {
	if species.BaseHitPoints <= 0 {
		return models.Combatant{}, fmt.Errorf("%w: species %s has no base hit points", ErrInvalidSpecies, species.ID)
	}
	return models.Combatant{
		SpeciesID:        species.ID,
		SpeciesName:      species.Name,
		Icon:             species.Icon,
		CurrentHitPoints: species.BaseHitPoints,
		MaxHitPoints:     species.BaseHitPoints,
	}, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
