package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encounter/internal/external"
	"encounter/internal/models"
)

func newTestFactory(species []models.Species, rng *scriptedRandom) *CombatantFactory {
	return NewCombatantFactory(external.NewStaticSpeciesCatalog(species), rng)
}

func TestCreateWildCombatantFullHealth(t *testing.T) {
	f := newTestFactory(testSpecies, &scriptedRandom{})

	wild, err := f.CreateWildCombatant(context.Background(), "7")
	require.NoError(t, err)

	assert.Equal(t, 35, wild.CurrentHitPoints)
	assert.Equal(t, 35, wild.MaxHitPoints)
	assert.Equal(t, "Squirtle", wild.SpeciesName)
	assert.Equal(t, "7.png", wild.Icon)
	assert.Empty(t, wild.ID)
}

func TestCreateWildCombatantUnknownSpecies(t *testing.T) {
	f := newTestFactory(testSpecies, &scriptedRandom{})

	_, err := f.CreateWildCombatant(context.Background(), "151")
	assert.ErrorIs(t, err, ErrSpeciesNotFound)
}

func TestCreateWildCombatantRejectsSpeciesWithoutHitPoints(t *testing.T) {
	broken := []models.Species{{ID: "9", Name: "Ghostling", BaseHitPoints: 0}}
	f := newTestFactory(broken, &scriptedRandom{ints: []int{0}})

	_, err := f.CreateWildCombatant(context.Background(), "9")
	assert.ErrorIs(t, err, ErrInvalidSpecies)

	_, err = f.CreateRandomWildCombatant(context.Background())
	assert.ErrorIs(t, err, ErrInvalidSpecies)
}

func TestCreateRandomWildCombatant(t *testing.T) {
	rng := &scriptedRandom{ints: []int{2, 0}}
	f := newTestFactory(testSpecies, rng)

	wild, err := f.CreateRandomWildCombatant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7", wild.SpeciesID)

	wild, err = f.CreateRandomWildCombatant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", wild.SpeciesID)
	assert.Equal(t, 45, wild.CurrentHitPoints)
}

func TestCreateRandomWildCombatantEmptyCatalog(t *testing.T) {
	f := newTestFactory(nil, &scriptedRandom{})

	_, err := f.CreateRandomWildCombatant(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestConvertRosterEntryValidation(t *testing.T) {
	valid := func() *models.RosterEntry {
		return &models.RosterEntry{ID: "m-1", SpeciesID: "4", CurrentHitPoints: 20, MaxHitPoints: 39}
	}

	tests := []struct {
		name   string
		mutate func(e *models.RosterEntry)
	}{
		{"missing id", func(e *models.RosterEntry) { e.ID = "" }},
		{"missing species id", func(e *models.RosterEntry) { e.SpeciesID = "" }},
		{"negative current hp", func(e *models.RosterEntry) { e.CurrentHitPoints = -1 }},
		{"zero max hp", func(e *models.RosterEntry) { e.MaxHitPoints = 0; e.CurrentHitPoints = 0 }},
		{"current above max", func(e *models.RosterEntry) { e.CurrentHitPoints = 40 }},
		{"unresolved species", func(e *models.RosterEntry) { e.SpeciesID = "999" }},
	}

	f := newTestFactory(testSpecies, &scriptedRandom{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := valid()
			tt.mutate(entry)

			_, err := f.ConvertRosterEntryToCombatant(context.Background(), entry)
			assert.ErrorIs(t, err, ErrInvalidRosterEntry)
		})
	}

	_, err := f.ConvertRosterEntryToCombatant(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidRosterEntry)
}

func TestConvertRosterEntrySpeciesResolution(t *testing.T) {
	f := newTestFactory(testSpecies, &scriptedRandom{})
	ctx := context.Background()

	// Infos d'espèce fournies par le roster
	c, err := f.ConvertRosterEntryToCombatant(ctx, &models.RosterEntry{
		ID: "m-1", SpeciesID: "999", CurrentHitPoints: 10, MaxHitPoints: 20,
		Species: &models.SpeciesInfo{Name: "Missingno", Icon: "x.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Missingno", c.SpeciesName)
	assert.Equal(t, "x.png", c.Icon)

	// Repli sur le catalogue par id
	c, err = f.ConvertRosterEntryToCombatant(ctx, &models.RosterEntry{
		ID: "m-2", SpeciesID: "4", Nickname: " Blaze ", CurrentHitPoints: 0, MaxHitPoints: 39,
	})
	require.NoError(t, err)
	assert.Equal(t, "Charmander", c.SpeciesName)
	assert.Equal(t, "Blaze", c.DisplayName())
	assert.Equal(t, 0, c.CurrentHitPoints)

	// Puis par nom
	c, err = f.ConvertRosterEntryToCombatant(ctx, &models.RosterEntry{
		ID: "m-3", SpeciesID: "legacy-7", SpeciesName: "squirtle", CurrentHitPoints: 12, MaxHitPoints: 35,
	})
	require.NoError(t, err)
	assert.Equal(t, "Squirtle", c.SpeciesName)
	assert.Equal(t, "legacy-7", c.SpeciesID)
	assert.Equal(t, "m-3", c.ID)
}
