package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encounter/internal/config"
	"encounter/internal/external"
	"encounter/internal/models"
	"encounter/internal/repository"
)

type serviceFixture struct {
	rng       *scriptedRandom
	roster    *fakeRoster
	store     repository.BattleSessionStoreInterface
	scheduler *manualScheduler
	publisher *recordingPublisher
	svc       *EncounterService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		rng:       &scriptedRandom{},
		roster:    newFakeRoster(),
		store:     repository.NewBattleSessionStore(repository.NewMemorySlotBackend(), 0, 0, nil),
		scheduler: &manualScheduler{},
		publisher: &recordingPublisher{},
	}
	f.roster.entries["m-1"] = &models.RosterEntry{ID: "m-1", PlayerID: testPlayer, SpeciesID: "4", Nickname: "Blaze", CurrentHitPoints: 39, MaxHitPoints: 39}

	cfg := &config.EncounterConfig{
		OpponentDelay: time.Second,
		ResolveDelay:  1500 * time.Millisecond,
		IdleEviction:  10 * time.Minute,
		SweepSchedule: "@every 1m",
	}
	f.svc = NewEncounterService(cfg, EncounterServiceDeps{
		Factory:   NewCombatantFactory(external.NewStaticSpeciesCatalog(testSpecies), f.rng),
		Roster:    f.roster,
		Store:     f.store,
		Resolver:  newTestResolver(f.rng),
		Rewards:   NewRewardProcessor(f.roster, nil),
		Scheduler: f.scheduler,
		Publisher: f.publisher,
	})
	return f
}

func (f *serviceFixture) start(t *testing.T, speciesID string) *models.EncounterResponse {
	t.Helper()
	resp, err := f.svc.StartEncounter(context.Background(), testPlayer, models.StartEncounterRequest{
		SpeciesID:     speciesID,
		RosterEntryID: "m-1",
	})
	require.NoError(t, err)
	return resp
}

func TestEncounterServiceStartEncounter(t *testing.T) {
	f := newServiceFixture()

	resp := f.start(t, "7")
	assert.Equal(t, string(StateOngoing), resp.State)
	assert.Equal(t, "Squirtle", resp.Session.WildCombatant.SpeciesName)
	assert.Equal(t, 35, resp.Session.WildCombatant.CurrentHitPoints)
	assert.Equal(t, "Blaze", resp.Session.PlayerCombatant.DisplayName())
	assert.Equal(t, models.SidePlayer, resp.Session.TurnOwner)
	assert.Equal(t, 1, f.svc.ActiveCount())

	_, err := f.svc.StartEncounter(context.Background(), testPlayer, models.StartEncounterRequest{RosterEntryID: "m-1"})
	assert.ErrorIs(t, err, ErrEncounterInProgress)
}

func TestEncounterServiceRandomSpecies(t *testing.T) {
	f := newServiceFixture()

	resp := f.start(t, "")
	assert.Equal(t, "1", resp.Session.WildCombatant.SpeciesID)
	assert.Equal(t, 45, resp.Session.WildCombatant.MaxHitPoints)
	assert.Equal(t, models.SideWild, resp.Session.TurnOwner)
	assert.Equal(t, 1, f.scheduler.pending())
}

func TestEncounterServiceRejectsInvalidSetup(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *serviceFixture)
		req     models.StartEncounterRequest
		wantErr error
	}{
		{
			name:    "unknown roster entry",
			req:     models.StartEncounterRequest{RosterEntryID: "m-404"},
			wantErr: ErrInvalidRosterEntry,
		},
		{
			name: "fainted roster entry",
			prepare: func(f *serviceFixture) {
				f.roster.entries["m-1"].CurrentHitPoints = 0
			},
			req:     models.StartEncounterRequest{RosterEntryID: "m-1"},
			wantErr: ErrInvalidRosterEntry,
		},
		{
			name: "entry owned by another player",
			prepare: func(f *serviceFixture) {
				f.roster.entries["m-1"].PlayerID = "player-2"
			},
			req:     models.StartEncounterRequest{RosterEntryID: "m-1"},
			wantErr: ErrInvalidRosterEntry,
		},
		{
			name:    "unknown wild species",
			req:     models.StartEncounterRequest{SpeciesID: "151", RosterEntryID: "m-1"},
			wantErr: ErrSpeciesNotFound,
		},
		{
			name: "roster unavailable",
			prepare: func(f *serviceFixture) {
				f.roster.getErr = errBoom
			},
			req:     models.StartEncounterRequest{RosterEntryID: "m-1"},
			wantErr: errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			if tt.prepare != nil {
				tt.prepare(f)
			}

			_, err := f.svc.StartEncounter(context.Background(), testPlayer, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.svc.ActiveCount())

			_, ok := f.store.Load(context.Background(), testPlayer)
			assert.False(t, ok)
		})
	}
}

func TestEncounterServiceSubmitAction(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	f.start(t, "7")

	resp, err := f.svc.SubmitAction(ctx, testPlayer, models.ActionAttack)
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, 25, resp.Session.WildCombatant.CurrentHitPoints)

	resp, err = f.svc.SubmitAction(ctx, testPlayer, models.ActionAttack)
	require.NoError(t, err)
	assert.False(t, resp.Accepted, "wild turn in progress")
	assert.Equal(t, 25, resp.Session.WildCombatant.CurrentHitPoints)

	_, err = f.svc.SubmitAction(ctx, "player-2", models.ActionAttack)
	assert.ErrorIs(t, err, ErrNoActiveEncounter)
}

func TestEncounterServiceFullBattleRecordsResult(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	f.start(t, "7")

	// 35 PV sauvages: quatre attaques du joueur, trois ripostes
	for i := 0; i < 4; i++ {
		resp, err := f.svc.SubmitAction(ctx, testPlayer, models.ActionAttack)
		require.NoError(t, err)
		require.True(t, resp.Accepted)
		f.scheduler.runNext(t)
	}

	result, ok := f.svc.LastResult(testPlayer)
	require.True(t, ok)
	assert.Equal(t, models.BattleStatusVictory, result.Status)
	assert.Equal(t, 15, result.PlayerCombatant.CurrentHitPoints)
	assert.Equal(t, 4, result.TotalTurns)

	hp, ok := f.roster.lastWriteBack("m-1")
	require.True(t, ok)
	assert.Equal(t, 15, hp)

	_, ok = f.store.Load(ctx, testPlayer)
	assert.False(t, ok)

	// une nouvelle rencontre peut démarrer
	f.start(t, "7")
}

func TestEncounterServiceResumesAfterStop(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	started := f.start(t, "7")

	_, err := f.svc.SubmitAction(ctx, testPlayer, models.ActionAttack)
	require.NoError(t, err)

	f.svc.Stop()
	assert.Zero(t, f.svc.ActiveCount())
	assert.Zero(t, f.scheduler.pending())

	resp, err := f.svc.CurrentEncounter(ctx, testPlayer)
	require.NoError(t, err)
	assert.Equal(t, started.Session.ID, resp.Session.ID)
	assert.Equal(t, 25, resp.Session.WildCombatant.CurrentHitPoints)
	assert.Equal(t, models.SideWild, resp.Session.TurnOwner)
	assert.Equal(t, 1, f.scheduler.pending(), "opponent turn is rescheduled on resume")

	_, err = f.svc.StartEncounter(ctx, testPlayer, models.StartEncounterRequest{RosterEntryID: "m-1"})
	assert.ErrorIs(t, err, ErrEncounterInProgress)
}

func TestEncounterServiceStoredSessionBlocksFreshStart(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	session, err := newTestResolver(&scriptedRandom{}).NewSession(wildCombatant(35, 35), playerCombatant(39, 39))
	require.NoError(t, err)
	require.NoError(t, f.store.Save(ctx, testPlayer, session))

	_, err = f.svc.StartEncounter(ctx, testPlayer, models.StartEncounterRequest{RosterEntryID: "m-1"})
	assert.ErrorIs(t, err, ErrEncounterInProgress)
	assert.Zero(t, f.svc.ActiveCount())

	resp, err := f.svc.CurrentEncounter(ctx, testPlayer)
	require.NoError(t, err)
	assert.Equal(t, session.ID, resp.Session.ID)
}

func TestEncounterServiceAbandon(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	f.start(t, "7")

	require.NoError(t, f.svc.Abandon(ctx, testPlayer))
	assert.Zero(t, f.svc.ActiveCount())
	assert.Empty(t, f.roster.writeBacks)

	_, err := f.svc.CurrentEncounter(ctx, testPlayer)
	assert.ErrorIs(t, err, ErrNoActiveEncounter)
	assert.ErrorIs(t, f.svc.Abandon(ctx, testPlayer), ErrNoActiveEncounter)

	_, ok := f.svc.LastResult(testPlayer)
	assert.False(t, ok)
}

func TestEncounterServiceSweepEvictsIdle(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	f.start(t, "7")

	f.svc.Sweep()
	assert.Equal(t, 1, f.svc.ActiveCount())

	f.svc.clock = func() time.Time { return time.Now().Add(time.Hour) }
	f.svc.Sweep()
	assert.Zero(t, f.svc.ActiveCount())

	_, ok := f.store.Load(ctx, testPlayer)
	assert.True(t, ok, "evicted encounters stay resumable")
}

func TestEncounterServiceStartStopSweeper(t *testing.T) {
	f := newServiceFixture()
	require.NoError(t, f.svc.Start())
	f.svc.Stop()

	f = newServiceFixture()
	f.svc.config.SweepSchedule = "not a schedule"
	assert.Error(t, f.svc.Start())
}
