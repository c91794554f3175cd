package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"encounter/internal/external"
	"encounter/internal/models"
	"encounter/internal/repository"
)

// scriptedRandom rejoue des valeurs prédéfinies, puis des valeurs par défaut
type scriptedRandom struct {
	mu       sync.Mutex
	floats   []float64
	ints     []int
	intCalls int
}

func (r *scriptedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0.99
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intCalls++
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRandom) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intCalls
}

type fakeTask struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

// manualScheduler garde les tâches jusqu'à ce que le test les exécute
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

func (s *manualScheduler) Schedule(delay time.Duration, fn func()) func() {
	task := &fakeTask{delay: delay, fn: fn}
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		task.cancelled = true
		s.mu.Unlock()
	}
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, task := range s.tasks {
		if !task.cancelled {
			n++
		}
	}
	return n
}

// runNext exécute la plus ancienne tâche non annulée et retourne son délai
func (s *manualScheduler) runNext(t *testing.T) time.Duration {
	t.Helper()

	s.mu.Lock()
	var next *fakeTask
	for len(s.tasks) > 0 {
		task := s.tasks[0]
		s.tasks = s.tasks[1:]
		if !task.cancelled {
			next = task
			break
		}
	}
	s.mu.Unlock()

	require.NotNil(t, next, "no pending task")
	next.fn()
	return next.delay
}

// fakeRoster enregistre les appels au service roster
type fakeRoster struct {
	mu         sync.Mutex
	entries    map[string]*models.RosterEntry
	writeBacks map[string][]int
	captured   []string
	getErr     error
	writeErr   error
	addErr     error
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{
		entries:    make(map[string]*models.RosterEntry),
		writeBacks: make(map[string][]int),
	}
}

func (f *fakeRoster) GetRosterEntry(_ context.Context, _, entryID string) (*models.RosterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	entry, ok := f.entries[entryID]
	if !ok {
		return nil, external.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (f *fakeRoster) WriteBackHitPoints(_ context.Context, combatantID string, hitPoints int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writeBacks[combatantID] = append(f.writeBacks[combatantID], hitPoints)
	return nil
}

func (f *fakeRoster) AddCapturedMonster(_ context.Context, playerID, speciesID string) (*models.RosterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.captured = append(f.captured, speciesID)
	return &models.RosterEntry{ID: "captured-" + speciesID, PlayerID: playerID, SpeciesID: speciesID, CurrentHitPoints: 35, MaxHitPoints: 35}, nil
}

func (f *fakeRoster) lastWriteBack(combatantID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.writeBacks[combatantID]
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}

// recordingPublisher garde les événements publiés
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.EncounterEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event models.EncounterEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// gatedStore bloque Save une fois armé, pour observer une transition en cours
type gatedStore struct {
	repository.BattleSessionStoreInterface

	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
}

// arm bloque le prochain Save jusqu'à la fermeture de release
func (g *gatedStore) arm() (entered <-chan struct{}, release chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entered = make(chan struct{}, 1)
	g.release = make(chan struct{})
	return g.entered, g.release
}

func (g *gatedStore) Save(ctx context.Context, playerID string, session models.BattleSession) error {
	g.mu.Lock()
	entered, release := g.entered, g.release
	g.entered, g.release = nil, nil
	g.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	return g.BattleSessionStoreInterface.Save(ctx, playerID, session)
}

var testSpecies = []models.Species{
	{ID: "1", Name: "Bulbasaur", BaseHitPoints: 45, Icon: "1.png"},
	{ID: "4", Name: "Charmander", BaseHitPoints: 39, Icon: "4.png"},
	{ID: "7", Name: "Squirtle", BaseHitPoints: 35, Icon: "7.png"},
}

func wildCombatant(hp, max int) models.Combatant {
	return models.Combatant{SpeciesID: "7", SpeciesName: "Squirtle", Icon: "7.png", CurrentHitPoints: hp, MaxHitPoints: max}
}

func playerCombatant(hp, max int) models.Combatant {
	return models.Combatant{ID: "m-1", SpeciesID: "4", SpeciesName: "Charmander", Nickname: "Blaze", CurrentHitPoints: hp, MaxHitPoints: max}
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func newTestResolver(rng *scriptedRandom) *ActionResolver {
	r := NewActionResolver(DefaultRules(), rng)
	r.clock = fixedClock
	return r
}

type orchestratorFixture struct {
	rng       *scriptedRandom
	store     *gatedStore
	backend   *repository.MemorySlotBackend
	roster    *fakeRoster
	scheduler *manualScheduler
	publisher *recordingPublisher
	finished  chan *models.BattleResult
	orch      *Orchestrator
}

func newOrchestratorFixture(playerID string) *orchestratorFixture {
	f := &orchestratorFixture{
		rng:       &scriptedRandom{},
		backend:   repository.NewMemorySlotBackend(),
		roster:    newFakeRoster(),
		scheduler: &manualScheduler{},
		publisher: &recordingPublisher{},
		finished:  make(chan *models.BattleResult, 4),
	}
	f.store = &gatedStore{BattleSessionStoreInterface: repository.NewBattleSessionStore(f.backend, 0, 0, nil)}
	f.orch = NewOrchestrator(playerID, f.deps())
	return f
}

func (f *orchestratorFixture) deps() OrchestratorDeps {
	return OrchestratorDeps{
		Store:         f.store,
		Resolver:      newTestResolver(f.rng),
		Rewards:       NewRewardProcessor(f.roster, nil),
		Scheduler:     f.scheduler,
		Publisher:     f.publisher,
		OpponentDelay: time.Second,
		ResolveDelay:  1500 * time.Millisecond,
		OnFinished: func(_ string, result *models.BattleResult) {
			f.finished <- result
		},
	}
}

func (f *orchestratorFixture) stored(t *testing.T, playerID string) (*models.BattleSession, bool) {
	t.Helper()
	return f.store.Load(context.Background(), playerID)
}

var errBoom = errors.New("boom")
