package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encounter/internal/config"
	"encounter/internal/models"
)

func newTestConfig(speciesURL, rosterURL string) *config.Config {
	cfg := config.Default()
	cfg.Services.SpeciesService.URL = speciesURL
	cfg.Services.RosterService.URL = rosterURL
	return cfg
}

func TestSpeciesClientCachesList(t *testing.T) {
	var listCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/species":
			atomic.AddInt32(&listCalls, 1)
			_ = json.NewEncoder(w).Encode([]models.Species{
				{ID: "1", Name: "Bulbasaur", BaseHitPoints: 45},
				{ID: "7", Name: "Squirtle", BaseHitPoints: 35},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewSpeciesClient(newTestConfig(srv.URL, srv.URL))
	ctx := context.Background()

	all, err := c.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	s, err := c.LookupByName(ctx, "squirtle")
	require.NoError(t, err)
	assert.Equal(t, "7", s.ID)

	s, err = c.LookupByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 45, s.BaseHitPoints)

	_, err = c.LookupByID(ctx, "999")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.EqualValues(t, 1, atomic.LoadInt32(&listCalls))
}

func TestSpeciesClientLookupByIDWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/species/25" {
			_ = json.NewEncoder(w).Encode(models.Species{ID: "25", Name: "Pikachu", BaseHitPoints: 35})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewSpeciesClient(newTestConfig(srv.URL, srv.URL))
	s, err := c.LookupByID(context.Background(), "25")
	require.NoError(t, err)
	assert.Equal(t, "Pikachu", s.Name)

	_, err = c.LookupByID(context.Background(), "26")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSpeciesClientDoesNotCacheEmptyList(t *testing.T) {
	var listCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/species":
			if atomic.AddInt32(&listCalls, 1) == 1 {
				_ = json.NewEncoder(w).Encode([]models.Species{})
				return
			}
			_ = json.NewEncoder(w).Encode([]models.Species{{ID: "7", Name: "Squirtle", BaseHitPoints: 35}})
		case "/api/v1/species/7":
			_ = json.NewEncoder(w).Encode(models.Species{ID: "7", Name: "Squirtle", BaseHitPoints: 35})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewSpeciesClient(newTestConfig(srv.URL, srv.URL))
	ctx := context.Background()

	all, err := c.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	s, err := c.LookupByID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Squirtle", s.Name)

	all, err = c.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&listCalls))

	_, err = c.All(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&listCalls), "populated list is cached")
}

func TestLoadSpeciesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "species.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"4","name":"Charmander","base_hit_points":39,"icon":"4.png"}]`), 0o600))

	catalog, err := LoadSpeciesFile(path)
	require.NoError(t, err)

	s, err := catalog.LookupByID(context.Background(), "4")
	require.NoError(t, err)
	assert.Equal(t, "4.png", s.Icon)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"id":"4","name":"Charmander","base_hit_points":0}]`), 0o600))
	_, err = LoadSpeciesFile(bad)
	assert.Error(t, err)
}

func TestRosterClient(t *testing.T) {
	var patched models.UpdateHitPointsRequest
	var added models.AddMonsterRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/players/p-1/monsters/m-1":
			_ = json.NewEncoder(w).Encode(models.RosterEntry{ID: "m-1", SpeciesID: "4", CurrentHitPoints: 20, MaxHitPoints: 39})
		case r.Method == http.MethodPatch && r.URL.Path == "/api/v1/monsters/m-1":
			_ = json.NewDecoder(r.Body).Decode(&patched)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/players/p-1/monsters":
			_ = json.NewDecoder(r.Body).Decode(&added)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(models.RosterEntry{ID: "m-2", SpeciesID: added.SpeciesID, CurrentHitPoints: 35, MaxHitPoints: 35})
		case r.URL.Path == "/api/v1/monsters/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewRosterClient(newTestConfig(srv.URL, srv.URL))
	ctx := context.Background()

	entry, err := c.GetRosterEntry(ctx, "p-1", "m-1")
	require.NoError(t, err)
	assert.Equal(t, 20, entry.CurrentHitPoints)

	_, err = c.GetRosterEntry(ctx, "p-1", "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.WriteBackHitPoints(ctx, "m-1", 17))
	assert.Equal(t, 17, patched.CurrentHitPoints)

	captured, err := c.AddCapturedMonster(ctx, "p-1", "7")
	require.NoError(t, err)
	assert.Equal(t, "7", added.SpeciesID)
	assert.Equal(t, "m-2", captured.ID)

	assert.Error(t, c.WriteBackHitPoints(ctx, "broken", 1))
}
