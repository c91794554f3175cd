package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"encounter/internal/config"
	"encounter/internal/models"
)

// SpeciesCatalogInterface catalogue de référence des espèces (lecture seule)
type SpeciesCatalogInterface interface {
	LookupByID(ctx context.Context, id string) (*models.Species, error)
	LookupByName(ctx context.Context, name string) (*models.Species, error)
	All(ctx context.Context) ([]models.Species, error)
}

// SpeciesClient implémente SpeciesCatalogInterface via le service Species.
// La liste complète est mise en cache après le premier chargement non vide.
type SpeciesClient struct {
	client httpClient

	mu    sync.RWMutex
	cache []models.Species
}

// NewSpeciesClient crée une nouvelle instance du client Species
func NewSpeciesClient(cfg *config.Config) *SpeciesClient {
	return &SpeciesClient{
		client: newHTTPClient(cfg.Services.SpeciesService.URL, cfg.Services.SpeciesService.Timeout, "species"),
	}
}

// LookupByID récupère une espèce par son identifiant
func (c *SpeciesClient) LookupByID(ctx context.Context, id string) (*models.Species, error) {
	if cached, ok := c.cached(); ok {
		if species, err := findByID(cached, id); err == nil {
			return species, nil
		}
	}

	var species models.Species
	err := c.client.doJSON(ctx, http.MethodGet, "/api/v1/species/"+url.PathEscape(id), nil, &species)
	if err != nil {
		return nil, err
	}
	return &species, nil
}

// LookupByName récupère une espèce par son nom (insensible à la casse)
func (c *SpeciesClient) LookupByName(ctx context.Context, name string) (*models.Species, error) {
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	return findByName(all, name)
}

// All retourne l'ensemble du catalogue
func (c *SpeciesClient) All(ctx context.Context) ([]models.Species, error) {
	if cached, ok := c.cached(); ok {
		return cached, nil
	}

	var species []models.Species
	if err := c.client.doJSON(ctx, http.MethodGet, "/api/v1/species", nil, &species); err != nil {
		return nil, err
	}

	// Une liste vide n'est pas mise en cache: le service peut être en cours d'alimentation
	if len(species) == 0 {
		logrus.Warn("Species service returned an empty catalog")
		return species, nil
	}

	c.mu.Lock()
	c.cache = species
	c.mu.Unlock()

	logrus.WithField("species_count", len(species)).Info("Species catalog loaded")
	return species, nil
}

func (c *SpeciesClient) cached() ([]models.Species, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache, len(c.cache) > 0
}

// StaticSpeciesCatalog catalogue en mémoire, chargé depuis un fichier JSON
type StaticSpeciesCatalog struct {
	species []models.Species
}

// NewStaticSpeciesCatalog crée un catalogue à partir d'une liste
func NewStaticSpeciesCatalog(species []models.Species) *StaticSpeciesCatalog {
	list := make([]models.Species, len(species))
	copy(list, species)
	return &StaticSpeciesCatalog{species: list}
}

// LoadSpeciesFile charge un catalogue depuis un tableau JSON d'espèces
func LoadSpeciesFile(path string) (*StaticSpeciesCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read species file: %w", err)
	}

	var species []models.Species
	if err := json.Unmarshal(data, &species); err != nil {
		return nil, fmt.Errorf("failed to parse species file: %w", err)
	}
	for _, s := range species {
		if s.ID == "" || s.BaseHitPoints <= 0 {
			return nil, fmt.Errorf("invalid species entry %q in %s", s.ID, path)
		}
	}

	return NewStaticSpeciesCatalog(species), nil
}

// LookupByID implémente SpeciesCatalogInterface
func (c *StaticSpeciesCatalog) LookupByID(_ context.Context, id string) (*models.Species, error) {
	return findByID(c.species, id)
}

// LookupByName implémente SpeciesCatalogInterface
func (c *StaticSpeciesCatalog) LookupByName(_ context.Context, name string) (*models.Species, error) {
	return findByName(c.species, name)
}

// All implémente SpeciesCatalogInterface
func (c *StaticSpeciesCatalog) All(_ context.Context) ([]models.Species, error) {
	return c.species, nil
}

func findByID(species []models.Species, id string) (*models.Species, error) {
	for i := range species {
		if species[i].ID == id {
			s := species[i]
			return &s, nil
		}
	}
	return nil, fmt.Errorf("species %q: %w", id, ErrNotFound)
}

func findByName(species []models.Species, name string) (*models.Species, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("species name is empty")
	}
	for i := range species {
		if strings.EqualFold(species[i].Name, name) {
			s := species[i]
			return &s, nil
		}
	}
	return nil, fmt.Errorf("species named %q: %w", name, ErrNotFound)
}
