package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Encounter.PlayerAttackDamage)
	assert.NotEqual(t, cfg.Encounter.PlayerAttackDamage, cfg.Encounter.WildAttackDamage)
	assert.Equal(t, StoreDriverRedis, cfg.Encounter.StoreDriver)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9001")
	t.Setenv("ENCOUNTER_STORE_DRIVER", "memory")
	t.Setenv("ENCOUNTER_OPPONENT_DELAY", "250ms")
	t.Setenv("ENCOUNTER_WILD_ATTACK_DAMAGE", "12")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, StoreDriverMemory, cfg.Encounter.StoreDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.Encounter.OpponentDelay)
	assert.Equal(t, 12, cfg.Encounter.WildAttackDamage)
	// valeurs par défaut conservées
	assert.Equal(t, 10, cfg.Encounter.PlayerAttackDamage)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(c *Config){
		"port":          func(c *Config) { c.Server.Port = 0 },
		"jwt secret":    func(c *Config) { c.JWT.Secret = "short" },
		"store driver":  func(c *Config) { c.Encounter.StoreDriver = "floppy" },
		"damage":        func(c *Config) { c.Encounter.WildAttackDamage = 0 },
		"threshold":     func(c *Config) { c.Encounter.CaptureThreshold = 1.5 },
		"success rate":  func(c *Config) { c.Encounter.CaptureSuccessRate = -0.1 },
		"delay":         func(c *Config) { c.Encounter.OpponentDelay = -time.Second },
		"roster url":    func(c *Config) { c.Services.RosterService.URL = "" },
		"species":       func(c *Config) { c.Services.SpeciesService.URL = "" },
		"postgres name": func(c *Config) { c.Encounter.StoreDriver = StoreDriverPostgres; c.Database.Name = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSpeciesFileReplacesSpeciesService(t *testing.T) {
	cfg := Default()
	cfg.Services.SpeciesService.URL = ""
	cfg.Encounter.SpeciesFile = "species.json"
	assert.NoError(t, cfg.Validate())
}
