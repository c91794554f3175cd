package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Pilotes disponibles pour le slot de persistance des sessions
const (
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config structure principale de configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Services   ServicesConfig   `mapstructure:"services"`
	Encounter  EncounterConfig  `mapstructure:"encounter"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig configuration du serveur HTTP
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Environment  string        `mapstructure:"environment"`
	Debug        bool          `mapstructure:"debug"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig configuration de la base de données
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// JWTConfig configuration JWT
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// RedisConfig configuration Redis
type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// NATSConfig configuration de la publication d'événements
type NATSConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	URL                  string        `mapstructure:"url"`
	ClientID             string        `mapstructure:"client_id"`
	SubjectPrefix        string        `mapstructure:"subject_prefix"`
	ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
}

// ServicesConfig configuration des services externes
type ServicesConfig struct {
	SpeciesService ServiceEndpoint `mapstructure:"species_service"`
	RosterService  ServiceEndpoint `mapstructure:"roster_service"`
}

// ServiceEndpoint configuration d'un service externe
type ServiceEndpoint struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EncounterConfig règles et délais du moteur de rencontre
type EncounterConfig struct {
	PlayerAttackDamage int           `mapstructure:"player_attack_damage"`
	WildAttackDamage   int           `mapstructure:"wild_attack_damage"`
	CaptureThreshold   float64       `mapstructure:"capture_threshold"`
	CaptureSuccessRate float64       `mapstructure:"capture_success_rate"`
	OpponentDelay      time.Duration `mapstructure:"opponent_delay"`
	ResolveDelay       time.Duration `mapstructure:"resolve_delay"`
	StoreDriver        string        `mapstructure:"store_driver"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	StoreTimeout       time.Duration `mapstructure:"store_timeout"`
	IdleEviction       time.Duration `mapstructure:"idle_eviction"`
	SweepSchedule      string        `mapstructure:"sweep_schedule"`
	SpeciesFile        string        `mapstructure:"species_file"`
}

// RateLimitConfig configuration du rate limiting
type RateLimitConfig struct {
	ActionsPerMinute int           `mapstructure:"actions_per_minute"`
	BurstSize        int           `mapstructure:"burst_size"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
}

// MonitoringConfig configuration du monitoring
type MonitoringConfig struct {
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

// LoggingConfig configuration des logs
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default retourne la configuration par défaut du service
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8086,
			Environment:  "development",
			Debug:        true,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "gameserver_encounter",
			User:            "postgres",
			Password:        "postgres",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300 * time.Second,
		},
		JWT: JWTConfig{
			Secret: "your-super-secret-jwt-key-change-in-production-minimum-64-characters",
		},
		Redis: RedisConfig{
			Host:       "localhost",
			Port:       6379,
			DB:         0,
			MaxRetries: 3,
			PoolSize:   10,
		},
		NATS: NATSConfig{
			Enabled:              false,
			URL:                  "nats://localhost:4222",
			ClientID:             "encounter-service",
			SubjectPrefix:        "encounter",
			ConnectTimeout:       5 * time.Second,
			ReconnectDelay:       2 * time.Second,
			MaxReconnectAttempts: 10,
		},
		Services: ServicesConfig{
			SpeciesService: ServiceEndpoint{
				URL:     "http://localhost:8087",
				Timeout: 10 * time.Second,
			},
			RosterService: ServiceEndpoint{
				URL:     "http://localhost:8082",
				Timeout: 10 * time.Second,
			},
		},
		Encounter: EncounterConfig{
			PlayerAttackDamage: 10,
			WildAttackDamage:   8,
			CaptureThreshold:   0.5,
			CaptureSuccessRate: 0.5,
			OpponentDelay:      1 * time.Second,
			ResolveDelay:       1500 * time.Millisecond,
			StoreDriver:        StoreDriverRedis,
			SessionTTL:         24 * time.Hour,
			StoreTimeout:       3 * time.Second,
			IdleEviction:       30 * time.Minute,
			SweepSchedule:      "@every 1m",
		},
		RateLimit: RateLimitConfig{
			ActionsPerMinute: 120,
			BurstSize:        10,
			CleanupInterval:  5 * time.Minute,
		},
		Monitoring: MonitoringConfig{
			MetricsPath: "/metrics",
			HealthPath:  "/health",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig charge la configuration depuis les variables d'environnement
func LoadConfig() (*Config, error) {
	config := Default()

	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	bindings := map[string]string{
		"server.host":          "SERVER_HOST",
		"server.port":          "SERVER_PORT",
		"server.environment":   "SERVER_ENVIRONMENT",
		"server.debug":         "SERVER_DEBUG",
		"server.read_timeout":  "SERVER_READ_TIMEOUT",
		"server.write_timeout": "SERVER_WRITE_TIMEOUT",

		"database.host":              "DATABASE_HOST",
		"database.port":              "DATABASE_PORT",
		"database.name":              "DATABASE_NAME",
		"database.user":              "DATABASE_USER",
		"database.password":          "DATABASE_PASSWORD",
		"database.ssl_mode":          "DATABASE_SSL_MODE",
		"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
		"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
		"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",

		"jwt.secret": "JWT_SECRET",

		"redis.host":        "REDIS_HOST",
		"redis.port":        "REDIS_PORT",
		"redis.password":    "REDIS_PASSWORD",
		"redis.db":          "REDIS_DB",
		"redis.max_retries": "REDIS_MAX_RETRIES",
		"redis.pool_size":   "REDIS_POOL_SIZE",

		"nats.enabled":        "NATS_ENABLED",
		"nats.url":            "NATS_URL",
		"nats.client_id":      "NATS_CLIENT_ID",
		"nats.subject_prefix": "NATS_SUBJECT_PREFIX",

		"services.species_service.url":     "SPECIES_SERVICE_URL",
		"services.species_service.timeout": "SPECIES_SERVICE_TIMEOUT",
		"services.roster_service.url":      "ROSTER_SERVICE_URL",
		"services.roster_service.timeout":  "ROSTER_SERVICE_TIMEOUT",

		"encounter.player_attack_damage": "ENCOUNTER_PLAYER_ATTACK_DAMAGE",
		"encounter.wild_attack_damage":   "ENCOUNTER_WILD_ATTACK_DAMAGE",
		"encounter.capture_threshold":    "ENCOUNTER_CAPTURE_THRESHOLD",
		"encounter.capture_success_rate": "ENCOUNTER_CAPTURE_SUCCESS_RATE",
		"encounter.opponent_delay":       "ENCOUNTER_OPPONENT_DELAY",
		"encounter.resolve_delay":        "ENCOUNTER_RESOLVE_DELAY",
		"encounter.store_driver":         "ENCOUNTER_STORE_DRIVER",
		"encounter.session_ttl":          "ENCOUNTER_SESSION_TTL",
		"encounter.store_timeout":        "ENCOUNTER_STORE_TIMEOUT",
		"encounter.idle_eviction":        "ENCOUNTER_IDLE_EVICTION",
		"encounter.sweep_schedule":       "ENCOUNTER_SWEEP_SCHEDULE",
		"encounter.species_file":         "ENCOUNTER_SPECIES_FILE",

		"rate_limit.actions_per_minute": "RATE_LIMIT_ACTIONS_PER_MINUTE",
		"rate_limit.burst_size":         "RATE_LIMIT_BURST_SIZE",

		"monitoring.metrics_path": "MONITORING_METRICS_PATH",
		"monitoring.health_path":  "MONITORING_HEALTH_PATH",

		"logging.level":  "LOG_LEVEL",
		"logging.format": "LOG_FORMAT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Charger le fichier de configuration s'il existe
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Merger avec la configuration par défaut
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate valide la configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters long")
	}

	switch c.Encounter.StoreDriver {
	case StoreDriverRedis, StoreDriverMemory:
	case StoreDriverPostgres:
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required for the postgres store driver")
		}
	default:
		return fmt.Errorf("unknown store driver: %q", c.Encounter.StoreDriver)
	}

	if c.Encounter.SpeciesFile == "" && c.Services.SpeciesService.URL == "" {
		return fmt.Errorf("species service URL or species file is required")
	}
	if c.Services.RosterService.URL == "" {
		return fmt.Errorf("roster service URL is required")
	}

	// Règles de combat
	if c.Encounter.PlayerAttackDamage <= 0 || c.Encounter.WildAttackDamage <= 0 {
		return fmt.Errorf("attack damage must be positive")
	}
	if c.Encounter.CaptureThreshold <= 0 || c.Encounter.CaptureThreshold > 1 {
		return fmt.Errorf("capture threshold must be in (0, 1]: %v", c.Encounter.CaptureThreshold)
	}
	if c.Encounter.CaptureSuccessRate < 0 || c.Encounter.CaptureSuccessRate > 1 {
		return fmt.Errorf("capture success rate must be in [0, 1]: %v", c.Encounter.CaptureSuccessRate)
	}
	if c.Encounter.OpponentDelay < 0 || c.Encounter.ResolveDelay < 0 {
		return fmt.Errorf("encounter delays must not be negative")
	}

	if c.RateLimit.ActionsPerMinute < 0 {
		return fmt.Errorf("actions per minute must not be negative")
	}

	return nil
}

// GetDSN retourne la chaîne de connection PostgreSQL
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetRedisAddr retourne l'adresse Redis
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
