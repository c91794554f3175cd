package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"encounter/internal/config"
	"encounter/internal/database"
	"encounter/internal/external"
	"encounter/internal/handlers"
	"encounter/internal/middleware"
	"encounter/internal/monitoring"
	"encounter/internal/repository"
	"encounter/internal/service"
	"encounter/internal/utils"
)

// Version du service (à définir lors du build)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	initLogger()

	logrus.WithFields(logrus.Fields{
		"service":    "encounter",
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("Starting Encounter Service...")

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatal("Failed to load config: ", err)
	}
	applyLogging(cfg.Logging)

	metrics := monitoring.NewMetrics()
	health := monitoring.NewHealthChecker("encounter", Version)

	// Slot de persistance des sessions
	backend, closeBackend, err := openSlotBackend(cfg)
	if err != nil {
		logrus.Fatal("Failed to open session store: ", err)
	}
	defer closeBackend()

	store := repository.NewBattleSessionStore(backend, cfg.Encounter.SessionTTL, cfg.Encounter.StoreTimeout, metrics.Encounter)
	// Un slot indisponible n'empêche pas de jouer: la rencontre continue en mémoire
	health.AddCheck("session_store", false, store.Ping)

	// Services externes
	catalog, err := openSpeciesCatalog(cfg)
	if err != nil {
		logrus.Fatal("Failed to load species catalog: ", err)
	}
	roster := external.NewRosterClient(cfg)

	// Publication des événements
	realtime := service.NewRealtimeService()
	publishers := service.MultiPublisher{realtime}
	if cfg.NATS.Enabled {
		nc, err := service.ConnectNATS(cfg.NATS)
		if err != nil {
			logrus.Fatal("Failed to connect to NATS: ", err)
		}
		defer nc.Drain()

		publishers = append(publishers, service.NewNATSEventPublisher(nc, cfg.NATS.SubjectPrefix))
		health.AddCheck("nats", false, func(context.Context) error {
			if nc.Status() != nats.CONNECTED {
				return fmt.Errorf("nats status: %s", nc.Status())
			}
			return nil
		})
	}

	rng := utils.NewSecureRandom()
	encounters := service.NewEncounterService(&cfg.Encounter, service.EncounterServiceDeps{
		Factory:   service.NewCombatantFactory(catalog, rng),
		Roster:    roster,
		Store:     store,
		Resolver:  service.NewActionResolver(service.RulesFromConfig(cfg.Encounter), rng),
		Rewards:   service.NewRewardProcessor(roster, metrics.Encounter),
		Scheduler: service.NewTimerScheduler(),
		Publisher: publishers,
		Metrics:   metrics.Encounter,
	})
	if err := encounters.Start(); err != nil {
		logrus.Fatal("Failed to start encounter service: ", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	limiter.Start()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRoutes(cfg, routeDeps{
		encounters: handlers.NewEncounterHandler(encounters),
		health:     handlers.NewHealthHandler(health),
		websocket:  handlers.NewWebSocketHandler(realtime, encounters),
		metrics:    metrics,
		limiter:    limiter,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"host":         cfg.Server.Host,
			"port":         cfg.Server.Port,
			"env":          cfg.Server.Environment,
			"store_driver": cfg.Encounter.StoreDriver,
			"nats":         cfg.NATS.Enabled,
		}).Info("Encounter Service started successfully")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	gracefulShutdown(server, encounters, realtime, limiter)
}

type routeDeps struct {
	encounters *handlers.EncounterHandler
	health     *handlers.HealthHandler
	websocket  *handlers.WebSocketHandler
	metrics    *monitoring.Metrics
	limiter    *middleware.RateLimiter
}

// setupRoutes configure toutes les routes du service
func setupRoutes(cfg *config.Config, deps routeDeps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(cfg.Monitoring.HealthPath, cfg.Monitoring.MetricsPath, "/live", "/ready"))
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics(deps.metrics.HTTP))

	// Santé et monitoring (sans auth)
	router.GET(cfg.Monitoring.HealthPath, deps.health.HealthCheck)
	router.GET("/ready", deps.health.ReadinessCheck)
	router.GET("/live", deps.health.LivenessCheck)
	router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(deps.metrics.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(&cfg.JWT))
	{
		deps.encounters.RegisterRoutes(v1, middleware.RateLimit(deps.limiter))
		v1.GET("/encounters/ws", deps.websocket.HandleWebSocket)
	}

	return router
}

// initLogger initialise le système de logging
func initLogger() {
	if os.Getenv("SERVER_ENVIRONMENT") == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	}

	logrus.SetOutput(os.Stdout)
}

// applyLogging applique le niveau et le format configurés
func applyLogging(cfg config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, keeping default")
	}

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// openSlotBackend ouvre le stockage des slots selon le pilote configuré
func openSlotBackend(cfg *config.Config) (repository.SlotBackend, func(), error) {
	switch cfg.Encounter.StoreDriver {
	case config.StoreDriverRedis:
		client, err := database.NewRedisClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisSlotBackend(client), func() { client.Close() }, nil

	case config.StoreDriverPostgres:
		db, err := database.NewConnection(cfg)
		if err != nil {
			return nil, nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewPostgresSlotBackend(db.DB), func() { db.Close() }, nil

	default:
		logrus.Warn("Using in-memory session store: encounters will not survive a restart")
		return repository.NewMemorySlotBackend(), func() {}, nil
	}
}

// openSpeciesCatalog charge le catalogue local s'il est configuré, sinon interroge le service Species
func openSpeciesCatalog(cfg *config.Config) (external.SpeciesCatalogInterface, error) {
	if cfg.Encounter.SpeciesFile != "" {
		catalog, err := external.LoadSpeciesFile(cfg.Encounter.SpeciesFile)
		if err != nil {
			return nil, err
		}
		return catalog, nil
	}
	return external.NewSpeciesClient(cfg), nil
}

// gracefulShutdown gère l'arrêt gracieux du service
func gracefulShutdown(
	server *http.Server,
	encounters *service.EncounterService,
	realtime service.RealtimeServiceInterface,
	limiter *middleware.RateLimiter,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logrus.Info("Encounter Service is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	// Les rencontres en cours restent dans leur slot et reprendront au prochain démarrage
	logrus.WithField("active_encounters", encounters.ActiveCount()).Info("Cleaning up resources...")
	encounters.Stop()
	realtime.Stop()
	limiter.Stop()

	logrus.Info("Encounter Service stopped gracefully")
}
