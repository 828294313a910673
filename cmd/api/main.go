package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/reop/addressfinder/internal/agent"
	"github.com/reop/addressfinder/internal/config"
	"github.com/reop/addressfinder/internal/database"
	"github.com/reop/addressfinder/internal/db"
	"github.com/reop/addressfinder/internal/events"
	"github.com/reop/addressfinder/internal/finder"
	"github.com/reop/addressfinder/internal/handlers"
	"github.com/reop/addressfinder/internal/logger"
	"github.com/reop/addressfinder/internal/middleware"
	"github.com/reop/addressfinder/internal/places"
	"github.com/reop/addressfinder/internal/session"
	"github.com/reop/addressfinder/internal/telemetry"
)

const serviceName = "address-finder-api"

func main() {
	// .env 는 로컬 개발용
	envErr := godotenv.Load()

	cfg := config.Load()
	if err := logger.Init(cfg.ServerEnv); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.GetLogger("main")
	if envErr != nil {
		log.Info("No .env file found, using environment variables")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tracerShutdown, err := telemetry.InitTracer(ctx, serviceName, cfg.SigNozEndpoint)
	if err != nil {
		log.Warnf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if tracerShutdown == nil {
			return
		}
		if err := tracerShutdown(context.Background()); err != nil {
			log.Warnf("Error shutting down tracer: %v", err)
		}
	}()

	meterShutdown, err := telemetry.InitMeter(ctx, serviceName, cfg.SigNozEndpoint)
	if err != nil {
		log.Warnf("Failed to initialize metrics: %v", err)
	}
	defer func() {
		if meterShutdown == nil {
			return
		}
		if err := meterShutdown(context.Background()); err != nil {
			log.Warnf("Error shutting down metrics: %v", err)
		}
	}()

	// Database (선택) - 없으면 캐시/이력은 메모리 전용
	var (
		store      places.Store
		cacheStore *database.CacheStore
		cacheDB    *database.DB
		history    *db.HistoryStore
		readyDBs   = map[string]handlers.Pinger{"cache_db": nil, "history_db": nil}
	)
	if cfg.DatabaseURL != "" {
		cacheDB, err = database.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer cacheDB.Close()

		if cfg.DatabaseAutoMigrate {
			if err := database.Migrate(cacheDB); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}
		cacheStore = database.NewCacheStore(cacheDB)
		store = cacheStore
		readyDBs["cache_db"] = cacheDB
		database.StartConnectionPoolMetricsCollector(ctx, cacheDB.DB, 15*time.Second)

		history, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect history database: %v", err)
		}
		defer history.Close()
		if err := history.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare history schema: %v", err)
		}
		readyDBs["history_db"] = history
	} else {
		log.Warn("DATABASE_URL not set: caches and history are in-memory only")
	}

	if cfg.Google.APIKey == "" {
		log.Warn("GOOGLE_MAPS_API_KEY not set: every search will fail")
	}
	google := places.NewGoogleClient(cfg.Google, cfg.Breaker, cfg.Finder.MaxSuggestions)
	searchCache := places.NewSearchCache(google, store, cfg.Finder.SearchCacheTTL)
	detailsCache := places.NewDetailsCache(google, store, cfg.Finder.DetailsCacheTTL)
	go purgeExpired(ctx, searchCache, cacheStore, 10*time.Minute)

	publisher := events.FromConfig(cfg.Bridge)
	defer publisher.Close()

	svc := finder.New(searchCache, detailsCache, google, publisher, finder.PolicyFromConfig(cfg.Finder))
	if history != nil {
		svc.WithHistory(history)
	}
	tools := agent.New(svc, searchCache, publisher)

	sessions := session.NewManager(cfg.Finder.HistoryLimit, cfg.Finder.SessionIdleTimeout)
	go sessions.Run(ctx, time.Minute)

	app := fiber.New(fiber.Config{
		AppName:      "REOP Address Finder",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     `{"time":"${time}","status":${status},"latency":"${latency}","ip":"${ip}","method":"${method}","path":"${path}","user_agent":"${ua}","error":"${error}"}` + "\n",
		TimeFormat: "2006-01-02T15:04:05Z07:00",
		TimeZone:   "Australia/Melbourne",
	}))
	app.Use(telemetry.New(telemetry.Config{
		ServiceName: serviceName,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowHeaders:     "Accept, Accept-Encoding, Content-Type, Origin, User-Agent, X-Requested-With, X-API-Key",
		AllowCredentials: false,
		ExposeHeaders:    "Content-Length, Content-Type",
		MaxAge:           86400,
	}))
	app.Use(middleware.PrometheusMiddleware())

	sessionHandler := handlers.NewSessionHandler(sessions, svc)
	if history != nil {
		sessionHandler.WithAudit(history)
	}
	setupRoutes(app, cfg, sessionHandler, handlers.NewToolHandler(sessions, tools), readyDBs)

	port := cfg.ServerPort
	if port == "" {
		port = "3000"
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("Shutting down server...")
		stop()
		if err := app.Shutdown(); err != nil {
			log.Errorf("Error shutting down server: %v", err)
		}
	}()

	log.Infof("Server starting on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func setupRoutes(app *fiber.App, cfg *config.Config, sessions *handlers.SessionHandler, tools *handlers.ToolHandler, deps map[string]handlers.Pinger) {
	if cfg.MetricsInternalOnly {
		app.Get("/metrics", middleware.InternalOnly(), middleware.PrometheusHandler())
	} else {
		app.Get("/metrics", middleware.PrometheusHandler())
	}

	// Health check endpoints for k8s
	app.Get("/healthz", handlers.HealthCheck)
	app.Get("/v1/healthz", handlers.HealthCheck)
	app.Get("/v1/health", handlers.HealthCheck)
	app.Get("/v1/readiness", handlers.ReadinessCheck(deps))
	app.Get("/v1/liveness", handlers.LivenessCheck)

	v1 := app.Group("/v1")
	v1.Post("/classify", handlers.Classify)

	handlers.SetupSessionRoutes(v1.Group("/sessions"), sessions)

	// Voice agent tools (API key)
	handlers.SetupToolRoutes(v1, tools, middleware.APIKeyRequired(cfg.AgentAPIKey))
}

// purgeExpired 만료된 캐시 정리 (메모리 + DB row)
func purgeExpired(ctx context.Context, search *places.SearchCache, store *database.CacheStore, interval time.Duration) {
	log := logger.GetLogger("cache")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := search.Purge(); n > 0 {
				log.Debugf("search cache 만료 항목 %d건 정리", n)
			}
			if store == nil {
				continue
			}
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				log.Warnf("캐시 정리 실패: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("만료된 캐시 %d건 삭제", n)
			}
		}
	}
}
