package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calloway/gridfax/internal/api/rest"
	"github.com/calloway/gridfax/internal/api/websocket"
	"github.com/calloway/gridfax/internal/cache"
	"github.com/calloway/gridfax/internal/compile"
	"github.com/calloway/gridfax/internal/config"
	"github.com/calloway/gridfax/internal/events"
	"github.com/calloway/gridfax/internal/feed/espn"
	"github.com/calloway/gridfax/internal/metrics"
	"github.com/calloway/gridfax/internal/scheduler"
	"github.com/calloway/gridfax/internal/service"
	"github.com/calloway/gridfax/internal/store"
	"github.com/calloway/gridfax/internal/store/repository"
)

const (
	serviceName    = "gridfax"
	serviceVersion = "1.0.0"
)

func main() {
	log.Printf("Starting %s v%s - NFL season stat compiler", serviceName, serviceVersion)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Postgres is required
	db := connectDatabase(cfg.DatabaseURL)
	defer db.Close()
	log.Println("✓ Connected to Postgres")

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// Redis is optional, the service degrades without it
	var redisCache *cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err = cache.New(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠ Redis unavailable, caching and event stream disabled: %v", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Println("✓ Connected to Redis")
		}
	} else {
		log.Println("Redis not configured, caching and event stream disabled")
	}

	// Repositories
	aggregates := repository.NewAggregateRepository(db)
	runs := repository.NewRunRepository(db)

	// Source feed
	feed := espn.NewClient()
	if cfg.BrowserFallback {
		browser := espn.NewBrowser()
		defer browser.Close()
		feed.SetBrowser(browser)
		log.Println("✓ Headless browser fallback enabled")
	}

	// Leaderboard service
	var boardCache service.BoardCache
	if redisCache != nil {
		boardCache = redisCache
	}
	leaderboards := service.NewLeaderboardService(aggregates, boardCache,
		time.Duration(cfg.CacheTTLMinutes)*time.Minute)

	// Progress fan-out: websocket hub, Redis stream, Prometheus
	hub := websocket.NewHub()
	go hub.Run()

	sinks := []events.Sink{hub}
	if redisCache != nil {
		sinks = append(sinks, events.NewStreamPublisher(redisCache.Client()))
	}
	reporter := compile.MultiReporter(events.NewBroadcaster(sinks...), metrics.NewReporter())

	// Compile service
	compiler := compile.NewCompiler(feed, aggregates)
	compileService := compile.NewService(compiler, runs, reporter, leaderboards)
	compileService.Start()
	log.Println("✓ Compile service started")

	// Nightly scheduler
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.New(compileService, scheduler.Config{
			Hour:       cfg.SchedulerHour,
			Season:     cfg.SchedulerSeason,
			EndWeek:    cfg.SchedulerEndWeek,
			SeasonType: cfg.SchedulerSeasonType,
		})
		sched.Start()
	}

	// REST server carries the API, the metrics endpoint and the
	// websocket progress feed
	var redisChecker rest.CacheChecker
	if redisCache != nil {
		redisChecker = redisCache
	}
	handler := rest.NewHandler(leaderboards, db, redisChecker)
	compileHandler := rest.NewCompileHandler(compileService, cfg.HistoryLimit)
	restServer := rest.NewServer(cfg.Addr, handler, compileHandler, websocket.Handler(hub))

	go func() {
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("REST server failed: %v", err)
		}
	}()

	log.Printf("✓ REST API listening on %s", cfg.Addr)
	log.Printf("  Progress feed: ws://localhost%s/ws/progress", cfg.Addr)
	log.Printf("✓ %s v%s started successfully", serviceName, serviceVersion)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Printf("Shutting down %s gracefully...", serviceName)

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := compileService.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠ Compile service shutdown error: %v", err)
	}
	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠ REST server shutdown error: %v", err)
	}

	log.Printf("%s stopped", serviceName)
}

// connectDatabase retries until Postgres is reachable. Container setups
// regularly start the service before the database accepts connections.
func connectDatabase(dsn string) *store.Database {
	const maxRetries = 30
	const retryDelay = 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err := store.NewDatabase(dsn)
		if err == nil {
			return db
		}

		if i < maxRetries-1 {
			log.Printf("Postgres connection attempt %d/%d failed: %v (retrying in %v)",
				i+1, maxRetries, err, retryDelay)
			time.Sleep(retryDelay)
		} else {
			log.Fatalf("Failed to connect to Postgres after %d attempts: %v", maxRetries, err)
		}
	}
	return nil
}
