package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/havenops/shelter-occupancy/internal/config"
	"github.com/havenops/shelter-occupancy/internal/database"
	"github.com/havenops/shelter-occupancy/internal/handler"
	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/middleware"
	"github.com/havenops/shelter-occupancy/internal/occupancy"
	"github.com/havenops/shelter-occupancy/internal/queue"
	"github.com/havenops/shelter-occupancy/internal/repository"
	"github.com/havenops/shelter-occupancy/internal/router"
	queue_publisher "github.com/havenops/shelter-occupancy/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rooms := repository.NewRoomRepo(db)
	residents := repository.NewResidentRepo(db)
	stays := repository.NewStayRepo(db)
	engine := occupancy.NewEngine(db, rooms, residents, stays)

	// Redis is optional: with no server reachable the cache and the rate
	// limiter become pass-throughs.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; response cache and rate limiting disabled")
	}
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	e.Use(limiter)
	router.RegisterRoutes(e, router.Handlers{
		Stays:        handler.NewStayHandler(engine, cfg.DefaultOperator),
		Availability: handler.NewAvailabilityHandler(engine),
		Conflicts:    handler.NewConflictHandler(engine),
		Reports:      handler.NewReportHandler(engine),
		Catalog:      handler.NewCatalogHandler(rooms, residents),
		Cache:        cache,
	})

	// Background consumer appending the event log.
	go func() {
		if err := queue.StartEventConsumer(); err != nil {
			log.Printf("event consumer stopped: %v", err)
		}
	}()

	// Periodic conflict sweep. Detection only: repairs stay operator
	// triggered via POST /v1/conflicts/resolve.
	if cfg.SweepInterval > 0 {
		go runConflictSweep(engine, cfg.SweepInterval)
	}

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// runConflictSweep periodically scans for overlapping stays and publishes a
// conflict.detected event when any are found, so the integrity dashboard
// hears about violations without polling.
func runConflictSweep(engine *occupancy.Engine, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		asOf := interval.Normalize(time.Now().UTC())
		pairs, err := engine.DetectConflicts(ctx, asOf)
		if err != nil {
			log.Printf("conflict sweep: %v", err)
			cancel()
			continue
		}
		if len(pairs) > 0 {
			log.Printf("conflict sweep: %d overlapping stay pair(s) found", len(pairs))
			_ = queue_publisher.PublishStayEvent(ctx, queue.StayEvent{
				Type:       queue.EventConflictDetected,
				PairCount:  len(pairs),
				OccurredAt: time.Now().UTC().Format(time.RFC3339),
			})
		}
		cancel()
	}
}
