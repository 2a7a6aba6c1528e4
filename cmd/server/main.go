package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-reservation/internal/config"
	"github.com/iliyamo/slot-reservation/internal/database"
	"github.com/iliyamo/slot-reservation/internal/handler"
	"github.com/iliyamo/slot-reservation/internal/live"
	appmw "github.com/iliyamo/slot-reservation/internal/middleware"
	"github.com/iliyamo/slot-reservation/internal/queue"
	"github.com/iliyamo/slot-reservation/internal/repository"
	"github.com/iliyamo/slot-reservation/internal/router"
	"github.com/iliyamo/slot-reservation/internal/service"
)

// fanout delivers committed change events to the local hub and,
// best-effort, to the broker so other server processes see them too. A
// publish failure is logged inside PublishChange and never surfaces:
// the mutation already committed.
type fanout struct {
	hub *live.Hub
}

func (f fanout) Broadcast(ev queue.ChangeEvent) {
	f.hub.Broadcast(ev)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = service.PublishChange(ctx, ev)
	}()
}

func main() {
	// Best-effort .env load for local development.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	// Redis backs rate limiting and the listing cache; nil disables both.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and response caching disabled")
	}

	slots := repository.NewSlotRepo(db)
	bookings := repository.NewBookingRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	assignments := repository.NewSlotAdminRepo(db)
	store := repository.NewStore(db, slots, bookings)

	hub := live.NewHub()
	defer hub.Close()

	events := fanout{hub: hub}
	engine := service.NewEngine(store, events)
	policy := service.NewAccessPolicy(users, assignments, cfg.SlotAdminScoped)

	// Bridge broker-delivered events from other processes into this
	// process's hub.
	go func() {
		if err := queue.StartChangeConsumer(hub); err != nil {
			log.Printf("change-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	rlCfg := config.LoadRateLimitConfig()
	e.Use(appmw.RateLimit(rlCfg, rdb))

	var cacheMW echo.MiddlewareFunc
	if cacheCfg := config.LoadCacheConfig(); cacheCfg.Enabled && rdb != nil {
		cacheMW = appmw.ResponseCache(cacheCfg, rdb)
	}

	authH := handler.NewAuthHandler(cfg, users, tokens)
	slotH := handler.NewSlotHandler(slots)
	bookH := handler.NewBookingHandler(engine, policy, users, bookings)
	adminH := handler.NewAdminHandler(engine, policy, slots, bookings, users, assignments, events)
	liveH := handler.NewLiveHandler(hub)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, slotH, cacheMW)
	router.RegisterParticipant(e, bookH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)
	router.RegisterLive(e, liveH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
