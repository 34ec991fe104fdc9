package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-bidding/internal/auction"
	auction_api "ms-bidding/internal/auction/api"
	"ms-bidding/internal/auth"
	"ms-bidding/internal/bid"
	bid_api "ms-bidding/internal/bid/api"
	bid_db "ms-bidding/internal/bid/db"
	bid_redis "ms-bidding/internal/bid/redis"
	"ms-bidding/internal/config"
	"ms-bidding/internal/database/migrations"
	"ms-bidding/internal/events"
	"ms-bidding/internal/kafka"
	"ms-bidding/internal/logger"
	"ms-bidding/internal/projection"
	"ms-bidding/internal/realtime"
)

func main() {
	_ = godotenv.Load()

	log := logger.NewLogger()
	defer log.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- PostgreSQL ---
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", "failed to open postgres: "+err.Error())
	}
	defer sqldb.Close()
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", "failed to connect to postgres: "+err.Error())
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.RunMigrations(); err != nil {
			log.Warn("DATABASE", "sql migrations unavailable, falling back to DDL: "+err.Error())
			if err := bid_db.Migrate(ctx, bunDB); err != nil {
				log.Fatal("DATABASE", "schema setup failed: "+err.Error())
			}
		}
	}

	// --- Redis (per-gig lock) ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", "failed to connect to redis: "+err.Error())
	}
	gigLock := bid_redis.NewGigLock(redisClient, cfg.Auction.LockTTL, cfg.Auction.LockWait, cfg.Auction.LockPoll)

	// --- Realtime hub ---
	hub := realtime.NewHub(log)
	go hub.Run(ctx)

	// --- Event sinks ---
	sinks := []events.Sink{hub}
	if cfg.Kafka.Enabled && !cfg.Kafka.MockMode {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}); err != nil {
			log.Warn("KAFKA", "topic bootstrap failed: "+err.Error())
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer producer.Close()
		sinks = append(sinks, producer)
	}
	dispatcher := events.NewDispatcher(sinks...)

	// --- Services ---
	dbLayer := &bid_db.DB{Bun: bunDB}
	bidService := bid.NewBidService(dbLayer, gigLock, dispatcher, log)
	auctionService := auction.NewAuctionService(dbLayer, gigLock, dispatcher, log)
	projectionService := projection.NewProjectionService(dbLayer)

	bidHandler := bid_api.NewHandler(bidService, auctionService, projectionService)
	gigHandler := auction_api.NewHandler(auctionService)
	wsHandler := &realtime.Handler{
		Hub:          hub,
		Logger:       log,
		PingInterval: cfg.Auction.PingInterval,
		PongTimeout:  cfg.Auction.PongTimeout,
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Route("/bids", bidHandler.Routes)
		r.Route("/gigs", gigHandler.Routes)
	})
	r.Handle("/ws/bids", wsHandler)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("API", "Bid service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("API", "HTTP server error: "+err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("API", "Shutdown signal received, cleaning up...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("API", fmt.Sprintf("server forced to shutdown: %v", err))
	}

	log.Info("API", "Server exited gracefully")
}
