package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling/config"
	"github.com/clinicore/scheduling/internal/app"
	"github.com/clinicore/scheduling/internal/bootstrap"
	"github.com/clinicore/scheduling/internal/cache"
	"github.com/clinicore/scheduling/internal/kafka"
	"github.com/clinicore/scheduling/internal/repository"
	"github.com/clinicore/scheduling/internal/service/booking"
	"github.com/clinicore/scheduling/internal/service/holds"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, "scheduling-api")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.MigrationsPath != "" {
		migrator, err := app.NewMigrator(pool, cfg.Database.MigrationsPath)
		if err != nil {
			logger.Fatal("init migrator", zap.Error(err))
		}
		if err := migrator.Run(ctx); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		migrator.Close()
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	scheduleCache := cache.NewRedisCache(redisClient, time.Duration(cfg.Booking.ScheduleCacheTTLSeconds)*time.Second)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
	defer producer.Close()

	holdRepo := repository.NewHoldRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	recurrenceRepo := repository.NewRecurrenceRepository(pool)

	holdService := holds.NewHoldService(
		holdRepo,
		producer,
		cfg.Kafka.EventsTopic,
		time.Duration(cfg.Booking.HoldTTLMinutes)*time.Minute,
		logger,
	)
	bookingService := booking.NewBookingService(
		bookingRepo,
		holdRepo,
		recurrenceRepo,
		scheduleCache,
		producer,
		cfg.Kafka.EventsTopic,
		cfg.Booking.DefaultLateToleranceMinutes,
		logger,
	)

	if err := bootstrap.Run(ctx, cfg, holdService, bookingService, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
