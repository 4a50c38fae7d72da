package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling/config"
	"github.com/clinicore/scheduling/internal/app"
	"github.com/clinicore/scheduling/internal/kafka"
	"github.com/clinicore/scheduling/internal/relay"
)

// The worker hosts the event relays: every scheduling event fans out
// to a notification and a metrics counter. Hold expiry is evaluated
// lazily by the engine itself, so there is no sweep loop here.
func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, "scheduling-worker")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.EventsTopic, logger)
	defer consumer.Close()

	notifier := relay.NewNotifier(logger)
	registry := prometheus.NewRegistry()
	collector := relay.NewMetricsCollector(registry)

	metricsSrv := &http.Server{
		Addr:    cfg.Worker.MetricsAddress,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	defer metricsSrv.Close()

	err = consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
		if err := notifier.Handle(ctx, msg); err != nil {
			return err
		}
		return collector.Handle(ctx, msg)
	})
	if err != nil && ctx.Err() == nil {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
	logger.Info("worker shut down")
}
