package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/diznq/core-se/internal/app/engine"
	"github.com/diznq/core-se/internal/usecase/assets"
	"github.com/diznq/core-se/internal/usecase/orderreader"
	"github.com/diznq/core-se/internal/usecase/snapshot"
	"github.com/diznq/core-se/internal/usecase/tradefeed"
	"github.com/diznq/core-se/pkg/config"
	"github.com/diznq/core-se/pkg/logger"
	"github.com/diznq/core-se/pkg/redis"
)

var cfg *config.Config
var log *logger.Logger

func init() {
	cfg = &config.Config{}
	if err := config.Load(cfg); err != nil {
		panic(err)
	}

	l, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.LogLevel)))
	if err != nil {
		panic(err)
	}
	log = l
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	rclient := redis.NewClient(log, &cfg.Redis)
	if err := rclient.Connect(ctx); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "connect_redis"})
		return
	}

	repo := assets.NewRepository(log)
	reader := orderreader.NewReader(cfg.Kafka, log)
	publisher := tradefeed.NewPublisher(cfg.Kafka, log)
	snapshotStore := snapshot.NewStore(rclient, cfg.SnapshotKey, log)

	engine := app.NewEngineWithOptions(
		repo,
		reader,
		publisher,
		snapshotStore,
		log,
		cfg,
		&app.Options{
			TickInterval:     cfg.TickInterval,
			SnapshotInterval: cfg.SnapshotInterval,
		},
	)

	if err := engine.Start(ctx); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "start_engine"})
		return
	}

	log.Info("venue started",
		logger.Field{Key: "order_topic", Value: cfg.Kafka.OrderTopic},
		logger.Field{Key: "trade_topic", Value: cfg.Kafka.TradeTopic},
	)

	sig := <-sigChan
	log.Info("received shutdown signal", logger.Field{Key: "signal", Value: sig.String()})

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := engine.Stop(shutdownCtx); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "stop_engine"})
	}

	if err := publisher.Close(); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "close_trade_publisher"})
	}

	if err := rclient.Disconnect(shutdownCtx); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "disconnect_redis"})
	}

	log.Info("venue shutdown complete")
}
