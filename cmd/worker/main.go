package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"symbio/config"
	mqcontracts "symbio/contracts/mq"
	"symbio/internal/bootstrap"
	"symbio/internal/delivery"
	"symbio/internal/mqhandler"
	"symbio/internal/service/scoring"
	"symbio/pkg/logger"
	"symbio/pkg/mq"
	"symbio/pkg/outbox"
	redisclient "symbio/pkg/redis"
	"symbio/pkg/runlock"
	"symbio/pkg/util"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting worker service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := bootstrap.InitTelemetry(ctx, *cfg, "worker", log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	// Init store
	st, err := bootstrap.OpenStore(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("Store initialization failed", zap.Error(err))
	}
	defer st.Close()

	// Init Redis
	rdb, err := redisclient.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	// Init RabbitMQ Publisher (outbox dispatcher)
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	dispatcher := outbox.NewDispatcher(st.Outbox(), publisher, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)

	// Consumer for notification push
	deduper := util.NewDeduper(rdb, cfg.Delivery.DedupTTL, log)
	pushHandler := mqhandler.NewNotificationCreatedHandler(delivery.NewRedisPusher(rdb, log), deduper, log)

	log.Info("Initializing notification consumer", zap.String("queue", cfg.Delivery.Queue))
	consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.Delivery.Queue, mqcontracts.RoutingKeyNotificationCreated, log)
	if err != nil {
		log.Fatal("Failed to init notification consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(pushHandler.Handle)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := consumer.StartConsuming(); err != nil {
			return err
		}
		// 非主动停止时投递通道关闭，退出整个进程交给外部重启
		if gctx.Err() == nil {
			return errors.New("notification consumer stopped unexpectedly")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		consumer.Stop()
		return nil
	})

	if cfg.Scoring.Enabled {
		job := scoring.NewJob(st, runlock.NewRedisLocker(rdb), cfg.Scoring.LockTTL, log)
		scheduler, err := scoring.NewScheduler(job, cfg.Scoring.Interval, log)
		if err != nil {
			log.Fatal("Failed to init scoring scheduler", zap.Error(err))
		}
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	log.Info("Worker is ready to process messages")
	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", zap.Error(err))
		return
	}
	log.Info("Worker stopped")
}
