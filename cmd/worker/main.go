package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ariefcatur/go-tickethub.git/internal/config"
	kafkax "github.com/ariefcatur/go-tickethub.git/internal/kafka"
	"github.com/ariefcatur/go-tickethub.git/internal/ledger"
	"github.com/ariefcatur/go-tickethub.git/internal/postgres"
	"github.com/ariefcatur/go-tickethub.git/internal/realtime"
	"github.com/ariefcatur/go-tickethub.git/internal/reaper"
	"github.com/ariefcatur/go-tickethub.git/internal/redisx"
	"github.com/ariefcatur/go-tickethub.git/internal/relay"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logrus.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// relay: order.paid dari stream -> topic realtime buyer
	svc := &relay.Service{
		Dedup:     &relay.RedisDeduper{Client: rdb, Service: cfg.ServiceName + "-relay"},
		Publisher: &realtime.RedisPublisher{Redis: rdb, Logger: logger},
		Logger:    logger,
	}

	group := getenv("RELAY_GROUP", "tickethub-relay")
	workers := mustAtoi(os.Getenv("RELAY_WORKERS"), "4")
	cons := kafkax.NewConsumer(logger, cfg.KafkaBrokers, group, ledger.TopicOrderPaid, workers)

	rp := &reaper.Reaper{
		Ledger:    &ledger.Repo{DB: db},
		Redis:     rdb,
		Interval:  cfg.ReaperInterval,
		BatchSize: cfg.ReaperBatchSize,
		Logger:    logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"group": group, "topic": ledger.TopicOrderPaid, "workers": workers,
		}).Info("relay consumer started")
		return cons.Start(gctx, svc.HandleOrderEvent)
	})
	g.Go(func() error {
		logger.WithField("interval", cfg.ReaperInterval.String()).Info("expiration reaper started")
		return rp.Run(gctx)
	})

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("shutting down worker...")
		cancel()
	case <-gctx.Done():
	}
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("worker exit")
	}
}
