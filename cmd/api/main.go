package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-tickethub.git/internal/checkin"
	"github.com/ariefcatur/go-tickethub.git/internal/config"
	"github.com/ariefcatur/go-tickethub.git/internal/fees"
	"github.com/ariefcatur/go-tickethub.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-tickethub.git/internal/kafka"
	"github.com/ariefcatur/go-tickethub.git/internal/ledger"
	"github.com/ariefcatur/go-tickethub.git/internal/postgres"
	"github.com/ariefcatur/go-tickethub.git/internal/realtime"
	"github.com/ariefcatur/go-tickethub.git/internal/redisx"
	"github.com/ariefcatur/go-tickethub.git/internal/tickets"
	"github.com/ariefcatur/go-tickethub.git/internal/webhook"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

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

	// Kafka producers per topic
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, ledger.TopicOrderPaid, 1024)
	pPaid.Start()
	pFailed := kafkax.NewProducer(cfg.KafkaBrokers, ledger.TopicOrderFailed, 1024)
	pFailed.Start()
	pIssued := kafkax.NewProducer(cfg.KafkaBrokers, ledger.TopicTicketIssued, 1024)
	pIssued.Start()

	// Repos & services
	ledgerRepo := &ledger.Repo{DB: db}
	ticketRepo := &tickets.Repo{DB: db}
	publisher := &realtime.RedisPublisher{Redis: rdb, Logger: logger}

	issuer := &tickets.Issuer{
		Store:          ticketRepo,
		Orders:         ledgerRepo,
		ProducerIssued: pIssued,
		ProducerFailed: pFailed,
		ServiceName:    cfg.ServiceName,
		Logger:         logger,
	}
	ingestor := &webhook.Ingestor{
		Ledger:         ledgerRepo,
		Issuer:         issuer,
		Fees:           fees.Calculator{PlatformFeePercent: cfg.PlatformFeePercent},
		ProducerPaid:   pPaid,
		ProducerFailed: pFailed,
		Redis:          rdb,
		ServerKey:      cfg.GatewayServerKey,
		ServiceName:    cfg.ServiceName,
		Logger:         logger,
	}
	coordinator := &checkin.Coordinator{
		Tickets:   ticketRepo,
		Publisher: publisher,
		Cache:     &redisx.StatusCache{Client: rdb, Logger: logger},
		Logger:    logger,
	}

	// Router & handlers
	validate := validator.New()
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Ledger: ledgerRepo, Tickets: ticketRepo, Redis: rdb,
		Validate: validate, OrderTTL: cfg.OrderTTL, Logger: logger,
	}).Register(router)
	(&httpx.WebhookHandler{Ingestor: ingestor, Logger: logger}).Register(router)
	(&httpx.ScanHandler{Coordinator: coordinator, Validate: validate, Logger: logger}).Register(router)
	(&httpx.RealtimeHandler{Redis: rdb, Logger: logger}).Register(router)

	handler := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-User-Id", "X-Admin-Id"},
	}).Handler(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("listen")
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pPaid.Close() // tutup inbox -> flush & close writer
	pFailed.Close()
	pIssued.Close()
	pPaid.WaitClosed()
	pFailed.WaitClosed()
	pIssued.WaitClosed()
}
