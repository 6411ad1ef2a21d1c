// Command server runs the booking platform API. main wires configuration,
// stores, services and transport; business logic lives under internal/.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	bookinghandler "rumbo/internal/booking/handler"
	bookingmetrics "rumbo/internal/booking/metrics"
	bookingservice "rumbo/internal/booking/service"
	bookingstore "rumbo/internal/booking/store/booking"
	"rumbo/internal/events"
	"rumbo/internal/gateway"
	httpapi "rumbo/internal/http"
	"rumbo/internal/platform/config"
	"rumbo/internal/platform/httpserver"
	"rumbo/internal/platform/idempotency"
	"rumbo/internal/platform/logger"
	platformmetrics "rumbo/internal/platform/metrics"
	"rumbo/internal/platform/middleware"
	platformredis "rumbo/internal/platform/redis"
	reprogramhandler "rumbo/internal/reprogram/handler"
	"rumbo/internal/reprogram/policy"
	reprogramservice "rumbo/internal/reprogram/service"
	historystore "rumbo/internal/reprogram/store/history"
	rulestore "rumbo/internal/reprogram/store/rules"
	visitorhandler "rumbo/internal/visitor/handler"
	visitorservice "rumbo/internal/visitor/service"
	visitorstore "rumbo/internal/visitor/store"
	"rumbo/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when a DSN is configured, otherwise in-memory.
	var (
		bookings   bookingservice.BookingStore
		visitors   visitorservice.VisitorStore
		rules      reprogramservice.RuleStore
		history    bookingservice.HistoryStore
		policySrc  policy.RuleSource
		histSrc    policy.HistorySource
		health     func() error
		ruleRunner tx.Runner = tx.NopRunner{}
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("opening postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("pinging postgres: %w", err)
		}

		pgBookings := bookingstore.NewPostgres(db)
		pgRules := rulestore.NewPostgres(db)
		pgHistory := historystore.NewPostgres(db)
		bookings, visitors = pgBookings, visitorstore.NewPostgres(db)
		rules, history = pgRules, pgHistory
		policySrc, histSrc = pgRules, pgHistory
		ruleRunner = tx.NewSQLRunner(db)
		health = func() error { return db.Ping() }
		log.Info("using postgres stores")
	} else {
		memBookings := bookingstore.NewInMemory()
		memRules := rulestore.NewInMemory()
		memHistory := historystore.NewInMemory()
		bookings, visitors = memBookings, visitorstore.NewInMemory()
		rules, history = memRules, memHistory
		policySrc, histSrc = memRules, memHistory
		log.Warn("POSTGRES_DSN not set, using in-memory stores")
	}

	// Idempotency: redis when configured, in-memory otherwise.
	var idemStore bookingservice.IdempotencyStore = idempotency.NewMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		idemStore = idempotency.NewRedis(redisClient.Client)
		log.Info("using redis idempotency store")
	}

	// Lifecycle events: kafka sink when brokers are configured.
	var sink events.Sink = events.NewMemorySink()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("connecting kafka: %w", err)
		}
		sink = kafkaSink
		log.Info("publishing lifecycle events to kafka",
			slog.String("topic", cfg.Kafka.Topic))
	}
	defer sink.Close()

	outbox := make(chan events.Event, 256)
	publisher := events.NewPublisher(outbox, log)
	worker := events.NewWorker(sink, outbox, log)

	bkMetrics := bookingmetrics.New()
	httpMetrics := platformmetrics.New()

	// Services.
	registry := visitorservice.NewRegistry(visitors, bookings,
		visitorservice.WithLogger(log))
	engine := policy.NewEngine(policySrc, histSrc, policy.WithLogger(log))
	ruleAdmin := reprogramservice.NewAdmin(rules,
		reprogramservice.WithLogger(log),
		reprogramservice.WithTxRunner(ruleRunner),
	)

	controllerOpts := []bookingservice.Option{
		bookingservice.WithLogger(log),
		bookingservice.WithMetrics(bkMetrics),
		bookingservice.WithEvents(publisher),
		bookingservice.WithIdempotency(idemStore),
	}
	if len(cfg.PaymentGatewayURLs) > 0 {
		strategies := make([]gateway.Strategy, 0, len(cfg.PaymentGatewayURLs))
		for i, url := range cfg.PaymentGatewayURLs {
			strategies = append(strategies, gateway.Strategy{
				Name: fmt.Sprintf("endpoint-%d", i+1),
				URL:  url,
			})
		}
		controllerOpts = append(controllerOpts,
			bookingservice.WithPaymentGateway(gateway.NewClient(strategies, gateway.WithLogger(log))))
	}
	controller := bookingservice.NewController(bookings, registry, engine, history, controllerOpts...)

	router := httpapi.NewRouter(httpapi.Deps{
		Bookings:       bookinghandler.New(controller, log),
		Visitors:       visitorhandler.New(registry, log),
		RuleAdmin:      reprogramhandler.New(ruleAdmin, log),
		ActorValidator: middleware.NewJWTValidator(cfg.JWTSigningKey),
		AdminToken:     cfg.AdminToken,
		Logger:         log,
		Metrics:        httpMetrics,
		Health:         health,
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
