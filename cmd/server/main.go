package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	contacthandler "registro/internal/contact/handler"
	contactservice "registro/internal/contact/service"
	contactstore "registro/internal/contact/store"
	"registro/internal/epp"
	eppmetrics "registro/internal/epp/metrics"
	"registro/internal/events"
	orderstore "registro/internal/order/store"
	"registro/internal/platform/config"
	"registro/internal/platform/httpserver"
	"registro/internal/platform/kafka"
	"registro/internal/platform/logger"
	platmetrics "registro/internal/platform/metrics"
	"registro/internal/platform/postgres"
	platredis "registro/internal/platform/redis"
	"registro/internal/registrar"
	regmetrics "registro/internal/registration/metrics"
	regservice "registro/internal/registration/service"
	regstore "registro/internal/registration/store"
	retrymetrics "registro/internal/retry/metrics"
	retryservice "registro/internal/retry/service"
	retrystore "registro/internal/retry/store"
	"registro/internal/routing"
	httptransport "registro/internal/transport/http"
)

// defaultPricing is the storefront price table in USD cents per year until
// billing owns pricing.
var defaultPricing = regservice.PriceList{
	Currency: "USD",
	BySuffix: map[string]int64{
		".rw":     1500,
		".co.rw":  1200,
		".org.rw": 1200,
		".net.rw": 1200,
		".ac.rw":  1200,
		".com":    1100,
		".net":    1300,
		".org":    1250,
		".info":   1800,
		".biz":    1600,
	},
	Default: 2000,
}

// main wires dependencies and runs the HTTP server plus the retry worker.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres unavailable", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := platredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Seeds, cfg.Kafka.Topic, log)
	if err != nil {
		log.Error("kafka unavailable", "error", err.Error())
		os.Exit(1)
	}
	var publisher events.Publisher = events.NopPublisher{}
	if producer != nil {
		publisher = producer
		defer producer.Close()
	}

	session := epp.NewSession(cfg.EPP,
		epp.WithLogger(log),
		epp.WithMetrics(eppmetrics.New()),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			log.Warn("registry session close failed", "error", err.Error())
		}
	}()

	registrarClient := registrar.NewClient(cfg.Registrar, registrar.WithLogger(log))
	router := routing.New(session, registrarClient, cfg.LocalSuffixes)

	contacts, err := contactservice.New(contactstore.NewPostgres(db), contactservice.WithLogger(log))
	if err != nil {
		log.Error("contact service init failed", "error", err.Error())
		os.Exit(1)
	}

	orders := orderstore.NewPostgres(db)
	domains := regstore.NewPostgres(db)

	regOpts := []regservice.Option{
		regservice.WithLogger(log),
		regservice.WithMetrics(regmetrics.New()),
		regservice.WithEvents(publisher),
		regservice.WithOrders(orders),
		regservice.WithPricing(defaultPricing),
		regservice.WithSearchSuffixes(cfg.SearchSuffixes),
	}
	if cache := regservice.NewRedisCache(redisClient, cfg.AvailabilityCacheTTL); cache != nil {
		regOpts = append(regOpts, regservice.WithCache(cache))
	}
	registration, err := regservice.New(router, domains, regOpts...)
	if err != nil {
		log.Error("registration service init failed", "error", err.Error())
		os.Exit(1)
	}

	retrySvc, err := retryservice.New(retrystore.NewPostgres(db), registration,
		retryservice.WithLogger(log),
		retryservice.WithMetrics(retrymetrics.New()),
		retryservice.WithEvents(publisher),
		retryservice.WithOrderItems(orders),
		retryservice.WithAttemptDelay(cfg.Retry.AttemptDelay),
		retryservice.WithMaxRetries(cfg.Retry.MaxRetries),
	)
	if err != nil {
		log.Error("retry service init failed", "error", err.Error())
		os.Exit(1)
	}
	registration.SetRecorder(retrySvc)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:     log,
		Metrics:    platmetrics.New(),
		AdminToken: cfg.AdminToken,
		Search:     registration,
		Retry:      retrySvc,
		Contacts:   contacthandler.New(contacts, session, registrarClient, log),
		HealthChecks: map[string]func() error{
			"postgres":  func() error { return db.PingContext(context.Background()) },
			"registrar": registrarClient.Health,
			"redis": func() error {
				if redisClient == nil {
					return nil
				}
				return redisClient.Health(context.Background())
			},
		},
	})
	srv := httpserver.New(cfg.Addr, handler)
	worker := retryservice.NewWorker(retrySvc, cfg.Retry.PollInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting registro", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("registro stopped")
}
