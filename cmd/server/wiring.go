package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"propie/internal/collaborators/documents"
	"propie/internal/collaborators/journey"
	"propie/internal/collaborators/notify"
	"propie/internal/coordinator"
	coordmetrics "propie/internal/coordinator/metrics"
	"propie/internal/coordinator/ports"
	"propie/internal/expiry"
	expirymetrics "propie/internal/expiry/metrics"
	claimhandler "propie/internal/grantclaim/handler"
	claimmetrics "propie/internal/grantclaim/metrics"
	claimsvc "propie/internal/grantclaim/service"
	claimstore "propie/internal/grantclaim/store"
	jwttoken "propie/internal/jwt_token"
	ledgermetrics "propie/internal/ledger/metrics"
	ledgersvc "propie/internal/ledger/service"
	ledgerstore "propie/internal/ledger/store"
	"propie/internal/platform/config"
	"propie/internal/platform/kafka"
	"propie/internal/platform/metrics"
	"propie/internal/platform/postgres"
	"propie/internal/platform/redis"
	reservationhandler "propie/internal/reservation/handler"
	reservationmetrics "propie/internal/reservation/metrics"
	reservationmodels "propie/internal/reservation/models"
	reservationsvc "propie/internal/reservation/service"
	reservationstore "propie/internal/reservation/store"
	httptransport "propie/internal/transport/http"
	"propie/pkg/platform/lock"
	"propie/pkg/platform/tx"
)

type stores struct {
	ledger       ledgersvc.Store
	reservations reservationsvc.Store
	claims       claimsvc.Store
	runner       tx.Runner
}

type application struct {
	router     http.Handler
	scheduler  *expiry.Scheduler
	dispatcher *coordinator.Dispatcher
	closers    []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build assembles the object graph. Optional infrastructure falls back to
// in-process implementations when its configuration is empty.
func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*application, error) {
	app := &application{}
	var health []httptransport.HealthCheck

	st, db, err := openStores(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if db != nil {
		app.closers = append(app.closers, func() { _ = db.Close() })
		health = append(health, httptransport.HealthCheck{Name: "database", Check: db.PingContext})
	}

	locker, err := newLocker(ctx, cfg.Redis, log, app, &health)
	if err != nil {
		app.close()
		return nil, err
	}

	notifier, tracker, err := newMessaging(ctx, cfg.Kafka, log, app, &health)
	if err != nil {
		app.close()
		return nil, err
	}

	coordMetrics := coordmetrics.New()
	app.dispatcher = coordinator.NewDispatcher(
		coordinator.WithDispatcherLogger(log),
		coordinator.WithDispatcherMetrics(coordMetrics),
	)
	app.dispatcher.Start()

	coordOpts := []coordinator.Option{coordinator.WithLogger(log)}
	if cfg.Documents.BaseURL != "" {
		registry, err := documents.New(cfg.Documents.BaseURL,
			documents.WithTimeout(cfg.Documents.Timeout),
			documents.WithLogger(log),
		)
		if err != nil {
			app.close()
			return nil, err
		}
		coordOpts = append(coordOpts, coordinator.WithDocumentRegistry(registry))
	}
	coord, err := coordinator.New(notifier, tracker, app.dispatcher, coordOpts...)
	if err != nil {
		app.close()
		return nil, err
	}

	ledger, err := ledgersvc.New(st.ledger,
		ledgersvc.WithTxRunner(st.runner),
		ledgersvc.WithLogger(log),
		ledgersvc.WithMetrics(ledgermetrics.New()),
	)
	if err != nil {
		app.close()
		return nil, err
	}

	reservations, err := reservationsvc.New(st.reservations, ledger,
		reservationsvc.WithTxRunner(st.runner),
		reservationsvc.WithLocker(locker),
		reservationsvc.WithLogger(log),
		reservationsvc.WithMetrics(reservationmetrics.New()),
		reservationsvc.WithObserver(coord),
		reservationsvc.WithTTLPolicy(ttlPolicy(cfg.Expiry)),
	)
	if err != nil {
		app.close()
		return nil, err
	}

	bridge, err := coordinator.NewDepositBridge(reservations,
		coordinator.WithDepositLogger(log),
		coordinator.WithDepositMetrics(coordMetrics),
	)
	if err != nil {
		app.close()
		return nil, err
	}

	claims, err := claimsvc.New(st.claims, ledger,
		claimsvc.WithTxRunner(st.runner),
		claimsvc.WithLocker(locker),
		claimsvc.WithLogger(log),
		claimsvc.WithMetrics(claimmetrics.New()),
		claimsvc.WithDepositApplier(bridge),
		claimsvc.WithObserver(coord),
	)
	if err != nil {
		app.close()
		return nil, err
	}

	app.scheduler, err = expiry.New(reservations, claims,
		expiry.WithInterval(cfg.Expiry.SweepInterval),
		expiry.WithLogger(log),
		expiry.WithMetrics(expirymetrics.New()),
	)
	if err != nil {
		app.close()
		return nil, err
	}

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	app.router = httptransport.NewRouter(httptransport.RouterConfig{
		Logger:      log,
		Validator:   jwttoken.NewAdapter(jwt),
		HTTPMetrics: metrics.NewHTTP(),
		Modules: []httptransport.Registrar{
			reservationhandler.New(reservations, log),
			claimhandler.New(claims, log),
		},
		Expiry:         app.scheduler,
		Health:         health,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	return app, nil
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (stores, *sql.DB, error) {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set; state is kept in memory and lost on restart")
		return stores{
			ledger:       ledgerstore.NewInMemory(),
			reservations: reservationstore.NewInMemory(),
			claims:       claimstore.NewInMemory(),
			runner:       tx.NewMemoryRunner(),
		}, nil, nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return stores{}, nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return stores{}, nil, err
		}
	}
	return stores{
		ledger:       ledgerstore.NewPostgres(db),
		reservations: reservationstore.NewPostgres(db),
		claims:       claimstore.NewPostgres(db),
		runner:       tx.NewSQLRunner(db),
	}, db, nil
}

func newLocker(
	ctx context.Context,
	cfg config.RedisConfig,
	log *slog.Logger,
	app *application,
	health *[]httptransport.HealthCheck,
) (lock.Locker, error) {
	client, err := redis.Connect(ctx, cfg)
	if errors.Is(err, redis.ErrNotConfigured) {
		log.Info("REDIS_URL not set; using in-process entity locks")
		return lock.NewLocalLocker(), nil
	}
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() { _ = client.Close() })
	*health = append(*health, httptransport.HealthCheck{Name: "redis", Check: client.Health})
	return lock.NewRedisLocker(client.Client, lock.WithLogger(log))
}

func newMessaging(
	ctx context.Context,
	cfg config.KafkaConfig,
	log *slog.Logger,
	app *application,
	health *[]httptransport.HealthCheck,
) (ports.Notifier, ports.JourneyTracker, error) {
	if len(cfg.Brokers) == 0 {
		log.Info("KAFKA_BROKERS not set; notifications and journey updates are logged only")
		return notify.NewLogNotifier(log), journey.NewLogTracker(log), nil
	}
	producer, err := kafka.NewProducer(cfg.Brokers)
	if err != nil {
		return nil, nil, err
	}
	app.closers = append(app.closers, producer.Close)
	if err := producer.EnsureTopics(ctx, cfg.NotificationTopic, cfg.JourneyTopic); err != nil {
		return nil, nil, fmt.Errorf("bootstrap kafka topics: %w", err)
	}
	*health = append(*health, httptransport.HealthCheck{Name: "kafka", Check: producer.Health})
	return notify.NewKafkaNotifier(producer, cfg.NotificationTopic),
		journey.NewKafkaTracker(producer, cfg.JourneyTopic),
		nil
}

func ttlPolicy(cfg config.ExpiryConfig) reservationmodels.TTLPolicy {
	return reservationmodels.TTLPolicy{
		reservationmodels.TypeTemporaryHold:    cfg.TemporaryHold,
		reservationmodels.TypePaidReservation:  cfg.PaidReserve,
		reservationmodels.TypeDepositBooking:   cfg.DepositBooking,
		reservationmodels.TypeContractExchange: cfg.ContractExch,
	}
}
