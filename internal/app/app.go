package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/addisride/dispatch/config"
	"github.com/addisride/dispatch/internal/adapter/http/handler"
	"github.com/addisride/dispatch/internal/adapter/http/server"
	"github.com/addisride/dispatch/internal/adapter/http/ws"
	repo "github.com/addisride/dispatch/internal/adapter/postgres"
	rabbitadapter "github.com/addisride/dispatch/internal/adapter/rabbit"
	"github.com/addisride/dispatch/internal/service/auth"
	"github.com/addisride/dispatch/internal/service/dispatch"
	"github.com/addisride/dispatch/internal/service/notify"
	"github.com/addisride/dispatch/internal/service/presence"
	"github.com/addisride/dispatch/internal/service/spatial"
	"github.com/addisride/dispatch/internal/service/trip"
	"github.com/addisride/dispatch/pkg/logger"
	"github.com/addisride/dispatch/pkg/postgres"
	"github.com/addisride/dispatch/pkg/rabbit"
	"github.com/addisride/dispatch/pkg/trm"
	"github.com/addisride/dispatch/pkg/wshub"
)

// App assembles and runs the dispatch service: storage, broker,
// websocket hub, trip lifecycle and the offer broadcast controller.
type App struct {
	postgresDB *postgres.PostgreDB
	broker     *rabbit.RabbitMQ
	hub        *wshub.ConnectionHub
	controller *dispatch.Controller
	httpServer *server.API

	cfg config.Config
	log logger.Logger
}

func NewApplication(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	postgresDB, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "failed to setup database", err)
		return nil, err
	}

	broker, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		log.Error(ctx, "failed to connect to rabbitmq", err)
		return nil, err
	}

	publisher, err := rabbitadapter.NewTripEventPublisher(broker)
	if err != nil {
		log.Error(ctx, "failed to setup trip event publisher", err)
		return nil, err
	}

	// Repositories
	tripRepo := repo.NewTripRepo(postgresDB.Pool)
	driverRepo := repo.NewDriverRepo(postgresDB.Pool)
	vehicleRepo := repo.NewVehicleRepo(postgresDB.Pool)
	pickupRepo := repo.NewPickupRepo(postgresDB.Pool)
	userRepo := repo.NewUserRepo(postgresDB.Pool)
	notificationRepo := repo.NewNotificationRepo(postgresDB.Pool)
	txManager := trm.New(postgresDB.Pool)

	// Services
	hub := wshub.NewConnHub(log)
	index := spatial.NewIndex(driverRepo, log)
	sink := notify.NewSink(notificationRepo, log)
	presenceService := presence.NewService(driverRepo, log)
	tokenService := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, userRepo, log)

	tripService := trip.NewService(
		tripRepo,
		driverRepo,
		vehicleRepo,
		pickupRepo,
		userRepo,
		txManager,
		hub,
		sink,
		publisher,
		log,
	)

	controller := dispatch.NewController(
		index,
		hub,
		tripRepo,
		pickupRepo,
		driverRepo,
		sink,
		publisher,
		dispatch.NewSystemClock(),
		log,
	)

	// The lifecycle service and the broadcast controller reference each
	// other; tie them together once here.
	controller.SetAcceptor(tripService)
	tripService.SetDispatcher(controller)
	presenceService.SetOfferRouter(controller)

	// Handlers
	tripHandler := handler.NewTripHandler(tripService, log)
	healthHandler := handler.NewHealthHandler(postgresDB, broker, hub)
	driverWS := ws.NewDriverHandler(hub, tokenService, presenceService, controller, log)

	httpServer := server.New(cfg, tripHandler, healthHandler, driverWS, tokenService, log)

	// Requested trips whose broadcast died with a previous process are
	// swept before we accept traffic.
	if err := tripService.ReconcileStale(ctx); err != nil {
		log.Warn(ctx, "stale trip reconciliation failed", "err", err.Error())
	}

	return &App{
		postgresDB: postgresDB,
		broker:     broker,
		hub:        hub,
		controller: controller,
		httpServer: httpServer,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.httpServer.Run(ctx, errCh)
	defer func() {
		a.close(ctx)
		a.log.Info(ctx, "dispatch service closed")
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info(ctx, "dispatch service started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		a.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (a *App) close(ctx context.Context) {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Warn(ctx, "failed to gracefully close http server", "error", err.Error())
		}
	}

	if a.controller != nil {
		a.controller.Shutdown()
	}

	if a.hub != nil {
		a.hub.Close()
	}

	if a.broker != nil {
		if err := a.broker.Close(ctx); err != nil {
			a.log.Warn(ctx, "failed to close rabbitmq connection", "error", err.Error())
		}
	}

	if a.postgresDB != nil && a.postgresDB.Pool != nil {
		a.postgresDB.Pool.Close()
	}
}
