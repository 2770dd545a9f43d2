package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/addisride/dispatch/config"
	"github.com/addisride/dispatch/internal/adapter/http/handler"
	"github.com/addisride/dispatch/internal/adapter/http/middleware"
	"github.com/addisride/dispatch/internal/adapter/http/ws"
	"github.com/addisride/dispatch/pkg/logger"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
)

const serviceName = "dispatch"

type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	log  logger.Logger
}

type handlers struct {
	trip   *handler.TripHandler
	health *handler.HealthHandler
	driver *ws.DriverHandler
}

func New(
	cfg config.Config,
	trip *handler.TripHandler,
	health *handler.HealthHandler,
	driverWS *ws.DriverHandler,
	authService middleware.AuthService,
	log logger.Logger,
) *API {
	api := &API{
		mux: http.NewServeMux(),
		routes: &handlers{
			trip:   trip,
			health: health,
			driver: driverWS,
		},
		m:    middleware.NewMiddleware(authService, log),
		addr: fmt.Sprintf("0.0.0.0:%s", cfg.HTTP.Port),
		log:  log,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:         api.addr,
		Handler:      api.withMiddleware(),
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  time.Minute,
		WriteTimeout: 0, // websocket connections hold the writer open
	}

	return api
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

// withMiddleware applies the global middleware chain to the mux.
func (a *API) withMiddleware() http.Handler {
	metrics := a.m.Metrics(serviceName)
	return a.m.Recover(a.m.RequestID(a.m.Logging(metrics(a.m.Auth(a.mux)))))
}
