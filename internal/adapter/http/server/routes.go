package server

import (
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// setupRoutes wires every endpoint onto the mux.
func (a *API) setupRoutes() {
	mux, m := a.mux, a.m

	// System
	mux.HandleFunc("GET /health", a.routes.health.Healthcheck)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Trip creation
	mux.Handle("POST /trips", m.RequireRoles(a.routes.trip.CreateDriverTrip, types.DriverRole))                                        // Driver starts a walk-up trip
	mux.Handle("POST /trips/dispatcher", m.RequireRoles(a.routes.trip.CreateDispatcherTrip, types.DispatcherRole, types.AdminRole))    // Dispatcher requests a trip for a passenger

	// Driver trip views
	mux.Handle("GET /trips/active", m.RequireRoles(a.routes.trip.ActiveTrip, types.DriverRole))
	mux.Handle("GET /trips/history", m.RequireRoles(a.routes.trip.TripHistory, types.DriverRole))
	mux.Handle("GET /trips/statistics", m.RequireRoles(a.routes.trip.TripStatistics, types.DriverRole))
	mux.Handle("GET /trips/{id}", m.RequireRoles(a.routes.trip.GetTrip, types.DriverRole, types.DispatcherRole, types.AdminRole))

	// Trip lifecycle
	mux.Handle("PUT /trips/{id}/start", m.RequireRoles(a.routes.trip.StartTrip, types.DriverRole))
	mux.Handle("PUT /trips/{id}/cancel", m.RequireRoles(a.routes.trip.CancelTrip, types.DriverRole, types.DispatcherRole, types.AdminRole))
	mux.Handle("PUT /trips/{id}/complete", m.RequireRoles(a.routes.trip.CompleteTrip, types.DriverRole))

	// WebSocket connection for drivers; authenticates on the socket itself
	mux.HandleFunc("GET /ws/driver", a.routes.driver.HandleDriverWS)
}
