package handler

import (
	"net/http"

	"github.com/addisride/dispatch/pkg/postgres"
	"github.com/addisride/dispatch/pkg/rabbit"
)

// ConnCounter reports the number of live driver websocket connections.
type ConnCounter interface {
	Count() int
}

type HealthHandler struct {
	db     *postgres.PostgreDB
	broker *rabbit.RabbitMQ
	hub    ConnCounter
}

func NewHealthHandler(db *postgres.PostgreDB, broker *rabbit.RabbitMQ, hub ConnCounter) *HealthHandler {
	return &HealthHandler{db: db, broker: broker, hub: hub}
}

// Healthcheck godoc
//
//	@Summary	Service health
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Failure	503	{object}	map[string]any
//	@Router		/health [get]
func (h *HealthHandler) Healthcheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := envelope{
		"database": "up",
		"rabbitmq": "up",
	}

	if err := h.db.Pool.Ping(r.Context()); err != nil {
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	}
	if h.broker.IsConnectionClosed() {
		checks["rabbitmq"] = "down"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, envelope{
		"status":                statusWord(status),
		"checks":                checks,
		"websocket_connections": h.hub.Count(),
	}, nil)
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "available"
	}
	return "degraded"
}
