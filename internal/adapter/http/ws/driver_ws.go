package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/addisride/dispatch/pkg/logger"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
	"github.com/addisride/dispatch/pkg/metrics"
	"github.com/addisride/dispatch/pkg/wshub"
)

const (
	serviceName = "dispatch"

	// authWindow bounds how long an upgraded socket may sit unauthenticated
	// before we drop it.
	authWindow = 5 * time.Second
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type Presence interface {
	Connect(ctx context.Context, userID uuid.UUID, socketID string) (*models.DriverProfile, error)
	Disconnect(ctx context.Context, userID uuid.UUID) error
	UpdateLocation(ctx context.Context, userID uuid.UUID, loc models.GeoPoint) (time.Time, error)
	SetAvailability(ctx context.Context, userID uuid.UUID, available bool, loc *models.GeoPoint) (*models.DriverProfile, error)
}

// OfferResponder is the dispatch-side half of the offer conversation:
// accept races through here, declines advance the rotation.
type OfferResponder interface {
	Accept(ctx context.Context, tripID, driverUserID uuid.UUID) (*models.Trip, error)
	Decline(ctx context.Context, tripID, driverUserID uuid.UUID, reason string)
}

// DriverHandler owns the driver websocket endpoint: upgrade, auth,
// presence registration and the inbound event loop.
type DriverHandler struct {
	hub      *wshub.ConnectionHub
	auth     Authenticator
	presence Presence
	offers   OfferResponder
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewDriverHandler(hub *wshub.ConnectionHub, auth Authenticator, presence Presence, offers OfferResponder, log logger.Logger) *DriverHandler {
	return &DriverHandler{
		hub:      hub,
		auth:     auth,
		presence: presence,
		offers:   offers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// HandleDriverWS godoc
//
//	@Summary		Driver websocket
//	@Description	Upgrades to a websocket. Authenticate with an Authorization header or a first `auth` event carrying the token.
//	@Tags			ws
//	@Router			/ws/driver [get]
func (h *DriverHandler) HandleDriverWS(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "driver_ws")

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(ctx, "websocket upgrade failed", "err", err.Error())
		return
	}

	user, err := h.authenticate(ctx, r, raw)
	if err != nil {
		_ = raw.WriteJSON(models.ErrorPayload("authentication failed"))
		_ = raw.Close()
		return
	}
	if user.Role != types.DriverRole {
		_ = raw.WriteJSON(models.ErrorPayload("driver credentials required"))
		_ = raw.Close()
		return
	}

	ctx = wrap.WithUserID(ctx, user.ID.String())

	// Presence and hub state must not die with the HTTP request context.
	connCtx := context.WithoutCancel(ctx)

	conn := wshub.NewConn(connCtx, user.ID, raw)

	if _, err := h.presence.Connect(connCtx, user.ID, conn.SocketID()); err != nil {
		h.log.Error(ctx, "driver connect failed", err)
		_ = raw.WriteJSON(models.ErrorPayload("connection setup failed"))
		_ = raw.Close()
		return
	}

	if err := h.hub.Add(conn); err != nil {
		h.log.Error(ctx, "hub registration failed", err)
		_ = h.presence.Disconnect(connCtx, user.ID)
		_ = raw.Close()
		return
	}

	metrics.WebSocketConnectionsGauge.WithLabelValues(serviceName).Inc()
	defer metrics.WebSocketConnectionsGauge.WithLabelValues(serviceName).Dec()

	_ = conn.Send(map[string]any{
		"event":    models.EventConnected,
		"user_id":  user.ID.String(),
		"userId":   user.ID.String(),
		"userType": "driver",
	})

	h.log.Info(ctx, "driver websocket connected", "socket_id", conn.SocketID())

	if err := conn.Listen(func(msg map[string]any) error {
		h.route(connCtx, user.ID, conn, msg)
		return nil
	}); err != nil {
		h.log.Debug(ctx, "driver websocket closed", "reason", err.Error())
	}

	// A reconnect may have replaced this socket in the hub already; the
	// socket id guard makes teardown a no-op in that case.
	_ = h.hub.Delete(user.ID, conn.SocketID())
	if err := h.presence.Disconnect(connCtx, user.ID); err != nil {
		h.log.Warn(ctx, "driver disconnect cleanup failed", "err", err.Error())
	}
}

// authenticate resolves the driver identity either from the upgrade
// request's Authorization header or from a first `auth` event sent
// within the auth window.
func (h *DriverHandler) authenticate(ctx context.Context, r *http.Request, raw *websocket.Conn) (*models.User, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		return h.auth.Authenticate(ctx, token)
	}

	_ = raw.SetReadDeadline(time.Now().Add(authWindow))
	defer raw.SetReadDeadline(time.Time{})

	var msg map[string]any
	if err := raw.ReadJSON(&msg); err != nil {
		return nil, err
	}
	if readString(msg, "event", "type") != models.EventAuth {
		return nil, types.ErrUnauthorized
	}

	token := strings.TrimPrefix(readString(msg, "token", "token"), "Bearer ")
	return h.auth.Authenticate(ctx, token)
}

func (h *DriverHandler) route(ctx context.Context, driverUserID uuid.UUID, conn *wshub.Conn, msg map[string]any) {
	switch event := readString(msg, "event", "type"); event {
	case models.EventLocationUpdate:
		h.handleLocationUpdate(ctx, driverUserID, conn, msg)
	case models.EventSetAvailability:
		h.handleSetAvailability(ctx, driverUserID, conn, msg)
	case models.EventTripAccept:
		h.handleTripAccept(ctx, driverUserID, conn, msg)
	case models.EventTripDecline:
		h.handleTripDecline(ctx, driverUserID, msg)
	default:
		_ = conn.Send(models.ErrorPayload("unknown event: " + event))
	}
}

func (h *DriverHandler) handleLocationUpdate(ctx context.Context, driverUserID uuid.UUID, conn *wshub.Conn, msg map[string]any) {
	loc, ok := readLocation(msg)
	if !ok {
		_ = conn.Send(models.ErrorPayload("location_update requires lat and lng"))
		return
	}

	at, err := h.presence.UpdateLocation(ctx, driverUserID, loc)
	if err != nil {
		h.log.Warn(ctx, "location update failed", "err", err.Error())
		_ = conn.Send(models.ErrorPayload("failed to update location"))
		return
	}

	_ = conn.Send(map[string]any{
		"event":     models.EventLocationAck,
		"timestamp": at.Format(time.RFC3339),
	})
}

func (h *DriverHandler) handleSetAvailability(ctx context.Context, driverUserID uuid.UUID, conn *wshub.Conn, msg map[string]any) {
	available, ok := readBool(msg, "available", "isAvailable")
	if !ok {
		_ = conn.Send(models.ErrorPayload("set_availability requires an available flag"))
		return
	}

	var loc *models.GeoPoint
	if point, ok := readLocation(msg); ok {
		loc = &point
	}

	profile, err := h.presence.SetAvailability(ctx, driverUserID, available, loc)
	if err != nil {
		h.log.Warn(ctx, "availability change failed", "err", err.Error())
		_ = conn.Send(models.ErrorPayload("failed to change availability"))
		return
	}

	_ = conn.Send(map[string]any{
		"event":       models.EventAvailabilityAck,
		"available":   profile.IsAvailable,
		"isAvailable": profile.IsAvailable,
	})
}

func (h *DriverHandler) handleTripAccept(ctx context.Context, driverUserID uuid.UUID, conn *wshub.Conn, msg map[string]any) {
	tripID, ok := readTripID(msg)
	if !ok {
		_ = conn.Send(models.ErrorPayload("trip_accept requires a valid trip_id"))
		return
	}

	trip, err := h.offers.Accept(ctx, tripID, driverUserID)
	if err != nil {
		// Lost the race or the offer already moved on; tell the driver and
		// keep the connection alive.
		_ = conn.Send(models.ErrorPayload("trip no longer available"))
		return
	}

	_ = conn.Send(models.TripStatusChangedPayload(models.TripStatusChangedEvent{
		TripID:    trip.ID,
		DriverID:  trip.DriverID,
		Status:    trip.Status,
		Timestamp: time.Now().UTC(),
	}))
}

func (h *DriverHandler) handleTripDecline(ctx context.Context, driverUserID uuid.UUID, msg map[string]any) {
	tripID, ok := readTripID(msg)
	if !ok {
		return
	}

	reason := readString(msg, "reason", "reason")
	if reason == "" {
		reason = "declined by driver"
	}

	h.offers.Decline(ctx, tripID, driverUserID, reason)
}
