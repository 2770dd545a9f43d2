package presence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/pkg/logger"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
	"github.com/addisride/dispatch/pkg/metrics"
)

const serviceName = "dispatch"

type DriverRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.DriverProfile, error)
	Patch(ctx context.Context, userID uuid.UUID, patch models.DriverPatch) error
	UpdateLocation(ctx context.Context, userID uuid.UUID, loc models.GeoPoint, at time.Time) error
	CountOnline(ctx context.Context) (int64, error)
}

// OfferRouter receives presence transitions the dispatch rotation cares
// about. It is wired once at boot; the hub never talks to the dispatch
// controller directly.
type OfferRouter interface {
	HandleDisconnect(driverUserID uuid.UUID)
}

// Service owns driver presence bookkeeping: online/offline transitions,
// location ingestion and the availability flag that feeds candidate
// discovery.
type Service struct {
	drivers DriverRepo
	router  OfferRouter
	log     logger.Logger
}

func NewService(drivers DriverRepo, log logger.Logger) *Service {
	return &Service{drivers: drivers, log: log}
}

// SetOfferRouter wires the dispatch side after construction, breaking the
// dependency cycle between presence and dispatch.
func (s *Service) SetOfferRouter(router OfferRouter) {
	s.router = router
}

// Connect marks the driver online and records the socket handle.
func (s *Service) Connect(ctx context.Context, userID uuid.UUID, socketID string) (*models.DriverProfile, error) {
	ctx = wrap.WithAction(wrap.WithUserID(ctx, userID.String()), "driver_connect")

	online := true
	if err := s.drivers.Patch(ctx, userID, models.DriverPatch{
		IsOnline: &online,
		SocketID: &socketID,
	}); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	driver, err := s.drivers.GetByUserID(ctx, userID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	s.log.Info(ctx, "driver connected", "socket_id", socketID)
	s.refreshOnlineGauge(ctx)

	return driver, nil
}

// Disconnect clears presence state. Loss of the connection is
// authoritative: the driver stops receiving offers immediately, and any
// open offer for this driver is rotated onward.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID) error {
	ctx = wrap.WithAction(wrap.WithUserID(ctx, userID.String()), "driver_disconnect")

	offline := false
	if err := s.drivers.Patch(ctx, userID, models.DriverPatch{
		IsOnline:      &offline,
		IsAvailable:   &offline,
		ClearSocketID: true,
	}); err != nil {
		return wrap.Error(ctx, err)
	}

	if s.router != nil {
		s.router.HandleDisconnect(userID)
	}

	s.log.Info(ctx, "driver disconnected")
	s.refreshOnlineGauge(ctx)

	return nil
}

// UpdateLocation persists a location sample stamped with the server
// clock. Out-of-order samples are dropped by the repository's monotonic
// guard, so last-write-wins holds under bursts.
func (s *Service) UpdateLocation(ctx context.Context, userID uuid.UUID, loc models.GeoPoint) (time.Time, error) {
	ctx = wrap.WithAction(wrap.WithUserID(ctx, userID.String()), "location_update")

	now := time.Now().UTC()
	if err := s.drivers.UpdateLocation(ctx, userID, loc, now); err != nil {
		return time.Time{}, wrap.Error(ctx, err)
	}

	return now, nil
}

// SetAvailability toggles the availability flag, optionally applying an
// inline location sample first. Returns the resulting profile state.
func (s *Service) SetAvailability(ctx context.Context, userID uuid.UUID, available bool, loc *models.GeoPoint) (*models.DriverProfile, error) {
	ctx = wrap.WithAction(wrap.WithUserID(ctx, userID.String()), "set_availability")

	if loc != nil {
		if _, err := s.UpdateLocation(ctx, userID, *loc); err != nil {
			return nil, err
		}
	}

	if err := s.drivers.Patch(ctx, userID, models.DriverPatch{
		IsAvailable: &available,
	}); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	driver, err := s.drivers.GetByUserID(ctx, userID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	s.log.Debug(ctx, "availability changed", "available", available)

	return driver, nil
}

func (s *Service) refreshOnlineGauge(ctx context.Context) {
	count, err := s.drivers.CountOnline(ctx)
	if err != nil {
		s.log.Warn(ctx, "failed to count online drivers", "err", err.Error())
		return
	}
	metrics.DriversOnlineGauge.WithLabelValues(serviceName).Set(float64(count))
}
