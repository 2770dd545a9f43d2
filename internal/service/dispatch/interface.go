package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
)

// SpatialIndex finds candidate drivers near a pickup point.
type SpatialIndex interface {
	FindNearby(ctx context.Context, lat, lng, radiusKm float64, classID *int) []uuid.UUID
}

// Hub is the presence side the controller pushes offers through.
type Hub interface {
	IsConnected(id uuid.UUID) bool
	SendTo(id uuid.UUID, msg map[string]any) error
}

// TripAcceptor runs the transactional assignment of a driver to a trip.
// Implemented by the trip lifecycle service.
type TripAcceptor interface {
	Accept(ctx context.Context, tripID, driverUserID uuid.UUID) (*models.Trip, error)
}

type TripRepo interface {
	Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	AutoCancel(ctx context.Context, tripID uuid.UUID, reason string, at time.Time) (bool, error)
}

type PickupRepo interface {
	Create(ctx context.Context, p *models.DriverPickup) error
	UpdateStatus(ctx context.Context, tripID, driverProfileID uuid.UUID, from, to types.PickupStatus, reason string) error
	CloseAllForTrip(ctx context.Context, tripID uuid.UUID) error
}

type DriverRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.DriverProfile, error)
}

// Notifier persists dispatcher-facing lifecycle notifications.
type Notifier interface {
	TripAutoCanceled(ctx context.Context, trip *models.Trip)
}

// Publisher fans lifecycle transitions out to the message broker.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, ev models.TripStatusChangedEvent) error
}
