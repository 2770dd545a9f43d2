package trip

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
)

type TripRepo interface {
	Create(ctx context.Context, trip *models.Trip) (*models.Trip, error)
	Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	GetForUpdate(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	Accept(ctx context.Context, tripID, driverProfileID uuid.UUID, at time.Time) error
	Start(ctx context.Context, tripID uuid.UUID, at time.Time) error
	Complete(ctx context.Context, tripID uuid.UUID, c models.TripCompletion, at time.Time) error
	Cancel(ctx context.Context, tripID uuid.UUID, reason string, canceledBy *uuid.UUID, at time.Time) error
	AutoCancel(ctx context.Context, tripID uuid.UUID, reason string, at time.Time) (bool, error)
	ActiveByDriver(ctx context.Context, driverProfileID uuid.UUID) (*models.Trip, error)
	History(ctx context.Context, filter models.TripFilter) ([]*models.Trip, int64, error)
	Statistics(ctx context.Context, driverProfileID uuid.UUID, start, end *time.Time) (*models.TripStatistics, error)
	StaleRequested(ctx context.Context, cutoff time.Time) ([]*models.Trip, error)
	CountByDate(ctx context.Context, date time.Time) (int, error)
}

type DriverRepo interface {
	Get(ctx context.Context, profileID uuid.UUID) (*models.DriverProfile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.DriverProfile, error)
	GetByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.DriverProfile, error)
	Patch(ctx context.Context, userID uuid.UUID, patch models.DriverPatch) error
	IncrementCompleted(ctx context.Context, profileID uuid.UUID, earningsCents int64) error
}

type VehicleRepo interface {
	ActiveByDriver(ctx context.Context, driverProfileID uuid.UUID) (*models.Vehicle, error)
}

type PickupRepo interface {
	UpdateStatus(ctx context.Context, tripID, driverProfileID uuid.UUID, from, to types.PickupStatus, reason string) error
	CloseAllForTrip(ctx context.Context, tripID uuid.UUID) error
}

type UserRepo interface {
	FindOrCreatePassenger(ctx context.Context, phone, firstName, lastName string) (*models.User, bool, error)
}

// Dispatcher is the broadcast side: started for fresh dispatcher trips,
// torn down when a requested trip is canceled by an actor.
type Dispatcher interface {
	Dispatch(ctx context.Context, trip *models.Trip)
	CancelBroadcast(tripID uuid.UUID)
}

type Hub interface {
	SendTo(id uuid.UUID, msg map[string]any) error
}

type Notifier interface {
	TripCreated(ctx context.Context, trip *models.Trip)
	TripAccepted(ctx context.Context, trip *models.Trip)
	TripCompleted(ctx context.Context, trip *models.Trip)
	TripCanceled(ctx context.Context, trip *models.Trip, reason string)
	TripAutoCanceled(ctx context.Context, trip *models.Trip)
}

type Publisher interface {
	PublishStatusChanged(ctx context.Context, ev models.TripStatusChangedEvent) error
}
