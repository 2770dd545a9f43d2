package handler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/service/trip"
	"github.com/addisride/dispatch/pkg/logger"
)

type TripService interface {
	CreateDriverTrip(ctx context.Context, driverUserID uuid.UUID, in trip.DriverTripInput) (*models.Trip, error)
	CreateDispatcherTrip(ctx context.Context, dispatcher *models.User, in trip.DispatcherTripInput) (*models.Trip, error)
	Active(ctx context.Context, driverUserID uuid.UUID) (*models.Trip, error)
	History(ctx context.Context, driverUserID uuid.UUID, filter models.TripFilter) ([]*models.Trip, int64, error)
	Statistics(ctx context.Context, driverUserID uuid.UUID, start, end *time.Time) (*models.TripStatistics, error)
	Get(ctx context.Context, tripID uuid.UUID, actor *models.User) (*models.Trip, error)
	Start(ctx context.Context, tripID, driverUserID uuid.UUID) (*models.Trip, error)
	Cancel(ctx context.Context, tripID uuid.UUID, actor *models.User, reason string) (*models.Trip, error)
	Complete(ctx context.Context, tripID, driverUserID uuid.UUID, in trip.CompleteInput) (*models.Trip, error)
}

type TripHandler struct {
	trips TripService
	log   logger.Logger
}

func NewTripHandler(trips TripService, log logger.Logger) *TripHandler {
	return &TripHandler{
		trips: trips,
		log:   log,
	}
}
