package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/addisride/dispatch/pkg/logger"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
)

type NotificationRepo interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Sink persists human-readable lifecycle notifications for the
// dispatcher who filed the trip. Persistence is best-effort: a failed
// notification never fails the transition that produced it.
type Sink struct {
	repo NotificationRepo
	log  logger.Logger
}

func NewSink(repo NotificationRepo, log logger.Logger) *Sink {
	return &Sink{repo: repo, log: log}
}

func (s *Sink) TripCreated(ctx context.Context, trip *models.Trip) {
	s.persist(ctx, trip, types.NotifyTripCreated, "normal",
		"Trip created",
		fmt.Sprintf("Trip %s was created and is being dispatched to nearby drivers", trip.Reference),
	)
}

func (s *Sink) TripAccepted(ctx context.Context, trip *models.Trip) {
	s.persist(ctx, trip, types.NotifyTripAccepted, "normal",
		"Driver assigned",
		fmt.Sprintf("Trip %s was accepted by a driver", trip.Reference),
	)
}

func (s *Sink) TripCompleted(ctx context.Context, trip *models.Trip) {
	s.persist(ctx, trip, types.NotifyTripCompleted, "normal",
		"Trip completed",
		fmt.Sprintf("Trip %s was completed", trip.Reference),
	)
}

func (s *Sink) TripCanceled(ctx context.Context, trip *models.Trip, reason string) {
	s.persist(ctx, trip, types.NotifyTripCanceled, "normal",
		"Trip canceled",
		fmt.Sprintf("Trip %s was canceled: %s", trip.Reference, reason),
	)
}

func (s *Sink) TripAutoCanceled(ctx context.Context, trip *models.Trip) {
	s.persist(ctx, trip, types.NotifyTripAutoCanceled, "high",
		"Trip auto-canceled",
		fmt.Sprintf("Trip %s: %s", trip.Reference, types.CancelReasonNoDrivers),
	)
}

func (s *Sink) persist(ctx context.Context, trip *models.Trip, category, priority, title, body string) {
	// only dispatcher-created trips have someone to notify
	if trip.DispatcherID == nil {
		return
	}

	tripID := trip.ID
	n := &models.Notification{
		ID:          uuid.New(),
		UserID:      *trip.DispatcherID,
		Title:       title,
		Body:        body,
		Category:    category,
		ReferenceID: &tripID,
		Priority:    priority,
		Metadata: map[string]any{
			"trip_reference": trip.Reference,
			"trip_status":    string(trip.Status),
		},
	}

	if err := s.repo.Create(ctx, n); err != nil {
		s.log.Error(wrap.WithTripID(wrap.WithAction(ctx, "persist_notification"), trip.ID.String()),
			"failed to persist dispatcher notification", err)
	}
}
