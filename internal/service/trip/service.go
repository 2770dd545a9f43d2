package trip

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/addisride/dispatch/pkg/logger"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
	"github.com/addisride/dispatch/pkg/metrics"
	"github.com/addisride/dispatch/pkg/trm"
)

const serviceName = "dispatch"

// Service applies trip lifecycle transitions with their coupled driver
// profile updates, and owns trip creation for both entry paths.
type Service struct {
	trips     TripRepo
	drivers   DriverRepo
	vehicles  VehicleRepo
	pickups   PickupRepo
	users     UserRepo
	tx        trm.TxManager
	hub       Hub
	notifier  Notifier
	publisher Publisher
	log       logger.Logger

	dispatcher Dispatcher
}

func NewService(
	trips TripRepo,
	drivers DriverRepo,
	vehicles VehicleRepo,
	pickups PickupRepo,
	users UserRepo,
	tx trm.TxManager,
	hub Hub,
	notifier Notifier,
	publisher Publisher,
	log logger.Logger,
) *Service {
	return &Service{
		trips:     trips,
		drivers:   drivers,
		vehicles:  vehicles,
		pickups:   pickups,
		users:     users,
		tx:        tx,
		hub:       hub,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
	}
}

// SetDispatcher wires the broadcast controller after construction.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// DriverTripInput is a driver self-created trip: immediately active,
// never broadcast.
type DriverTripInput struct {
	PickupAddress  string
	Pickup         models.GeoPoint
	DropoffAddress string
	Dropoff        models.GeoPoint

	PassengerPhone string
	PassengerName  string

	EstimatedDistanceKm  float64
	EstimatedDurationMin int
	EstimatedFareCents   int64

	Kind          types.TripKind
	PaymentMethod string
}

// DispatcherTripInput is an operator-filed trip that enters dispatch.
type DispatcherTripInput struct {
	PickupAddress  string
	Pickup         models.GeoPoint
	DropoffAddress string
	Dropoff        models.GeoPoint

	PassengerPhone     string
	PassengerFirstName string
	PassengerLastName  string

	VehicleClassID *int

	EstimatedDistanceKm  float64
	EstimatedDurationMin int
	EstimatedFareCents   int64

	Kind          types.TripKind
	PaymentMethod string

	Instructions  string
	RecipientName string
	PackageInfo   string
}

// CompleteInput carries client-supplied actuals; nil fields fall back to
// the trip's estimates and the derived fare.
type CompleteInput struct {
	ActualDistanceKm  *float64
	ActualDurationMin *int
	FinalFare         *float64
}

// CreateDriverTrip creates a trip already in progress for the calling
// driver. It bypasses dispatch entirely: no offers, no auto-cancel.
func (s *Service) CreateDriverTrip(ctx context.Context, driverUserID uuid.UUID, in DriverTripInput) (*models.Trip, error) {
	ctx = wrap.WithAction(wrap.WithUserID(ctx, driverUserID.String()), "create_driver_trip")

	driver, err := s.drivers.GetByUserID(ctx, driverUserID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	now := time.Now().UTC()
	var trip *models.Trip

	txErr := s.tx.Do(ctx, func(txCtx context.Context) error {
		first, last := splitName(in.PassengerName)
		passenger, _, err := s.users.FindOrCreatePassenger(txCtx, in.PassengerPhone, first, last)
		if err != nil {
			return err
		}

		ref, err := s.reference(txCtx, now)
		if err != nil {
			return err
		}

		driverID := driver.ID
		startedAt := now
		trip = &models.Trip{
			ID:          uuid.New(),
			Reference:   ref,
			PassengerID: passenger.ID,
			DriverID:    &driverID,
			Status:      types.TripInProgress,
			Kind:        kindOrStandard(in.Kind),

			PickupAddress:  in.PickupAddress,
			Pickup:         in.Pickup,
			DropoffAddress: in.DropoffAddress,
			Dropoff:        in.Dropoff,

			EstimatedDistanceKm:  in.EstimatedDistanceKm,
			EstimatedDurationMin: in.EstimatedDurationMin,
			EstimatedFareCents:   in.EstimatedFareCents,

			PaymentMethod: paymentOrCash(in.PaymentMethod),
			PaymentStatus: types.PaymentPending,

			StartedAt: &startedAt,
		}

		if vehicle, err := s.vehicles.ActiveByDriver(txCtx, driver.ID); err == nil {
			vehicleID := vehicle.ID
			classID := vehicle.ClassID
			trip.VehicleID = &vehicleID
			trip.VehicleClassID = &classID
		} else if !errors.Is(err, types.ErrVehicleNotFound) {
			return err
		}

		if _, err := s.trips.Create(txCtx, trip); err != nil {
			return err
		}

		tripID := trip.ID
		available := false
		return s.drivers.Patch(txCtx, driverUserID, models.DriverPatch{
			CurrentTripID: &tripID,
			IsAvailable:   &available,
		})
	})
	if txErr != nil {
		return nil, wrap.Error(ctx, txErr)
	}

	metrics.TripsTotal.WithLabelValues(serviceName, string(types.TripInProgress)).Inc()
	s.publishStatus(ctx, trip.ID, trip.DriverID, types.TripInProgress)
	s.log.Info(wrap.WithTripID(ctx, trip.ID.String()), "driver trip created", "reference", trip.Reference)

	return trip, nil
}

// CreateDispatcherTrip files a requested trip and hands it to the
// dispatch controller.
func (s *Service) CreateDispatcherTrip(ctx context.Context, dispatcher *models.User, in DispatcherTripInput) (*models.Trip, error) {
	ctx = wrap.WithAction(wrap.WithUserID(ctx, dispatcher.ID.String()), "create_dispatcher_trip")

	now := time.Now().UTC()
	var trip *models.Trip

	txErr := s.tx.Do(ctx, func(txCtx context.Context) error {
		passenger, created, err := s.users.FindOrCreatePassenger(txCtx, in.PassengerPhone, in.PassengerFirstName, in.PassengerLastName)
		if err != nil {
			return err
		}

		ref, err := s.reference(txCtx, now)
		if err != nil {
			return err
		}

		dispatcherID := dispatcher.ID
		trip = &models.Trip{
			ID:          uuid.New(),
			Reference:   ref,
			PassengerID: passenger.ID,
			Status:      types.TripRequested,
			Kind:        kindOrStandard(in.Kind),

			PickupAddress:  in.PickupAddress,
			Pickup:         in.Pickup,
			DropoffAddress: in.DropoffAddress,
			Dropoff:        in.Dropoff,

			VehicleClassID: in.VehicleClassID,

			EstimatedDistanceKm:  in.EstimatedDistanceKm,
			EstimatedDurationMin: in.EstimatedDurationMin,
			EstimatedFareCents:   in.EstimatedFareCents,

			PaymentMethod: paymentOrCash(in.PaymentMethod),
			PaymentStatus: types.PaymentPending,

			Instructions:  in.Instructions,
			RecipientName: in.RecipientName,
			PackageInfo:   in.PackageInfo,

			DispatcherID:   &dispatcherID,
			IsNewPassenger: created,

			PassengerPhone: passenger.Phone,
			PassengerName:  passenger.DisplayName(),
		}

		_, err = s.trips.Create(txCtx, trip)
		return err
	})
	if txErr != nil {
		return nil, wrap.Error(ctx, txErr)
	}

	metrics.TripsTotal.WithLabelValues(serviceName, string(types.TripRequested)).Inc()
	s.notifier.TripCreated(ctx, trip)
	s.log.Info(wrap.WithTripID(ctx, trip.ID.String()), "dispatcher trip created", "reference", trip.Reference)

	go s.dispatcher.Dispatch(context.WithoutCancel(ctx), trip)

	return trip, nil
}

// Accept assigns a driver to a requested trip. The row lock plus the
// status and driver guards make the first committed accept the only one.
func (s *Service) Accept(ctx context.Context, tripID, driverUserID uuid.UUID) (*models.Trip, error) {
	ctx = wrap.WithAction(wrap.WithTripID(wrap.WithUserID(ctx, driverUserID.String()), tripID.String()), "accept_trip")

	var trip *models.Trip
	now := time.Now().UTC()

	txErr := s.tx.Do(ctx, func(txCtx context.Context) error {
		t, err := s.trips.GetForUpdate(txCtx, tripID)
		if err != nil {
			return err
		}

		if t.Status != types.TripRequested || t.DriverID != nil {
			return types.ErrTripNotAvailable
		}

		driver, err := s.drivers.GetByUserIDForUpdate(txCtx, driverUserID)
		if err != nil {
			return err
		}

		if err := s.trips.Accept(txCtx, tripID, driver.ID, now); err != nil {
			return err
		}

		available := false
		if err := s.drivers.Patch(txCtx, driverUserID, models.DriverPatch{
			CurrentTripID: &tripID,
			IsAvailable:   &available,
		}); err != nil {
			return err
		}

		driverID := driver.ID
		t.Status = types.TripAccepted
		t.DriverID = &driverID
		t.AcceptedAt = &now
		trip = t

		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, types.ErrTripNotAvailable) {
			return nil, types.ErrTripNotAvailable
		}
		return nil, wrap.Error(ctx, txErr)
	}

	metrics.TripsTotal.WithLabelValues(serviceName, string(types.TripAccepted)).Inc()
	s.publishStatus(ctx, trip.ID, trip.DriverID, types.TripAccepted)
	s.sendStatusToDriver(driverUserID, trip.ID, trip.DriverID, types.TripAccepted)
	s.notifier.TripAccepted(ctx, trip)

	return trip, nil
}

// Start moves an accepted trip to in progress. Re-starting an
// in-progress trip is a no-op for idempotency. The ownership and status
// checks run on the locked row so a concurrent cancel cannot slip
// between the read and the update.
func (s *Service) Start(ctx context.Context, tripID, driverUserID uuid.UUID) (*models.Trip, error) {
	ctx = wrap.WithAction(wrap.WithTripID(wrap.WithUserID(ctx, driverUserID.String()), tripID.String()), "start_trip")

	driver, err := s.drivers.GetByUserID(ctx, driverUserID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	now := time.Now().UTC()

	txErr := s.tx.Do(ctx, func(txCtx context.Context) error {
		locked, err := s.trips.GetForUpdate(txCtx, tripID)
		if err != nil {
			return err
		}
		if locked.DriverID == nil || *locked.DriverID != driver.ID {
			return types.ErrNotTripOwner
		}
		if locked.Status != types.TripAccepted && locked.Status != types.TripInProgress {
			return types.NewInvalidTripStatus(locked.Status, types.TripAccepted)
		}

		if err := s.trips.Start(txCtx, tripID, now); err != nil {
			return err
		}
		return s.pickups.UpdateStatus(txCtx, tripID, driver.ID, types.PickupCreated, types.PickupAccepted, "")
	})
	if txErr != nil {
		return nil, wrap.Error(ctx, txErr)
	}

	trip.Status = types.TripInProgress
	if trip.StartedAt == nil {
		trip.StartedAt = &now
	}
	driverID := driver.ID
	trip.DriverID = &driverID

	s.publishStatus(ctx, trip.ID, trip.DriverID, types.TripInProgress)
	s.sendStatusToDriver(driverUserID, trip.ID, trip.DriverID, types.TripInProgress)

	return trip, nil
}

// Cancel ends a pre-terminal trip. A driver may cancel their own trip;
// dispatchers and admins may cancel any. Canceling a still-requested
// trip also tears down its broadcast.
func (s *Service) Cancel(ctx context.Context, tripID uuid.UUID, actor *models.User, reason string) (*models.Trip, error) {
	ctx = wrap.WithAction(wrap.WithTripID(wrap.WithUserID(ctx, actor.ID.String()), tripID.String()), "cancel_trip")

	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	var actorProfileID *uuid.UUID
	if actor.Role == types.DriverRole {
		driver, err := s.drivers.GetByUserID(ctx, actor.ID)
		if err != nil {
			return nil, wrap.Error(ctx, err)
		}
		actorProfileID = &driver.ID
	}

	now := time.Now().UTC()
	actorID := actor.ID

	var assignedUserID *uuid.UUID
	var wasRequested bool

	// Decisions run on the locked row: an accept or complete that
	// commits after the read above must not be overwritten, and a driver
	// assigned mid-broadcast must still be freed.
	txErr := s.tx.Do(ctx, func(txCtx context.Context) error {
		locked, err := s.trips.GetForUpdate(txCtx, tripID)
		if err != nil {
			return err
		}

		if actorProfileID != nil && (locked.DriverID == nil || *locked.DriverID != *actorProfileID) {
			return types.ErrNotTripOwner
		}

		switch locked.Status {
		case types.TripRequested, types.TripAccepted, types.TripInProgress:
		default:
			return types.NewInvalidTripStatus(locked.Status,
				types.TripRequested, types.TripAccepted, types.TripInProgress)
		}
		wasRequested = locked.Status == types.TripRequested
		trip.DriverID = locked.DriverID

		if err := s.trips.Cancel(txCtx, tripID, reason, &actorID, now); err != nil {
			return err
		}
		if err := s.pickups.CloseAllForTrip(txCtx, tripID); err != nil {
			return err
		}

		if locked.DriverID != nil {
			driver, err := s.drivers.Get(txCtx, *locked.DriverID)
			if err != nil {
				return err
			}
			userID := driver.UserID
			assignedUserID = &userID

			available := true
			if err := s.drivers.Patch(txCtx, userID, models.DriverPatch{
				IsAvailable:        &available,
				ClearCurrentTripID: true,
			}); err != nil {
				return err
			}
		}

		return nil
	})
	if txErr != nil {
		return nil, wrap.Error(ctx, txErr)
	}

	if wasRequested {
		s.dispatcher.CancelBroadcast(tripID)
	}

	trip.Status = types.TripCanceled
	trip.CanceledAt = &now
	trip.CancelReason = reason
	trip.CanceledByUserID = &actorID

	metrics.TripsTotal.WithLabelValues(serviceName, string(types.TripCanceled)).Inc()
	s.publishStatus(ctx, trip.ID, trip.DriverID, types.TripCanceled)
	if assignedUserID != nil {
		s.sendStatusToDriver(*assignedUserID, trip.ID, trip.DriverID, types.TripCanceled)
	}
	s.notifier.TripCanceled(ctx, trip, reason)

	return trip, nil
}

// Complete finishes an in-progress trip, deriving the fare from actuals
// when the client omits it, and credits the driver.
func (s *Service) Complete(ctx context.Context, tripID, driverUserID uuid.UUID, in CompleteInput) (*models.Trip, error) {
	ctx = wrap.WithAction(wrap.WithTripID(wrap.WithUserID(ctx, driverUserID.String()), tripID.String()), "complete_trip")

	driver, err := s.drivers.GetByUserID(ctx, driverUserID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	distanceKm := trip.EstimatedDistanceKm
	if in.ActualDistanceKm != nil {
		distanceKm = *in.ActualDistanceKm
	}
	durationMin := trip.EstimatedDurationMin
	if in.ActualDurationMin != nil {
		durationMin = *in.ActualDurationMin
	}

	var breakdown FareBreakdown
	if in.FinalFare != nil {
		breakdown = BreakdownFromFare(*in.FinalFare)
	} else {
		breakdown = CalculateFare(distanceKm, durationMin)
	}

	completion := models.TripCompletion{
		FinalFareCents:      breakdown.FareCents,
		DriverEarningsCents: breakdown.EarningsCents,
		CommissionCents:     breakdown.CommissionCents,
		ActualDistanceKm:    distanceKm,
		ActualDurationMin:   durationMin,
	}

	now := time.Now().UTC()

	// Ownership and status are checked on the locked row: a cancel that
	// commits after the read above must not be buried under a completion.
	txErr := s.tx.Do(ctx, func(txCtx context.Context) error {
		locked, err := s.trips.GetForUpdate(txCtx, tripID)
		if err != nil {
			return err
		}
		if locked.DriverID == nil || *locked.DriverID != driver.ID {
			return types.ErrNotTripOwner
		}
		if locked.Status != types.TripInProgress {
			return types.NewInvalidTripStatus(locked.Status, types.TripInProgress)
		}

		if err := s.trips.Complete(txCtx, tripID, completion, now); err != nil {
			return err
		}
		if err := s.drivers.IncrementCompleted(txCtx, driver.ID, breakdown.EarningsCents); err != nil {
			return err
		}
		if err := s.pickups.UpdateStatus(txCtx, tripID, driver.ID, types.PickupAccepted, types.PickupCompleted, ""); err != nil {
			return err
		}

		available := true
		return s.drivers.Patch(txCtx, driverUserID, models.DriverPatch{
			IsAvailable:        &available,
			ClearCurrentTripID: true,
		})
	})
	if txErr != nil {
		return nil, wrap.Error(ctx, txErr)
	}

	trip.Status = types.TripCompleted
	trip.CompletedAt = &now
	driverID := driver.ID
	trip.DriverID = &driverID
	trip.PaymentStatus = types.PaymentCompleted
	trip.FinalFareCents = &completion.FinalFareCents
	trip.DriverEarningsCents = &completion.DriverEarningsCents
	trip.CommissionCents = &completion.CommissionCents
	trip.ActualDistanceKm = &completion.ActualDistanceKm
	trip.ActualDurationMin = &completion.ActualDurationMin

	metrics.TripsTotal.WithLabelValues(serviceName, string(types.TripCompleted)).Inc()
	s.publishStatus(ctx, trip.ID, trip.DriverID, types.TripCompleted)
	s.sendStatusToDriver(driverUserID, trip.ID, trip.DriverID, types.TripCompleted)
	s.notifier.TripCompleted(ctx, trip)

	return trip, nil
}

// Active returns the driver's currently assigned non-terminal trip, or
// nil when there is none.
func (s *Service) Active(ctx context.Context, driverUserID uuid.UUID) (*models.Trip, error) {
	driver, err := s.drivers.GetByUserID(ctx, driverUserID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	trip, err := s.trips.ActiveByDriver(ctx, driver.ID)
	if err != nil {
		if errors.Is(err, types.ErrTripNotFound) {
			return nil, nil
		}
		return nil, wrap.Error(ctx, err)
	}

	return trip, nil
}

// History returns a page of the driver's trips plus the unpaged total.
func (s *Service) History(ctx context.Context, driverUserID uuid.UUID, filter models.TripFilter) ([]*models.Trip, int64, error) {
	driver, err := s.drivers.GetByUserID(ctx, driverUserID)
	if err != nil {
		return nil, 0, wrap.Error(ctx, err)
	}

	filter.DriverID = driver.ID
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	return s.trips.History(ctx, filter)
}

// Statistics aggregates the driver's completed work.
func (s *Service) Statistics(ctx context.Context, driverUserID uuid.UUID, start, end *time.Time) (*models.TripStatistics, error) {
	driver, err := s.drivers.GetByUserID(ctx, driverUserID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	return s.trips.Statistics(ctx, driver.ID, start, end)
}

// Get loads a trip for its driver, the dispatcher side, or an admin.
func (s *Service) Get(ctx context.Context, tripID uuid.UUID, actor *models.User) (*models.Trip, error) {
	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	if actor.Role == types.DriverRole {
		driver, err := s.drivers.GetByUserID(ctx, actor.ID)
		if err != nil {
			return nil, wrap.Error(ctx, err)
		}
		if trip.DriverID == nil || *trip.DriverID != driver.ID {
			return nil, types.ErrTripNotFound
		}
	}

	return trip, nil
}

// ReconcileStale sweeps requested trips older than the auto-cancel
// window. Run once at boot: their in-memory timers died with the old
// process.
func (s *Service) ReconcileStale(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, "reconcile_stale_trips")

	cutoff := time.Now().UTC().Add(-3 * time.Minute)
	stale, err := s.trips.StaleRequested(ctx, cutoff)
	if err != nil {
		return wrap.Error(ctx, err)
	}

	for _, trip := range stale {
		canceled, err := s.trips.AutoCancel(ctx, trip.ID, types.CancelReasonNoDrivers, time.Now().UTC())
		if err != nil {
			s.log.Error(wrap.WithTripID(ctx, trip.ID.String()), "failed to reconcile stale trip", err)
			continue
		}
		if !canceled {
			continue
		}
		if err := s.pickups.CloseAllForTrip(ctx, trip.ID); err != nil {
			s.log.Error(wrap.WithTripID(ctx, trip.ID.String()), "failed to close pickups for stale trip", err)
		}
		s.notifier.TripAutoCanceled(ctx, trip)
		s.publishStatus(ctx, trip.ID, nil, types.TripCanceled)
	}

	if len(stale) > 0 {
		s.log.Info(ctx, "reconciled stale requested trips", "count", len(stale))
	}

	return nil
}

func (s *Service) publishStatus(ctx context.Context, tripID uuid.UUID, driverID *uuid.UUID, status types.TripStatus) {
	ev := models.TripStatusChangedEvent{
		TripID:    tripID,
		DriverID:  driverID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.PublishStatusChanged(ctx, ev); err != nil {
		s.log.Error(ctx, "failed to publish trip status event", err, "status", string(status))
	}
}

func (s *Service) sendStatusToDriver(driverUserID, tripID uuid.UUID, driverID *uuid.UUID, status types.TripStatus) {
	// best-effort: the driver may be offline
	_ = s.hub.SendTo(driverUserID, models.TripStatusChangedPayload(models.TripStatusChangedEvent{
		TripID:   tripID,
		DriverID: driverID,
		Status:   status,
	}))
}

func kindOrStandard(kind types.TripKind) types.TripKind {
	if kind == "" {
		return types.TripStandard
	}
	return kind
}

func paymentOrCash(method string) string {
	if method == "" {
		return "cash"
	}
	return method
}

func splitName(displayName string) (first, last string) {
	first, last, _ = strings.Cut(displayName, " ")
	return first, last
}
