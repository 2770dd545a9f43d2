package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/addisride/dispatch/pkg/logger"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
	"github.com/addisride/dispatch/pkg/metrics"
)

const serviceName = "dispatch"

// Dispatch policy. The search radius, offer lifetime and the widening
// and auto-cancel windows are product decisions, not tunables.
const (
	SearchRadiusKm  = 2.0
	OfferTTL        = 5 * time.Minute
	ExpandAfter     = 1 * time.Minute
	PollInterval    = 5 * time.Second
	MaxPollAttempts = 12
	AutoCancelAfter = 3 * time.Minute
)

// Controller runs the offer state machine for dispatcher-created trips:
// discover candidates, offer to the head of the list, rotate on
// decline/timeout/disconnect, widen the class filter after a minute, and
// auto-cancel after three. Driver-initiated trips never reach it.
type Controller struct {
	index     SpatialIndex
	hub       Hub
	acceptor  TripAcceptor
	trips     TripRepo
	pickups   PickupRepo
	drivers   DriverRepo
	notifier  Notifier
	publisher Publisher
	clock     Clock
	log       logger.Logger

	mu         sync.Mutex
	broadcasts map[uuid.UUID]*broadcastState
}

func NewController(
	index SpatialIndex,
	hub Hub,
	trips TripRepo,
	pickups PickupRepo,
	drivers DriverRepo,
	notifier Notifier,
	publisher Publisher,
	clock Clock,
	log logger.Logger,
) *Controller {
	return &Controller{
		index:      index,
		hub:        hub,
		trips:      trips,
		pickups:    pickups,
		drivers:    drivers,
		notifier:   notifier,
		publisher:  publisher,
		clock:      clock,
		log:        log,
		broadcasts: make(map[uuid.UUID]*broadcastState),
	}
}

// SetAcceptor wires the trip lifecycle service after construction; the
// two components reference each other and are tied together once at boot.
func (c *Controller) SetAcceptor(acceptor TripAcceptor) {
	c.acceptor = acceptor
}

// Dispatch starts broadcasting a freshly created requested trip.
func (c *Controller) Dispatch(ctx context.Context, trip *models.Trip) {
	ctx = c.tripCtx(trip.ID)

	if trip.Status != types.TripRequested {
		c.log.Warn(ctx, "refusing to dispatch trip not in requested status", "status", string(trip.Status))
		return
	}

	st := newBroadcastState(trip, c.clock.Now())

	c.mu.Lock()
	if _, exists := c.broadcasts[trip.ID]; exists {
		c.mu.Unlock()
		c.log.Warn(ctx, "dispatch already running for trip")
		return
	}
	c.broadcasts[trip.ID] = st
	c.mu.Unlock()

	metrics.ActiveDispatchesGauge.WithLabelValues(serviceName).Inc()
	c.log.Info(wrap.WithAction(ctx, types.ActionDispatchStarted), "dispatch started",
		"class_id", trip.VehicleClassID,
		"pickup_lat", trip.Pickup.Lat,
		"pickup_lng", trip.Pickup.Lng,
	)

	tripID := trip.ID

	st.mu.Lock()
	defer st.mu.Unlock()

	st.cancelTimer = c.clock.AfterFunc(AutoCancelAfter, func() { c.onAutoCancel(tripID) })

	if trip.VehicleClassID == nil {
		// no class preference: single query, widening can never apply
		st.setCandidates(c.index.FindNearby(ctx, trip.Pickup.Lat, trip.Pickup.Lng, SearchRadiusKm, nil))
		st.hasExpandedToAllClasses = true
		c.offerNext(ctx, st)
		return
	}

	ids := c.index.FindNearby(ctx, trip.Pickup.Lat, trip.Pickup.Lng, SearchRadiusKm, trip.VehicleClassID)
	if len(ids) == 0 {
		// nobody in the preferred class yet: poll for one minute before widening
		st.isPollingForClass = true
		st.pollTimer = c.clock.AfterFunc(PollInterval, func() { c.onPoll(tripID) })
		c.log.Info(ctx, "no drivers in preferred class, polling", "class_id", *trip.VehicleClassID)
		return
	}

	st.setCandidates(ids)
	st.expandTimer = c.clock.AfterFunc(ExpandAfter, func() { c.onExpand(tripID) })
	c.offerNext(ctx, st)
}

// offerNext advances the rotation to the next reachable candidate and
// arms the per-offer timer. Callers hold st.mu.
func (c *Controller) offerNext(ctx context.Context, st *broadcastState) {
	for {
		if st.done {
			return
		}
		if st.idx >= len(st.candidates) {
			// exhausted; widening, polling or the auto-cancel takes it from here
			st.currentOffer = uuid.Nil
			return
		}

		cand := st.candidates[st.idx]

		if !c.hub.IsConnected(cand) {
			st.idx++
			metrics.RecordTripOffer(serviceName, "unreachable")
			continue
		}

		driver, err := c.drivers.GetByUserID(ctx, cand)
		if err != nil {
			c.log.Warn(ctx, "skipping candidate without profile", "candidate_id", cand.String(), "err", err.Error())
			st.idx++
			continue
		}

		pickup := &models.DriverPickup{
			ID:                uuid.New(),
			DriverID:          driver.ID,
			TripID:            st.trip.ID,
			PickupAddress:     st.trip.PickupAddress,
			Pickup:            st.trip.Pickup,
			DropoffAddress:    st.trip.DropoffAddress,
			Dropoff:           st.trip.Dropoff,
			FareEstimateCents: st.trip.EstimatedFareCents,
			Status:            types.PickupCreated,
		}
		if err := c.pickups.Create(ctx, pickup); err != nil {
			c.log.Error(ctx, "failed to record offer", err, "candidate_id", cand.String())
		}

		if err := c.hub.SendTo(cand, models.TripOfferPayload(st.trip, OfferTTL)); err != nil {
			// a send failure advances the rotation, it never fails the trip
			c.log.Warn(ctx, "offer delivery failed", "candidate_id", cand.String(), "err", err.Error())
			metrics.RecordTripOffer(serviceName, "undelivered")
			st.idx++
			continue
		}

		st.currentOffer = cand
		metrics.RecordTripOffer(serviceName, "sent")
		c.log.Info(wrap.WithAction(ctx, types.ActionOfferSent), "offer sent",
			"candidate_id", cand.String(),
			"position", st.idx,
		)

		tripID := st.trip.ID
		st.offerTimer = c.clock.AfterFunc(OfferTTL, func() { c.onOfferTimeout(tripID, cand) })
		return
	}
}

// Accept resolves a driver's trip_accept. The transactional guard inside
// the acceptor decides races; the controller only tears down on success.
func (c *Controller) Accept(ctx context.Context, tripID, driverUserID uuid.UUID) (*models.Trip, error) {
	ctx = wrap.WithUserID(c.tripCtx(tripID), driverUserID.String())

	trip, err := c.acceptor.Accept(ctx, tripID, driverUserID)
	if err != nil {
		if errors.Is(err, types.ErrTripNotAvailable) {
			metrics.RecordTripOffer(serviceName, "lost_race")
		}
		return nil, err
	}

	metrics.RecordTripOffer(serviceName, "accepted")
	c.log.Info(wrap.WithAction(ctx, types.ActionOfferAccepted), "trip accepted")

	c.teardown(ctx, tripID, driverUserID)

	return trip, nil
}

// Decline resolves an explicit trip_decline: close the pickup row,
// advance the rotation.
func (c *Controller) Decline(ctx context.Context, tripID, driverUserID uuid.UUID, reason string) {
	ctx = wrap.WithUserID(c.tripCtx(tripID), driverUserID.String())

	st := c.get(tripID)
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.done || st.currentOffer != driverUserID {
		return
	}

	if st.offerTimer != nil {
		st.offerTimer.Stop()
	}

	c.closePickup(ctx, tripID, driverUserID, reason)

	metrics.RecordTripOffer(serviceName, "declined")
	c.log.Info(wrap.WithAction(ctx, types.ActionOfferDeclined), "offer declined", "reason", reason)

	st.currentOffer = uuid.Nil
	st.idx++
	c.offerNext(ctx, st)
}

// HandleDisconnect treats a dropped connection as an immediate decline
// for any trip currently offered to that driver.
func (c *Controller) HandleDisconnect(driverUserID uuid.UUID) {
	c.mu.Lock()
	states := make([]*broadcastState, 0, len(c.broadcasts))
	for _, st := range c.broadcasts {
		states = append(states, st)
	}
	c.mu.Unlock()

	for _, st := range states {
		st.mu.Lock()
		tripID := st.trip.ID
		open := !st.done && st.currentOffer == driverUserID
		st.mu.Unlock()

		if open {
			c.Decline(context.Background(), tripID, driverUserID, "driver disconnected")
		}
	}
}

// CancelBroadcast tears down the dispatch for a trip canceled by an
// actor (dispatcher or driver) while still requested.
func (c *Controller) CancelBroadcast(tripID uuid.UUID) {
	c.teardown(c.tripCtx(tripID), tripID, uuid.Nil)
}

// onOfferTimeout fires when an offeree neither accepted nor declined
// within the offer lifetime.
func (c *Controller) onOfferTimeout(tripID, driverUserID uuid.UUID) {
	ctx := wrap.WithUserID(c.tripCtx(tripID), driverUserID.String())

	st := c.get(tripID)
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// the offer may have been resolved between expiry and this handler
	if st.done || st.currentOffer != driverUserID {
		return
	}

	c.closePickup(ctx, tripID, driverUserID, "offer timed out")

	metrics.RecordTripOffer(serviceName, "timeout")
	c.log.Info(wrap.WithAction(ctx, types.ActionOfferTimedOut), "offer timed out")

	st.currentOffer = uuid.Nil
	st.idx++
	c.offerNext(ctx, st)
}

// onExpand fires one minute into a class-filtered broadcast that found
// initial candidates but no acceptance yet.
func (c *Controller) onExpand(tripID uuid.UUID) {
	ctx := c.tripCtx(tripID)

	st := c.get(tripID)
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.done || st.hasExpandedToAllClasses {
		return
	}

	c.widen(ctx, st)
}

// widen relaxes the class filter exactly once, appending new candidates
// behind the already-offered ones. Callers hold st.mu.
func (c *Controller) widen(ctx context.Context, st *broadcastState) {
	before := len(st.candidates)

	ids := c.index.FindNearby(ctx, st.trip.Pickup.Lat, st.trip.Pickup.Lng, SearchRadiusKm, nil)
	st.mergeCandidates(ids)
	st.hasExpandedToAllClasses = true

	c.log.Info(wrap.WithAction(ctx, types.ActionDispatchWiden), "widened to all classes",
		"new_candidates", len(st.candidates)-before,
	)

	// resume if the class-filtered list had been exhausted
	if st.currentOffer == uuid.Nil {
		c.offerNext(ctx, st)
	}
}

// onPoll re-runs the class query every five seconds while the preferred
// class has no nearby drivers, for up to a minute.
func (c *Controller) onPoll(tripID uuid.UUID) {
	ctx := c.tripCtx(tripID)

	st := c.get(tripID)
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.done || !st.isPollingForClass {
		return
	}

	st.pollAttempts++

	ids := c.index.FindNearby(ctx, st.trip.Pickup.Lat, st.trip.Pickup.Lng, SearchRadiusKm, st.trip.VehicleClassID)
	if len(ids) > 0 {
		st.isPollingForClass = false
		st.mergeCandidates(ids)
		c.log.Info(ctx, "preferred-class driver appeared", "attempt", st.pollAttempts)
		if st.currentOffer == uuid.Nil {
			c.offerNext(ctx, st)
		}
		return
	}

	if st.pollAttempts >= MaxPollAttempts {
		st.isPollingForClass = false
		c.widen(ctx, st)
		return
	}

	st.pollTimer = c.clock.AfterFunc(PollInterval, func() { c.onPoll(tripID) })
}

// onAutoCancel enforces the three-minute ceiling on a requested trip.
// The conditional update makes the accept race safe: a trip accepted a
// millisecond earlier is left untouched.
func (c *Controller) onAutoCancel(tripID uuid.UUID) {
	ctx := wrap.WithAction(c.tripCtx(tripID), types.ActionDispatchAutoCancel)

	st := c.get(tripID)
	if st == nil {
		return
	}

	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return
	}
	st.done = true
	st.stopTimers()
	currentOffer := st.currentOffer
	st.mu.Unlock()

	canceled, err := c.trips.AutoCancel(ctx, tripID, types.CancelReasonNoDrivers, c.clock.Now())
	if err != nil {
		c.log.Error(ctx, "auto-cancel update failed", err)
	}

	if canceled {
		if err := c.pickups.CloseAllForTrip(ctx, tripID); err != nil {
			c.log.Error(ctx, "failed to close pickups on auto-cancel", err)
		}

		if currentOffer != uuid.Nil {
			_ = c.hub.SendTo(currentOffer, models.TripOfferWithdrawnPayload(tripID))
		}

		if trip, err := c.trips.Get(ctx, tripID); err == nil {
			c.notifier.TripAutoCanceled(ctx, trip)
		} else {
			c.log.Error(ctx, "failed to load trip for auto-cancel notification", err)
		}

		if err := c.publisher.PublishStatusChanged(ctx, models.TripStatusChangedEvent{
			TripID:    tripID,
			Status:    types.TripCanceled,
			Timestamp: c.clock.Now(),
		}); err != nil {
			c.log.Error(ctx, "failed to publish auto-cancel event", err)
		}

		metrics.TripsTotal.WithLabelValues(serviceName, string(types.TripCanceled)).Inc()
		c.log.Info(ctx, "trip auto-canceled: no driver accepted in time")
	}

	c.remove(tripID)
}

// teardown ends a broadcast after accept or external cancel, withdrawing
// any still-open offer held by a different driver.
func (c *Controller) teardown(ctx context.Context, tripID, acceptedBy uuid.UUID) {
	st := c.get(tripID)
	if st == nil {
		return
	}

	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return
	}
	st.done = true
	st.stopTimers()
	currentOffer := st.currentOffer
	st.mu.Unlock()

	if currentOffer != uuid.Nil && currentOffer != acceptedBy {
		if err := c.hub.SendTo(currentOffer, models.TripOfferWithdrawnPayload(tripID)); err != nil {
			c.log.Debug(ctx, "failed to withdraw stale offer", "candidate_id", currentOffer.String())
		}
	}

	c.remove(tripID)
}

// Shutdown stops every live broadcast's timers. Requested trips left
// behind are swept by the boot-time reconciliation pass.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, st := range c.broadcasts {
		st.mu.Lock()
		st.done = true
		st.stopTimers()
		st.mu.Unlock()
		delete(c.broadcasts, id)
	}
	metrics.ActiveDispatchesGauge.WithLabelValues(serviceName).Set(0)
}

// Active reports the number of trips currently being broadcast.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.broadcasts)
}

func (c *Controller) get(tripID uuid.UUID) *broadcastState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broadcasts[tripID]
}

func (c *Controller) remove(tripID uuid.UUID) {
	c.mu.Lock()
	if _, ok := c.broadcasts[tripID]; ok {
		delete(c.broadcasts, tripID)
		metrics.ActiveDispatchesGauge.WithLabelValues(serviceName).Dec()
	}
	c.mu.Unlock()
}

// closePickup marks the driver's open pickup row canceled with a reason.
// Callers hold st.mu; the update targets a single indexed row.
func (c *Controller) closePickup(ctx context.Context, tripID, driverUserID uuid.UUID, reason string) {
	driver, err := c.drivers.GetByUserID(ctx, driverUserID)
	if err != nil {
		c.log.Warn(ctx, "failed to resolve driver for pickup close", "err", err.Error())
		return
	}
	if err := c.pickups.UpdateStatus(ctx, tripID, driver.ID, types.PickupCreated, types.PickupCanceled, reason); err != nil {
		c.log.Error(ctx, "failed to close pickup row", err)
	}
}

func (c *Controller) tripCtx(tripID uuid.UUID) context.Context {
	return wrap.WithTripID(context.Background(), tripID.String())
}
