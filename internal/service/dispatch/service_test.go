package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/addisride/dispatch/pkg/logger"
)

// ---- fakes ----

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
	return !t.fired
}

// fakeClock drives the controller's timers by hand.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and fires due timers in deadline order.
// Callbacks run without the clock lock so they may arm new timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.deadline.After(c.now) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		if next == nil {
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

type fakeIndex struct {
	mu      sync.Mutex
	byClass map[int][]uuid.UUID
	all     []uuid.UUID
	queries []*int
}

func (i *fakeIndex) FindNearby(_ context.Context, _, _, _ float64, classID *int) []uuid.UUID {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.queries = append(i.queries, classID)
	if classID == nil {
		return append([]uuid.UUID(nil), i.all...)
	}
	return append([]uuid.UUID(nil), i.byClass[*classID]...)
}

func (i *fakeIndex) setClass(class int, ids ...uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.byClass == nil {
		i.byClass = make(map[int][]uuid.UUID)
	}
	i.byClass[class] = ids
}

func (i *fakeIndex) classQueryCount() (class, all int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, q := range i.queries {
		if q == nil {
			all++
		} else {
			class++
		}
	}
	return class, all
}

type sentMsg struct {
	to  uuid.UUID
	msg map[string]any
}

type fakeHub struct {
	mu        sync.Mutex
	connected map[uuid.UUID]bool
	failSend  map[uuid.UUID]bool
	sent      []sentMsg
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		connected: make(map[uuid.UUID]bool),
		failSend:  make(map[uuid.UUID]bool),
	}
}

func (h *fakeHub) IsConnected(id uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected[id]
}

func (h *fakeHub) SendTo(id uuid.UUID, msg map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failSend[id] {
		return context.DeadlineExceeded
	}
	h.sent = append(h.sent, sentMsg{to: id, msg: msg})
	return nil
}

func (h *fakeHub) eventsFor(id uuid.UUID) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, m := range h.sent {
		if m.to == id {
			if ev, ok := m.msg["event"].(string); ok {
				out = append(out, ev)
			}
		}
	}
	return out
}

type fakeTripRepo struct {
	mu              sync.Mutex
	trip            *models.Trip
	autoCancelCalls []string
	autoCanceled    bool
}

func (r *fakeTripRepo) Get(_ context.Context, _ uuid.UUID) (*models.Trip, error) {
	return r.trip, nil
}

func (r *fakeTripRepo) AutoCancel(_ context.Context, _ uuid.UUID, reason string, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoCancelCalls = append(r.autoCancelCalls, reason)
	return r.autoCanceled, nil
}

type pickupClose struct {
	driverProfileID uuid.UUID
	reason          string
}

type fakePickupRepo struct {
	mu       sync.Mutex
	created  []*models.DriverPickup
	closed   []pickupClose
	closeAll int
}

func (r *fakePickupRepo) Create(_ context.Context, p *models.DriverPickup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, p)
	return nil
}

func (r *fakePickupRepo) UpdateStatus(_ context.Context, _, driverProfileID uuid.UUID, _, _ types.PickupStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, pickupClose{driverProfileID: driverProfileID, reason: reason})
	return nil
}

func (r *fakePickupRepo) CloseAllForTrip(_ context.Context, _ uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeAll++
	return nil
}

// fakeDriverRepo derives a stable profile id from the user id.
type fakeDriverRepo struct{}

func profileIDFor(userID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, userID[:])
}

func (fakeDriverRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*models.DriverProfile, error) {
	return &models.DriverProfile{ID: profileIDFor(userID), UserID: userID}, nil
}

type fakeNotifier struct {
	mu           sync.Mutex
	autoCanceled int
}

func (n *fakeNotifier) TripAutoCanceled(_ context.Context, _ *models.Trip) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.autoCanceled++
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.TripStatusChangedEvent
}

func (p *fakePublisher) PublishStatusChanged(_ context.Context, ev models.TripStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type fakeAcceptor struct {
	trip *models.Trip
	err  error
}

func (a *fakeAcceptor) Accept(_ context.Context, _, _ uuid.UUID) (*models.Trip, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.trip, nil
}

// ---- harness ----

type harness struct {
	controller *Controller
	clock      *fakeClock
	index      *fakeIndex
	hub        *fakeHub
	trips      *fakeTripRepo
	pickups    *fakePickupRepo
	notifier   *fakeNotifier
	publisher  *fakePublisher
	acceptor   *fakeAcceptor
}

func newHarness(trip *models.Trip) *harness {
	h := &harness{
		clock:     newFakeClock(),
		index:     &fakeIndex{},
		hub:       newFakeHub(),
		trips:     &fakeTripRepo{trip: trip, autoCanceled: true},
		pickups:   &fakePickupRepo{},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		acceptor:  &fakeAcceptor{trip: trip},
	}

	log := logger.InitLogger("dispatch-test", logger.LevelError)
	h.controller = NewController(
		h.index, h.hub, h.trips, h.pickups, fakeDriverRepo{},
		h.notifier, h.publisher, h.clock, log,
	)
	h.controller.SetAcceptor(h.acceptor)
	return h
}

func requestedTrip(classID *int) *models.Trip {
	dispatcherID := uuid.New()
	return &models.Trip{
		ID:                   uuid.New(),
		Reference:            "AR-20250601-0001",
		PassengerID:          uuid.New(),
		VehicleClassID:       classID,
		Status:               types.TripRequested,
		Kind:                 types.TripStandard,
		PickupAddress:        "Bole Road",
		Pickup:               models.GeoPoint{Lat: 9.0108, Lng: 38.7613},
		DropoffAddress:       "Piassa",
		Dropoff:              models.GeoPoint{Lat: 9.0336, Lng: 38.7500},
		EstimatedDistanceKm:  4.2,
		EstimatedDurationMin: 14,
		EstimatedFareCents:   14100,
		DispatcherID:         &dispatcherID,
		PassengerName:        "Abebe Bikila",
		PassengerPhone:       "+251911234567",
		RequestedAt:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func connectedDrivers(h *harness, n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		h.hub.connected[ids[i]] = true
	}
	return ids
}

// ---- tests ----

func TestDispatch_OffersFirstConnectedCandidate(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 3)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)

	require.Equal(t, 1, h.controller.Active())
	events := h.hub.eventsFor(drivers[0])
	require.Equal(t, []string{models.EventTripOffer}, events)
	assert.Empty(t, h.hub.eventsFor(drivers[1]))

	// one open pickup row for the offeree
	require.Len(t, h.pickups.created, 1)
	assert.Equal(t, profileIDFor(drivers[0]), h.pickups.created[0].DriverID)
	assert.Equal(t, types.PickupCreated, h.pickups.created[0].Status)
}

func TestDispatch_OfferPayloadCarriesBothCasings(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 1)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)

	require.Len(t, h.hub.sent, 1)
	msg := h.hub.sent[0].msg

	assert.Equal(t, trip.ID.String(), msg["trip_id"])
	assert.Equal(t, trip.ID.String(), msg["tripId"])
	assert.Equal(t, 141.0, msg["fare_estimate"])
	assert.Equal(t, 141.0, msg["fareEstimate"])
	assert.Equal(t, int(OfferTTL.Seconds()), msg["expires_in_seconds"])
	assert.Equal(t, int(OfferTTL.Seconds()), msg["expiresInSeconds"])

	pickup, ok := msg["pickup"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, trip.Pickup.Lat, pickup["lat"])
	assert.Equal(t, trip.Pickup.Lat, pickup["latitude"])
}

func TestDispatch_SkipsUnreachableCandidates(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	offline := uuid.New() // never connected
	online := connectedDrivers(h, 1)
	h.index.all = []uuid.UUID{offline, online[0]}

	h.controller.Dispatch(context.Background(), trip)

	assert.Empty(t, h.hub.eventsFor(offline))
	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(online[0]))
}

func TestDecline_RotatesToNextCandidate(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 2)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	h.controller.Decline(context.Background(), trip.ID, drivers[0], "too far")

	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(drivers[1]))

	require.Len(t, h.pickups.closed, 1)
	assert.Equal(t, profileIDFor(drivers[0]), h.pickups.closed[0].driverProfileID)
	assert.Equal(t, "too far", h.pickups.closed[0].reason)
}

func TestDecline_FromNonOffereeIsIgnored(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 2)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	h.controller.Decline(context.Background(), trip.ID, drivers[1], "not my offer")

	// rotation untouched, no pickup closed
	assert.Empty(t, h.hub.eventsFor(drivers[1]))
	assert.Empty(t, h.pickups.closed)
}

func TestOfferTimeout_AdvancesRotation(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 2)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)

	// fire the per-offer expiry callback directly; advancing the clock a
	// full offer lifetime would hit the auto-cancel ceiling first
	h.controller.onOfferTimeout(trip.ID, drivers[0])

	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(drivers[1]))
	require.Len(t, h.pickups.closed, 1)
	assert.Equal(t, "offer timed out", h.pickups.closed[0].reason)
}

func TestOfferTimeout_ForStaleOffereeIsIgnored(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 2)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	h.controller.Decline(context.Background(), trip.ID, drivers[0], "busy")

	// expiry callback for the already-resolved first offer must not
	// disturb the second one
	h.controller.onOfferTimeout(trip.ID, drivers[0])

	require.Len(t, h.pickups.closed, 1)
	assert.Equal(t, "busy", h.pickups.closed[0].reason)
	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(drivers[1]))
}

func TestDisconnect_OfTheOffereeRotates(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 2)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	h.controller.HandleDisconnect(drivers[0])

	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(drivers[1]))
	require.Len(t, h.pickups.closed, 1)
	assert.Equal(t, "driver disconnected", h.pickups.closed[0].reason)
}

func TestDisconnect_OfAnotherDriverIsNoop(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 2)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	h.controller.HandleDisconnect(drivers[1])

	assert.Empty(t, h.pickups.closed)
	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(drivers[0]))
}

func TestAccept_TearsDownAndWithdrawsFromCurrentOfferee(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 2)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)

	// drivers[1] races in while drivers[0] holds the open offer
	got, err := h.controller.Accept(context.Background(), trip.ID, drivers[1])
	require.NoError(t, err)
	assert.Equal(t, trip.ID, got.ID)

	assert.Equal(t, 0, h.controller.Active())
	assert.Contains(t, h.hub.eventsFor(drivers[0]), models.EventTripOfferWithdraw)
}

func TestAccept_ByOffereeSendsNoWithdrawal(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 1)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)

	_, err := h.controller.Accept(context.Background(), trip.ID, drivers[0])
	require.NoError(t, err)

	assert.NotContains(t, h.hub.eventsFor(drivers[0]), models.EventTripOfferWithdraw)
	assert.Equal(t, 0, h.controller.Active())
}

func TestAccept_LostRaceLeavesBroadcastAlone(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 1)
	h.index.all = drivers
	h.acceptor.err = types.ErrTripNotAvailable

	h.controller.Dispatch(context.Background(), trip)

	_, err := h.controller.Accept(context.Background(), trip.ID, drivers[0])
	require.ErrorIs(t, err, types.ErrTripNotAvailable)
	assert.Equal(t, 1, h.controller.Active())
}

func TestAutoCancel_FiresAfterThreeMinutes(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 1)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	h.clock.Advance(AutoCancelAfter)

	require.Len(t, h.trips.autoCancelCalls, 1)
	assert.Equal(t, types.CancelReasonNoDrivers, h.trips.autoCancelCalls[0])
	assert.Equal(t, 1, h.pickups.closeAll)
	assert.Equal(t, 1, h.notifier.autoCanceled)
	assert.Contains(t, h.hub.eventsFor(drivers[0]), models.EventTripOfferWithdraw)

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, types.TripCanceled, h.publisher.events[0].Status)
	assert.Equal(t, 0, h.controller.Active())
}

func TestAutoCancel_SkippedWhenTripAlreadyAccepted(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 1)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)

	_, err := h.controller.Accept(context.Background(), trip.ID, drivers[0])
	require.NoError(t, err)

	h.clock.Advance(AutoCancelAfter)

	assert.Empty(t, h.trips.autoCancelCalls)
	assert.Empty(t, h.publisher.events)
}

func TestAutoCancel_GuardedUpdateLosingRaceDoesNothing(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	h.trips.autoCanceled = false // someone accepted between expiry and update
	drivers := connectedDrivers(h, 1)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	h.clock.Advance(AutoCancelAfter)

	require.Len(t, h.trips.autoCancelCalls, 1)
	assert.Zero(t, h.pickups.closeAll)
	assert.Empty(t, h.publisher.events)
	assert.Equal(t, 0, h.controller.Active())
}

func TestWiden_RelaxesClassFilterAfterOneMinute(t *testing.T) {
	class := 2
	trip := requestedTrip(&class)
	h := newHarness(trip)

	classDrivers := connectedDrivers(h, 1)
	extra := connectedDrivers(h, 1)
	h.index.setClass(class, classDrivers[0])
	h.index.all = []uuid.UUID{classDrivers[0], extra[0]}

	h.controller.Dispatch(context.Background(), trip)
	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(classDrivers[0]))

	// the class offeree declines and the class list is exhausted; the
	// one-minute widening picks the rotation back up
	h.controller.Decline(context.Background(), trip.ID, classDrivers[0], "busy")
	h.clock.Advance(ExpandAfter)

	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(extra[0]))

	classQ, allQ := h.index.classQueryCount()
	assert.Equal(t, 1, classQ)
	assert.Equal(t, 1, allQ)
}

func TestWiden_HappensAtMostOnce(t *testing.T) {
	class := 1
	trip := requestedTrip(&class)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 1)
	h.index.setClass(class, drivers[0])
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	h.clock.Advance(ExpandAfter)
	h.clock.Advance(ExpandAfter)

	_, allQ := h.index.classQueryCount()
	assert.Equal(t, 1, allQ)
}

func TestWiden_DeduplicatesAlreadyKnownCandidates(t *testing.T) {
	class := 3
	trip := requestedTrip(&class)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 2)
	h.index.setClass(class, drivers[0])
	h.index.all = []uuid.UUID{drivers[0], drivers[1]}

	h.controller.Dispatch(context.Background(), trip)
	h.controller.Decline(context.Background(), trip.ID, drivers[0], "busy")

	h.clock.Advance(ExpandAfter)

	// drivers[0] was already offered and declined; the widened list must
	// not offer them again
	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(drivers[0]))
	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(drivers[1]))
}

func TestPolling_OffersWhenPreferredClassDriverAppears(t *testing.T) {
	class := 2
	trip := requestedTrip(&class)
	h := newHarness(trip)

	h.controller.Dispatch(context.Background(), trip)
	assert.Empty(t, h.hub.sent)

	// two empty polls, then a driver comes online in the class
	h.clock.Advance(PollInterval)
	h.clock.Advance(PollInterval)

	late := connectedDrivers(h, 1)
	h.index.setClass(class, late[0])
	h.clock.Advance(PollInterval)

	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(late[0]))
}

func TestPolling_ExhaustionWidensToAllClasses(t *testing.T) {
	class := 2
	trip := requestedTrip(&class)
	h := newHarness(trip)
	anyClass := connectedDrivers(h, 1)
	h.index.all = anyClass

	h.controller.Dispatch(context.Background(), trip)

	for i := 0; i < MaxPollAttempts; i++ {
		h.clock.Advance(PollInterval)
	}

	assert.Equal(t, []string{models.EventTripOffer}, h.hub.eventsFor(anyClass[0]))

	classQ, allQ := h.index.classQueryCount()
	assert.Equal(t, 1+MaxPollAttempts, classQ)
	assert.Equal(t, 1, allQ)
}

func TestDispatch_RefusesNonRequestedTrip(t *testing.T) {
	trip := requestedTrip(nil)
	trip.Status = types.TripAccepted
	h := newHarness(trip)

	h.controller.Dispatch(context.Background(), trip)

	assert.Equal(t, 0, h.controller.Active())
}

func TestDispatch_SecondDispatchForSameTripIsIgnored(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 1)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	h.controller.Dispatch(context.Background(), trip)

	assert.Equal(t, 1, h.controller.Active())
	assert.Len(t, h.hub.eventsFor(drivers[0]), 1)
}

func TestCancelBroadcast_StopsTimersAndWithdraws(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 1)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	h.controller.CancelBroadcast(trip.ID)

	assert.Equal(t, 0, h.controller.Active())
	assert.Contains(t, h.hub.eventsFor(drivers[0]), models.EventTripOfferWithdraw)

	// the auto-cancel timer must be dead
	h.clock.Advance(AutoCancelAfter)
	assert.Empty(t, h.trips.autoCancelCalls)
}

func TestShutdown_DrainsEveryBroadcast(t *testing.T) {
	h := newHarness(nil)
	drivers := connectedDrivers(h, 1)
	h.index.all = drivers

	trips := []*models.Trip{requestedTrip(nil), requestedTrip(nil), requestedTrip(nil)}
	for _, tr := range trips {
		h.trips.trip = tr
		h.controller.Dispatch(context.Background(), tr)
	}
	require.Equal(t, 3, h.controller.Active())

	h.controller.Shutdown()

	assert.Equal(t, 0, h.controller.Active())
	h.clock.Advance(AutoCancelAfter)
	assert.Empty(t, h.trips.autoCancelCalls)
}

func TestCandidateOrderIsPreservedAcrossRotation(t *testing.T) {
	trip := requestedTrip(nil)
	h := newHarness(trip)
	drivers := connectedDrivers(h, 4)
	h.index.all = drivers

	h.controller.Dispatch(context.Background(), trip)
	for i := 0; i < 3; i++ {
		h.controller.Decline(context.Background(), trip.ID, drivers[i], "pass")
	}

	var offered []uuid.UUID
	for _, m := range h.hub.sent {
		if m.msg["event"] == models.EventTripOffer {
			offered = append(offered, m.to)
		}
	}
	require.Len(t, offered, 4)
	assert.Equal(t, drivers, offered)
}
