package dispatch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/models"
)

// broadcastState is the in-memory record of one ongoing dispatch. It
// exists only while the trip is requested; accept, cancel or exhaustion
// plus auto-cancel remove it. All fields are guarded by mu, which is the
// per-trip serial executor: every timer callback and driver reply for
// this trip takes it before touching anything.
type broadcastState struct {
	mu sync.Mutex

	trip *models.Trip

	candidates []uuid.UUID
	member     map[uuid.UUID]struct{}
	idx        int

	startedAt    time.Time
	currentOffer uuid.UUID

	offerTimer  Timer
	expandTimer Timer
	pollTimer   Timer
	cancelTimer Timer

	hasExpandedToAllClasses bool
	isPollingForClass       bool
	pollAttempts            int

	done bool
}

func newBroadcastState(trip *models.Trip, now time.Time) *broadcastState {
	return &broadcastState{
		trip:      trip,
		member:    make(map[uuid.UUID]struct{}),
		startedAt: now,
	}
}

// setCandidates replaces the list wholesale. Used for the initial
// discovery result only.
func (s *broadcastState) setCandidates(ids []uuid.UUID) {
	s.candidates = s.candidates[:0]
	clear(s.member)
	for _, id := range ids {
		s.appendCandidate(id)
	}
}

// mergeCandidates appends new ids, deduplicating by user id and keeping
// the original ordering for drivers already in the list.
func (s *broadcastState) mergeCandidates(ids []uuid.UUID) {
	for _, id := range ids {
		s.appendCandidate(id)
	}
}

func (s *broadcastState) appendCandidate(id uuid.UUID) {
	if _, ok := s.member[id]; ok {
		return
	}
	s.member[id] = struct{}{}
	s.candidates = append(s.candidates, id)
}

// stopTimers cancels every live timer handle. Idempotent.
func (s *broadcastState) stopTimers() {
	for _, t := range []Timer{s.offerTimer, s.expandTimer, s.pollTimer, s.cancelTimer} {
		if t != nil {
			t.Stop()
		}
	}
}
