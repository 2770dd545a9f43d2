package spatial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/addisride/dispatch/pkg/logger"
)

type recordingLocator struct {
	lat, lng  float64
	radiusKm  float64
	classID   *int
	freshness time.Duration
	limit     int

	ids []uuid.UUID
	err error
}

func (l *recordingLocator) FindNearby(_ context.Context, lat, lng, radiusKm float64, classID *int, freshness time.Duration, limit int) ([]uuid.UUID, error) {
	l.lat, l.lng = lat, lng
	l.radiusKm = radiusKm
	l.classID = classID
	l.freshness = freshness
	l.limit = limit
	return l.ids, l.err
}

func TestFindNearby_AppliesFreshnessAndCap(t *testing.T) {
	near := uuid.New()
	far := uuid.New()
	locator := &recordingLocator{ids: []uuid.UUID{near, far}}
	index := NewIndex(locator, logger.InitLogger("spatial-test", logger.LevelError))

	classID := 2
	got := index.FindNearby(context.Background(), 9.0107, 38.7613, 3.5, &classID)

	// policy pinned on the query, order preserved from the store
	assert.Equal(t, FreshnessWindow, locator.freshness)
	assert.Equal(t, MaxCandidates, locator.limit)
	assert.Equal(t, 9.0107, locator.lat)
	assert.Equal(t, 38.7613, locator.lng)
	assert.Equal(t, 3.5, locator.radiusKm)
	assert.Equal(t, &classID, locator.classID)
	assert.Equal(t, []uuid.UUID{near, far}, got)
}

func TestFindNearby_QueryFailureDegradesToNoDrivers(t *testing.T) {
	locator := &recordingLocator{err: errors.New("connection reset")}
	index := NewIndex(locator, logger.InitLogger("spatial-test", logger.LevelError))

	got := index.FindNearby(context.Background(), 9.0, 38.7, 5.0, nil)

	assert.Nil(t, got)
}
