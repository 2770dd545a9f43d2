package spatial

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/pkg/logger"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
)

// Freshness and result-cap are policy: a driver whose last sample is
// older than the window is treated as silently disconnected, and the
// bounded result size keeps offer rotation latency predictable.
const (
	FreshnessWindow = 5 * time.Minute
	MaxCandidates   = 20
)

type DriverLocator interface {
	FindNearby(ctx context.Context, lat, lng, radiusKm float64, classID *int, freshness time.Duration, limit int) ([]uuid.UUID, error)
}

// Index answers "k nearest online and available drivers within radius R,
// optionally in vehicle class C". The relational store is authoritative;
// this is a thin policy layer over its spatial query.
type Index struct {
	locator DriverLocator
	log     logger.Logger
}

func NewIndex(locator DriverLocator, log logger.Logger) *Index {
	return &Index{locator: locator, log: log}
}

// FindNearby returns candidate driver user ids sorted by distance. A
// failing spatial query degrades to "no drivers found": the caller's
// rotation and auto-cancel machinery handles an empty list anyway.
func (i *Index) FindNearby(ctx context.Context, lat, lng, radiusKm float64, classID *int) []uuid.UUID {
	ids, err := i.locator.FindNearby(ctx, lat, lng, radiusKm, classID, FreshnessWindow, MaxCandidates)
	if err != nil {
		i.log.Error(wrap.WithAction(ctx, "spatial_query"), "nearby driver query failed", err)
		return nil
	}
	return ids
}
