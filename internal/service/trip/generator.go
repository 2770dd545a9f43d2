package trip

import (
	"context"
	"fmt"
	"time"
)

// reference builds a human-readable trip reference, e.g. AR-20260825-0042,
// numbered per calendar day.
func (s *Service) reference(ctx context.Context, now time.Time) (string, error) {
	count, err := s.trips.CountByDate(ctx, now)
	if err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	return fmt.Sprintf("AR-%s-%04d", now.Format("20060102"), count+1), nil
}
