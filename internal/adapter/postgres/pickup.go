package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/addisride/dispatch/pkg/postgres"
)

type PickupRepo struct {
	db *pgxpool.Pool
}

func NewPickupRepo(db *pgxpool.Pool) *PickupRepo {
	return &PickupRepo{db: db}
}

// Create records a single offer made to a driver.
func (r *PickupRepo) Create(ctx context.Context, p *models.DriverPickup) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO driver_pickups (
			id, driver_id, trip_id,
			pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng,
			fare_estimate_cents, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at;`

	err := q.QueryRow(ctx, query,
		p.ID, p.DriverID, p.TripID,
		p.PickupAddress, p.Pickup.Lat, p.Pickup.Lng,
		p.DropoffAddress, p.Dropoff.Lat, p.Dropoff.Lng,
		p.FareEstimateCents, p.Status,
	).Scan(&p.CreatedAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return types.ErrTripNotFound
		}
		return fmt.Errorf("pickup repo: Create: %w", err)
	}

	return nil
}

// UpdateStatus moves a driver's pickup row for a trip to a new status.
func (r *PickupRepo) UpdateStatus(ctx context.Context, tripID, driverProfileID uuid.UUID, from, to types.PickupStatus, reason string) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE driver_pickups
		SET status = $4, decline_reason = NULLIF($5, ''), updated_at = now()
		WHERE trip_id = $1 AND driver_id = $2 AND status = $3;`

	if _, err := q.Exec(ctx, query, tripID, driverProfileID, from, to, reason); err != nil {
		return fmt.Errorf("pickup repo: UpdateStatus: %w", err)
	}

	return nil
}

// CloseAllForTrip marks every still-open pickup row for a trip canceled.
func (r *PickupRepo) CloseAllForTrip(ctx context.Context, tripID uuid.UUID) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE driver_pickups
		SET status = 'canceled', updated_at = now()
		WHERE trip_id = $1 AND status IN ('created', 'accepted');`

	if _, err := q.Exec(ctx, query, tripID); err != nil {
		return fmt.Errorf("pickup repo: CloseAllForTrip: %w", err)
	}

	return nil
}
