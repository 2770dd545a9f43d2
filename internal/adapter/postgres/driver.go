package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
)

type DriverRepo struct {
	db *pgxpool.Pool
}

func NewDriverRepo(db *pgxpool.Pool) *DriverRepo {
	return &DriverRepo{db: db}
}

const driverColumns = `
	d.id, d.user_id, d.first_name, d.last_name, d.rating,
	d.total_trips, d.total_earnings_cents,
	d.is_online, d.is_available,
	d.last_location_lat, d.last_location_lng, d.last_location_update,
	d.current_trip_id, d.socket_id,
	d.created_at, d.updated_at`

func scanDriver(row pgx.Row) (*models.DriverProfile, error) {
	var d models.DriverProfile
	var lat, lng *float64

	err := row.Scan(
		&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.Rating,
		&d.TotalTrips, &d.TotalEarningsCents,
		&d.IsOnline, &d.IsAvailable,
		&lat, &lng, &d.LastLocationUpdate,
		&d.CurrentTripID, &d.SocketID,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat != nil && lng != nil {
		d.LastKnownLocation = &models.GeoPoint{Lat: *lat, Lng: *lng}
	}

	return &d, nil
}

func (r *DriverRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.DriverProfile, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + driverColumns + ` FROM driver_profiles d WHERE d.user_id = $1;`

	driver, err := scanDriver(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrDriverNotFound
		}
		return nil, fmt.Errorf("driver repo: GetByUserID: %w", err)
	}

	return driver, nil
}

func (r *DriverRepo) Get(ctx context.Context, profileID uuid.UUID) (*models.DriverProfile, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + driverColumns + ` FROM driver_profiles d WHERE d.id = $1;`

	driver, err := scanDriver(q.QueryRow(ctx, query, profileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrDriverNotFound
		}
		return nil, fmt.Errorf("driver repo: Get: %w", err)
	}

	return driver, nil
}

// GetByUserIDForUpdate locks the profile row to serialize accept attempts
// with concurrent presence updates. Must run inside a transaction.
func (r *DriverRepo) GetByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.DriverProfile, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + driverColumns + ` FROM driver_profiles d WHERE d.user_id = $1 FOR UPDATE;`

	driver, err := scanDriver(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrDriverNotFound
		}
		return nil, fmt.Errorf("driver repo: GetByUserIDForUpdate: %w", err)
	}

	return driver, nil
}

// Patch applies a partial update keyed by user id. Nil fields are skipped.
func (r *DriverRepo) Patch(ctx context.Context, userID uuid.UUID, patch models.DriverPatch) error {
	q := TxorDB(ctx, r.db)

	sets := []string{"updated_at = now()"}
	args := []any{userID}

	add := func(expr string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if patch.IsOnline != nil {
		add("is_online = $%d", *patch.IsOnline)
	}
	if patch.IsAvailable != nil {
		add("is_available = $%d", *patch.IsAvailable)
	}
	if patch.Location != nil {
		add("last_location_lat = $%d", patch.Location.Lat)
		add("last_location_lng = $%d", patch.Location.Lng)
		args = append(args, patch.Location.Lng, patch.Location.Lat)
		sets = append(sets, fmt.Sprintf("last_location_point = ST_Point($%d, $%d)", len(args)-1, len(args)))
	}
	if patch.LastLocationUpdate != nil {
		add("last_location_update = $%d", *patch.LastLocationUpdate)
	}
	if patch.CurrentTripID != nil {
		add("current_trip_id = $%d", *patch.CurrentTripID)
	} else if patch.ClearCurrentTripID {
		sets = append(sets, "current_trip_id = NULL")
	}
	if patch.SocketID != nil {
		add("socket_id = $%d", *patch.SocketID)
	} else if patch.ClearSocketID {
		sets = append(sets, "socket_id = NULL")
	}

	query := "UPDATE driver_profiles SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE user_id = $1;"

	cmdTag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("driver repo: Patch: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrDriverNotFound
	}

	return nil
}

// UpdateLocation persists a location sample, keeping last_location_update
// monotonic under out-of-order delivery.
func (r *DriverRepo) UpdateLocation(ctx context.Context, userID uuid.UUID, loc models.GeoPoint, at time.Time) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE driver_profiles
		SET last_location_lat = $2, last_location_lng = $3,
			last_location_point = ST_Point($3, $2),
			last_location_update = $4,
			updated_at = now()
		WHERE user_id = $1
			AND (last_location_update IS NULL OR last_location_update <= $4);`

	cmdTag, err := q.Exec(ctx, query, userID, loc.Lat, loc.Lng, at)
	if err != nil {
		return fmt.Errorf("driver repo: UpdateLocation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		// either the driver is unknown or a newer sample already landed
		var exists bool
		if err := q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM driver_profiles WHERE user_id = $1);", userID).Scan(&exists); err != nil {
			return fmt.Errorf("driver repo: UpdateLocation (exists): %w", err)
		}
		if !exists {
			return types.ErrDriverNotFound
		}
	}

	return nil
}

// FindNearby returns up to limit online, available driver user ids within
// radiusKm of the pickup, with a location fresher than freshness. When
// classID is non-nil only drivers with an active vehicle in that class
// qualify. Sorted by distance, then location age, then driver id.
func (r *DriverRepo) FindNearby(ctx context.Context, lat, lng, radiusKm float64, classID *int, freshness time.Duration, limit int) ([]uuid.UUID, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT d.user_id
		FROM driver_profiles d
		WHERE d.is_online = true
			AND d.is_available = true
			AND d.last_location_point IS NOT NULL
			AND d.last_location_update > now() - $4::interval
			AND ST_DWithin(
				d.last_location_point::geography,
				ST_Point($2, $1)::geography,
				$3 * 1000
			)
			AND ($5::int IS NULL OR EXISTS (
				SELECT 1 FROM vehicles v
				WHERE v.driver_id = d.id AND v.is_active = true AND v.class_id = $5
			))
		ORDER BY
			ST_Distance(d.last_location_point::geography, ST_Point($2, $1)::geography) ASC,
			d.last_location_update DESC,
			d.user_id ASC
		LIMIT $6;`

	rows, err := q.Query(ctx, query, lat, lng, radiusKm, freshness, classID, limit)
	if err != nil {
		return nil, fmt.Errorf("driver repo: FindNearby: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("driver repo: FindNearby (scan): %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("driver repo: FindNearby (rows): %w", err)
	}

	return ids, nil
}

// IncrementCompleted bumps the trip counter and adds earnings, saturating
// the accumulator at the documented cap.
func (r *DriverRepo) IncrementCompleted(ctx context.Context, profileID uuid.UUID, earningsCents int64) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE driver_profiles
		SET total_trips = total_trips + 1,
			total_earnings_cents = LEAST(total_earnings_cents + $2, $3),
			updated_at = now()
		WHERE id = $1;`

	cmdTag, err := q.Exec(ctx, query, profileID, earningsCents, models.MaxEarningsCents)
	if err != nil {
		return fmt.Errorf("driver repo: IncrementCompleted: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrDriverNotFound
	}

	return nil
}

// CountOnline feeds the drivers-online gauge.
func (r *DriverRepo) CountOnline(ctx context.Context) (int64, error) {
	q := TxorDB(ctx, r.db)

	var count int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM driver_profiles WHERE is_online = true;").Scan(&count); err != nil {
		return 0, fmt.Errorf("driver repo: CountOnline: %w", err)
	}
	return count, nil
}
