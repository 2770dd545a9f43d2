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
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
)

type TripRepo struct {
	db *pgxpool.Pool
}

func NewTripRepo(db *pgxpool.Pool) *TripRepo {
	return &TripRepo{db: db}
}

const tripColumns = `
	t.id, t.reference, t.passenger_id, t.driver_id, t.vehicle_id, t.vehicle_class_id,
	t.status, t.kind,
	t.pickup_address, t.pickup_lat, t.pickup_lng,
	t.dropoff_address, t.dropoff_lat, t.dropoff_lng,
	t.estimated_distance_km, t.estimated_duration_minutes, t.estimated_fare_cents,
	t.payment_method, t.payment_status,
	t.instructions, t.recipient_name, t.package_info,
	t.dispatcher_id, t.is_new_passenger,
	t.requested_at, t.accepted_at, t.started_at, t.completed_at, t.canceled_at,
	t.cancel_reason, t.canceled_by_user_id,
	t.final_fare_cents, t.actual_distance_km, t.actual_duration_minutes,
	t.driver_earnings_cents, t.commission_cents`

func scanTrip(row pgx.Row) (*models.Trip, error) {
	var t models.Trip
	var instructions, recipientName, packageInfo, cancelReason *string

	err := row.Scan(
		&t.ID, &t.Reference, &t.PassengerID, &t.DriverID, &t.VehicleID, &t.VehicleClassID,
		&t.Status, &t.Kind,
		&t.PickupAddress, &t.Pickup.Lat, &t.Pickup.Lng,
		&t.DropoffAddress, &t.Dropoff.Lat, &t.Dropoff.Lng,
		&t.EstimatedDistanceKm, &t.EstimatedDurationMin, &t.EstimatedFareCents,
		&t.PaymentMethod, &t.PaymentStatus,
		&instructions, &recipientName, &packageInfo,
		&t.DispatcherID, &t.IsNewPassenger,
		&t.RequestedAt, &t.AcceptedAt, &t.StartedAt, &t.CompletedAt, &t.CanceledAt,
		&cancelReason, &t.CanceledByUserID,
		&t.FinalFareCents, &t.ActualDistanceKm, &t.ActualDurationMin,
		&t.DriverEarningsCents, &t.CommissionCents,
	)
	if err != nil {
		return nil, err
	}

	if instructions != nil {
		t.Instructions = *instructions
	}
	if recipientName != nil {
		t.RecipientName = *recipientName
	}
	if packageInfo != nil {
		t.PackageInfo = *packageInfo
	}
	if cancelReason != nil {
		t.CancelReason = *cancelReason
	}

	return &t, nil
}

// Create inserts the trip, building both spatial points from lat/lng.
func (r *TripRepo) Create(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO trips (
			id, reference, passenger_id, driver_id, vehicle_id, vehicle_class_id,
			status, kind,
			pickup_address, pickup_lat, pickup_lng, pickup_point,
			dropoff_address, dropoff_lat, dropoff_lng, dropoff_point,
			estimated_distance_km, estimated_duration_minutes, estimated_fare_cents,
			payment_method, payment_status,
			instructions, recipient_name, package_info,
			dispatcher_id, is_new_passenger,
			started_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8,
			$9, $10, $11, ST_Point($11, $10),
			$12, $13, $14, ST_Point($14, $13),
			$15, $16, $17,
			$18, $19,
			$20, $21, $22,
			$23, $24,
			$25
		)
		RETURNING id, requested_at;`

	err := q.QueryRow(ctx, query,
		trip.ID, trip.Reference, trip.PassengerID, trip.DriverID, trip.VehicleID, trip.VehicleClassID,
		trip.Status, trip.Kind,
		trip.PickupAddress, trip.Pickup.Lat, trip.Pickup.Lng,
		trip.DropoffAddress, trip.Dropoff.Lat, trip.Dropoff.Lng,
		trip.EstimatedDistanceKm, trip.EstimatedDurationMin, trip.EstimatedFareCents,
		trip.PaymentMethod, trip.PaymentStatus,
		nilIfEmpty(trip.Instructions), nilIfEmpty(trip.RecipientName), nilIfEmpty(trip.PackageInfo),
		trip.DispatcherID, trip.IsNewPassenger,
		trip.StartedAt,
	).Scan(&trip.ID, &trip.RequestedAt)
	if err != nil {
		return nil, fmt.Errorf("trip repo: Create: %w", err)
	}

	return trip, nil
}

func (r *TripRepo) Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT ` + tripColumns + `,
			u.phone AS passenger_phone,
			u.first_name || ' ' || u.last_name AS passenger_name
		FROM trips t
		JOIN users u ON t.passenger_id = u.id
		WHERE t.id = $1;`

	var t models.Trip
	var instructions, recipientName, packageInfo, cancelReason *string

	err := q.QueryRow(ctx, query, tripID).Scan(
		&t.ID, &t.Reference, &t.PassengerID, &t.DriverID, &t.VehicleID, &t.VehicleClassID,
		&t.Status, &t.Kind,
		&t.PickupAddress, &t.Pickup.Lat, &t.Pickup.Lng,
		&t.DropoffAddress, &t.Dropoff.Lat, &t.Dropoff.Lng,
		&t.EstimatedDistanceKm, &t.EstimatedDurationMin, &t.EstimatedFareCents,
		&t.PaymentMethod, &t.PaymentStatus,
		&instructions, &recipientName, &packageInfo,
		&t.DispatcherID, &t.IsNewPassenger,
		&t.RequestedAt, &t.AcceptedAt, &t.StartedAt, &t.CompletedAt, &t.CanceledAt,
		&cancelReason, &t.CanceledByUserID,
		&t.FinalFareCents, &t.ActualDistanceKm, &t.ActualDurationMin,
		&t.DriverEarningsCents, &t.CommissionCents,
		&t.PassengerPhone, &t.PassengerName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrTripNotFound
		}
		return nil, fmt.Errorf("trip repo: Get: %w", err)
	}

	if instructions != nil {
		t.Instructions = *instructions
	}
	if recipientName != nil {
		t.RecipientName = *recipientName
	}
	if packageInfo != nil {
		t.PackageInfo = *packageInfo
	}
	if cancelReason != nil {
		t.CancelReason = *cancelReason
	}

	return &t, nil
}

// GetForUpdate locks the trip row. Must run inside a transaction.
func (r *TripRepo) GetForUpdate(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + tripColumns + ` FROM trips t WHERE t.id = $1 FOR UPDATE;`

	trip, err := scanTrip(q.QueryRow(ctx, query, tripID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrTripNotFound
		}
		return nil, fmt.Errorf("trip repo: GetForUpdate: %w", err)
	}

	return trip, nil
}

// Accept assigns the driver, guarded so only the first accept can win.
// Returns ErrTripNotAvailable when another driver got there first.
func (r *TripRepo) Accept(ctx context.Context, tripID, driverProfileID uuid.UUID, at time.Time) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE trips
		SET status = 'accepted', driver_id = $2, accepted_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'requested' AND driver_id IS NULL;`

	cmdTag, err := q.Exec(ctx, query, tripID, driverProfileID, at)
	if err != nil {
		return wrap.Error(wrap.WithAction(ctx, types.ActionDatabaseTransactionFailed),
			fmt.Errorf("trip repo: Accept: %w", err))
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrTripNotAvailable
	}

	return nil
}

// Start is guarded on the current status so a concurrent terminal
// transition cannot be resurrected to in_progress.
func (r *TripRepo) Start(ctx context.Context, tripID uuid.UUID, at time.Time) error {
	q := TxorDB(ctx, r.db)

	// started_at is preserved on an idempotent re-start
	query := `
		UPDATE trips
		SET status = 'in_progress', started_at = COALESCE(started_at, $2), updated_at = now()
		WHERE id = $1 AND status IN ('accepted', 'in_progress');`

	cmdTag, err := q.Exec(ctx, query, tripID, at)
	if err != nil {
		return fmt.Errorf("trip repo: Start: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrTripNotAvailable
	}

	return nil
}

// Complete only lands on an in-progress trip; a lost race surfaces as
// ErrTripNotAvailable instead of silently overwriting a terminal state.
func (r *TripRepo) Complete(ctx context.Context, tripID uuid.UUID, c models.TripCompletion, at time.Time) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE trips
		SET status = 'completed', completed_at = $2, payment_status = 'completed',
			final_fare_cents = $3, driver_earnings_cents = $4, commission_cents = $5,
			actual_distance_km = $6, actual_duration_minutes = $7,
			updated_at = now()
		WHERE id = $1 AND status = 'in_progress';`

	cmdTag, err := q.Exec(ctx, query, tripID, at,
		c.FinalFareCents, c.DriverEarningsCents, c.CommissionCents,
		c.ActualDistanceKm, c.ActualDurationMin,
	)
	if err != nil {
		return fmt.Errorf("trip repo: Complete: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrTripNotAvailable
	}

	return nil
}

// Cancel is guarded on the pre-terminal statuses: a trip that completed
// (or was already canceled) concurrently stays terminal.
func (r *TripRepo) Cancel(ctx context.Context, tripID uuid.UUID, reason string, canceledBy *uuid.UUID, at time.Time) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE trips
		SET status = 'canceled', canceled_at = $2, cancel_reason = $3,
			canceled_by_user_id = $4, updated_at = now()
		WHERE id = $1 AND status IN ('requested', 'accepted', 'in_progress');`

	cmdTag, err := q.Exec(ctx, query, tripID, at, reason, canceledBy)
	if err != nil {
		return fmt.Errorf("trip repo: Cancel: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrTripNotAvailable
	}

	return nil
}

// AutoCancel cancels only if the trip is still unassigned. Returns true
// when the cancel actually happened; false means a driver won the race.
func (r *TripRepo) AutoCancel(ctx context.Context, tripID uuid.UUID, reason string, at time.Time) (bool, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE trips
		SET status = 'canceled', canceled_at = $2, cancel_reason = $3, updated_at = now()
		WHERE id = $1 AND status = 'requested' AND driver_id IS NULL;`

	cmdTag, err := q.Exec(ctx, query, tripID, at, reason)
	if err != nil {
		return false, fmt.Errorf("trip repo: AutoCancel: %w", err)
	}

	return cmdTag.RowsAffected() > 0, nil
}

// ActiveByDriver returns the driver's current non-terminal trip, or
// ErrTripNotFound when there is none.
func (r *TripRepo) ActiveByDriver(ctx context.Context, driverProfileID uuid.UUID) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT ` + tripColumns + `
		FROM trips t
		WHERE t.driver_id = $1 AND t.status IN ('accepted', 'in_progress')
		ORDER BY t.requested_at DESC
		LIMIT 1;`

	trip, err := scanTrip(q.QueryRow(ctx, query, driverProfileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrTripNotFound
		}
		return nil, fmt.Errorf("trip repo: ActiveByDriver: %w", err)
	}

	return trip, nil
}

// History returns a page of the driver's trips plus the unpaged total.
func (r *TripRepo) History(ctx context.Context, filter models.TripFilter) ([]*models.Trip, int64, error) {
	q := TxorDB(ctx, r.db)

	where := "t.driver_id = $1"
	args := []any{filter.DriverID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND t.status = $%d", len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		where += fmt.Sprintf(" AND t.requested_at >= $%d", len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		where += fmt.Sprintf(" AND t.requested_at <= $%d", len(args))
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM trips t WHERE " + where + ";"
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("trip repo: History (count): %w", err)
	}

	args = append(args, filter.Limit, filter.Offset())
	query := fmt.Sprintf(`
		SELECT `+tripColumns+`
		FROM trips t
		WHERE %s
		ORDER BY t.requested_at DESC
		LIMIT $%d OFFSET $%d;`, where, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("trip repo: History: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("trip repo: History (scan): %w", err)
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("trip repo: History (rows): %w", err)
	}

	return trips, total, nil
}

// Statistics aggregates completed work for the driver over an optional
// date range, plus fixed this-week and this-month windows.
func (r *TripRepo) Statistics(ctx context.Context, driverProfileID uuid.UUID, start, end *time.Time) (*models.TripStatistics, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'canceled'),
			COALESCE(SUM(driver_earnings_cents) FILTER (WHERE status = 'completed'), 0),
			COALESCE(SUM(actual_distance_km) FILTER (WHERE status = 'completed'), 0),
			COALESCE(SUM(actual_duration_minutes) FILTER (WHERE status = 'completed'), 0)
		FROM trips
		WHERE driver_id = $1
			AND ($2::timestamptz IS NULL OR requested_at >= $2)
			AND ($3::timestamptz IS NULL OR requested_at <= $3);`

	var stats models.TripStatistics
	err := q.QueryRow(ctx, query, driverProfileID, start, end).Scan(
		&stats.TotalTrips, &stats.CompletedTrips, &stats.CanceledTrips,
		&stats.EarningsCents, &stats.TotalDistanceKm, &stats.TotalDurationMin,
	)
	if err != nil {
		return nil, fmt.Errorf("trip repo: Statistics: %w", err)
	}

	periodQuery := `
		SELECT
			COUNT(*) FILTER (WHERE requested_at >= date_trunc('week', now())),
			COALESCE(SUM(driver_earnings_cents) FILTER (WHERE requested_at >= date_trunc('week', now())), 0),
			COUNT(*) FILTER (WHERE requested_at >= date_trunc('month', now())),
			COALESCE(SUM(driver_earnings_cents) FILTER (WHERE requested_at >= date_trunc('month', now())), 0)
		FROM trips
		WHERE driver_id = $1 AND status = 'completed';`

	err = q.QueryRow(ctx, periodQuery, driverProfileID).Scan(
		&stats.ThisWeek.Trips, &stats.ThisWeek.EarningsCents,
		&stats.ThisMonth.Trips, &stats.ThisMonth.EarningsCents,
	)
	if err != nil {
		return nil, fmt.Errorf("trip repo: Statistics (periods): %w", err)
	}

	return &stats, nil
}

// StaleRequested lists requested, unassigned trips older than cutoff.
// Used by the boot-time reconciliation pass.
func (r *TripRepo) StaleRequested(ctx context.Context, cutoff time.Time) ([]*models.Trip, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT ` + tripColumns + `
		FROM trips t
		WHERE t.status = 'requested' AND t.driver_id IS NULL AND t.requested_at < $1;`

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("trip repo: StaleRequested: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("trip repo: StaleRequested (scan): %w", err)
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trip repo: StaleRequested (rows): %w", err)
	}

	return trips, nil
}

// CountByDate supports reference generation: AR-YYYYMMDD-NNNN.
func (r *TripRepo) CountByDate(ctx context.Context, date time.Time) (int, error) {
	q := TxorDB(ctx, r.db)

	var count int
	query := "SELECT COUNT(*) FROM trips WHERE DATE(requested_at) = $1;"

	if err := q.QueryRow(ctx, query, date.Format("2006-01-02")).Scan(&count); err != nil {
		return 0, fmt.Errorf("trip repo: CountByDate: %w", err)
	}
	return count, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
