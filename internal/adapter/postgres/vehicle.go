package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
)

type VehicleRepo struct {
	db *pgxpool.Pool
}

func NewVehicleRepo(db *pgxpool.Pool) *VehicleRepo {
	return &VehicleRepo{db: db}
}

// ActiveByDriver returns the driver's single active vehicle, the one used
// for class-based matching.
func (r *VehicleRepo) ActiveByDriver(ctx context.Context, driverProfileID uuid.UUID) (*models.Vehicle, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, driver_id, class_id, make, model, year, color, plate, is_active
		FROM vehicles
		WHERE driver_id = $1 AND is_active = true
		LIMIT 1;`

	var v models.Vehicle
	err := q.QueryRow(ctx, query, driverProfileID).Scan(
		&v.ID, &v.DriverID, &v.ClassID, &v.Make, &v.Model, &v.Year, &v.Color, &v.Plate, &v.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrVehicleNotFound
		}
		return nil, fmt.Errorf("vehicle repo: ActiveByDriver: %w", err)
	}

	return &v, nil
}
