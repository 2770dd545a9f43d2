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

type UserRepo struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, phone, first_name, last_name, role, status, created_at, updated_at
		FROM users
		WHERE id = $1;`

	var u models.User
	err := q.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Phone, &u.FirstName, &u.LastName, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("user repo: Get: %w", err)
	}

	return &u, nil
}

// FindOrCreatePassenger resolves a passenger by phone, creating a minimal
// passenger record on first contact. The second return value reports
// whether the passenger was created by this call.
func (r *UserRepo) FindOrCreatePassenger(ctx context.Context, phone, firstName, lastName string) (*models.User, bool, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, phone, first_name, last_name, role, status, created_at, updated_at
		FROM users
		WHERE phone = $1;`

	var u models.User
	err := q.QueryRow(ctx, query, phone).Scan(
		&u.ID, &u.Phone, &u.FirstName, &u.LastName, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == nil {
		return &u, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("user repo: FindOrCreatePassenger (find): %w", err)
	}

	insert := `
		INSERT INTO users (id, phone, first_name, last_name, role, status)
		VALUES ($1, $2, $3, $4, 'passenger', 'active')
		RETURNING id, phone, first_name, last_name, role, status, created_at, updated_at;`

	err = q.QueryRow(ctx, insert, uuid.New(), phone, firstName, lastName).Scan(
		&u.ID, &u.Phone, &u.FirstName, &u.LastName, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("user repo: FindOrCreatePassenger (create): %w", err)
	}

	return &u, true, nil
}
