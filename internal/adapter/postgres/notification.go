package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/addisride/dispatch/internal/domain/models"
)

type NotificationRepo struct {
	db *pgxpool.Pool
}

func NewNotificationRepo(db *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO notifications (id, user_id, title, body, category, reference_id, priority, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at;`

	err := q.QueryRow(ctx, query,
		n.ID, n.UserID, n.Title, n.Body, n.Category, n.ReferenceID, n.Priority, n.Metadata,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notification repo: Create: %w", err)
	}

	return nil
}
