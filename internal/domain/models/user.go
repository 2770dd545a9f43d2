package models

import (
	"context"
	"time"

	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID        `json:"id"`
	Phone     string           `json:"phone"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	Role      types.UserRole   `json:"role"`
	Status    types.UserStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (u *User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u *User) IsActive() bool {
	return u.Status == types.UserActive
}

type contextKey string

const userContextKey = contextKey("user")

// ContextSetUser returns a copy of ctx with the authenticated user attached.
func ContextSetUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// ContextGetUser retrieves the authenticated user from ctx. The second
// return value is false when no user was attached (unauthenticated path).
func ContextGetUser(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok
}
