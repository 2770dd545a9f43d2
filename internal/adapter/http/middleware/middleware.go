package middleware

import (
	"context"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/pkg/logger"
)

type (
	AuthService interface {
		Authenticate(ctx context.Context, token string) (*models.User, error)
	}

	Middleware struct {
		auth AuthService
		log  logger.Logger
	}
)

func NewMiddleware(auth AuthService, log logger.Logger) *Middleware {
	return &Middleware{
		auth: auth,
		log:  log,
	}
}
