package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/addisride/dispatch/pkg/logger"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type UserRepo interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// TokenService validates bearer tokens issued by the authentication
// subsystem and resolves them to active users. Issuance lives elsewhere;
// GenerateAccess exists for development tooling and tests.
type TokenService struct {
	userRepo  UserRepo
	secret    string
	accessTTL time.Duration
	log       logger.Logger
}

func NewTokenService(secret string, accessTTL time.Duration, userRepo UserRepo, log logger.Logger) *TokenService {
	return &TokenService{
		userRepo:  userRepo,
		secret:    secret,
		accessTTL: accessTTL,
		log:       log,
	}
}

// Authenticate parses and verifies an access token and loads its user.
// Deactivated and deleted accounts are rejected even with a valid token.
func (s *TokenService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	ctx = wrap.WithAction(ctx, "authenticate")

	userID, err := s.parse(token)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			return nil, wrap.Error(ctx, types.ErrUnauthorized)
		}
		return nil, wrap.Error(ctx, err)
	}

	switch user.Status {
	case types.UserActive:
	case types.UserDeactivated:
		return nil, wrap.Error(wrap.WithUserID(ctx, user.ID.String()), types.ErrAccountDeactivated)
	default:
		return nil, wrap.Error(wrap.WithUserID(ctx, user.ID.String()), types.ErrUnauthorized)
	}

	return user, nil
}

func (s *TokenService) parse(token string) (uuid.UUID, error) {
	parsedToken, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrExpiredToken
		}
		return uuid.Nil, ErrInvalidToken
	}
	if !parsedToken.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	mc, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}

	userIDStr, _ := mc["user_id"].(string)
	if userIDStr == "" {
		return uuid.Nil, fmt.Errorf("%w: missing 'user_id' claim", ErrInvalidToken)
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed 'user_id' claim", ErrInvalidToken)
	}

	return userID, nil
}

// GenerateAccess signs a short-lived access token for the given user.
func (s *TokenService) GenerateAccess(user *models.User) (string, error) {
	issuedAt := time.Now().UTC()

	claims := jwt.MapClaims{
		"jti":     uuid.NewString(),
		"user_id": user.ID.String(),
		"role":    user.Role.String(),
		"iat":     issuedAt.Unix(),
		"exp":     issuedAt.Add(s.accessTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}
