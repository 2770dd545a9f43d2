package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/addisride/dispatch/pkg/logger"
)

type stubUserRepo struct {
	users map[uuid.UUID]*models.User
}

func (r *stubUserRepo) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	return u, nil
}

func newTokenHarness(users ...*models.User) (*TokenService, *stubUserRepo) {
	repo := &stubUserRepo{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	log := logger.InitLogger("auth-test", logger.LevelError)
	return NewTokenService("test-secret", 15*time.Minute, repo, log), repo
}

func activeDriver() *models.User {
	return &models.User{
		ID:     uuid.New(),
		Phone:  "+251911000010",
		Role:   types.DriverRole,
		Status: types.UserActive,
	}
}

func TestAuthenticate_Roundtrip(t *testing.T) {
	user := activeDriver()
	svc, _ := newTokenHarness(user)

	token, err := svc.GenerateAccess(user)
	require.NoError(t, err)

	got, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, types.DriverRole, got.Role)
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	user := activeDriver()
	svc, _ := newTokenHarness(user)

	other := NewTokenService("other-secret", 15*time.Minute, nil, logger.InitLogger("auth-test", logger.LevelError))
	token, err := other.GenerateAccess(user)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	user := activeDriver()
	svc, _ := newTokenHarness(user)

	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"exp":     time.Now().UTC().Add(-time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthenticate_RejectsUnexpectedSigningMethod(t *testing.T) {
	user := activeDriver()
	svc, _ := newTokenHarness(user)

	claims := jwt.MapClaims{"user_id": user.ID.String()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_MissingUserIDClaim(t *testing.T) {
	svc, _ := newTokenHarness()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "nobody"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	svc, _ := newTokenHarness()

	ghost := activeDriver()
	token, err := svc.GenerateAccess(ghost)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestAuthenticate_DeactivatedAccount(t *testing.T) {
	user := activeDriver()
	user.Status = types.UserDeactivated
	svc, _ := newTokenHarness(user)

	token, err := svc.GenerateAccess(user)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, types.ErrAccountDeactivated)
}

func TestAuthenticate_DeletedAccount(t *testing.T) {
	user := activeDriver()
	user.Status = types.UserDeleted
	svc, _ := newTokenHarness(user)

	token, err := svc.GenerateAccess(user)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}
