package auth

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agfood/agfood/internal/shared"
)

type stubRepo struct {
	user    *User
	created []User
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CountUsers(ctx context.Context) (int64, error) {
	n := int64(len(s.created))
	if s.user != nil {
		n++
	}
	return n, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, user User) (int64, error) {
	s.created = append(s.created, user)
	return int64(len(s.created)), nil
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthenticate(t *testing.T) {
	repo := &stubRepo{user: &User{ID: 1, Username: "ani", PasswordHash: hash(t, "secret123"), IsActive: true}}
	svc := NewService(repo, slog.Default())
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "ani", "secret123")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)

	_, err = svc.Authenticate(ctx, "ani", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "secret123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactive(t *testing.T) {
	repo := &stubRepo{user: &User{ID: 1, Username: "ani", PasswordHash: hash(t, "secret123"), IsActive: false}}
	svc := NewService(repo, slog.Default())

	_, err := svc.Authenticate(context.Background(), "ani", "secret123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSeedAdmin(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.SeedAdmin(ctx, "admin", "changeme"))
	require.Len(t, repo.created, 1)
	require.Equal(t, "admin", repo.created[0].Username)
	require.True(t, repo.created[0].IsActive)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created[0].PasswordHash), []byte("changeme")))

	// second startup is a no-op
	require.NoError(t, svc.SeedAdmin(ctx, "admin", "changeme"))
	require.Len(t, repo.created, 1)
}
