package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sarisync/sarisync/internal/shared"
)

type memoryRepo struct {
	users map[string]User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]User)}
}

func (r *memoryRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (r *memoryRepo) Create(_ context.Context, user User) error {
	if _, ok := r.users[user.Email]; ok {
		return ErrEmailTaken
	}
	r.users[user.Email] = user
	return nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(newMemoryRepo(), client, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	sess, err := svc.SignUp(ctx, "  Tindera@Example.COM ", "secret")
	require.NoError(t, err)
	require.Equal(t, "tindera@example.com", sess.Email)
	require.NotEmpty(t, sess.Token)
	require.NotNil(t, svc.Current())

	require.NoError(t, svc.SignOut(ctx))
	require.Nil(t, svc.Current())

	sess, err = svc.SignIn(ctx, "tindera@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "tindera@example.com", sess.Email)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.SignUp(ctx, "owner@example.com", "secret")
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "owner@example.com", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "nobody@example.com", "secret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.SignUp(ctx, "owner@example.com", "secret")
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, "owner@example.com", "other")
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.SignUp(ctx, "", "secret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess, err := svc.SignUp(ctx, "owner@example.com", "secret")
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(ctx))

	restored, err := svc.Resume(ctx, sess.Token)
	require.NoError(t, err)
	require.Equal(t, sess.UserID, restored.UserID)
	require.NotNil(t, svc.Current())

	_, err = svc.Resume(ctx, "unknown-token")
	require.ErrorIs(t, err, shared.ErrSessionRequired)
}

func TestSignOutWhileSignedOutIsNoOp(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.SignOut(context.Background()))
}

func TestSubscribePrimesAndNotifies(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	ch, release := svc.Subscribe()
	defer release()
	require.Nil(t, <-ch, "primed with the signed-out state")

	sess, err := svc.SignUp(ctx, "owner@example.com", "secret")
	require.NoError(t, err)
	got := <-ch
	require.NotNil(t, got)
	require.Equal(t, sess.Token, got.Token)

	require.NoError(t, svc.SignOut(ctx))
	require.Nil(t, <-ch)

	release()
	_, ok := <-ch
	require.False(t, ok)
}
