package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "test_session", time.Hour, false)
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Equal(t, int64(0), sess.UserID())

	sess.SetUser(7, "ani", "Ani S.")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.NotEmpty(t, cookies[0].Value)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req2)
	require.NoError(t, err)
	require.Equal(t, int64(7), loaded.UserID())
	require.Equal(t, "ani", loaded.Username())
	require.Equal(t, "Ani S.", loaded.DisplayName())
}

func TestSessionDestroy(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser(7, "ani", "")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)

	sm.Destroy(loaded)
	rec2 := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec2, loaded))
	require.Equal(t, -1, rec2.Result().Cookies()[0].MaxAge)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	fresh, err := sm.Load(ctx, req2)
	require.NoError(t, err)
	require.Equal(t, int64(0), fresh.UserID())
}

func TestActorFromContext(t *testing.T) {
	require.Equal(t, "system", ActorFromContext(context.Background()))

	sess := &Session{}
	sess.SetUser(1, "ani", "Ani S.")
	ctx := ContextWithSession(context.Background(), sess)
	require.Equal(t, "Ani S.", ActorFromContext(ctx))
}
