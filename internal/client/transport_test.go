package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
	"Circle_Social/internal/pkg"
	"Circle_Social/internal/repository/memory"
	"Circle_Social/internal/router"
	"Circle_Social/internal/service"
)

func newAPIServer(t *testing.T) (*httptest.Server, *service.CircleService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	log := zap.NewNop()
	circles := service.NewCircleService(store, log)
	r := router.InitRouter(router.Deps{
		Circles:  circles,
		Messages: service.NewMessageService(store, store, nil, nil, log),
		Log:      log,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, circles
}

func transportFor(t *testing.T, baseURL string, user uint64) *HTTPTransport {
	t.Helper()
	token, err := pkg.GenerateAccess(user, time.Hour)
	require.NoError(t, err)
	return NewHTTPTransport(baseURL, token, BreakerConfig{MaxFailures: 3}, zap.NewNop())
}

func TestHTTPTransport_EndToEnd(t *testing.T) {
	ctx := context.Background()
	srv, circles := newAPIServer(t)

	author := NewManager(transportFor(t, srv.URL, 1), 1, zap.NewNop(), nil)
	reader := NewManager(transportFor(t, srv.URL, me), me, zap.NewNop(), nil)

	created, err := author.CreateMessage(ctx, NewMessage{Content: "three good things"})
	require.NoError(t, err)

	require.NoError(t, reader.Load(ctx, ""))
	require.Len(t, reader.Messages(), 1)

	applied, err := reader.ToggleReaction(ctx, created.ID, model.ReactionInspire)
	require.NoError(t, err)
	assert.True(t, applied)
	_, err = reader.ToggleFavorite(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, author.Reload(ctx, created.ID))
	got, ok := author.Message(created.ID)
	require.True(t, ok)
	assert.Equal(t, model.ReactionInspire, engine.ReactionOf(got.Reactions, me))
	assert.True(t, engine.HasFavorited(got.Favorites, me))

	// reader 不是作者，删除被拒绝后本地恢复
	_, err = reader.DeleteMessage(ctx, created.ID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
	_, ok = reader.Message(created.ID)
	assert.True(t, ok)

	// 加入私密社区
	c, err := circles.Create(ctx, 1, "Evening Reflections", model.CirclePrivate, "")
	require.NoError(t, err)
	require.NoError(t, reader.LoadCircle(ctx, c.ID))
	status, err := reader.JoinCircle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status)

	err = reader.LoadCircle(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

// 两个用户：一方的缓存早于另一方的 reaction，第一次整体替换被服务端拒绝，之后恢复正常
func TestHTTPTransport_StaleCacheRecovers(t *testing.T) {
	ctx := context.Background()
	srv, _ := newAPIServer(t)

	author := NewManager(transportFor(t, srv.URL, 1), 1, zap.NewNop(), nil)
	created, err := author.CreateMessage(ctx, NewMessage{Content: "slept eight hours"})
	require.NoError(t, err)

	stale := NewManager(transportFor(t, srv.URL, me), me, zap.NewNop(), nil)
	require.NoError(t, stale.Load(ctx, ""))

	other := NewManager(transportFor(t, srv.URL, 2), 2, zap.NewNop(), nil)
	require.NoError(t, other.Load(ctx, ""))
	_, err = other.ToggleReaction(ctx, created.ID, model.ReactionLove)
	require.NoError(t, err)

	_, err = stale.ToggleReaction(ctx, created.ID, model.ReactionPray)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	got, ok := stale.Message(created.ID)
	require.True(t, ok)
	assert.Equal(t, model.ReactionLove, engine.ReactionOf(got.Reactions, 2), "server state reloaded")
	assert.Empty(t, engine.ReactionOf(got.Reactions, me))

	for i := 0; i < 2; i++ {
		_, err = stale.ToggleFavorite(ctx, created.ID)
		require.NoError(t, err)
	}
	applied, err := stale.ToggleReaction(ctx, created.ID, model.ReactionPray)
	require.NoError(t, err)
	assert.True(t, applied)

	require.NoError(t, other.Reload(ctx, created.ID))
	got, _ = other.Message(created.ID)
	require.Len(t, got.Reactions, 2)
	assert.Equal(t, model.ReactionPray, engine.ReactionOf(got.Reactions, me))
	assert.Equal(t, model.ReactionLove, engine.ReactionOf(got.Reactions, 2))
}

func TestHTTPTransport_ListMessagesPages(t *testing.T) {
	ctx := context.Background()
	srv, _ := newAPIServer(t)
	author := NewManager(transportFor(t, srv.URL, 1), 1, zap.NewNop(), nil)

	total := listPageSize + 7
	for i := 0; i < total; i++ {
		_, err := author.CreateMessage(ctx, NewMessage{Content: fmt.Sprintf("note %d", i)})
		require.NoError(t, err)
	}

	reader := NewManager(transportFor(t, srv.URL, me), me, zap.NewNop(), nil)
	require.NoError(t, reader.Load(ctx, ""))
	list := reader.Messages()
	require.Len(t, list, total)

	seen := make(map[string]struct{}, total)
	for i, m := range list {
		seen[m.ID] = struct{}{}
		if i > 0 {
			assert.False(t, m.CreatedAt.After(list[i-1].CreatedAt), "newest first")
		}
	}
	assert.Len(t, seen, total)
}

func TestHTTPTransport_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"msg":"internal error","code":"INTERNAL"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "", BreakerConfig{MaxFailures: 2, Timeout: time.Minute}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := tr.GetMessage(ctx, "m1")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "INTERNAL", apiErr.Code)
	}
	_, err := tr.GetMessage(ctx, "m1")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPTransport_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"msg":"not found","code":"NOT_FOUND"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "", BreakerConfig{MaxFailures: 1}, zap.NewNop())
	for i := 0; i < 3; i++ {
		_, err := tr.GetCircle(context.Background(), "c1")
		assert.True(t, IsNotFound(err))
	}
}
