package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
	"Circle_Social/internal/repository/memory"
)

const (
	owner uint64 = 1
	alice uint64 = 2
	bob   uint64 = 3
)

func newCircleService(t *testing.T) (*CircleService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewCircleService(store, zap.NewNop()), store
}

func mustCircle(t *testing.T, s *CircleService, typ model.CircleType) *model.Circle {
	t.Helper()
	c, err := s.Create(context.Background(), owner, "Morning Pages", typ, "journaling")
	require.NoError(t, err)
	return c
}

func TestCircleService_JoinPublicIsActive(t *testing.T) {
	s, store := newCircleService(t)
	c := mustCircle(t, s, model.CirclePublic)

	status, err := s.Join(context.Background(), alice, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, status)

	got, err := store.GetCircle(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 2)
	assert.Equal(t, alice, got.Members[1].User)
	assert.Equal(t, model.RoleMember, got.Members[1].Role)
}

func TestCircleService_JoinApproveScenario(t *testing.T) {
	ctx := context.Background()
	s, _ := newCircleService(t)
	c := mustCircle(t, s, model.CirclePrivate)

	status, err := s.Join(ctx, alice, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status)

	_, err = s.Join(ctx, alice, c.ID)
	assert.ErrorIs(t, err, engine.ErrAlreadyPending)

	// 普通成员不能审批
	assert.ErrorIs(t, s.Approve(ctx, alice, c.ID, alice), engine.ErrForbidden)
	require.NoError(t, s.Approve(ctx, owner, c.ID, alice))

	_, err = s.Join(ctx, alice, c.ID)
	assert.ErrorIs(t, err, engine.ErrAlreadyMember)

	got, err := s.Get(ctx, alice, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)
}

func TestCircleService_JoinErrors(t *testing.T) {
	ctx := context.Background()
	s, store := newCircleService(t)
	c := mustCircle(t, s, model.CircleInviteOnly)

	_, err := s.Join(ctx, 0, c.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.Join(ctx, alice, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	store.FailWrites = true
	_, err = s.Join(ctx, alice, c.ID)
	assert.ErrorIs(t, err, ErrPersistence)
	store.FailWrites = false

	got, err := store.GetCircle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, engine.FindMembership(got.Members, alice), "failed write must not record the membership")
}

func TestCircleService_JoinWritesOutbox(t *testing.T) {
	ctx := context.Background()
	s, store := newCircleService(t)
	c := mustCircle(t, s, model.CirclePrivate)

	_, err := s.Join(ctx, alice, c.ID)
	require.NoError(t, err)

	rows := store.Outbox()
	require.Len(t, rows, 1)
	assert.Equal(t, model.EventMembershipRequested, rows[0].EventType)
	assert.Equal(t, c.ID, rows[0].AggregateID)
	assert.Equal(t, alice, rows[0].UserID)
	assert.Contains(t, rows[0].Payload, `"status":"pending"`)
}

func TestCircleService_GetVisibility(t *testing.T) {
	ctx := context.Background()
	s, _ := newCircleService(t)
	pub := mustCircle(t, s, model.CirclePublic)
	priv := mustCircle(t, s, model.CirclePrivate)

	_, err := s.Get(ctx, 0, pub.ID)
	assert.NoError(t, err)
	_, err = s.Get(ctx, 0, priv.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.Get(ctx, bob, priv.ID)
	assert.NoError(t, err)

	list, err := s.List(ctx, 0, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pub.ID, list[0].ID)

	list, err = s.List(ctx, bob, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCircleService_DeleteOwnerOnly(t *testing.T) {
	ctx := context.Background()
	s, _ := newCircleService(t)
	c := mustCircle(t, s, model.CirclePublic)

	assert.ErrorIs(t, s.Delete(ctx, alice, c.ID), ErrForbidden)
	assert.ErrorIs(t, s.Delete(ctx, 0, c.ID), ErrUnauthorized)
	require.NoError(t, s.Delete(ctx, owner, c.ID))

	_, err := s.Get(ctx, owner, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCircleService_Leave(t *testing.T) {
	ctx := context.Background()
	s, _ := newCircleService(t)
	c := mustCircle(t, s, model.CirclePublic)

	assert.ErrorIs(t, s.Leave(ctx, owner, c.ID), engine.ErrOwnerCannotLeave)
	assert.ErrorIs(t, s.Leave(ctx, alice, c.ID), engine.ErrMembershipNotFound)

	_, err := s.Join(ctx, alice, c.ID)
	require.NoError(t, err)
	require.NoError(t, s.Leave(ctx, alice, c.ID))

	// 离开后可以重新加入
	status, err := s.Join(ctx, alice, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, status)
}

func TestCircleService_PurgeUser(t *testing.T) {
	ctx := context.Background()
	s, store := newCircleService(t)
	a := mustCircle(t, s, model.CirclePublic)
	b := mustCircle(t, s, model.CirclePrivate)
	mustCircle(t, s, model.CirclePublic)

	_, err := s.Join(ctx, alice, a.ID)
	require.NoError(t, err)
	_, err = s.Join(ctx, alice, b.ID)
	require.NoError(t, err)

	n, err := s.PurgeUser(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := store.CirclesWithMember(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// owner 的记录保留
	n, err = s.PurgeUser(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	got, err := store.GetCircle(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, engine.IsActiveMember(got.Members, owner))
}
