package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Circle_Social/internal/model"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newCircle(t *testing.T, typ model.CircleType) *model.Circle {
	t.Helper()
	c, err := NewCircle("c1", 1, "Morning Gratitude", typ, "gratitude", t0)
	require.NoError(t, err)
	return c
}

func TestNewCircle_OwnerMembership(t *testing.T) {
	c := newCircle(t, model.CirclePrivate)

	require.Len(t, c.Members, 1)
	assert.Equal(t, model.Membership{User: 1, Role: model.RoleOwner, Status: model.StatusActive, JoinedAt: t0}, c.Members[0])
}

func TestNewCircle_Validation(t *testing.T) {
	_, err := NewCircle("c1", 0, "x", model.CirclePublic, "", t0)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = NewCircle("c1", 1, "   ", model.CirclePublic, "", t0)
	assert.ErrorIs(t, err, ErrCircleNameRequired)

	_, err = NewCircle("c1", 1, "x", model.CircleType("secret"), "", t0)
	assert.ErrorIs(t, err, ErrInvalidCircleType)
}

func TestRequestJoin_StatusByCircleType(t *testing.T) {
	tests := []struct {
		typ  model.CircleType
		want model.MemberStatus
	}{
		{model.CirclePublic, model.StatusActive},
		{model.CirclePrivate, model.StatusPending},
		{model.CircleInviteOnly, model.StatusPending},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			c := newCircle(t, tt.typ)
			status, next, err := RequestJoin(c, 2, t0.Add(time.Hour))
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			require.Len(t, next, 2)
			assert.Equal(t, model.Membership{User: 2, Role: model.RoleMember, Status: tt.want, JoinedAt: t0.Add(time.Hour)}, next[1])
			// input untouched
			assert.Len(t, c.Members, 1)
		})
	}
}

func TestRequestJoin_Twice(t *testing.T) {
	for _, typ := range []model.CircleType{model.CirclePublic, model.CirclePrivate} {
		c := newCircle(t, typ)
		_, next, err := RequestJoin(c, 2, t0)
		require.NoError(t, err)
		c.Members = next

		_, again, err := RequestJoin(c, 2, t0)
		assert.Nil(t, again)
		if typ == model.CirclePublic {
			assert.ErrorIs(t, err, ErrAlreadyMember)
		} else {
			assert.ErrorIs(t, err, ErrAlreadyPending)
		}
		assert.Len(t, c.Members, 2)
	}
}

func TestRequestJoin_Errors(t *testing.T) {
	_, _, err := RequestJoin(nil, 2, t0)
	assert.ErrorIs(t, err, ErrCircleNotFound)

	_, _, err = RequestJoin(newCircle(t, model.CirclePublic), 0, t0)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// owner is already a member
	_, _, err = RequestJoin(newCircle(t, model.CirclePublic), 1, t0)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestApproveThenJoinIsAlreadyMember(t *testing.T) {
	c := newCircle(t, model.CirclePrivate)
	status, next, err := RequestJoin(c, 2, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status)
	c.Members = next

	_, _, err = RequestJoin(c, 2, t0)
	assert.ErrorIs(t, err, ErrAlreadyPending)

	approved, err := Approve(c.Members, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, c.Members[1].Status)
	c.Members = approved
	assert.Equal(t, model.StatusActive, c.Members[1].Status)
	assert.Equal(t, t0.Add(time.Minute), c.Members[1].JoinedAt)

	_, _, err = RequestJoin(c, 2, t0)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestApprove_Errors(t *testing.T) {
	c := newCircle(t, model.CirclePrivate)
	_, next, _ := RequestJoin(c, 2, t0)
	_, next, _ = RequestJoin(&model.Circle{Type: c.Type, Members: next}, 3, t0)

	_, err := Approve(next, 3, 2)
	assert.ErrorIs(t, err, ErrForbidden, "pending member cannot approve")

	_, err = Approve(next, 0, 2)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = Approve(next, 1, 9)
	assert.ErrorIs(t, err, ErrMembershipNotFound)

	_, err = Approve(next, 1, 1)
	assert.ErrorIs(t, err, ErrNotPending)

	next[0].Role = model.RoleModerator
	_, err = Approve(next, 1, 2)
	assert.NoError(t, err, "moderator can approve")
}

func TestLeave(t *testing.T) {
	c := newCircle(t, model.CirclePublic)
	_, next, _ := RequestJoin(c, 2, t0)

	_, err := Leave(next, 1)
	assert.ErrorIs(t, err, ErrOwnerCannotLeave)

	_, err = Leave(next, 7)
	assert.ErrorIs(t, err, ErrMembershipNotFound)

	left, err := Leave(next, 2)
	require.NoError(t, err)
	assert.Equal(t, c.Members, left)
}

func TestRemoveUser_KeepsOwner(t *testing.T) {
	members := []model.Membership{
		{User: 1, Role: model.RoleOwner, Status: model.StatusActive},
		{User: 2, Role: model.RoleMember, Status: model.StatusPending},
	}

	next, changed := RemoveUser(members, 1)
	assert.False(t, changed)
	assert.Len(t, next, 2)

	next, changed = RemoveUser(members, 2)
	assert.True(t, changed)
	assert.Len(t, next, 1)
}
