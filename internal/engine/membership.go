// Package engine holds the pure state transitions for circle membership and
// message interactions. Functions never mutate their inputs; callers persist
// the returned arrays as a whole.
package engine

import (
	"strings"
	"time"

	"Circle_Social/internal/model"
)

// NewCircle 创建社区，创建者以 owner 身份直接成为 active 成员
func NewCircle(id string, owner uint64, name string, typ model.CircleType, category string, now time.Time) (*model.Circle, error) {
	if owner == 0 {
		return nil, ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrCircleNameRequired
	}
	if !typ.Valid() {
		return nil, ErrInvalidCircleType
	}
	return &model.Circle{
		ID:       id,
		Name:     name,
		Type:     typ,
		Owner:    owner,
		Category: category,
		Members: []model.Membership{{
			User:     owner,
			Role:     model.RoleOwner,
			Status:   model.StatusActive,
			JoinedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// FindMembership returns the index of user's membership, or -1.
func FindMembership(members []model.Membership, user uint64) int {
	for i := range members {
		if members[i].User == user {
			return i
		}
	}
	return -1
}

func IsActiveMember(members []model.Membership, user uint64) bool {
	i := FindMembership(members, user)
	return i >= 0 && members[i].Status == model.StatusActive
}

// CanModerate 只有 active 的 owner/admin/moderator 才能审批
func CanModerate(members []model.Membership, user uint64) bool {
	i := FindMembership(members, user)
	if i < 0 || members[i].Status != model.StatusActive {
		return false
	}
	switch members[i].Role {
	case model.RoleOwner, model.RoleAdmin, model.RoleModerator:
		return true
	}
	return false
}

// RequestJoin 计算加入请求后的成员列表。公开社区直接 active，其余(private/invite_only)一律 pending
func RequestJoin(circle *model.Circle, user uint64, now time.Time) (model.MemberStatus, []model.Membership, error) {
	if circle == nil {
		return "", nil, ErrCircleNotFound
	}
	if user == 0 {
		return "", nil, ErrUnauthenticated
	}
	if i := FindMembership(circle.Members, user); i >= 0 {
		if circle.Members[i].Status == model.StatusPending {
			return "", nil, ErrAlreadyPending
		}
		return "", nil, ErrAlreadyMember
	}

	status := model.StatusPending
	if circle.Type == model.CirclePublic {
		status = model.StatusActive
	}

	next := make([]model.Membership, 0, len(circle.Members)+1)
	next = append(next, circle.Members...)
	next = append(next, model.Membership{
		User:     user,
		Role:     model.RoleMember,
		Status:   status,
		JoinedAt: now,
	})
	return status, next, nil
}

// Approve pending -> active. joinedAt stays at the request time.
func Approve(members []model.Membership, actor, target uint64) ([]model.Membership, error) {
	if actor == 0 {
		return nil, ErrUnauthenticated
	}
	if !CanModerate(members, actor) {
		return nil, ErrForbidden
	}
	i := FindMembership(members, target)
	if i < 0 {
		return nil, ErrMembershipNotFound
	}
	if members[i].Status != model.StatusPending {
		return nil, ErrNotPending
	}
	next := append([]model.Membership(nil), members...)
	next[i].Status = model.StatusActive
	return next, nil
}

// Leave 移除自己的成员记录（pending 状态即撤回申请），owner 不允许离开
func Leave(members []model.Membership, user uint64) ([]model.Membership, error) {
	if user == 0 {
		return nil, ErrUnauthenticated
	}
	i := FindMembership(members, user)
	if i < 0 {
		return nil, ErrMembershipNotFound
	}
	if members[i].Role == model.RoleOwner {
		return nil, ErrOwnerCannotLeave
	}
	return removeMembers(members, user, false), nil
}

// RemoveUser drops every non-owner membership held by a deleted user.
func RemoveUser(members []model.Membership, user uint64) ([]model.Membership, bool) {
	next := removeMembers(members, user, true)
	return next, len(next) != len(members)
}

func removeMembers(members []model.Membership, user uint64, keepOwner bool) []model.Membership {
	next := make([]model.Membership, 0, len(members))
	for _, m := range members {
		if m.User == user && !(keepOwner && m.Role == model.RoleOwner) {
			continue
		}
		next = append(next, m)
	}
	return next
}
