package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Circle_Social/internal/authz"
	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
	"Circle_Social/internal/pkg"
)

type CircleService struct {
	store CircleStore
	log   *zap.Logger
	now   func() time.Time
}

func NewCircleService(store CircleStore, log *zap.Logger) *CircleService {
	return &CircleService{store: store, log: log, now: time.Now}
}

func (s *CircleService) Create(ctx context.Context, actor uint64, name string, typ model.CircleType, category string) (*model.Circle, error) {
	if actor == 0 {
		return nil, ErrUnauthorized
	}
	c, err := engine.NewCircle(uuid.NewString(), actor, name, typ, category, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateCircle(ctx, c, nil); err != nil {
		return nil, storeErr(err)
	}
	s.log.Info("circle created", zap.String("circle", c.ID), zap.Uint64("owner", actor), zap.String("type", string(typ)))
	return c, nil
}

// Get 未登录用户只能看到公开社区
func (s *CircleService) Get(ctx context.Context, actor uint64, id string) (*model.Circle, error) {
	c, err := s.store.GetCircle(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if !authz.CanReadCircle(actor, c) {
		return nil, ErrUnauthorized
	}
	return c, nil
}

func (s *CircleService) List(ctx context.Context, actor uint64, page, size int) ([]model.Circle, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 50 {
		size = 20
	}
	list, err := s.store.ListCircles(ctx, (page-1)*size, size)
	if err != nil {
		return nil, storeErr(err)
	}
	visible := list[:0]
	for i := range list {
		if authz.CanReadCircle(actor, &list[i]) {
			visible = append(visible, list[i])
		}
	}
	return visible, nil
}

func (s *CircleService) Delete(ctx context.Context, actor uint64, id string) error {
	if actor == 0 {
		return ErrUnauthorized
	}
	c, err := s.store.GetCircle(ctx, id)
	if err != nil {
		return storeErr(err)
	}
	if !authz.CanDeleteCircle(actor, c) {
		return ErrForbidden
	}
	if err := s.store.DeleteCircle(ctx, id); err != nil {
		return storeErr(err)
	}
	s.log.Info("circle deleted", zap.String("circle", id), zap.Uint64("owner", actor))
	return nil
}

// Join 申请加入社区，返回新成员的状态。成员数组在存储层的原子读改写中整体替换
func (s *CircleService) Join(ctx context.Context, actor uint64, id string) (model.MemberStatus, error) {
	if !authz.CanUpdateCircle(actor) {
		pkg.JoinRequests.WithLabelValues("unauthorized").Inc()
		return "", ErrUnauthorized
	}
	var status model.MemberStatus
	_, err := s.store.MutateCircle(ctx, id, func(c *model.Circle) ([]model.Event, error) {
		st, members, err := engine.RequestJoin(c, actor, s.now())
		if err != nil {
			return nil, err
		}
		c.Members = members
		status = st
		return []model.Event{{
			Type:        model.EventMembershipRequested,
			AggregateID: c.ID,
			UserID:      actor,
			Data:        map[string]any{"status": st, "circle_name": c.Name},
		}}, nil
	})
	if err != nil {
		err = storeErr(err)
		pkg.JoinRequests.WithLabelValues(joinResult(err)).Inc()
		if errors.Is(err, ErrPersistence) {
			s.log.Error("join circle", zap.String("circle", id), zap.Uint64("user", actor), zap.Error(err))
		}
		return "", err
	}
	pkg.JoinRequests.WithLabelValues(string(status)).Inc()
	s.log.Info("join requested", zap.String("circle", id), zap.Uint64("user", actor), zap.String("status", string(status)))
	return status, nil
}

func joinResult(err error) string {
	switch {
	case errors.Is(err, engine.ErrAlreadyPending):
		return "already_pending"
	case errors.Is(err, engine.ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Leave 退出社区或撤回待审批的申请
func (s *CircleService) Leave(ctx context.Context, actor uint64, id string) error {
	if !authz.CanUpdateCircle(actor) {
		return ErrUnauthorized
	}
	_, err := s.store.MutateCircle(ctx, id, func(c *model.Circle) ([]model.Event, error) {
		members, err := engine.Leave(c.Members, actor)
		if err != nil {
			return nil, err
		}
		c.Members = members
		return []model.Event{{Type: model.EventMembershipLeft, AggregateID: c.ID, UserID: actor}}, nil
	})
	return storeErr(err)
}

// Approve 由 owner/admin/moderator 审批 pending 成员
func (s *CircleService) Approve(ctx context.Context, actor uint64, id string, target uint64) error {
	if !authz.CanUpdateCircle(actor) {
		return ErrUnauthorized
	}
	_, err := s.store.MutateCircle(ctx, id, func(c *model.Circle) ([]model.Event, error) {
		members, err := engine.Approve(c.Members, actor, target)
		if err != nil {
			return nil, err
		}
		c.Members = members
		return []model.Event{{
			Type:        model.EventMembershipApproved,
			AggregateID: c.ID,
			UserID:      target,
			Data:        map[string]any{"approved_by": actor},
		}}, nil
	})
	if err != nil {
		return storeErr(err)
	}
	s.log.Info("membership approved", zap.String("circle", id), zap.Uint64("user", target), zap.Uint64("by", actor))
	return nil
}

// PurgeUser 用户注销后移除其在所有社区的成员记录（owner 记录保留），返回受影响的社区数
func (s *CircleService) PurgeUser(ctx context.Context, user uint64) (int, error) {
	if user == 0 {
		return 0, ErrInvalidInput
	}
	ids, err := s.store.CirclesWithMember(ctx, user)
	if err != nil {
		return 0, storeErr(err)
	}
	n := 0
	for _, id := range ids {
		removed := false
		_, err := s.store.MutateCircle(ctx, id, func(c *model.Circle) ([]model.Event, error) {
			members, ok := engine.RemoveUser(c.Members, user)
			removed = ok
			if !ok {
				return nil, nil
			}
			c.Members = members
			return []model.Event{{Type: model.EventMembershipLeft, AggregateID: c.ID, UserID: user, Data: map[string]any{"reason": "user_deleted"}}}, nil
		})
		if err != nil {
			err = storeErr(err)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return n, err
		}
		if removed {
			n++
		}
	}
	return n, nil
}
