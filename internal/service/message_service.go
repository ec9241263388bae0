package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Circle_Social/internal/authz"
	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
	"Circle_Social/internal/pkg"
)

const (
	// summaryDoubleDeleteDelay 延迟二删的等待时间
	summaryDoubleDeleteDelay = 500 * time.Millisecond
	lockBackoff              = 50 * time.Millisecond
)

type CircleReader interface {
	GetCircle(ctx context.Context, id string) (*model.Circle, error)
}

type MessageService struct {
	store   MessageStore
	circles CircleReader
	cache   SummaryCache
	lock    Locker
	log     *zap.Logger
	now     func() time.Time
}

// NewMessageService cache 和 lock 可以为 nil（未启用 redis），此时统计直接回源
func NewMessageService(store MessageStore, circles CircleReader, cache SummaryCache, lock Locker, log *zap.Logger) *MessageService {
	return &MessageService{
		store:   store,
		circles: circles,
		cache:   cache,
		lock:    lock,
		log:     log,
		now:     time.Now,
	}
}

// PatchInput 整体替换字段，nil 表示不修改
type PatchInput struct {
	Content   *string
	Reactions []model.Reaction
	Favorites []model.Favorite
	Version   *uint64
}

// Create 发布消息；指定社区时要求作者是该社区的 active 成员
func (s *MessageService) Create(ctx context.Context, actor uint64, content, circle string, anonymous bool) (*model.Message, error) {
	if actor == 0 {
		return nil, ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content required", ErrInvalidInput)
	}
	if circle != "" {
		c, err := s.circles.GetCircle(ctx, circle)
		if err != nil {
			return nil, storeErr(err)
		}
		if !engine.IsActiveMember(c.Members, actor) {
			return nil, ErrForbidden
		}
	}
	now := s.now()
	m := &model.Message{
		ID:          uuid.NewString(),
		Content:     content,
		Author:      actor,
		IsAnonymous: anonymous,
		Circle:      circle,
		Reactions:   []model.Reaction{},
		Favorites:   []model.Favorite{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, storeErr(err)
	}
	return m, nil
}

func (s *MessageService) Get(ctx context.Context, id string) (*model.Message, error) {
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return m, nil
}

// List 游标分页，按 created_at、id 倒序
func (s *MessageService) List(ctx context.Context, circle, lastID string, lastCreatedAt time.Time, size int) ([]model.Message, error) {
	if size <= 0 || size > 50 {
		size = 20
	}
	list, err := s.store.ListMessages(ctx, circle, lastID, lastCreatedAt, size)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}

func (s *MessageService) Delete(ctx context.Context, actor uint64, id string) error {
	if actor == 0 {
		return ErrUnauthorized
	}
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return storeErr(err)
	}
	if !authz.CanModifyMessage(actor, m) {
		return ErrForbidden
	}
	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return storeErr(err)
	}
	s.invalidateSummary(ctx, id)
	return nil
}

// Patch 整体替换 content / reactions / favorites。
// 没有 version 时后写覆盖；数组变更只能涉及操作者自己的条目
func (s *MessageService) Patch(ctx context.Context, actor uint64, id string, in PatchInput) (*model.Message, error) {
	if actor == 0 {
		return nil, ErrUnauthorized
	}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if content == "" {
			return nil, fmt.Errorf("%w: content required", ErrInvalidInput)
		}
		in.Content = &content
	}
	if in.Reactions != nil {
		if err := engine.ValidateReactions(in.Reactions); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if in.Favorites != nil {
		if err := engine.ValidateFavorites(in.Favorites); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	reactionsChanged := false
	m, err := s.store.MutateMessage(ctx, id, func(m *model.Message) ([]model.Event, error) {
		if in.Version != nil && *in.Version != m.Version {
			return nil, ErrVersionConflict
		}
		if in.Content != nil && *in.Content != m.Content && !authz.CanModifyMessage(actor, m) {
			return nil, ErrForbidden
		}
		if !authz.CanWriteInteractions(actor, m, in.Reactions, in.Favorites) {
			return nil, ErrForbidden
		}

		var events []model.Event
		reactionsChanged = false
		if in.Reactions != nil {
			for u := range engine.ChangedReactionUsers(m.Reactions, in.Reactions) {
				reactionsChanged = true
				events = append(events, reactionEvent(m.ID, u, engine.ReactionOf(in.Reactions, u)))
			}
			m.Reactions = append([]model.Reaction{}, in.Reactions...)
		}
		if in.Favorites != nil {
			for u := range engine.ChangedFavoriteUsers(m.Favorites, in.Favorites) {
				events = append(events, favoriteEvent(m.ID, u, engine.HasFavorited(in.Favorites, u)))
			}
			m.Favorites = append([]model.Favorite{}, in.Favorites...)
		}
		if in.Content != nil {
			m.Content = *in.Content
		}
		return events, nil
	})
	if err != nil {
		err = storeErr(err)
		pkg.ArrayReplacements.WithLabelValues(errorLabel(err)).Inc()
		return nil, err
	}
	pkg.ArrayReplacements.WithLabelValues("ok").Inc()
	if reactionsChanged {
		s.invalidateSummary(ctx, id)
	}
	return m, nil
}

// ToggleReaction 服务端按用户 upsert/remove，读改写在存储层原子执行，不会丢失并发更新
func (s *MessageService) ToggleReaction(ctx context.Context, actor uint64, id string, typ model.ReactionType) (*model.Message, error) {
	if actor == 0 {
		return nil, ErrUnauthorized
	}
	if !typ.Valid() {
		return nil, engine.ErrInvalidReactionType
	}
	m, err := s.store.MutateMessage(ctx, id, func(m *model.Message) ([]model.Event, error) {
		next, err := engine.SetReaction(m.Reactions, actor, typ, s.now())
		if err != nil {
			return nil, err
		}
		m.Reactions = next
		return []model.Event{reactionEvent(m.ID, actor, engine.ReactionOf(next, actor))}, nil
	})
	if err != nil {
		err = storeErr(err)
		pkg.InteractionToggles.WithLabelValues("reaction", errorLabel(err)).Inc()
		return nil, err
	}
	pkg.InteractionToggles.WithLabelValues("reaction", "ok").Inc()
	s.invalidateSummary(ctx, id)
	return m, nil
}

func (s *MessageService) ToggleFavorite(ctx context.Context, actor uint64, id string) (*model.Message, error) {
	if actor == 0 {
		return nil, ErrUnauthorized
	}
	m, err := s.store.MutateMessage(ctx, id, func(m *model.Message) ([]model.Event, error) {
		next, err := engine.SetFavorite(m.Favorites, actor, s.now())
		if err != nil {
			return nil, err
		}
		m.Favorites = next
		return []model.Event{favoriteEvent(m.ID, actor, engine.HasFavorited(next, actor))}, nil
	})
	if err != nil {
		err = storeErr(err)
		pkg.InteractionToggles.WithLabelValues("favorite", errorLabel(err)).Inc()
		return nil, err
	}
	pkg.InteractionToggles.WithLabelValues("favorite", "ok").Inc()
	return m, nil
}

// Summary 各类型 reaction 数量。先读缓存；未命中时加锁单飞回源，拿不到锁短暂退避后再读一次缓存
func (s *MessageService) Summary(ctx context.Context, id string) ([]engine.ReactionCount, error) {
	if s.cache == nil {
		return s.loadSummary(ctx, id)
	}
	if v, ok, err := s.cache.GetSummary(ctx, id); err == nil && ok {
		pkg.SummaryCache.WithLabelValues("hit").Inc()
		return v, nil
	}
	pkg.SummaryCache.WithLabelValues("miss").Inc()
	if s.lock == nil {
		return s.rebuildSummary(ctx, id)
	}

	token := uuid.NewString()
	got, err := s.lock.Acquire(ctx, id, token)
	if err != nil {
		s.log.Warn("acquire summary lock", zap.String("message", id), zap.Error(err))
	}
	if got {
		defer func() {
			if err := s.lock.Release(ctx, id, token); err != nil {
				s.log.Warn("release summary lock", zap.String("message", id), zap.Error(err))
			}
		}()
		// 二次检查
		if v, ok, err := s.cache.GetSummary(ctx, id); err == nil && ok {
			return v, nil
		}
		return s.rebuildSummary(ctx, id)
	}

	t := time.NewTimer(lockBackoff)
	select {
	case <-ctx.Done():
		t.Stop()
		return nil, ctx.Err()
	case <-t.C:
	}
	if v, ok, err := s.cache.GetSummary(ctx, id); err == nil && ok {
		return v, nil
	}
	return s.loadSummary(ctx, id)
}

func (s *MessageService) rebuildSummary(ctx context.Context, id string) ([]engine.ReactionCount, error) {
	counts, err := s.loadSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetSummary(ctx, id, counts); err != nil {
		s.log.Warn("set summary cache", zap.String("message", id), zap.Error(err))
	}
	return counts, nil
}

func (s *MessageService) loadSummary(ctx context.Context, id string) ([]engine.ReactionCount, error) {
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return engine.SummarizeReactions(m.Reactions), nil
}

// invalidateSummary 写库成功后删缓存，并延迟二删
func (s *MessageService) invalidateSummary(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteSummary(ctx, id, summaryDoubleDeleteDelay); err != nil {
		s.log.Warn("delete summary cache", zap.String("message", id), zap.Error(err))
	}
}

func reactionEvent(messageID string, user uint64, typ model.ReactionType) model.Event {
	return model.Event{
		Type:        model.EventReactionChanged,
		AggregateID: messageID,
		UserID:      user,
		Data:        map[string]any{"type": typ},
	}
}

func favoriteEvent(messageID string, user uint64, favorited bool) model.Event {
	return model.Event{
		Type:        model.EventFavoriteChanged,
		AggregateID: messageID,
		UserID:      user,
		Data:        map[string]any{"favorited": favorited},
	}
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthorized):
		return "denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrVersionConflict):
		return "conflict"
	case errors.Is(err, ErrPersistence):
		return "error"
	default:
		return "invalid"
	}
}
