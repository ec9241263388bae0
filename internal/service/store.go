package service

import (
	"context"
	"time"

	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
	"Circle_Social/internal/repository"
)

// CircleStore 由 mysql / mongo / memory 三种存储实现
type CircleStore interface {
	CreateCircle(ctx context.Context, c *model.Circle, events []model.Event) error
	GetCircle(ctx context.Context, id string) (*model.Circle, error)
	ListCircles(ctx context.Context, offset, limit int) ([]model.Circle, error)
	DeleteCircle(ctx context.Context, id string) error
	MutateCircle(ctx context.Context, id string, fn repository.CircleMutation) (*model.Circle, error)
	CirclesWithMember(ctx context.Context, user uint64) ([]string, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	ListMessages(ctx context.Context, circle, lastID string, lastCreatedAt time.Time, limit int) ([]model.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	MutateMessage(ctx context.Context, id string, fn repository.MessageMutation) (*model.Message, error)
}

type OutboxStore interface {
	ListPending(ctx context.Context, batchSize int) ([]model.InteractionOutbox, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// SummaryCache reaction 统计缓存，redis 实现见 repository/redis
type SummaryCache interface {
	GetSummary(ctx context.Context, messageID string) ([]engine.ReactionCount, bool, error)
	SetSummary(ctx context.Context, messageID string, counts []engine.ReactionCount) error
	DeleteSummary(ctx context.Context, messageID string, delay ...time.Duration) error
}

type Locker interface {
	Acquire(ctx context.Context, messageID, token string) (bool, error)
	Release(ctx context.Context, messageID, token string) error
}
