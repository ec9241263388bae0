package mysql

import (
	"context"

	"gorm.io/gorm"

	"Circle_Social/internal/model"
)

type OutboxRepository struct {
	DB *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

// ListPending outbox 查询：未发送且未超过重试上限
func (r *OutboxRepository) ListPending(ctx context.Context, batchSize int) ([]model.InteractionOutbox, error) {
	var list []model.InteractionOutbox
	if err := r.DB.WithContext(ctx).
		Where("status <> ? AND retry < ?", model.OutboxSent, model.OutboxMaxRetry).
		Order("created_at ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// MarkFailed outbox 记录消息失败重试
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&model.InteractionOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

// MarkSent outbox 成功记录消息更新
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&model.InteractionOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}
