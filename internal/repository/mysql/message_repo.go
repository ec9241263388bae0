package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Circle_Social/internal/model"
	"Circle_Social/internal/repository"
)

type MessageRepository struct {
	DB *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{DB: db}
}

func (r *MessageRepository) CreateMessage(ctx context.Context, m *model.Message) error {
	m.Version = 1
	return r.DB.WithContext(ctx).Create(m).Error
}

func (r *MessageRepository) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListMessages 基于时间游标的查询：(created_at DESC, id DESC)
// lastCreatedAt 为零值表示第一页
func (r *MessageRepository) ListMessages(ctx context.Context, circle, lastID string, lastCreatedAt time.Time, limit int) ([]model.Message, error) {
	var list []model.Message
	q := r.DB.WithContext(ctx).Model(&model.Message{})
	if circle != "" {
		q = q.Where("circle = ?", circle)
	}
	if !lastCreatedAt.IsZero() {
		// 先比时间，再在同一时间点用 id 打破并列
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", lastCreatedAt, lastCreatedAt, lastID)
	}
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *MessageRepository) DeleteMessage(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Delete(&model.Message{}, "id = ?", id).Error
}

// MutateMessage 锁行后执行 fn，reactions/favorites 整体写回
func (r *MessageRepository) MutateMessage(ctx context.Context, id string, fn repository.MessageMutation) (*model.Message, error) {
	var out *model.Message
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Message
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cur, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		next := cur.Clone()
		events, err := fn(next)
		if err != nil {
			return err
		}
		next.Version = cur.Version + 1
		res := tx.Model(next).
			Where("version = ?", cur.Version).
			Select("content", "reactions", "favorites", "version", "updated_at").
			Updates(next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrConflict
		}
		out = next
		return insertOutbox(tx, events)
	})
	return out, err
}
