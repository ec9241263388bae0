package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Circle_Social/internal/model"
	"Circle_Social/internal/repository"
)

type CircleRepository struct {
	DB *gorm.DB
}

func NewCircleRepository(db *gorm.DB) *CircleRepository {
	return &CircleRepository{DB: db}
}

// CreateCircle 社区和 owner 成员记录在同一个文档里，一次写入
func (r *CircleRepository) CreateCircle(ctx context.Context, c *model.Circle, events []model.Event) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c.Version = 1
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return insertOutbox(tx, events)
	})
}

func (r *CircleRepository) GetCircle(ctx context.Context, id string) (*model.Circle, error) {
	var c model.Circle
	if err := r.DB.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CircleRepository) ListCircles(ctx context.Context, offset, limit int) ([]model.Circle, error) {
	var list []model.Circle
	err := r.DB.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	return list, err
}

// DeleteCircle 幂等硬删除：无论是否存在，最终都视为成功
func (r *CircleRepository) DeleteCircle(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Delete(&model.Circle{}, "id = ?", id).Error
}

// MutateCircle 读改写整个文档：select for update 锁住该行，避免并发覆盖 members
func (r *CircleRepository) MutateCircle(ctx context.Context, id string, fn repository.CircleMutation) (*model.Circle, error) {
	var out *model.Circle
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Circle
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
			Select("name", "type", "category", "members", "version", "updated_at").
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

// CirclesWithMember 查询 members 数组中包含该用户的社区
func (r *CircleRepository) CirclesWithMember(ctx context.Context, user uint64) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).
		Model(&model.Circle{}).
		Where("JSON_CONTAINS(members, JSON_OBJECT('user', ?))", user).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
