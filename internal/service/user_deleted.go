package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

type userDeletedEvent struct {
	UserID uint64 `json:"user_id"`
}

// UserDeletedHandler 消费账号服务的 user.deleted 事件，清理该用户的社区成员记录。
// 无法解析的消息记录日志后提交，避免阻塞分区
func UserDeletedHandler(circles *CircleService, log *zap.Logger) func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		var ev userDeletedEvent
		if err := json.Unmarshal(value, &ev); err != nil || ev.UserID == 0 {
			log.Warn("skip malformed user.deleted event", zap.ByteString("value", value), zap.Error(err))
			return nil
		}
		n, err := circles.PurgeUser(ctx, ev.UserID)
		if err != nil {
			return err
		}
		log.Info("purged memberships", zap.Uint64("user", ev.UserID), zap.Int("circles", n))
		return nil
	}
}
