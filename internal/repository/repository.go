// Package repository contains what the document stores share: sentinel
// errors and the outbox row builder.
package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"Circle_Social/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("document changed concurrently")
)

// CircleMutation 在存储层的原子读改写中执行，入参是私有副本；返回 error 时不落库。
// 基于版本号 CAS 的实现可能会重复调用，所以 fn 只能依赖入参计算结果
type CircleMutation func(c *model.Circle) ([]model.Event, error)

type MessageMutation func(m *model.Message) ([]model.Event, error)

// OutboxRows 把业务事件转换成 outbox 记录
func OutboxRows(events []model.Event, now time.Time) ([]model.InteractionOutbox, error) {
	rows := make([]model.InteractionOutbox, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(map[string]any{
			"event":      e.Type,
			"event_time": now.UTC().Format(time.RFC3339Nano),
			"aggregate":  e.AggregateID,
			"user":       e.UserID,
			"data":       e.Data,
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, model.InteractionOutbox{
			ID:          uuid.NewString(),
			EventType:   e.Type,
			AggregateID: e.AggregateID,
			UserID:      e.UserID,
			Payload:     string(payload),
			Status:      model.OutboxPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return rows, nil
}
