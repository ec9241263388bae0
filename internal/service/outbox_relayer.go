package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"Circle_Social/internal/model"
	"Circle_Social/internal/pkg"
)

type Sender func(ctx context.Context, ob *model.InteractionOutbox) error

// OutboxRelayer 定时扫描 outbox 表，把事件依次交给 sender 投递。
// 投递是至少一次语义，失败的记录在重试上限内会被再次读取
type OutboxRelayer struct {
	repo      OutboxStore
	batchSize int
	interval  time.Duration
	senders   []Sender
	log       *zap.Logger
}

func NewOutboxRelayer(repo OutboxStore, batchSize int, interval time.Duration, log *zap.Logger, senders ...Sender) *OutboxRelayer {
	if batchSize <= 0 {
		batchSize = 200
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxRelayer{
		repo:      repo,
		batchSize: batchSize,
		interval:  interval,
		senders:   senders,
		log:       log,
	}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.drainOnce(ctx)
		}
	}
}

// drainOnce 返回本轮成功投递的条数
func (r *OutboxRelayer) drainOnce(ctx context.Context) int {
	rows, err := r.repo.ListPending(ctx, r.batchSize)
	if err != nil {
		r.log.Error("outbox query", zap.Error(err))
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err := r.deliver(ctx, &ob); err != nil {
			pkg.OutboxDeliveries.WithLabelValues("failed").Inc()
			r.log.Warn("outbox deliver", zap.String("id", ob.ID), zap.String("event", ob.EventType), zap.Int("retry", ob.Retry), zap.Error(err))
			if err := r.repo.MarkFailed(ctx, ob.ID); err != nil {
				r.log.Error("outbox mark failed", zap.String("id", ob.ID), zap.Error(err))
			}
			continue
		}
		pkg.OutboxDeliveries.WithLabelValues("sent").Inc()
		if err := r.repo.MarkSent(ctx, ob.ID); err != nil {
			r.log.Error("outbox mark sent", zap.String("id", ob.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (r *OutboxRelayer) deliver(ctx context.Context, ob *model.InteractionOutbox) error {
	for _, send := range r.senders {
		if err := send(ctx, ob); err != nil {
			return err
		}
	}
	return nil
}

// KafkaSender 以聚合 id 作为 key，同一文档的事件进入同一分区
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.InteractionOutbox) error {
		return p.Send(ctx, ob.AggregateID, []byte(ob.Payload))
	}
}

type MailFunc func(cfg pkg.SMTPConfig, to, subject, htmlBody string) error

type outboxPayload struct {
	Event     string         `json:"event"`
	Aggregate string         `json:"aggregate"`
	User      uint64         `json:"user"`
	Data      map[string]any `json:"data"`
}

// PendingJoinMailer 待审批的加入申请发邮件到审核邮箱，其余事件直接跳过
func PendingJoinMailer(cfg pkg.SMTPConfig, inbox string, send MailFunc) Sender {
	return func(ctx context.Context, ob *model.InteractionOutbox) error {
		if ob.EventType != model.EventMembershipRequested {
			return nil
		}
		var p outboxPayload
		if err := json.Unmarshal([]byte(ob.Payload), &p); err != nil {
			return fmt.Errorf("decode outbox payload: %w", err)
		}
		if status, _ := p.Data["status"].(string); status != string(model.StatusPending) {
			return nil
		}
		name, _ := p.Data["circle_name"].(string)
		return send(cfg, inbox, "New join request: "+name, pkg.PendingJoinHTML(name, p.Aggregate, p.User))
	}
}
