package model

import "time"

const (
	EventMembershipRequested = "membership.requested"
	EventMembershipApproved  = "membership.approved"
	EventMembershipLeft      = "membership.left"
	EventReactionChanged     = "reaction.changed"
	EventFavoriteChanged     = "favorite.changed"
)

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2

	// OutboxMaxRetry 超过后不再投递，留给人工处理
	OutboxMaxRetry = 5
)

// InteractionOutbox 互动事件表，和文档写入在同一事务中落库
type InteractionOutbox struct {
	ID          string    `gorm:"primaryKey;size:36" bson:"_id"`
	EventType   string    `gorm:"size:32;not null" bson:"event_type"`
	AggregateID string    `gorm:"size:36;not null;index" bson:"aggregate_id"` // circle / message id
	UserID      uint64    `gorm:"not null" bson:"user_id"`
	Payload     string    `gorm:"type:json;not null" bson:"payload"`
	Status      int8      `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'" bson:"status"`
	Retry       int       `gorm:"not null;default:0" bson:"retry"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (InteractionOutbox) TableName() string { return "interaction_outbox" }

// Event 业务层产生的待投递事件
type Event struct {
	Type        string
	AggregateID string
	UserID      uint64
	Data        map[string]any
}
