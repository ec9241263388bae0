package model

import "time"

type ReactionType string

const (
	ReactionLike     ReactionType = "like"
	ReactionLove     ReactionType = "love"
	ReactionPray     ReactionType = "pray"
	ReactionGrateful ReactionType = "grateful"
	ReactionInspire  ReactionType = "inspire"
	ReactionSupport  ReactionType = "support"
)

// ReactionTypes lists every reaction type in display order.
var ReactionTypes = []ReactionType{
	ReactionLike,
	ReactionLove,
	ReactionPray,
	ReactionGrateful,
	ReactionInspire,
	ReactionSupport,
}

func (t ReactionType) Valid() bool {
	for _, v := range ReactionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Message 动态消息，点赞(reactions)与收藏(favorites)内嵌存储
type Message struct {
	ID          string     `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Content     string     `gorm:"type:text" bson:"content" json:"content"`
	Author      uint64     `gorm:"not null;index" bson:"author" json:"author"`
	IsAnonymous bool       `gorm:"not null;default:false" bson:"is_anonymous" json:"isAnonymous"`
	Circle      string     `gorm:"size:36;index" bson:"circle,omitempty" json:"circle,omitempty"`
	Reactions   []Reaction `gorm:"type:json;serializer:json" bson:"reactions" json:"reactions"`
	Favorites   []Favorite `gorm:"type:json;serializer:json" bson:"favorites" json:"favorites"`
	Version     uint64     `gorm:"not null;default:0" bson:"version" json:"version"`
	CreatedAt   time.Time  `gorm:"index" bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`
}

func (Message) TableName() string {
	return "messages"
}

type Reaction struct {
	User      uint64       `bson:"user" json:"user"`
	Type      ReactionType `bson:"type" json:"type"`
	CreatedAt time.Time    `bson:"created_at" json:"createdAt"`
}

type Favorite struct {
	User      uint64    `bson:"user" json:"user"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Clone returns a deep copy of the embedded arrays.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Reactions = append([]Reaction(nil), m.Reactions...)
	cp.Favorites = append([]Favorite(nil), m.Favorites...)
	return &cp
}
