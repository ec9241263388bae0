package model

import "time"

type CircleType string

const (
	CirclePublic     CircleType = "public"
	CirclePrivate    CircleType = "private"
	CircleInviteOnly CircleType = "invite_only"
)

func (t CircleType) Valid() bool {
	switch t {
	case CirclePublic, CirclePrivate, CircleInviteOnly:
		return true
	}
	return false
}

type MemberRole string

const (
	RoleOwner     MemberRole = "owner"
	RoleAdmin     MemberRole = "admin"
	RoleModerator MemberRole = "moderator"
	RoleMember    MemberRole = "member"
)

type MemberStatus string

const (
	StatusPending MemberStatus = "pending"
	StatusActive  MemberStatus = "active"
)

// Circle 社区文档，成员列表内嵌在文档中整体读写
type Circle struct {
	ID        string       `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Name      string       `gorm:"size:64;not null" bson:"name" json:"name"`
	Type      CircleType   `gorm:"size:16;not null;index" bson:"type" json:"type"`
	Owner     uint64       `gorm:"not null;index" bson:"owner" json:"owner"`
	Category  string       `gorm:"size:64" bson:"category" json:"category"`
	Members   []Membership `gorm:"type:json;serializer:json" bson:"members" json:"members"`
	Version   uint64       `gorm:"not null;default:0" bson:"version" json:"version"`
	CreatedAt time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time    `bson:"updated_at" json:"updatedAt"`
}

func (Circle) TableName() string {
	return "circles"
}

// Membership 内嵌在 Circle.members 中，joinedAt 在创建记录时写入
type Membership struct {
	User     uint64       `bson:"user" json:"user"`
	Role     MemberRole   `bson:"role" json:"role"`
	Status   MemberStatus `bson:"status" json:"status"`
	JoinedAt time.Time    `bson:"joined_at" json:"joinedAt"`
}

// Clone returns a copy whose members slice does not alias c.Members.
func (c *Circle) Clone() *Circle {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Members = append([]Membership(nil), c.Members...)
	return &cp
}
