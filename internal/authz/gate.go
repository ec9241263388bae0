// Package authz is the coarse access gate for circles and messages.
// Actor id 0 means an unauthenticated viewer.
package authz

import (
	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
)

// CanReadCircle 公开社区允许匿名访问；登录用户可以看到任何社区的元数据
func CanReadCircle(actor uint64, c *model.Circle) bool {
	if c == nil {
		return false
	}
	if actor != 0 {
		return true
	}
	return c.Type == model.CirclePublic
}

// CanUpdateCircle only distinguishes authenticated from anonymous; the
// engines check the acting identity against the membership they change.
func CanUpdateCircle(actor uint64) bool {
	return actor != 0
}

func CanDeleteCircle(actor uint64, c *model.Circle) bool {
	return actor != 0 && c != nil && c.Owner == actor
}

func CanModerate(actor uint64, c *model.Circle) bool {
	return actor != 0 && c != nil && engine.CanModerate(c.Members, actor)
}

// CanModifyMessage 内容修改和删除仅限作者
func CanModifyMessage(actor uint64, m *model.Message) bool {
	return actor != 0 && m != nil && m.Author == actor
}

// CanWriteInteractions reports whether replacing m's arrays with the given
// ones only touches entries owned by actor. A nil slice means the field is
// not being replaced.
func CanWriteInteractions(actor uint64, m *model.Message, reactions []model.Reaction, favorites []model.Favorite) bool {
	if actor == 0 || m == nil {
		return false
	}
	if reactions != nil {
		for u := range engine.ChangedReactionUsers(m.Reactions, reactions) {
			if u != actor {
				return false
			}
		}
	}
	if favorites != nil {
		for u := range engine.ChangedFavoriteUsers(m.Favorites, favorites) {
			if u != actor {
				return false
			}
		}
	}
	return true
}

// AuthorView 匿名消息只对作者本人展示 author
func AuthorView(actor uint64, m *model.Message) (uint64, bool) {
	if m.IsAnonymous && m.Author != actor {
		return 0, false
	}
	return m.Author, true
}
