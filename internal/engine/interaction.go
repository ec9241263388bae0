package engine

import (
	"time"

	"Circle_Social/internal/model"
)

// reactionIndex 以 user -> 第一次出现的位置 建立索引，列表只是传输形态
func reactionIndex(reactions []model.Reaction) map[uint64]int {
	idx := make(map[uint64]int, len(reactions))
	for i, r := range reactions {
		if _, ok := idx[r.User]; !ok {
			idx[r.User] = i
		}
	}
	return idx
}

func favoriteIndex(favorites []model.Favorite) map[uint64]int {
	idx := make(map[uint64]int, len(favorites))
	for i, f := range favorites {
		if _, ok := idx[f.User]; !ok {
			idx[f.User] = i
		}
	}
	return idx
}

// SetReaction toggles user's reaction:
//   - no entry: append {user, typ, now}
//   - same type: remove (un-react)
//   - other type: replace type in place; position and createdAt are kept
func SetReaction(reactions []model.Reaction, user uint64, typ model.ReactionType, now time.Time) ([]model.Reaction, error) {
	if user == 0 {
		return nil, ErrUnauthenticated
	}
	if !typ.Valid() {
		return nil, ErrInvalidReactionType
	}

	i, ok := reactionIndex(reactions)[user]
	if !ok {
		next := make([]model.Reaction, 0, len(reactions)+1)
		next = append(next, reactions...)
		return append(next, model.Reaction{User: user, Type: typ, CreatedAt: now}), nil
	}
	if reactions[i].Type == typ {
		return removeReactions(reactions, user), nil
	}

	next := removeReactions(reactions, user)
	// 保持原位置：在删除重复项后的列表里 i 之前不会有该用户的条目
	replaced := reactions[i]
	replaced.Type = typ
	next = append(next, model.Reaction{})
	copy(next[i+1:], next[i:])
	next[i] = replaced
	return next, nil
}

func removeReactions(reactions []model.Reaction, user uint64) []model.Reaction {
	next := make([]model.Reaction, 0, len(reactions))
	for _, r := range reactions {
		if r.User != user {
			next = append(next, r)
		}
	}
	return next
}

// SetFavorite 收藏开关：存在则删除，否则追加
func SetFavorite(favorites []model.Favorite, user uint64, now time.Time) ([]model.Favorite, error) {
	if user == 0 {
		return nil, ErrUnauthenticated
	}
	if _, ok := favoriteIndex(favorites)[user]; ok {
		next := make([]model.Favorite, 0, len(favorites))
		for _, f := range favorites {
			if f.User != user {
				next = append(next, f)
			}
		}
		return next, nil
	}
	next := make([]model.Favorite, 0, len(favorites)+1)
	next = append(next, favorites...)
	return append(next, model.Favorite{User: user, CreatedAt: now}), nil
}

func HasFavorited(favorites []model.Favorite, user uint64) bool {
	_, ok := favoriteIndex(favorites)[user]
	return ok
}

// ReactionOf returns user's reaction type, or "" if none.
func ReactionOf(reactions []model.Reaction, user uint64) model.ReactionType {
	if i, ok := reactionIndex(reactions)[user]; ok {
		return reactions[i].Type
	}
	return ""
}

// ValidateReactions 校验整体替换的数组：类型合法且每个用户至多一条
func ValidateReactions(reactions []model.Reaction) error {
	seen := make(map[uint64]struct{}, len(reactions))
	for _, r := range reactions {
		if r.User == 0 {
			return ErrUnauthenticated
		}
		if !r.Type.Valid() {
			return ErrInvalidReactionType
		}
		if _, dup := seen[r.User]; dup {
			return ErrDuplicateEntry
		}
		seen[r.User] = struct{}{}
	}
	return nil
}

func ValidateFavorites(favorites []model.Favorite) error {
	seen := make(map[uint64]struct{}, len(favorites))
	for _, f := range favorites {
		if f.User == 0 {
			return ErrUnauthenticated
		}
		if _, dup := seen[f.User]; dup {
			return ErrDuplicateEntry
		}
		seen[f.User] = struct{}{}
	}
	return nil
}

// ChangedReactionUsers returns the users whose reaction entry differs between prev and next.
func ChangedReactionUsers(prev, next []model.Reaction) map[uint64]struct{} {
	changed := make(map[uint64]struct{})
	pi, ni := reactionIndex(prev), reactionIndex(next)
	for u, i := range pi {
		j, ok := ni[u]
		if !ok || prev[i].Type != next[j].Type || !prev[i].CreatedAt.Equal(next[j].CreatedAt) {
			changed[u] = struct{}{}
		}
	}
	for u := range ni {
		if _, ok := pi[u]; !ok {
			changed[u] = struct{}{}
		}
	}
	return changed
}

func ChangedFavoriteUsers(prev, next []model.Favorite) map[uint64]struct{} {
	changed := make(map[uint64]struct{})
	pi, ni := favoriteIndex(prev), favoriteIndex(next)
	for u, i := range pi {
		j, ok := ni[u]
		if !ok || !prev[i].CreatedAt.Equal(next[j].CreatedAt) {
			changed[u] = struct{}{}
		}
	}
	for u := range ni {
		if _, ok := pi[u]; !ok {
			changed[u] = struct{}{}
		}
	}
	return changed
}

// ReactionCount 每种类型的数量
type ReactionCount struct {
	Type  model.ReactionType `json:"type"`
	Count int64              `json:"count"`
}

// SummarizeReactions counts reactions per type in model.ReactionTypes order,
// omitting types nobody used.
func SummarizeReactions(reactions []model.Reaction) []ReactionCount {
	counts := make(map[model.ReactionType]int64, len(model.ReactionTypes))
	for _, r := range reactions {
		counts[r.Type]++
	}
	out := make([]ReactionCount, 0, len(counts))
	for _, t := range model.ReactionTypes {
		if n := counts[t]; n > 0 {
			out = append(out, ReactionCount{Type: t, Count: n})
		}
	}
	return out
}
