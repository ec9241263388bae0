package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Circle_Social/internal/model"
)

func reactionFor(rs []model.Reaction, user uint64) []model.Reaction {
	var out []model.Reaction
	for _, r := range rs {
		if r.User == user {
			out = append(out, r)
		}
	}
	return out
}

func TestSetReaction_AddThenSameTypeRemoves(t *testing.T) {
	rs, err := SetReaction(nil, 7, model.ReactionLove, t0)
	require.NoError(t, err)
	assert.Equal(t, []model.Reaction{{User: 7, Type: model.ReactionLove, CreatedAt: t0}}, rs)

	rs, err = SetReaction(rs, 7, model.ReactionLove, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, reactionFor(rs, 7))
}

func TestSetReaction_DifferentTypeReplaces(t *testing.T) {
	rs, _ := SetReaction(nil, 7, model.ReactionLike, t0)
	rs, err := SetReaction(rs, 7, model.ReactionSupport, t0.Add(time.Hour))
	require.NoError(t, err)

	mine := reactionFor(rs, 7)
	require.Len(t, mine, 1)
	assert.Equal(t, model.ReactionSupport, mine[0].Type)
	assert.Equal(t, t0, mine[0].CreatedAt, "createdAt is not refreshed on replacement")
}

func TestSetReaction_ReplacePreservesPosition(t *testing.T) {
	in := []model.Reaction{
		{User: 1, Type: model.ReactionLove, CreatedAt: t0},
		{User: 2, Type: model.ReactionPray, CreatedAt: t0},
	}
	out, err := SetReaction(in, 1, model.ReactionPray, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, []model.Reaction{
		{User: 1, Type: model.ReactionPray, CreatedAt: t0},
		{User: 2, Type: model.ReactionPray, CreatedAt: t0},
	}, out)
	assert.Equal(t, model.ReactionLove, in[0].Type, "input must not be mutated")
}

func TestSetReaction_MiddlePosition(t *testing.T) {
	in := []model.Reaction{
		{User: 1, Type: model.ReactionLike},
		{User: 2, Type: model.ReactionLike},
		{User: 3, Type: model.ReactionLike},
	}
	out, err := SetReaction(in, 2, model.ReactionInspire, t0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{out[0].User, out[1].User, out[2].User})
	assert.Equal(t, model.ReactionInspire, out[1].Type)
}

func TestSetReaction_NormalizesDuplicates(t *testing.T) {
	in := []model.Reaction{
		{User: 1, Type: model.ReactionLike},
		{User: 2, Type: model.ReactionLove},
		{User: 1, Type: model.ReactionPray},
	}
	out, err := SetReaction(in, 1, model.ReactionGrateful, t0)
	require.NoError(t, err)
	require.Len(t, reactionFor(out, 1), 1)
	assert.Equal(t, model.ReactionGrateful, out[0].Type)
	assert.Len(t, out, 2)

	out, err = SetReaction(in, 1, model.ReactionLike, t0)
	require.NoError(t, err)
	assert.Empty(t, reactionFor(out, 1))
}

func TestSetReaction_Errors(t *testing.T) {
	_, err := SetReaction(nil, 1, model.ReactionType("angry"), t0)
	assert.ErrorIs(t, err, ErrInvalidReactionType)

	_, err = SetReaction(nil, 0, model.ReactionLike, t0)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSetFavorite_DoubleToggleRestores(t *testing.T) {
	orig := []model.Favorite{{User: 4, CreatedAt: t0}}

	once, err := SetFavorite(orig, 9, t0)
	require.NoError(t, err)
	assert.True(t, HasFavorited(once, 9))

	twice, err := SetFavorite(once, 9, t0)
	require.NoError(t, err)
	assert.Equal(t, orig, twice)

	removed, err := SetFavorite(orig, 4, t0)
	require.NoError(t, err)
	assert.Empty(t, removed)
	restored, _ := SetFavorite(removed, 4, t0)
	assert.Equal(t, orig, restored)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, ValidateReactions([]model.Reaction{{User: 1, Type: model.ReactionLike}, {User: 2, Type: model.ReactionLike}}))
	assert.ErrorIs(t, ValidateReactions([]model.Reaction{{User: 1, Type: model.ReactionLike}, {User: 1, Type: model.ReactionLove}}), ErrDuplicateEntry)
	assert.ErrorIs(t, ValidateReactions([]model.Reaction{{User: 1, Type: "meh"}}), ErrInvalidReactionType)
	assert.ErrorIs(t, ValidateFavorites([]model.Favorite{{User: 3}, {User: 3}}), ErrDuplicateEntry)
	assert.ErrorIs(t, ValidateFavorites([]model.Favorite{{User: 0}}), ErrUnauthenticated)
}

func TestChangedUsers(t *testing.T) {
	prev := []model.Reaction{{User: 1, Type: model.ReactionLike}, {User: 2, Type: model.ReactionLove}}
	next, _ := SetReaction(prev, 1, model.ReactionPray, t0)
	assert.Equal(t, map[uint64]struct{}{1: {}}, ChangedReactionUsers(prev, next))

	next, _ = SetReaction(prev, 3, model.ReactionPray, t0)
	assert.Equal(t, map[uint64]struct{}{3: {}}, ChangedReactionUsers(prev, next))

	assert.Equal(t, map[uint64]struct{}{1: {}, 2: {}}, ChangedReactionUsers(prev, nil))

	favs := []model.Favorite{{User: 5, CreatedAt: t0}}
	assert.Empty(t, ChangedFavoriteUsers(favs, favs))
	assert.Equal(t, map[uint64]struct{}{5: {}}, ChangedFavoriteUsers(favs, nil))
}

func TestSummarizeReactions(t *testing.T) {
	rs := []model.Reaction{
		{User: 1, Type: model.ReactionPray},
		{User: 2, Type: model.ReactionLike},
		{User: 3, Type: model.ReactionPray},
	}
	assert.Equal(t, []ReactionCount{
		{Type: model.ReactionLike, Count: 1},
		{Type: model.ReactionPray, Count: 2},
	}, SummarizeReactions(rs))
	assert.Empty(t, SummarizeReactions(nil))
}
