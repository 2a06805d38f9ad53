package services

import (
	"testing"

	"habitquest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankEntriesDenseRanks(t *testing.T) {
	users := []models.User{
		{ID: "c", Username: "carol", DisplayName: "Carol", XP: 100},
		{ID: "a", Username: "alice", DisplayName: "Alice", XP: 300},
		{ID: "b", Username: "bob", DisplayName: "bob", XP: 300},
		{ID: "d", Username: "dave", XP: 50},
	}

	entries := RankEntries(users, "c")
	require.Len(t, entries, 4)

	var ids []string
	var ranks []int
	for _, e := range entries {
		ids = append(ids, e.ID)
		ranks = append(ranks, e.Rank)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, []int{1, 1, 2, 3}, ranks)
	assert.True(t, entries[2].IsSelf)
	assert.False(t, entries[0].IsSelf)
}

func TestRankEntriesEmpty(t *testing.T) {
	assert.Empty(t, RankEntries(nil, "x"))
}
