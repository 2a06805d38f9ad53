package services

import (
	"testing"

	"habitquest/models"

	"github.com/stretchr/testify/assert"
)

func usernames(users []models.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Username
	}
	return out
}

func TestRankSearchResults(t *testing.T) {
	users := []models.User{
		{Username: "xannabel", DisplayName: "X"},
		{Username: "annabel"},
		{Username: "zed", DisplayName: "Anna"},
		{Username: "bob", Name: "Bob"},
		{Username: "anna-k"},
	}

	got := RankSearchResults("ANNA", users)
	assert.Equal(t, []string{"zed", "anna-k", "annabel", "xannabel"}, usernames(got))
}

func TestRankSearchResultsFoldsCase(t *testing.T) {
	users := []models.User{{Username: "strasse", DisplayName: "STRASSE"}}
	got := RankSearchResults("Strasse", users)
	assert.Len(t, got, 1)
}

func TestRankSearchResultsEmptyQuery(t *testing.T) {
	assert.Empty(t, RankSearchResults("   ", []models.User{{Username: "a"}}))
}

func TestLikePatternEscapes(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
}
