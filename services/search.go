package services

import (
	"sort"
	"strings"

	"habitquest/models"

	"golang.org/x/text/cases"
	"gorm.io/gorm/clause"
)

const (
	matchExact = iota
	matchPrefix
	matchSubstring
	matchNone
)

// RankSearchResults orders users by how well any of their names matches
// query: exact, then prefix, then substring, ties by username. Users that
// do not match at all are dropped.
func RankSearchResults(query string, users []models.User) []models.User {
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	if q == "" {
		return []models.User{}
	}

	type scored struct {
		user  models.User
		score int
		key   string
	}
	ranked := make([]scored, 0, len(users))
	for _, u := range users {
		best := matchNone
		for _, field := range []string{u.Username, u.DisplayName, u.Name} {
			if field == "" {
				continue
			}
			if s := matchScore(q, fold.String(field)); s < best {
				best = s
			}
		}
		if best == matchNone {
			continue
		}
		ranked = append(ranked, scored{user: u, score: best, key: fold.String(u.Username)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return ranked[i].key < ranked[j].key
	})

	out := make([]models.User, len(ranked))
	for i, r := range ranked {
		out[i] = r.user
	}
	return out
}

func matchScore(query, field string) int {
	switch {
	case field == query:
		return matchExact
	case strings.HasPrefix(field, query):
		return matchPrefix
	case strings.Contains(field, query):
		return matchSubstring
	}
	return matchNone
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern escapes LIKE metacharacters and wraps q for a substring match.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// prefixPattern escapes LIKE metacharacters and anchors q at the start.
func prefixPattern(q string) string {
	return likeEscaper.Replace(q) + "%"
}

// matchClassOrder sorts rows the way RankSearchResults does so a LIMIT keeps
// the best matches.
func matchClassOrder(q string) clause.OrderBy {
	prefix := prefixPattern(q)
	return clause.OrderBy{Expression: clause.Expr{
		SQL: "CASE WHEN lower(username) = lower(?) OR lower(display_name) = lower(?) OR lower(name) = lower(?) THEN 0 " +
			"WHEN username ILIKE ? OR display_name ILIKE ? OR name ILIKE ? THEN 1 ELSE 2 END, lower(username) ASC",
		Vars:               []any{q, q, q, prefix, prefix, prefix},
		WithoutParentheses: true,
	}}
}
