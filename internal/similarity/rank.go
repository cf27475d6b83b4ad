package similarity

import (
	"sort"

	"github.com/upb/helpdesk-orchestrator/internal/textvec"
	"github.com/upb/helpdesk-orchestrator/models"
)

// Candidate pairs a knowledge base entry with its precomputed vector.
type Candidate struct {
	Entry  models.KnowledgeEntry
	Vector textvec.Vector
}

// Match is one scored entry in a ranking.
type Match struct {
	Entry models.KnowledgeEntry `json:"entry"`
	Score float64               `json:"score"`
}

// Rank scores every candidate against query and returns the full ranking,
// highest score first. Equal scores keep corpus order.
func Rank(query textvec.Vector, corpus []Candidate) []Match {
	matches := make([]Match, len(corpus))
	for i, c := range corpus {
		matches[i] = Match{Entry: c.Entry, Score: Cosine(query, c.Vector)}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches
}

// Best returns the top match, or false when the ranking is empty.
func Best(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

// Top returns at most n leading matches. A non-positive n returns all of them.
func Top(matches []Match, n int) []Match {
	if n <= 0 || n >= len(matches) {
		return matches
	}
	return matches[:n]
}
