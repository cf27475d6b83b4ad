// Package knowledge loads the curated question/answer base and builds the
// immutable, vectorized index the helpdesk ranks questions against.
package knowledge

import (
	"errors"
	"fmt"

	"github.com/upb/helpdesk-orchestrator/internal/similarity"
	"github.com/upb/helpdesk-orchestrator/internal/textvec"
	"github.com/upb/helpdesk-orchestrator/models"
)

var (
	// ErrDuplicateID is returned when two entries share an id
	ErrDuplicateID = errors.New("duplicate knowledge entry id")
	// ErrInvalidEntry wraps per-entry validation failures
	ErrInvalidEntry = errors.New("invalid knowledge entry")
)

// Index is a read-only snapshot of the knowledge base. Safe for concurrent use.
type Index struct {
	entries    []models.KnowledgeEntry
	byID       map[string]int
	vectorizer *textvec.Vectorizer
	candidates []similarity.Candidate
}

// NewIndex builds the vocabulary from the entry questions and precomputes one
// vector per entry. An empty entry list yields an empty index.
func NewIndex(entries []models.KnowledgeEntry, opts textvec.Options) (*Index, error) {
	idx := &Index{
		entries: make([]models.KnowledgeEntry, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	copy(idx.entries, entries)

	corpus := make([]string, len(entries))
	for i, e := range idx.entries {
		if _, dup := idx.byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		idx.byID[e.ID] = i
		corpus[i] = e.Question
	}

	idx.vectorizer = textvec.NewVectorizer(corpus, opts)
	idx.candidates = make([]similarity.Candidate, len(idx.entries))
	for i, e := range idx.entries {
		idx.candidates[i] = similarity.Candidate{
			Entry:  e,
			Vector: idx.vectorizer.Vectorize(e.Question),
		}
	}

	return idx, nil
}

// Entries returns a copy of the entries in knowledge base order
func (i *Index) Entries() []models.KnowledgeEntry {
	out := make([]models.KnowledgeEntry, len(i.entries))
	copy(out, i.entries)
	return out
}

// Lookup returns the entry with id
func (i *Index) Lookup(id string) (models.KnowledgeEntry, bool) {
	pos, ok := i.byID[id]
	if !ok {
		return models.KnowledgeEntry{}, false
	}
	return i.entries[pos], true
}

// Len returns the number of entries
func (i *Index) Len() int {
	return len(i.entries)
}

// Candidates returns the precomputed ranking corpus. Callers must not modify it.
func (i *Index) Candidates() []similarity.Candidate {
	return i.candidates
}

// Vectorizer returns the vectorizer fitted to this index
func (i *Index) Vectorizer() *textvec.Vectorizer {
	return i.vectorizer
}

// Rank scores question against every entry, best first
func (i *Index) Rank(question string) []similarity.Match {
	return similarity.Rank(i.vectorizer.Vectorize(question), i.candidates)
}
