package models

import "strings"

// KnowledgeEntry is one curated question/answer pair of the knowledge base.
// Entries are loaded once at startup and never mutated afterwards.
type KnowledgeEntry struct {
	ID         string   `json:"id" yaml:"id" db:"id" validate:"required,max=100"`
	Question   string   `json:"question" yaml:"question" db:"question" validate:"required"`
	Answer     string   `json:"answer" yaml:"answer" db:"answer" validate:"required"`
	Category   string   `json:"category,omitempty" yaml:"category" db:"category" validate:"max=100"`
	Tags       []string `json:"tags,omitempty" yaml:"tags" db:"tags"`
	Escalation bool     `json:"escalation" yaml:"escalation" db:"escalation"` // answer always needs a human follow-up
}

// TableName returns the table name for the KnowledgeEntry model
func (KnowledgeEntry) TableName() string {
	return "knowledge_entries"
}

// HasTag reports whether the entry carries tag, ignoring case.
func (e KnowledgeEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// NormalizeTags trims, lowercases and de-duplicates tags, keeping first
// occurrence order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
