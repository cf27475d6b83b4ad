package models

import (
	"time"

	"github.com/google/uuid"
)

// AnswerSource identifies where an answer came from.
type AnswerSource string

const (
	AnswerSourceKnowledgeBase AnswerSource = "kb"
	AnswerSourceModel         AnswerSource = "llm"
	AnswerSourceFallback      AnswerSource = "fallback"
)

// Interaction is the audit record of one answered (or failed) question.
type Interaction struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	RequestID       string        `json:"request_id" db:"request_id"`
	Question        string        `json:"question" db:"question"`
	SessionID       *string       `json:"session_id,omitempty" db:"session_id"`
	UserID          *string       `json:"user_id,omitempty" db:"user_id"`
	Answer          *string       `json:"answer,omitempty" db:"answer"`
	Source          *AnswerSource `json:"source,omitempty" db:"source"`
	MatchedEntryID  *string       `json:"matched_entry_id,omitempty" db:"matched_entry_id"`
	Confidence      *float64      `json:"confidence,omitempty" db:"confidence"`
	EscalateToHuman bool          `json:"escalate_to_human" db:"escalate_to_human"`
	Model           *string       `json:"model,omitempty" db:"model"`
	ErrorKind       *string       `json:"error_kind,omitempty" db:"error_kind"`
	LatencyMs       int           `json:"latency_ms" db:"latency_ms"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Interaction model
func (Interaction) TableName() string {
	return "interactions"
}

// NewInteraction creates a new Interaction for a question
func NewInteraction(requestID, question string) *Interaction {
	return &Interaction{
		ID:        uuid.New(),
		RequestID: requestID,
		Question:  question,
		CreatedAt: time.Now().UTC(),
	}
}

// WithAnswer records the answer that was returned
func (i *Interaction) WithAnswer(answer string, source AnswerSource, confidence *float64, escalate bool) *Interaction {
	i.Answer = &answer
	i.Source = &source
	i.Confidence = confidence
	i.EscalateToHuman = escalate
	return i
}

// WithMatch records the best knowledge base entry considered
func (i *Interaction) WithMatch(entryID string) *Interaction {
	if entryID != "" {
		i.MatchedEntryID = &entryID
	}
	return i
}

// WithSession records the caller's session and user identifiers, if any
func (i *Interaction) WithSession(sessionID, userID string) *Interaction {
	if sessionID != "" {
		i.SessionID = &sessionID
	}
	if userID != "" {
		i.UserID = &userID
	}
	return i
}

// WithModel records the model that was asked
func (i *Interaction) WithModel(model string) *Interaction {
	if model != "" {
		i.Model = &model
	}
	return i
}

// WithError records the kind of failure that ended the request
func (i *Interaction) WithError(kind string) *Interaction {
	i.ErrorKind = &kind
	return i
}

// WithLatency records the end-to-end latency
func (i *Interaction) WithLatency(d time.Duration) *Interaction {
	i.LatencyMs = int(d.Milliseconds())
	return i
}

// Failed reports whether the interaction ended without an answer
func (i *Interaction) Failed() bool {
	return i.Answer == nil
}
