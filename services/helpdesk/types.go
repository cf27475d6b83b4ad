package helpdesk

import (
	"time"

	"github.com/upb/helpdesk-orchestrator/internal/escalation"
	"github.com/upb/helpdesk-orchestrator/internal/similarity"
	"github.com/upb/helpdesk-orchestrator/models"
)

// State is a step of the per-request decision machine
type State string

const (
	StateStart        State = "START"
	StateMatching     State = "MATCHING"
	StateDeciding     State = "DECIDING"
	StateAnsweringKB  State = "ANSWERING_FROM_KB"
	StateCallingModel State = "CALLING_MODEL"
	StateClassifying  State = "CLASSIFYING"
	StateDone         State = "DONE"
	StateError        State = "ERROR"
)

// Request is one question put to the helpdesk
type Request struct {
	Question string

	// Threshold overrides the configured similarity cutoff. Must be in (0,1].
	Threshold *float64

	// AlwaysCallModel overrides the configured policy
	AlwaysCallModel *bool

	// Model overrides the configured model
	Model string

	// RequestID correlates logs and the audit record. Generated when empty.
	RequestID string

	// SessionID and UserID are caller-supplied correlation ids, both optional
	SessionID string
	UserID    string
}

// Result is the answer returned to the caller
type Result struct {
	Answer          string              `json:"answer"`
	Source          models.AnswerSource `json:"source"`
	Confidence      *float64            `json:"confidence"`
	EscalateToHuman bool                `json:"escalate_to_human"`

	// Decision records how the answer was reached
	Decision Decision `json:"-"`
}

// Decision is the diagnostic trail of a request
type Decision struct {
	RequestID         string
	States            []State
	BestMatch         *similarity.Match
	Threshold         float64
	Model             string
	Provider          string
	Attempts          int
	BackendError      string
	EscalationReasons []escalation.Reason
	ClassifierFailed  bool
	Latency           time.Duration
}

// Options are the coordinator settings, fixed for the life of a Service
type Options struct {
	Threshold        float64
	AlwaysCallModel  bool
	Model            string
	Temperature      float64
	MaxTokens        int
	SystemPrompt     string
	IncludeKBContext bool
	ModelTimeout     time.Duration
	Retry            RetryPolicy
	Escalation       escalation.Config
}

// RetryPolicy bounds model attempts for one request
type RetryPolicy struct {
	// MaxAttempts includes the first attempt
	MaxAttempts int
	// Backoff is the base of the exponential delay between attempts
	Backoff time.Duration
	// Budget caps the time spent across all attempts and delays
	Budget time.Duration
}

// askContext carries one request through the state machine
type askContext struct {
	requestID   string
	question    string
	threshold   float64
	alwaysModel bool
	model       string
	sessionID   string
	userID      string
	start       time.Time

	best     *similarity.Match
	decision Decision
}
