// Package escalation decides whether an answer should be handed to a human.
package escalation

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultPhrases are the trigger phrases used when none are configured.
var DefaultPhrases = []string{"contact support", "speak to human", "speak to a human", "human assistance"}

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid escalation config")

// Config holds the escalation triggers.
type Config struct {
	// Phrases are matched case-insensitively as substrings of the answer.
	Phrases []string `yaml:"escalation_phrases"`

	// LowConfidenceFloor escalates any answer whose confidence is strictly
	// below it. Zero disables the check.
	LowConfidenceFloor float64 `yaml:"low_confidence_floor"`
}

// Validate checks that every phrase is non-blank and the floor lies in [0,1].
func (c Config) Validate() error {
	for i, p := range c.Phrases {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: phrase %d is blank", ErrInvalidConfig, i)
		}
	}
	if c.LowConfidenceFloor < 0 || c.LowConfidenceFloor > 1 {
		return fmt.Errorf("%w: low confidence floor %v outside [0,1]", ErrInvalidConfig, c.LowConfidenceFloor)
	}
	return nil
}

// Reason names a trigger that fired.
type Reason string

const (
	ReasonPhrase        Reason = "phrase"
	ReasonLowConfidence Reason = "low_confidence"
)

// Classifier evaluates answers against a validated Config.
type Classifier struct {
	phrases []string // folded
	floor   float64
}

// NewClassifier validates cfg and pre-folds its phrases.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	folded := make([]string, len(cfg.Phrases))
	for i, p := range cfg.Phrases {
		folded[i] = fold(strings.TrimSpace(p))
	}
	return &Classifier{phrases: folded, floor: cfg.LowConfidenceFloor}, nil
}

// Classify reports whether answer should be escalated. Both triggers are
// evaluated; confidence may be nil when the answer carries none.
func (c *Classifier) Classify(answer string, confidence *float64) bool {
	return len(c.Reasons(answer, confidence)) > 0
}

// Reasons returns every trigger that fired, in a fixed order.
func (c *Classifier) Reasons(answer string, confidence *float64) []Reason {
	var reasons []Reason
	if c.matchPhrase(answer) {
		reasons = append(reasons, ReasonPhrase)
	}
	if confidence != nil && *confidence < c.floor {
		reasons = append(reasons, ReasonLowConfidence)
	}
	return reasons
}

func (c *Classifier) matchPhrase(answer string) bool {
	if len(c.phrases) == 0 || answer == "" {
		return false
	}
	text := fold(answer)
	for _, p := range c.phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// Classify is the one-shot form of Classifier.Classify. It fails when cfg is
// malformed; callers should then escalate conservatively.
func Classify(answer string, confidence *float64, cfg Config) (bool, error) {
	c, err := NewClassifier(cfg)
	if err != nil {
		return false, err
	}
	return c.Classify(answer, confidence), nil
}

func fold(s string) string {
	return cases.Fold().String(s)
}
