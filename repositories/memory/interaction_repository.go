// Package memory keeps the most recent interactions in process when no
// database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/helpdesk-orchestrator/models"
	"github.com/upb/helpdesk-orchestrator/repositories"
)

// DefaultCapacity bounds the ring when none is given
const DefaultCapacity = 500

// InteractionRepository is a bounded ring of interactions. The oldest record
// is overwritten once capacity is reached.
type InteractionRepository struct {
	mu    sync.RWMutex
	ring  []*models.Interaction
	next  int
	count int
}

// NewInteractionRepository creates a repository holding at most capacity records
func NewInteractionRepository(capacity int) *InteractionRepository {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InteractionRepository{ring: make([]*models.Interaction, capacity)}
}

var _ repositories.InteractionRepository = (*InteractionRepository)(nil)

// Insert stores a copy of interaction
func (r *InteractionRepository) Insert(ctx context.Context, interaction *models.Interaction) error {
	if interaction == nil {
		return fmt.Errorf("interaction is nil")
	}
	cp := *interaction

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ring[r.next] = &cp
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
	return nil
}

// GetByID retrieves an interaction by ID
func (r *InteractionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Interaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, i := range r.ring {
		if i != nil && i.ID == id {
			cp := *i
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("interaction %s: %w", id, repositories.ErrNotFound)
}

// ListRecent returns up to limit interactions, newest first
func (r *InteractionRepository) ListRecent(ctx context.Context, limit int) ([]*models.Interaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > r.count {
		limit = r.count
	}

	out := make([]*models.Interaction, 0, limit)
	for k := 1; k <= limit; k++ {
		idx := (r.next - k + len(r.ring)) % len(r.ring)
		cp := *r.ring[idx]
		out = append(out, &cp)
	}
	return out, nil
}
