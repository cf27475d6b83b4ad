package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/helpdesk-orchestrator/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// KnowledgeRepository stores the curated knowledge base
type KnowledgeRepository interface {
	// List returns every entry in knowledge base order
	List(ctx context.Context) ([]models.KnowledgeEntry, error)

	// ReplaceAll swaps the stored entries for entries, keeping their order.
	// Run it inside InTransaction so readers never see a partial set.
	ReplaceAll(ctx context.Context, entries []models.KnowledgeEntry) error

	// Count returns the number of stored entries
	Count(ctx context.Context) (int, error)
}

// InteractionRepository handles the interaction audit trail
type InteractionRepository interface {
	// Insert inserts a new interaction record
	Insert(ctx context.Context, interaction *models.Interaction) error

	// GetByID retrieves an interaction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Interaction, error)

	// ListRecent returns the newest interactions first
	ListRecent(ctx context.Context, limit int) ([]*models.Interaction, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Knowledge    KnowledgeRepository
	Interactions InteractionRepository
}
