package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/upb/helpdesk-orchestrator/models"
	"github.com/upb/helpdesk-orchestrator/repositories"
	"go.uber.org/zap"
)

// KnowledgeRepository implements the repositories.KnowledgeRepository interface
type KnowledgeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db *DB, logger *zap.Logger) repositories.KnowledgeRepository {
	return &KnowledgeRepository{
		db:     db,
		logger: logger,
	}
}

// List returns every entry ordered by position, then id
func (r *KnowledgeRepository) List(ctx context.Context) ([]models.KnowledgeEntry, error) {
	query := `
		SELECT id, question, answer, category, tags, escalation
		FROM knowledge_entries
		ORDER BY position, id
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []models.KnowledgeEntry
	for rows.Next() {
		var e models.KnowledgeEntry
		if err := rows.Scan(
			&e.ID,
			&e.Question,
			&e.Answer,
			&e.Category,
			pq.Array(&e.Tags),
			&e.Escalation,
		); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		if len(e.Tags) == 0 {
			e.Tags = nil
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge entries: %w", err)
	}

	return entries, nil
}

// ReplaceAll deletes every stored entry and inserts entries in order
func (r *KnowledgeRepository) ReplaceAll(ctx context.Context, entries []models.KnowledgeEntry) error {
	executor := GetExecutor(ctx, r.db)

	if _, err := executor.ExecContext(ctx, `DELETE FROM knowledge_entries`); err != nil {
		return fmt.Errorf("failed to clear knowledge entries: %w", err)
	}

	query := `
		INSERT INTO knowledge_entries (id, position, question, answer, category, tags, escalation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i, e := range entries {
		tags := e.Tags
		if tags == nil {
			tags = []string{}
		}
		if _, err := executor.ExecContext(ctx, query,
			e.ID,
			i,
			e.Question,
			e.Answer,
			e.Category,
			pq.Array(tags),
			e.Escalation,
		); err != nil {
			return fmt.Errorf("failed to insert knowledge entry %s: %w", e.ID, err)
		}
	}

	r.logger.Debug("knowledge entries replaced", zap.Int("count", len(entries)))
	return nil
}

// Count returns the number of stored entries
func (r *KnowledgeRepository) Count(ctx context.Context) (int, error) {
	var n int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count knowledge entries: %w", err)
	}
	return n, nil
}
