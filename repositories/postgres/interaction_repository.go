package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/helpdesk-orchestrator/models"
	"github.com/upb/helpdesk-orchestrator/repositories"
	"go.uber.org/zap"
)

const interactionColumns = `id, request_id, question, answer, source, matched_entry_id,
		       confidence, escalate_to_human, model, error_kind, latency_ms, created_at,
		       session_id, user_id`

// InteractionRepository implements the repositories.InteractionRepository interface
type InteractionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *DB, logger *zap.Logger) repositories.InteractionRepository {
	return &InteractionRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new interaction record
func (r *InteractionRepository) Insert(ctx context.Context, i *models.Interaction) error {
	query := `
		INSERT INTO interactions (
			id, request_id, question, answer, source, matched_entry_id,
			confidence, escalate_to_human, model, error_kind, latency_ms, created_at,
			session_id, user_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	var source *string
	if i.Source != nil {
		s := string(*i.Source)
		source = &s
	}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		i.ID,
		i.RequestID,
		i.Question,
		i.Answer,
		source,
		i.MatchedEntryID,
		i.Confidence,
		i.EscalateToHuman,
		i.Model,
		i.ErrorKind,
		i.LatencyMs,
		i.CreatedAt,
		i.SessionID,
		i.UserID,
	)

	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	r.logger.Debug("interaction inserted", zap.String("id", i.ID.String()), zap.String("request_id", i.RequestID))
	return nil
}

// GetByID retrieves an interaction by ID
func (r *InteractionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	i, err := scanInteraction(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("interaction %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}

	return i, nil
}

// ListRecent returns up to limit interactions, newest first
func (r *InteractionRepository) ListRecent(ctx context.Context, limit int) ([]*models.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		ORDER BY created_at DESC
		LIMIT $1
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Interaction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}

	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInteraction(row rowScanner) (*models.Interaction, error) {
	i := &models.Interaction{}
	var source sql.NullString

	if err := row.Scan(
		&i.ID,
		&i.RequestID,
		&i.Question,
		&i.Answer,
		&source,
		&i.MatchedEntryID,
		&i.Confidence,
		&i.EscalateToHuman,
		&i.Model,
		&i.ErrorKind,
		&i.LatencyMs,
		&i.CreatedAt,
		&i.SessionID,
		&i.UserID,
	); err != nil {
		return nil, err
	}

	if source.Valid {
		s := models.AnswerSource(source.String)
		i.Source = &s
	}
	return i, nil
}
