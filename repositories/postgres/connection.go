package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/helpdesk-orchestrator/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return WrapDB(db, logger), nil
}

// WrapDB adopts an already opened pool
func WrapDB(db *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Knowledge base entries, ordered by position
		CREATE TABLE IF NOT EXISTS knowledge_entries (
			id VARCHAR(100) PRIMARY KEY,
			position INTEGER NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			category VARCHAR(100) NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			escalation BOOLEAN NOT NULL DEFAULT false,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Interaction audit trail
		CREATE TABLE IF NOT EXISTS interactions (
			id UUID PRIMARY KEY,
			request_id VARCHAR(255) NOT NULL,
			question TEXT NOT NULL,
			answer TEXT,
			source VARCHAR(20),
			matched_entry_id VARCHAR(100),
			confidence DOUBLE PRECISION,
			escalate_to_human BOOLEAN NOT NULL DEFAULT false,
			model VARCHAR(100),
			error_kind VARCHAR(50),
			latency_ms INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			session_id VARCHAR(255),
			user_id VARCHAR(255)
		);

		-- Tables created before correlation ids were recorded
		ALTER TABLE interactions ADD COLUMN IF NOT EXISTS session_id VARCHAR(255);
		ALTER TABLE interactions ADD COLUMN IF NOT EXISTS user_id VARCHAR(255);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_knowledge_entries_position ON knowledge_entries(position);
		CREATE INDEX IF NOT EXISTS idx_interactions_request_id ON interactions(request_id);
		CREATE INDEX IF NOT EXISTS idx_interactions_created_at ON interactions(created_at);
		CREATE INDEX IF NOT EXISTS idx_interactions_source ON interactions(source);
		CREATE INDEX IF NOT EXISTS idx_interactions_session_id ON interactions(session_id);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
