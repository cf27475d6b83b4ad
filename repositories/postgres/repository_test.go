package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/models"
	"github.com/upb/helpdesk-orchestrator/repositories"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return WrapDB(sqlDB, zap.NewNop()), mock
}

var knowledgeColumns = []string{"id", "question", "answer", "category", "tags", "escalation"}

func TestKnowledgeRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeRepository(db, zap.NewNop())

	mock.ExpectQuery("SELECT id, question, answer, category, tags, escalation FROM knowledge_entries ORDER BY position, id").
		WillReturnRows(sqlmock.NewRows(knowledgeColumns).
			AddRow("kb001", "How do I reset my password?", "Click 'Forgot Password'.", "account", "{password,login}", false).
			AddRow("kb004", "How do I cancel my subscription?", "Go to Billing.", "", "{}", true))

	entries, err := repo.List(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "kb001", entries[0].ID)
	assert.Equal(t, []string{"password", "login"}, entries[0].Tags)
	assert.Equal(t, "kb004", entries[1].ID)
	assert.Nil(t, entries[1].Tags)
	assert.True(t, entries[1].Escalation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKnowledgeRepository_ListError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeRepository(db, zap.NewNop())

	mock.ExpectQuery("FROM knowledge_entries").WillReturnError(sql.ErrConnDone)

	_, err := repo.List(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "failed to list knowledge entries")
}

func TestKnowledgeRepository_ReplaceAllInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeRepository(db, zap.NewNop())
	tm := NewTransactionManager(db, zap.NewNop())

	entries := []models.KnowledgeEntry{
		{ID: "kb001", Question: "q1", Answer: "a1", Category: "account", Tags: []string{"password"}},
		{ID: "kb002", Question: "q2", Answer: "a2", Escalation: true},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM knowledge_entries").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("INSERT INTO knowledge_entries").
		WithArgs("kb001", 0, "q1", "a1", "account", sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO knowledge_entries").
		WithArgs("kb002", 1, "q2", "a2", "", sqlmock.AnyArg(), true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		return repo.ReplaceAll(ctx, entries)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKnowledgeRepository_ReplaceAllRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeRepository(db, zap.NewNop())
	tm := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM knowledge_entries").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("INSERT INTO knowledge_entries").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		return repo.ReplaceAll(ctx, []models.KnowledgeEntry{{ID: "kb001", Question: "q", Answer: "a"}})
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kb001")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKnowledgeRepository_Count(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeRepository(db, zap.NewNop())

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	n, err := repo.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestInteractionRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInteractionRepository(db, zap.NewNop())

	score := 0.82
	interaction := models.NewInteraction("req-1", "How do I reset my password?").
		WithAnswer("Click 'Forgot Password'.", models.AnswerSourceKnowledgeBase, &score, false).
		WithMatch("kb001").
		WithSession("sess-42", "").
		WithLatency(12 * time.Millisecond)

	mock.ExpectExec("INSERT INTO interactions").
		WithArgs(sqlmock.AnyArg(), "req-1", "How do I reset my password?", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg(), 12, sqlmock.AnyArg(),
			"sess-42", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), interaction))
	assert.NoError(t, mock.ExpectationsWereMet())
}

var interactionRowColumns = []string{
	"id", "request_id", "question", "answer", "source", "matched_entry_id",
	"confidence", "escalate_to_human", "model", "error_kind", "latency_ms", "created_at",
	"session_id", "user_id",
}

func TestInteractionRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInteractionRepository(db, zap.NewNop())

	id := uuid.New()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM interactions WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(interactionRowColumns).
			AddRow(id.String(), "req-9", "q", "Sorry, I don't know.", "fallback", "kb003",
				0.31, true, "llama2", "backend_timeout", 30010, created, "sess-7", "user-3"))

	got, err := repo.GetByID(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	require.NotNil(t, got.Source)
	assert.Equal(t, models.AnswerSourceFallback, *got.Source)
	require.NotNil(t, got.Confidence)
	assert.Equal(t, 0.31, *got.Confidence)
	assert.Equal(t, "kb003", *got.MatchedEntryID)
	assert.Equal(t, "backend_timeout", *got.ErrorKind)
	assert.True(t, got.EscalateToHuman)
	assert.Equal(t, 30010, got.LatencyMs)
	assert.Equal(t, created, got.CreatedAt)
	require.NotNil(t, got.SessionID)
	assert.Equal(t, "sess-7", *got.SessionID)
	require.NotNil(t, got.UserID)
	assert.Equal(t, "user-3", *got.UserID)
}

func TestInteractionRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInteractionRepository(db, zap.NewNop())

	mock.ExpectQuery("FROM interactions").WillReturnRows(sqlmock.NewRows(interactionRowColumns))

	_, err := repo.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestInteractionRepository_ListRecent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInteractionRepository(db, zap.NewNop())

	now := time.Now().UTC()
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(interactionRowColumns).
			AddRow(uuid.NewString(), "req-2", "q2", "a2", "llm", nil, nil, false, "llama2", nil, 900, now, nil, nil).
			AddRow(uuid.NewString(), "req-1", "q1", nil, nil, nil, nil, false, nil, "no_answer_available", 5, now, "sess-1", nil))

	got, err := repo.ListRecent(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Confidence)
	assert.Equal(t, models.AnswerSourceModel, *got[0].Source)
	assert.True(t, got[1].Failed())
	assert.Nil(t, got[1].Source)
	assert.Nil(t, got[0].SessionID)
	assert.Equal(t, "sess-1", *got[1].SessionID)
	assert.Nil(t, got[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		assert.NoError(t, db.HealthCheck(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing().WillReturnError(sql.ErrConnDone)

		err := db.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database health check failed")
	})
}

func TestDB_InitSchema(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS knowledge_entries").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_JoinsExistingTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := tm.InTransaction(context.Background(), func(ctx context.Context, outer repositories.Transaction) error {
		return tm.InTransaction(ctx, func(ctx context.Context, inner repositories.Transaction) error {
			assert.Same(t, outer, inner)
			return nil
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFactory(t *testing.T) {
	db, mock := newMockDB(t)
	factory := NewRepositoryFactoryWithDB(db, zap.NewNop())

	repos := factory.NewRepositories()
	assert.NotNil(t, repos.Knowledge)
	assert.NotNil(t, repos.Interactions)
	assert.NotNil(t, factory.GetTransactionManager())
	assert.Same(t, db, factory.GetDB())

	mock.ExpectClose()
	assert.NoError(t, factory.Close())
}
