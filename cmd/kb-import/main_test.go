package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/config"
	"github.com/upb/helpdesk-orchestrator/repositories/postgres"
)

const sampleKB = `[
  {"id": "kb1", "question": "How do I reset my password?", "answer": "Use the reset link.", "category": "account"},
  {"id": "kb2", "question": "How do I connect to the VPN?", "answer": "Install the client.", "category": "network"},
  {"id": "kb3", "question": "Who do I call?", "answer": "The service desk."}
]`

func writeKB(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateCmd(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"validate", writeKB(t, sampleKB)})

		require.NoError(t, cmd.Execute())

		assert.Contains(t, out.String(), "3 entries")
		assert.Contains(t, out.String(), "account")
		assert.Contains(t, out.String(), "(none)")
	})

	t.Run("duplicate ids", func(t *testing.T) {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"validate", writeKB(t, `[
  {"id": "kb1", "question": "a", "answer": "b"},
  {"id": "kb1", "question": "c", "answer": "d"}
]`)})

		assert.Error(t, cmd.Execute())
	})

	t.Run("bad weighting", func(t *testing.T) {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"validate", "--weighting", "bm25", writeKB(t, sampleKB)})

		assert.Error(t, cmd.Execute())
	})
}

func TestImportCmd(t *testing.T) {
	t.Run("replaces entries in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS knowledge_entries").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM knowledge_entries").WillReturnResult(sqlmock.NewResult(0, 2))
		for i := 0; i < 3; i++ {
			mock.ExpectExec("INSERT INTO knowledge_entries").WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectCommit()
		mock.ExpectClose()

		var gotURL string
		open := func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*postgres.RepositoryFactory, error) {
			gotURL = cfg.Database.ConnectionString
			return postgres.NewRepositoryFactoryWithDB(postgres.WrapDB(db, logger), logger), nil
		}

		var out bytes.Buffer
		cmd := newImportCmd(open)
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--database-url", "postgres://helpdesk@localhost/helpdesk", writeKB(t, sampleKB)})

		require.NoError(t, cmd.Execute())

		assert.Equal(t, "postgres://helpdesk@localhost/helpdesk", gotURL)
		assert.Contains(t, out.String(), "imported 3 entries")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on insert failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS knowledge_entries").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM knowledge_entries").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO knowledge_entries").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()
		mock.ExpectClose()

		open := func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*postgres.RepositoryFactory, error) {
			return postgres.NewRepositoryFactoryWithDB(postgres.WrapDB(db, logger), logger), nil
		}

		cmd := newImportCmd(open)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"--database-url", "postgres://x@localhost/y", writeKB(t, sampleKB)})

		err = cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "import failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid file never opens the database", func(t *testing.T) {
		open := func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*postgres.RepositoryFactory, error) {
			t.Fatal("database should not be opened")
			return nil, nil
		}

		cmd := newImportCmd(open)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"--database-url", "postgres://x@localhost/y", writeKB(t, `[{"id": "kb1"}]`)})

		assert.Error(t, cmd.Execute())
	})
}
