package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryCreatesSchema(t *testing.T) {
	ctx := context.Background()
	dbx, err := OpenMemory(ctx)
	require.NoError(t, err)
	defer dbx.Close()

	for _, table := range []string{
		"users", "courses", "checkmarks", "checkmark_examples", "checkmark_submissions",
		"checkmark_checks", "checkmark_feedbacks", "checkmark_overrides",
		"grade_items", "grade_grades", "calendar_events", "user_preferences", "event_log",
	} {
		var n int
		err := dbx.GetContext(ctx, &n, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	dbx, err := OpenMemory(ctx)
	require.NoError(t, err)
	defer dbx.Close()

	boom := errors.New("boom")
	err = WithTx(ctx, dbx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO courses (fullname, created_at) VALUES (?, ?)`, "Algebra", 1)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, dbx.GetContext(ctx, &n, `SELECT COUNT(*) FROM courses`))
	assert.Zero(t, n)

	err = WithTx(ctx, dbx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO courses (fullname, created_at) VALUES (?, ?)`, "Algebra", 1)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, dbx.GetContext(ctx, &n, `SELECT COUNT(*) FROM courses`))
	assert.Equal(t, 1, n)
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	dbx, err := OpenMemory(ctx)
	require.NoError(t, err)
	defer dbx.Close()

	_, err = dbx.ExecContext(ctx, `INSERT INTO users (username, created_at) VALUES ('ada', 1)`)
	require.NoError(t, err)
	_, err = dbx.ExecContext(ctx, `INSERT INTO users (username, created_at) VALUES ('ada', 1)`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsUniqueViolation(nil))

	dup := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	assert.True(t, IsUniqueViolation(dup))
	fk := &pgconn.PgError{Code: "23503", Message: "UNIQUE constraint failed is not what this says"}
	assert.False(t, IsUniqueViolation(fk), "postgres errors are judged by code, not text")
	assert.False(t, IsUniqueViolation(errors.New("ERROR: something (SQLSTATE 23505)")), "text alone does not count for postgres")
}
