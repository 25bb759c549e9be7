package sandbox_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/sqlsandbox/internal/model"
	"github.com/edvin/sqlsandbox/internal/sandbox"
)

const libraryScript = `CREATE DATABASE Library;
CREATE TABLE books (id serial PRIMARY KEY, title text NOT NULL);
INSERT INTO books (title) VALUES ('Dune'), ('Emma; a novel');`

func TestImportScript_CreatesAndRegisters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name, err := f.sb.ImportScript(ctx, libraryScript, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "library", name)
	assert.True(t, f.driver.HasDatabase("library"))

	db, err := f.repo.GetLogicalDatabase(ctx, "library")
	require.NoError(t, err)
	assert.True(t, db.OwnedBy(ownerID))

	var scripted []string
	for _, c := range f.driver.Calls() {
		if c.Database == "library" {
			scripted = append(scripted, c.SQL)
		}
	}
	assert.Equal(t, []string{
		"CREATE TABLE books (id serial PRIMARY KEY, title text NOT NULL)",
		"INSERT INTO books (title) VALUES ('Dune'), ('Emma; a novel')",
	}, scripted)
}

func TestImportScript_SecondStatementFails(t *testing.T) {
	f := newFixture(t)
	f.driver.ExecFunc = func(_ context.Context, _, sql string) (int64, error) {
		if strings.HasPrefix(sql, "CREATE TABLE") {
			return 0, &pgconn.PgError{Code: "42601", Message: `syntax error at or near "PRIMARY"`}
		}
		return 0, nil
	}

	_, err := f.sb.ImportScript(context.Background(), libraryScript, ownerID)
	require.Error(t, err)

	var sbErr *sandbox.Error
	require.True(t, errors.As(err, &sbErr))
	assert.Equal(t, sandbox.KindStatementFailed, sbErr.Kind)
	assert.Equal(t, 2, sbErr.Index)
	assert.ErrorIs(t, sbErr.Err, sandbox.ErrSyntaxError)

	_, err = f.repo.GetLogicalDatabase(context.Background(), "library")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.False(t, f.driver.HasDatabase("library"))
}

func TestImportScript_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   error
	}{
		{"empty", " ; ", sandbox.ErrEmptyScript},
		{"no create database", "CREATE TABLE t (id int);", sandbox.ErrMissingCreateStatement},
		{"invalid name", "CREATE DATABASE x;", sandbox.ErrInvalidName},
		{"second create database", "CREATE DATABASE abc; CREATE DATABASE other;", sandbox.ErrForbiddenCommand},
		{"drop database later", "CREATE DATABASE abc; DROP DATABASE shop;", sandbox.ErrForbiddenCommand},
		{"already exists", "CREATE DATABASE shop;", sandbox.ErrUniqueViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.sb.ImportScript(context.Background(), tt.script, ownerID)
			assert.ErrorIs(t, err, tt.want)
			assert.ElementsMatch(t, []string{"postgres", "shop"}, f.driver.Databases())
		})
	}
}

func TestImportScript_QuotedName(t *testing.T) {
	f := newFixture(t)
	name, err := f.sb.ImportScript(context.Background(), `CREATE DATABASE "zoo" ENCODING 'UTF8';`, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "zoo", name)
}

func TestImportScript_LeadingComments(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"line comment", "-- Shop schema\nCREATE DATABASE shopx;\nCREATE TABLE t (id int);", "shopx"},
		{"block comment", "/* dump */ CREATE DATABASE shopy; CREATE TABLE t (id int);", "shopy"},
		{"nested and stacked", "/* a /* b */ c */\n-- one\n  -- two\nCREATE DATABASE shopz;", "shopz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			name, err := f.sb.ImportScript(context.Background(), tt.script, ownerID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
			assert.True(t, f.driver.HasDatabase(tt.want))
		})
	}
}

func TestImportScript_CommentOnlyHeaderStillNeedsCreate(t *testing.T) {
	f := newFixture(t)
	_, err := f.sb.ImportScript(context.Background(), "-- CREATE DATABASE ghost\nCREATE TABLE t (id int);", ownerID)
	assert.ErrorIs(t, err, sandbox.ErrMissingCreateStatement)
}

func TestCreateDatabase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.sb.CreateDatabase(ctx, "school", "CREATE TABLE pupils (id int); INSERT INTO pupils VALUES (1)", ownerID)
	require.NoError(t, err)
	assert.True(t, f.driver.HasDatabase("school"))

	ok, err := f.sb.CheckAccess(ctx, "school", ownerID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateDatabase_FailureIndexIsOneBased(t *testing.T) {
	f := newFixture(t)
	f.driver.ExecFunc = func(_ context.Context, _, sql string) (int64, error) {
		if strings.HasPrefix(sql, "INSERT") {
			return 0, &pgconn.PgError{Code: "42P01", Message: `relation "pupils" does not exist`}
		}
		return 0, nil
	}

	err := f.sb.CreateDatabase(context.Background(), "school", "CREATE TABLE x (id int); INSERT INTO pupils VALUES (1)", ownerID)
	var sbErr *sandbox.Error
	require.True(t, errors.As(err, &sbErr))
	assert.Equal(t, 2, sbErr.Index)
	assert.False(t, f.driver.HasDatabase("school"))
}
