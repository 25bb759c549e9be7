package sandbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"two statements", "SELECT 1; SELECT 2", []string{"SELECT 1", "SELECT 2"}},
		{"semicolon in literal", "SELECT ';' FROM t", []string{"SELECT ';' FROM t"}},
		{"trailing semicolon", "SELECT 1;", []string{"SELECT 1"}},
		{"empty statements dropped", ";; SELECT 1 ;;\n; SELECT 2;", []string{"SELECT 1", "SELECT 2"}},
		{"doubled quote escape", "SELECT 'it''s; fine'; SELECT 2", []string{"SELECT 'it''s; fine'", "SELECT 2"}},
		{"quoted identifier", `SELECT "a;b" FROM t; SELECT 2`, []string{`SELECT "a;b" FROM t`, "SELECT 2"}},
		{"anonymous dollar block", "DO $$ BEGIN; END $$; SELECT 1", []string{"DO $$ BEGIN; END $$", "SELECT 1"}},
		{
			"tagged dollar block",
			"CREATE FUNCTION f() RETURNS int AS $body$ SELECT 1; $$ nested $$; $body$ LANGUAGE sql; SELECT 2",
			[]string{"CREATE FUNCTION f() RETURNS int AS $body$ SELECT 1; $$ nested $$; $body$ LANGUAGE sql", "SELECT 2"},
		},
		{"positional parameter is not a delimiter", "SELECT $1; SELECT 2", []string{"SELECT $1", "SELECT 2"}},
		{"dollar inside identifier", "SELECT a$b$; SELECT 2", []string{"SELECT a$b$", "SELECT 2"}},
		{"line comment", "SELECT 1 -- ; not a boundary\n; SELECT 2", []string{"SELECT 1 -- ; not a boundary", "SELECT 2"}},
		{"block comment", "SELECT /* ; */ 1; SELECT 2", []string{"SELECT /* ; */ 1", "SELECT 2"}},
		{"nested block comment", "SELECT /* a /* ; */ ; */ 1; SELECT 2", []string{"SELECT /* a /* ; */ ; */ 1", "SELECT 2"}},
		{"unterminated literal swallows rest", "SELECT 'abc; SELECT 2", []string{"SELECT 'abc; SELECT 2"}},
		{"unterminated dollar block swallows rest", "SELECT $x$ abc; SELECT 2", []string{"SELECT $x$ abc; SELECT 2"}},
		{"whitespace trimmed", "  \n\tSELECT 1 \n ", []string{"SELECT 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitStatements(tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitStatements_Empty(t *testing.T) {
	for _, script := range []string{"", "   ", ";", " ; ;\n;"} {
		_, err := SplitStatements(script)
		require.Error(t, err, "script %q", script)
		assert.True(t, errors.Is(err, ErrEmptyScript), "script %q", script)
	}
}

// A statement produced by the splitter must split back into itself, so no
// literal, block or comment opened in it is closed by a neighbour.
func TestSplitStatements_NoCrossStatementLeakage(t *testing.T) {
	scripts := []string{
		"INSERT INTO t VALUES ('a;b'); INSERT INTO t VALUES ('c''d;'); SELECT \"x;y\"",
		"SELECT $$a;b$$; SELECT $q$ ' ; $q$; SELECT '$$'; SELECT 4",
		"SELECT '--'; SELECT '/*'; SELECT 3",
	}
	for _, script := range scripts {
		stmts, err := SplitStatements(script)
		require.NoError(t, err)
		for _, stmt := range stmts {
			assert.Equal(t, []string{stmt}, mustSplit(t, stmt))
		}
	}
}

func TestSplitStatements_CommentMarkersInsideLiterals(t *testing.T) {
	got, err := SplitStatements("SELECT '--'; SELECT '/*'; SELECT 3")
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT '--'", "SELECT '/*'", "SELECT 3"}, got)
}

func mustSplit(t *testing.T, s string) []string {
	t.Helper()
	out, err := SplitStatements(s)
	require.NoError(t, err)
	return out
}
