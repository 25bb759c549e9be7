package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/sqlsandbox/internal/model"
)

func TestNewRepository(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	require.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

// ---------- Logical databases ----------

func TestRepository_GetLogicalDatabase_Success(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"shop"}).
		Return(valuesRow("shop", 7, created))

	got, err := repo.GetLogicalDatabase(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, "shop", got.Name)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, 7, *got.OwnerID)
	assert.Equal(t, created, got.CreatedAt)
	db.AssertExpectations(t)
}

func TestRepository_GetLogicalDatabase_NotFound(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errRow(pgx.ErrNoRows))

	_, err := repo.GetLogicalDatabase(ctx, "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRepository_GetLogicalDatabase_OtherError(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errRow(errors.New("conn refused")))

	_, err := repo.GetLogicalDatabase(ctx, "shop")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrNotFound)
	assert.Contains(t, err.Error(), "conn refused")
}

func TestRepository_CreateLogicalDatabase(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()
	owner := 1
	d := &model.LogicalDatabase{Name: "shop", OwnerID: &owner, CreatedAt: time.Now()}

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"shop", &owner, d.CreatedAt}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.CreateLogicalDatabase(ctx, d))
	db.AssertExpectations(t)
}

func TestRepository_CreateLogicalDatabase_Error(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, errors.New("duplicate key"))

	err := repo.CreateLogicalDatabase(ctx, &model.LogicalDatabase{Name: "shop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert logical database")
}

func TestRepository_DeleteLogicalDatabase(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"shop"}).Return(pgconn.NewCommandTag("DELETE 1"), nil).Once()
	require.NoError(t, repo.DeleteLogicalDatabase(ctx, "shop"))

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"gone"}).Return(pgconn.NewCommandTag("DELETE 0"), nil).Once()
	assert.ErrorIs(t, repo.DeleteLogicalDatabase(ctx, "gone"), model.ErrNotFound)
}

func TestRepository_ListLogicalDatabases(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now()

	rows := newMockRows(
		scanValues("library", 1, now),
		scanValues("shop", nil, now),
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	got, err := repo.ListLogicalDatabases(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "library", got[0].Name)
	assert.True(t, got[0].OwnedBy(1))
	assert.Nil(t, got[1].OwnerID)
}

func TestRepository_ListLogicalDatabases_IterError(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()

	rows := newEmptyMockRows()
	rows.err = errors.New("stream broken")
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	_, err := repo.ListLogicalDatabases(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iterate logical databases")
}

func TestRepository_CountWorksheetReferences(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"shop"}).Return(valuesRow(3))

	n, err := repo.CountWorksheetReferences(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

// ---------- Copies ----------

func TestRepository_GetCopy(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()
	created := time.Now().Truncate(time.Second)

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"shop", 2}).
		Return(valuesRow("shop_c2_1_abcd", "shop", 2, created, nil, created.Add(4*time.Hour)))

	c, err := repo.GetCopy(ctx, "shop", 2)
	require.NoError(t, err)
	assert.Equal(t, "shop_c2_1_abcd", c.CopyName)
	assert.Nil(t, c.LastUsedAt)
	assert.Equal(t, created.Add(4*time.Hour), c.ExpiresAt)
}

func TestRepository_GetCopy_NotFound(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errRow(pgx.ErrNoRows))

	_, err := repo.GetCopy(ctx, "shop", 2)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRepository_InsertCopyIfAbsent(t *testing.T) {
	ctx := context.Background()
	c := &model.DatabaseCopy{CopyName: "shop_c2_1_abcd", LogicalDatabase: "shop", RequesterID: 2}

	tests := []struct {
		name     string
		tag      string
		err      error
		inserted bool
		wantErr  bool
	}{
		{"inserted", "INSERT 0 1", nil, true, false},
		{"conflict", "INSERT 0 0", nil, false, false},
		{"error", "", errors.New("boom"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &mockDB{}
			repo := NewRepository(db)
			db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
				return strings.Contains(sql, "ON CONFLICT (logical_database, requester_id) DO NOTHING")
			}), mock.Anything).Return(pgconn.NewCommandTag(tt.tag), tt.err)

			inserted, err := repo.InsertCopyIfAbsent(ctx, c)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.inserted, inserted)
			db.AssertExpectations(t)
		})
	}
}

func TestRepository_TouchCopy(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()
	at := time.Now()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"c1", at}).Return(pgconn.NewCommandTag("UPDATE 1"), nil).Once()
	require.NoError(t, repo.TouchCopy(ctx, "c1", at))

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"c2", at}).Return(pgconn.NewCommandTag("UPDATE 0"), nil).Once()
	assert.ErrorIs(t, repo.TouchCopy(ctx, "c2", at), model.ErrNotFound)
}

func TestRepository_DeleteCopy(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"c1"}).Return(pgconn.NewCommandTag("DELETE 0"), nil)
	assert.NoError(t, repo.DeleteCopy(ctx, "c1"))
}

func TestRepository_ListExpiredCopies(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now()
	used := now.Add(-time.Hour)

	rows := newMockRows(
		scanValues("a", "shop", 1, now.Add(-5*time.Hour), used, now.Add(-time.Hour)),
		scanValues("b", "shop", 2, now.Add(-6*time.Hour), nil, now.Add(-2*time.Hour)),
	)
	db.On("Query", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "expires_at < $1")
	}), []any{now}).Return(rows, nil)

	got, err := repo.ListExpiredCopies(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].LastUsedAt)
	assert.Equal(t, used, *got[0].LastUsedAt)
	assert.Equal(t, 2, got[1].RequesterID)
}

func TestRepository_ListCopies_QueryError(t *testing.T) {
	db := &mockDB{}
	repo := NewRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(nil, errors.New("down"))

	_, err := repo.ListCopies(ctx, "shop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list copies")
}

// ---------- Query audit ----------

func TestQueryAuditLog_WritesQueuedEntriesOnClose(t *testing.T) {
	db := &mockDB{}
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	al := NewQueryAuditLog(db, zerolog.Nop(), 8)
	for i := range 3 {
		al.Record(model.QueryAuditEntry{ID: string(rune('a' + i)), Duration: 12 * time.Millisecond})
	}
	al.Close()

	db.AssertNumberOfCalls(t, "Exec", 3)
	call := db.Calls[0]
	args := call.Arguments.Get(2).([]any)
	assert.Equal(t, "a", args[0])
	assert.Equal(t, int64(12), args[7])
}

func TestQueryAuditLog_ExecErrorIsLogged(t *testing.T) {
	db := &mockDB{}
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, errors.New("down"))

	al := NewQueryAuditLog(db, zerolog.Nop(), 1)
	al.Record(model.QueryAuditEntry{ID: "x"})
	assert.NotPanics(t, al.Close)
}

func TestQueryAuditLog_RecordAfterCloseIsDropped(t *testing.T) {
	db := &mockDB{}
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	al := NewQueryAuditLog(db, zerolog.Nop(), 4)
	al.Record(model.QueryAuditEntry{ID: "before"})
	al.Close()

	assert.NotPanics(t, func() { al.Record(model.QueryAuditEntry{ID: "after"}) })
	assert.NotPanics(t, al.Close)
	db.AssertNumberOfCalls(t, "Exec", 1)
}
