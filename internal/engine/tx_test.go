package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/audit"
	"impactline/internal/db"
	"impactline/internal/domain"
	"impactline/internal/engine"
	"impactline/internal/ids"
	"impactline/internal/migrate"
	"impactline/internal/store"
	"impactline/internal/store/sqlite"
)

// failingTx hands fn a failing view of the real transaction.
type failingTx struct {
	store.Store
	tx      store.Transactor
	upserts map[string]bool
}

func (f failingTx) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return f.tx.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, failing{Store: tx, upserts: f.upserts})
	})
}

func newSQLiteStore(t *testing.T) *sqlite.Store {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	return sqlite.New(conn)
}

func TestTransactionalCreateOnSQLite(t *testing.T) {
	s := newSQLiteStore(t)
	eng := engine.New(s, &ids.Sequence{Prefix: "id"}, engine.DefaultOptions())
	ctx := context.Background()
	actor := domain.Actor{ID: "alice"}

	item, err := eng.Create(ctx, request(), actor)
	require.NoError(t, err)
	obj, err := eng.Objectives.Get(ctx, "obj-1")
	require.NoError(t, err)
	assert.Equal(t, []string{item.ID}, obj.MemberIDs)
	assert.Len(t, eng.History(ctx, item.ID), 1)
}

func TestTransactionalAuditFailureRollsBack(t *testing.T) {
	s := newSQLiteStore(t)
	wrapped := failingTx{Store: s, tx: s, upserts: map[string]bool{audit.Collection: true}}
	eng := engine.New(wrapped, &ids.Sequence{Prefix: "id"}, engine.DefaultOptions())
	ctx := context.Background()

	_, err := eng.Create(ctx, request(), domain.Actor{ID: "alice"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	items, err := eng.List(ctx, domain.WorkItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	ok, err := eng.Objectives.Exists(ctx, "obj-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
