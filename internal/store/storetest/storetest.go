// Package storetest is a conformance suite every store adapter must pass.
package storetest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/store"
)

type record struct {
	ID      string     `json:"id"`
	Owner   string     `json:"owner"`
	Count   int        `json:"count"`
	Tags    []string   `json:"tags"`
	Due     time.Time  `json:"due"`
	Done    bool       `json:"done"`
	Removed *time.Time `json:"removed,omitempty"`
}

// Run exercises the contract against a fresh store from newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "things", "nope")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("UpsertGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		in := record{ID: "a", Owner: "alice", Tags: []string{"x"}, Due: time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)}
		require.NoError(t, s.Upsert(ctx, "things", in.ID, in))
		got, err := store.GetAs[record](ctx, s, "things", "a")
		require.NoError(t, err)
		assert.Equal(t, in, got)

		in.Owner = "bob"
		require.NoError(t, s.Upsert(ctx, "things", in.ID, in))
		got, err = store.GetAs[record](ctx, s, "things", "a")
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Owner)
	})

	t.Run("UpdatePatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.Upsert(ctx, "things", "a", record{ID: "a", Owner: "alice", Tags: []string{"x"}, Removed: &now}))
		err := s.Update(ctx, "things", "a", store.Patch{
			Set:       map[string]any{"owner": "carol"},
			Unset:     []string{"removed"},
			AddToSet:  map[string][]string{"tags": {"x", "y"}},
			Increment: map[string]int64{"count": 2},
		})
		require.NoError(t, err)
		got, err := store.GetAs[record](ctx, s, "things", "a")
		require.NoError(t, err)
		assert.Equal(t, "carol", got.Owner)
		assert.Nil(t, got.Removed)
		assert.Equal(t, []string{"x", "y"}, got.Tags)
		assert.Equal(t, 2, got.Count)

		require.NoError(t, s.Update(ctx, "things", "a", store.Patch{RemoveFromSet: map[string][]string{"tags": {"x", "zzz"}}}))
		got, err = store.GetAs[record](ctx, s, "things", "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"y"}, got.Tags)

		err = s.Update(ctx, "things", "missing", store.Patch{Set: map[string]any{"owner": "x"}})
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "things", "a", record{ID: "a"}))
		require.NoError(t, s.Delete(ctx, "things", "a"))
		require.NoError(t, s.Delete(ctx, "things", "a"))
		_, err := s.Get(ctx, "things", "a")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("QueryFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		removed := base
		recs := []record{
			{ID: "a", Owner: "alice", Count: 1, Due: base, Done: true},
			{ID: "b", Owner: "alice", Count: 2, Due: base.Add(36 * time.Hour)},
			{ID: "c", Owner: "bob", Count: 3, Due: base.Add(72 * time.Hour), Removed: &removed},
		}
		for _, r := range recs {
			require.NoError(t, s.Upsert(ctx, "things", r.ID, r))
		}
		require.NoError(t, s.Upsert(ctx, "other", "z", record{ID: "z", Owner: "alice"}))

		ids := func(q store.Query) []string {
			t.Helper()
			got, err := store.QueryAs[record](ctx, s, q)
			require.NoError(t, err)
			out := make([]string, 0, len(got))
			for _, r := range got {
				out = append(out, r.ID)
			}
			sort.Strings(out)
			return out
		}
		q := store.From("things")
		assert.Equal(t, []string{"a", "b", "c"}, ids(q))
		assert.Equal(t, []string{"a", "b"}, ids(q.Where("owner", store.Eq, "alice")))
		assert.Equal(t, []string{"c"}, ids(q.Where("owner", store.Neq, "alice")))
		assert.Equal(t, []string{"b", "c"}, ids(q.Where("count", store.Gte, 2)))
		assert.Equal(t, []string{"a"}, ids(q.Where("count", store.Lt, 2)))
		assert.Equal(t, []string{"a"}, ids(q.Where("done", store.Eq, true)))
		assert.Equal(t, []string{"b", "c"}, ids(q.Where("due", store.Gt, base.Add(time.Hour))))
		assert.Equal(t, []string{"a", "b"}, ids(q.Where("due", store.Lte, base.Add(36*time.Hour))))
		assert.Equal(t, []string{"c"}, ids(q.Where("removed", store.Exists, true)))
		assert.Equal(t, []string{"a", "b"}, ids(q.Where("removed", store.Exists, false)))
		assert.Equal(t, []string{"b"}, ids(q.Where("owner", store.Eq, "alice").Where("count", store.Eq, 2)))
		assert.Len(t, ids(q.Limit(2)), 2)

		_, err := s.Query(ctx, q.Where("bad field", store.Eq, 1))
		assert.Error(t, err)
	})

	t.Run("Transactions", func(t *testing.T) {
		s := newStore(t)
		tr, ok := s.(store.Transactor)
		if !ok {
			t.Skip("adapter is not transactional")
		}
		ctx := context.Background()
		boom := errors.New("boom")
		err := tr.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
			require.NoError(t, tx.Upsert(ctx, "things", "a", record{ID: "a"}))
			_, err := tx.Get(ctx, "things", "a")
			require.NoError(t, err)
			return boom
		})
		assert.ErrorIs(t, err, boom)
		_, err = s.Get(ctx, "things", "a")
		assert.True(t, errors.Is(err, store.ErrNotFound))

		err = tr.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
			if err := tx.Upsert(ctx, "things", "b", record{ID: "b"}); err != nil {
				return err
			}
			return tx.Update(ctx, "things", "b", store.Patch{Set: map[string]any{"owner": "dana"}})
		})
		require.NoError(t, err)
		got, err := store.GetAs[record](ctx, s, "things", "b")
		require.NoError(t, err)
		assert.Equal(t, "dana", got.Owner)
	})
}
