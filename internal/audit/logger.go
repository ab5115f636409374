// Package audit is the append-only mutation log. Writes propagate their
// errors; reads degrade to an empty result and log the failure.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"impactline/internal/domain"
	"impactline/internal/ids"
	"impactline/internal/metrics"
	"impactline/internal/store"
)

const Collection = "audit_log"

const (
	fieldItemID    store.Field = "item_id"
	fieldActorID   store.Field = "actor_id"
	fieldAction    store.Field = "action"
	fieldTimestamp store.Field = "timestamp"
)

const (
	DefaultReadLimit   = 1000
	DefaultRecentLimit = 50
	DefaultRangeWindow = 30 * 24 * time.Hour
)

type Logger struct {
	Store     store.Store
	IDs       ids.Generator
	Log       *slog.Logger
	ReadLimit int
}

func New(s store.Store, gen ids.Generator, log *slog.Logger) Logger {
	return Logger{Store: s, IDs: gen, Log: log, ReadLimit: DefaultReadLimit}
}

func (l Logger) logger() *slog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return slog.Default()
}

// With returns a copy of l bound to s, typically a transaction.
func (l Logger) With(s store.Store) Logger {
	l.Store = s
	return l
}

// Snapshot encodes v as an audit state; nil yields a null state.
func Snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode audit snapshot: %w", err)
	}
	return b, nil
}

// Append assigns id and timestamp and writes entry once.
func (l Logger) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	entry.ID = l.IDs.NewID()
	entry.Timestamp = l.Store.Now()
	if err := l.Store.Upsert(ctx, Collection, entry.ID, entry); err != nil {
		metrics.AuditWriteFailure()
		l.logger().Error("audit append failed", "item_id", entry.ItemID, "action", entry.Action, "error", err)
		return domain.AuditEntry{}, domain.StoreError{Op: "append audit entry", Err: err}
	}
	return entry, nil
}

func (l Logger) limit(n int) int {
	if n > 0 {
		return n
	}
	if l.ReadLimit > 0 {
		return l.ReadLimit
	}
	return DefaultReadLimit
}

// read runs q, sorts newest first, and pages. Failures yield nil.
func (l Logger) read(ctx context.Context, projection string, q store.Query, offset, limit int) []domain.AuditEntry {
	entries, err := store.QueryAs[domain.AuditEntry](ctx, l.Store, q)
	if err != nil {
		metrics.AuditReadFailure(projection)
		l.logger().Error("audit read failed", "projection", projection, "error", err)
		return []domain.AuditEntry{}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if offset >= len(entries) {
		return []domain.AuditEntry{}
	}
	entries = entries[offset:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// History returns every entry for an item, newest first.
func (l Logger) History(ctx context.Context, itemID string) []domain.AuditEntry {
	q := store.From(Collection).Where(fieldItemID, store.Eq, itemID)
	return l.read(ctx, "history", q, 0, 0)
}

func (l Logger) ByActor(ctx context.Context, actorID string, limit int) []domain.AuditEntry {
	q := store.From(Collection).Where(fieldActorID, store.Eq, actorID)
	return l.read(ctx, "actor", q, 0, l.limit(limit))
}

func (l Logger) ByAction(ctx context.Context, action domain.AuditAction, limit int) []domain.AuditEntry {
	q := store.From(Collection).Where(fieldAction, store.Eq, action)
	return l.read(ctx, "action", q, 0, l.limit(limit))
}

// ByRange returns entries in [since, until]. Zero bounds default to the
// last thirty days.
func (l Logger) ByRange(ctx context.Context, since, until time.Time, limit int) []domain.AuditEntry {
	if until.IsZero() {
		until = l.Store.Now()
	}
	if since.IsZero() {
		since = until.Add(-DefaultRangeWindow)
	}
	q := store.From(Collection).
		Where(fieldTimestamp, store.Gte, since).
		Where(fieldTimestamp, store.Lte, until)
	return l.read(ctx, "range", q, 0, l.limit(limit))
}

func (l Logger) Recent(ctx context.Context, limit int) []domain.AuditEntry {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return l.read(ctx, "recent", store.From(Collection), 0, limit)
}

func filterQuery(f domain.AuditFilter) store.Query {
	q := store.From(Collection)
	if f.ItemID != "" {
		q = q.Where(fieldItemID, store.Eq, f.ItemID)
	}
	if f.ActorID != "" {
		q = q.Where(fieldActorID, store.Eq, f.ActorID)
	}
	if f.Action != "" {
		q = q.Where(fieldAction, store.Eq, f.Action)
	}
	if f.Since != nil {
		q = q.Where(fieldTimestamp, store.Gte, *f.Since)
	}
	if f.Until != nil {
		q = q.Where(fieldTimestamp, store.Lte, *f.Until)
	}
	return q
}

// Export applies every set filter and pages with Offset/Limit.
func (l Logger) Export(ctx context.Context, f domain.AuditFilter) []domain.AuditEntry {
	return l.read(ctx, "export", filterQuery(f), f.Offset, l.limit(f.Limit))
}

// Count ignores paging.
func (l Logger) Count(ctx context.Context, f domain.AuditFilter) int {
	return len(l.read(ctx, "count", filterQuery(f), 0, 0))
}
