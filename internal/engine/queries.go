package engine

import (
	"context"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"impactline/internal/domain"
	"impactline/internal/store"
)

func (e Engine) listLimit(n int) int {
	switch {
	case n > 0:
		return n
	case e.Options.ListLimit > 0:
		return e.Options.ListLimit
	}
	return DefaultListLimit
}

func filterQuery(f domain.WorkItemFilter) store.Query {
	q := store.From(Collection).Where(fieldDeletedAt, store.Exists, false)
	if f.AssigneeID != "" {
		q = q.Where(fieldAssigneeID, store.Eq, f.AssigneeID)
	}
	if f.ObjectiveID != "" {
		q = q.Where(fieldObjectiveID, store.Eq, f.ObjectiveID)
	}
	if f.Status != "" {
		q = q.Where(fieldStatus, store.Eq, f.Status)
	}
	if f.CreatedBy != "" {
		q = q.Where(fieldCreatedBy, store.Eq, f.CreatedBy)
	}
	if f.DueBefore != nil {
		q = q.Where(fieldDueDate, store.Lt, *f.DueBefore)
	}
	if f.DueAfter != nil {
		q = q.Where(fieldDueDate, store.Gt, *f.DueAfter)
	}
	return q
}

func hasAnyTag(item domain.WorkItem, tags []string) bool {
	return slices.ContainsFunc(tags, func(t string) bool { return slices.Contains(item.Tags, t) })
}

// live returns every matching non-deleted item, unsorted and uncapped.
func (e Engine) live(ctx context.Context, f domain.WorkItemFilter) ([]domain.WorkItem, error) {
	items, err := store.QueryAs[domain.WorkItem](ctx, e.Store, filterQuery(f))
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	if len(f.Tags) > 0 {
		items = slices.DeleteFunc(items, func(it domain.WorkItem) bool { return !hasAnyTag(it, f.Tags) })
	}
	return items, nil
}

// List returns non-deleted items, newest first.
func (e Engine) List(ctx context.Context, f domain.WorkItemFilter) ([]domain.WorkItem, error) {
	items, err := e.live(ctx, f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if limit := e.listLimit(f.Limit); len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Trash lists soft-deleted items, most recently deleted first.
func (e Engine) Trash(ctx context.Context) ([]domain.WorkItem, error) {
	q := store.From(Collection).Where(fieldDeletedAt, store.Exists, true)
	items, err := store.QueryAs[domain.WorkItem](ctx, e.Store, q)
	if err != nil {
		return nil, storeErr("list trash", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].DeletedAt.After(*items[j].DeletedAt) })
	return items, nil
}

func (e Engine) Stats(ctx context.Context, f domain.WorkItemFilter) (domain.WorkItemStats, error) {
	items, err := e.live(ctx, f)
	if err != nil {
		return domain.WorkItemStats{}, err
	}
	return tally(items, e.now()), nil
}

func tally(items []domain.WorkItem, now time.Time) domain.WorkItemStats {
	st := domain.WorkItemStats{Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case domain.StatusPending:
			st.Pending++
		case domain.StatusActive:
			st.Active++
		case domain.StatusDone:
			st.Done++
		}
		if it.Overdue(now) {
			st.Overdue++
		}
	}
	return st
}

func byDueDate(items []domain.WorkItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].DueDate.Before(items[j].DueDate) })
}

// Overdue lists live items past due and not Done, soonest due first.
func (e Engine) Overdue(ctx context.Context) ([]domain.WorkItem, error) {
	now := e.now()
	items, err := e.live(ctx, domain.WorkItemFilter{DueBefore: &now})
	if err != nil {
		return nil, err
	}
	items = slices.DeleteFunc(items, func(it domain.WorkItem) bool { return !it.Overdue(now) })
	byDueDate(items)
	return items, nil
}

// GroupedByStatus queries each status concurrently; f.Status is ignored.
func (e Engine) GroupedByStatus(ctx context.Context, f domain.WorkItemFilter) (map[domain.WorkItemStatus][]domain.WorkItem, error) {
	groups := make([][]domain.WorkItem, len(domain.WorkItemStatuses))
	g, ctx := errgroup.WithContext(ctx)
	for i, status := range domain.WorkItemStatuses {
		sf := f
		sf.Status = status
		g.Go(func() error {
			items, err := e.live(ctx, sf)
			if err != nil {
				return err
			}
			byDueDate(items)
			groups[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[domain.WorkItemStatus][]domain.WorkItem, len(groups))
	for i, status := range domain.WorkItemStatuses {
		out[status] = groups[i]
	}
	return out, nil
}

// ObjectiveStats reports an objective's member count and the state of its
// live work items.
func (e Engine) ObjectiveStats(ctx context.Context, objectiveID string) (domain.ObjectiveStats, error) {
	o, err := e.Objectives.Get(ctx, objectiveID)
	if err != nil {
		return domain.ObjectiveStats{}, err
	}
	items, err := e.live(ctx, domain.WorkItemFilter{ObjectiveID: objectiveID})
	if err != nil {
		return domain.ObjectiveStats{}, err
	}
	return domain.ObjectiveStats{
		ObjectiveID: o.ID,
		Members:     len(o.MemberIDs),
		Items:       tally(items, e.now()),
	}, nil
}
