package engine

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"impactline/internal/domain"
	"impactline/internal/objective"
	"impactline/internal/store"
)

// Check is a pluggable consistency pass. With fix set it repairs what it
// can and marks those findings Fixed.
type Check func(ctx context.Context, fix bool) ([]domain.Finding, error)

type Report struct {
	Items      int              `json:"items"`
	Objectives int              `json:"objectives"`
	Findings   []domain.Finding `json:"findings"`
}

// Reconciler finds the inconsistencies non-transactional writes can leave
// behind: missing memberships, orphaned members, and missing audit.
type Reconciler struct {
	Engine Engine
	Checks []Check
}

func NewReconciler(e Engine, extra ...Check) Reconciler {
	return Reconciler{Engine: e, Checks: extra}
}

func (r Reconciler) Scan(ctx context.Context) (Report, error) {
	return r.run(ctx, false)
}

func (r Reconciler) Fix(ctx context.Context) (Report, error) {
	return r.run(ctx, true)
}

func (r Reconciler) run(ctx context.Context, fix bool) (Report, error) {
	var (
		items      []domain.WorkItem
		objectives []domain.Objective
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = store.QueryAs[domain.WorkItem](gctx, r.Engine.Store, store.From(Collection))
		if err != nil {
			return storeErr("scan tasks", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		objectives, err = store.QueryAs[domain.Objective](gctx, r.Engine.Store, store.From(objective.Collection))
		if err != nil {
			return storeErr("scan objectives", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Items: len(items), Objectives: len(objectives), Findings: []domain.Finding{}}
	members := make(map[string][]string, len(objectives))
	for _, o := range objectives {
		members[o.ID] = o.MemberIDs
	}
	known := make(map[string]struct{}, len(items))
	for _, it := range items {
		known[it.ID] = struct{}{}
	}

	for _, it := range items {
		if !slices.Contains(members[it.ObjectiveID], it.ID) {
			f := domain.Finding{
				Kind:     domain.FindingMissingMembership,
				EntityID: it.ID,
				ParentID: it.ObjectiveID,
				Detail:   fmt.Sprintf("task %s is not a member of objective %s", it.ID, it.ObjectiveID),
			}
			if fix {
				if err := r.Engine.Objectives.LinkMember(ctx, it.ObjectiveID, it.ID); err != nil {
					return report, err
				}
				f.Fixed = true
			}
			report.Findings = append(report.Findings, f)
		}
		if !r.hasCreated(ctx, it.ID) {
			report.Findings = append(report.Findings, domain.Finding{
				Kind:     domain.FindingMissingCreated,
				EntityID: it.ID,
				Detail:   fmt.Sprintf("task %s has no created audit entry", it.ID),
			})
		}
	}
	for _, o := range objectives {
		for _, id := range o.MemberIDs {
			if _, ok := known[id]; ok {
				continue
			}
			f := domain.Finding{
				Kind:     domain.FindingOrphanedMember,
				EntityID: id,
				ParentID: o.ID,
				Detail:   fmt.Sprintf("objective %s lists missing task %s", o.ID, id),
			}
			if fix {
				if err := r.Engine.Objectives.UnlinkMember(ctx, o.ID, id); err != nil {
					return report, err
				}
				f.Fixed = true
			}
			report.Findings = append(report.Findings, f)
		}
	}
	for _, check := range r.Checks {
		found, err := check(ctx, fix)
		if err != nil {
			return report, err
		}
		report.Findings = append(report.Findings, found...)
	}
	for _, f := range report.Findings {
		r.Engine.logger().Info("reconcile finding", "kind", f.Kind, "entity_id", f.EntityID, "parent_id", f.ParentID, "fixed", f.Fixed)
	}
	return report, nil
}

func (r Reconciler) hasCreated(ctx context.Context, itemID string) bool {
	return slices.ContainsFunc(r.Engine.Audit.History(ctx, itemID), func(e domain.AuditEntry) bool {
		return e.Action == domain.ActionCreated
	})
}
