package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"impactline/internal/audit"
	"impactline/internal/domain"
	"impactline/internal/metrics"
	"impactline/internal/store"
)

var tracer = otel.Tracer("impactline/engine")

// Intent is one requested mutation of a work item.
type Intent interface {
	intentName() string
}

type CreateIntent struct {
	Request domain.CreateWorkItemRequest
}

type UpdateIntent struct {
	ID     string
	Patch  domain.WorkItemPatch
	Reason string
}

type SoftDeleteIntent struct {
	ID     string
	Reason string
}

type RestoreIntent struct {
	ID string
}

type PermanentDeleteIntent struct {
	ID string
}

type LinkIntent struct {
	ID      string
	OtherID string
}

type UnlinkIntent struct {
	ID      string
	OtherID string
}

func (CreateIntent) intentName() string          { return "create" }
func (UpdateIntent) intentName() string          { return "update" }
func (SoftDeleteIntent) intentName() string      { return "soft_delete" }
func (RestoreIntent) intentName() string         { return "restore" }
func (PermanentDeleteIntent) intentName() string { return "permanent_delete" }
func (LinkIntent) intentName() string            { return "link" }
func (UnlinkIntent) intentName() string          { return "unlink" }

// Outcome is what an applied intent produced. Item is nil after a
// permanent delete; Audit is nil when the intent changed nothing.
type Outcome struct {
	Item     *domain.WorkItem
	Audit    *domain.AuditEntry
	Warnings []string
}

type step func(ctx context.Context, w worker) error

// plan is the fully resolved form of an intent.
type plan struct {
	itemID     string
	action     domain.AuditAction
	reason     string
	before     any
	after      any
	auditFirst bool
	noop       bool
	result     *domain.WorkItem
	warnings   []string
	steps      []step
}

// Apply validates an intent, performs its writes and appends exactly one
// audit entry unless the intent is a no-op.
func (e Engine) Apply(ctx context.Context, in Intent, actor domain.Actor) (Outcome, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "engine.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("intent", in.intentName()), attribute.String("actor", actor.ID))

	var out Outcome
	var applied *plan
	err := store.RunInTx(ctx, e.Store, e.Options.Transactional, func(ctx context.Context, tx store.Store) error {
		w := e.bind(tx)
		p, err := w.plan(ctx, in, actor)
		if err != nil {
			return err
		}
		applied = &p
		out = Outcome{Item: p.result, Warnings: p.warnings}
		if p.noop {
			return nil
		}
		if p.auditFirst {
			entry, err := w.record(ctx, p, actor)
			if err != nil {
				return err
			}
			out.Audit = &entry
		}
		for _, s := range p.steps {
			if err := s(ctx, w); err != nil {
				return err
			}
		}
		if !p.auditFirst {
			entry, err := w.record(ctx, p, actor)
			if err != nil {
				return err
			}
			out.Audit = &entry
		}
		return nil
	})
	metrics.ObserveIntent("task", in.intentName(), started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, err
	}
	if applied != nil && !applied.noop {
		metrics.Mutation("task", string(applied.action))
		e.logger().Debug("intent applied", "intent", in.intentName(), "item_id", applied.itemID, "action", applied.action)
	}
	if len(out.Warnings) > 0 {
		e.logger().Warn("ontology warnings", "item_id", applied.itemID, "warnings", out.Warnings)
	}
	return out, nil
}

func (w worker) record(ctx context.Context, p plan, actor domain.Actor) (domain.AuditEntry, error) {
	before, err := audit.Snapshot(p.before)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	after, err := audit.Snapshot(p.after)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	return w.audit.Append(ctx, domain.AuditEntry{
		ItemID:        p.itemID,
		ActorID:       actor.ID,
		Action:        p.action,
		PreviousState: before,
		NewState:      after,
		Reason:        p.reason,
		Metadata:      actor.Metadata,
	})
}

func (w worker) plan(ctx context.Context, in Intent, actor domain.Actor) (plan, error) {
	switch in := in.(type) {
	case CreateIntent:
		return w.planCreate(ctx, in, actor)
	case UpdateIntent:
		return w.planUpdate(ctx, in, actor)
	case SoftDeleteIntent:
		return w.planSoftDelete(ctx, in, actor)
	case RestoreIntent:
		return w.planRestore(ctx, in, actor)
	case PermanentDeleteIntent:
		return w.planPermanentDelete(ctx, in)
	case LinkIntent:
		return w.planLink(ctx, in.ID, in.OtherID, true, actor)
	case UnlinkIntent:
		return w.planLink(ctx, in.ID, in.OtherID, false, actor)
	}
	return plan{}, domain.ValidationError{Entity: "task", Errors: []domain.FieldError{{Field: "intent", Code: domain.CodeRequiredField, Message: "unsupported intent"}}}
}

func rejected(err error) error {
	metrics.ValidationFailure("task")
	return err
}

// Create creates a work item in Pending at version 1.
func (e Engine) Create(ctx context.Context, req domain.CreateWorkItemRequest, actor domain.Actor) (domain.WorkItem, error) {
	out, err := e.Apply(ctx, CreateIntent{Request: req}, actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	return *out.Item, nil
}

func (e Engine) Update(ctx context.Context, id string, patch domain.WorkItemPatch, reason string, actor domain.Actor) (domain.WorkItem, error) {
	out, err := e.Apply(ctx, UpdateIntent{ID: id, Patch: patch, Reason: reason}, actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	return *out.Item, nil
}

func (e Engine) SoftDelete(ctx context.Context, id, reason string, actor domain.Actor) (domain.WorkItem, error) {
	out, err := e.Apply(ctx, SoftDeleteIntent{ID: id, Reason: reason}, actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	return *out.Item, nil
}

func (e Engine) Restore(ctx context.Context, id string, actor domain.Actor) (domain.WorkItem, error) {
	out, err := e.Apply(ctx, RestoreIntent{ID: id}, actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	return *out.Item, nil
}

func (e Engine) PermanentDelete(ctx context.Context, id string, actor domain.Actor) error {
	_, err := e.Apply(ctx, PermanentDeleteIntent{ID: id}, actor)
	return err
}

func (e Engine) Link(ctx context.Context, id, otherID string, actor domain.Actor) (domain.WorkItem, error) {
	out, err := e.Apply(ctx, LinkIntent{ID: id, OtherID: otherID}, actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	return *out.Item, nil
}

func (e Engine) Unlink(ctx context.Context, id, otherID string, actor domain.Actor) (domain.WorkItem, error) {
	out, err := e.Apply(ctx, UnlinkIntent{ID: id, OtherID: otherID}, actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	return *out.Item, nil
}
