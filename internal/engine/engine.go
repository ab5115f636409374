// Package engine applies validated, audited mutations to work items.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"impactline/internal/audit"
	"impactline/internal/domain"
	"impactline/internal/ids"
	"impactline/internal/objective"
	"impactline/internal/ontology"
	"impactline/internal/store"
)

const Collection = "work_items"

const (
	fieldObjectiveID   store.Field = "objective_id"
	fieldAssigneeID    store.Field = "assignee_id"
	fieldStatus        store.Field = "status"
	fieldCreatedBy     store.Field = "created_by"
	fieldDueDate       store.Field = "due_date"
	fieldDeletedAt     store.Field = "deleted_at"
	fieldDeletedBy     store.Field = "deleted_by"
	fieldLinkedItemIDs store.Field = "linked_item_ids"
	fieldUpdatedAt     store.Field = "updated_at"
	fieldModifiedBy    store.Field = "last_modified_by"
)

const DefaultListLimit = 1000

type Options struct {
	Limits ontology.Limits
	// Transactional groups each intent's writes when the store supports it.
	Transactional bool
	// AutoCreateObjectives materializes unknown objectives instead of rejecting them.
	AutoCreateObjectives bool
	// AssigneeExists defaults to ontology.NonEmpty.
	AssigneeExists ontology.ExistsFunc
	ListLimit      int
	Logger         *slog.Logger
}

func DefaultOptions() Options {
	return Options{Limits: ontology.DefaultLimits(), Transactional: true, AutoCreateObjectives: true}
}

type Engine struct {
	Store      store.Store
	IDs        ids.Generator
	Validator  ontology.Validator
	Audit      audit.Logger
	Objectives objective.Service
	Options    Options
	Now        func() time.Time
}

func New(s store.Store, gen ids.Generator, opts Options) Engine {
	if opts.AssigneeExists == nil {
		opts.AssigneeExists = ontology.NonEmpty
	}
	v := ontology.New(opts.Limits, ontology.Checks{AssigneeExists: opts.AssigneeExists})
	return Engine{
		Store:      s,
		IDs:        gen,
		Validator:  v,
		Audit:      audit.New(s, gen, opts.Logger),
		Objectives: objective.New(s, gen, v, opts.Logger),
		Options:    opts,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return e.Store.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Options.Logger != nil {
		return e.Options.Logger
	}
	return slog.Default()
}

// worker is an Engine bound to one store handle for the span of an intent.
type worker struct {
	Engine
	st         store.Store
	audit      audit.Logger
	objectives objective.Service
	validator  ontology.Validator
}

func (e Engine) bind(st store.Store) worker {
	w := worker{
		Engine:     e,
		st:         st,
		audit:      e.Audit.With(st),
		objectives: e.Objectives.With(st),
		validator:  e.Validator,
	}
	w.validator.Checks.ObjectiveExists = w.objectives.Exists
	return w
}

func storeErr(op string, err error) error {
	return domain.StoreError{Op: op, Err: err}
}

func (w worker) load(ctx context.Context, id string) (domain.WorkItem, error) {
	item, err := store.GetAs[domain.WorkItem](ctx, w.st, Collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.WorkItem{}, domain.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return domain.WorkItem{}, storeErr("get task", err)
	}
	return item, nil
}

// Get returns the item whether or not it is in the trash.
func (e Engine) Get(ctx context.Context, id string) (domain.WorkItem, error) {
	return e.bind(e.Store).load(ctx, id)
}

// History returns the item's audit trail, newest first.
func (e Engine) History(ctx context.Context, id string) []domain.AuditEntry {
	return e.Audit.History(ctx, id)
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
