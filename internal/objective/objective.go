// Package objective owns objectives and their member sets. Unknown
// objective ids referenced by work items are materialized as stubs instead
// of being rejected.
package objective

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"

	"impactline/internal/domain"
	"impactline/internal/ids"
	"impactline/internal/metrics"
	"impactline/internal/ontology"
	"impactline/internal/store"
)

const Collection = "objectives"

const (
	StubDescription = "Auto-created project objective"
	SystemActor     = "system"
)

const (
	fieldMemberIDs store.Field = "member_ids"
	fieldOwnerID   store.Field = "owner_id"
	fieldStatus    store.Field = "status"
	fieldUpdatedAt             = "updated_at"
)

type Service struct {
	Store     store.Store
	IDs       ids.Generator
	Validator ontology.Validator
	Log       *slog.Logger
}

func New(s store.Store, gen ids.Generator, v ontology.Validator, log *slog.Logger) Service {
	return Service{Store: s, IDs: gen, Validator: v, Log: log}
}

func (s Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// With returns a copy of s bound to st, typically a transaction.
func (s Service) With(st store.Store) Service {
	s.Store = st
	return s
}

func storeErr(op string, err error) error {
	return domain.StoreError{Op: op, Err: err}
}

func (s Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Store.Get(ctx, Collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("get objective", err)
	}
	return true, nil
}

func (s Service) stub(id string, members []string) domain.Objective {
	now := s.Store.Now()
	return domain.Objective{
		ID:          id,
		Title:       id,
		Description: StubDescription,
		OwnerID:     SystemActor,
		Status:      domain.ObjectiveActive,
		MemberIDs:   members,
		Tags:        []string{"project"},
		CreatedBy:   SystemActor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s Service) createStub(ctx context.Context, id string, members []string) error {
	if err := s.Store.Upsert(ctx, Collection, id, s.stub(id, members)); err != nil {
		return storeErr("create objective stub", err)
	}
	metrics.ObjectiveAutoCreated()
	s.logger().Info("objective auto-created", "objective_id", id)
	return nil
}

// EnsureExists creates a stub for an unknown id and reports whether it did.
func (s Service) EnsureExists(ctx context.Context, id string) (bool, error) {
	ok, err := s.Exists(ctx, id)
	if err != nil || ok {
		return false, err
	}
	if err := s.createStub(ctx, id, []string{}); err != nil {
		return false, err
	}
	return true, nil
}

// LinkMember adds itemID to the member set, creating the objective if absent.
func (s Service) LinkMember(ctx context.Context, objectiveID, itemID string) error {
	err := s.Store.Update(ctx, Collection, objectiveID, store.Patch{
		Set:      map[string]any{fieldUpdatedAt: s.Store.Now()},
		AddToSet: map[string][]string{string(fieldMemberIDs): {itemID}},
	})
	if errors.Is(err, store.ErrNotFound) {
		return s.createStub(ctx, objectiveID, []string{itemID})
	}
	if err != nil {
		return storeErr("link objective member", err)
	}
	return nil
}

// UnlinkMember removes itemID; a missing objective is logged, not returned.
func (s Service) UnlinkMember(ctx context.Context, objectiveID, itemID string) error {
	err := s.Store.Update(ctx, Collection, objectiveID, store.Patch{
		Set:           map[string]any{fieldUpdatedAt: s.Store.Now()},
		RemoveFromSet: map[string][]string{string(fieldMemberIDs): {itemID}},
	})
	if errors.Is(err, store.ErrNotFound) {
		s.logger().Warn("unlink from missing objective", "objective_id", objectiveID, "item_id", itemID)
		return nil
	}
	if err != nil {
		return storeErr("unlink objective member", err)
	}
	return nil
}

func (s Service) Create(ctx context.Context, req domain.CreateObjectiveRequest, actorID string) (domain.Objective, error) {
	if err := s.Validator.ValidateObjectiveCreate(req).Err("objective"); err != nil {
		metrics.ValidationFailure("objective")
		return domain.Objective{}, err
	}
	id := req.ID
	if id == "" {
		id = s.IDs.NewID()
	}
	now := s.Store.Now()
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	// An explicit id may replace a stub, keeping its members. Anything
	// created by a real actor is not overwritten.
	members := []string{}
	if req.ID != "" {
		prev, err := s.Get(ctx, id)
		switch {
		case err == nil && prev.CreatedBy != SystemActor:
			return domain.Objective{}, domain.ConflictError{Kind: "objective", ID: id}
		case err == nil:
			members = append(members, prev.MemberIDs...)
		case !errors.Is(err, domain.ErrEntityNotFound):
			return domain.Objective{}, err
		}
	}
	o := domain.Objective{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     req.OwnerID,
		Status:      domain.ObjectiveActive,
		MemberIDs:   members,
		Tags:        tags,
		DueDate:     req.DueDate,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.Upsert(ctx, Collection, id, o); err != nil {
		return domain.Objective{}, storeErr("create objective", err)
	}
	metrics.Mutation("objective", "created")
	return o, nil
}

func (s Service) Get(ctx context.Context, id string) (domain.Objective, error) {
	o, err := store.GetAs[domain.Objective](ctx, s.Store, Collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Objective{}, domain.NotFoundError{Kind: "objective", ID: id}
	}
	if err != nil {
		return domain.Objective{}, storeErr("get objective", err)
	}
	return o, nil
}

// List returns matching objectives, newest first.
func (s Service) List(ctx context.Context, f domain.ObjectiveFilter) ([]domain.Objective, error) {
	q := store.From(Collection)
	if f.OwnerID != "" {
		q = q.Where(fieldOwnerID, store.Eq, f.OwnerID)
	}
	if f.Status != "" {
		q = q.Where(fieldStatus, store.Eq, f.Status)
	}
	items, err := store.QueryAs[domain.Objective](ctx, s.Store, q)
	if err != nil {
		return nil, storeErr("list objectives", err)
	}
	if len(f.Tags) > 0 {
		items = slices.DeleteFunc(items, func(o domain.Objective) bool {
			return !slices.ContainsFunc(f.Tags, func(t string) bool { return slices.Contains(o.Tags, t) })
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (s Service) Update(ctx context.Context, id string, patch domain.ObjectivePatch) (domain.Objective, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Objective{}, err
	}
	if err := s.Validator.ValidateObjectiveUpdate(patch).Err("objective"); err != nil {
		metrics.ValidationFailure("objective")
		return domain.Objective{}, err
	}
	next := current
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.OwnerID != nil {
		next.OwnerID = *patch.OwnerID
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Tags != nil {
		next.Tags = *patch.Tags
	}
	if patch.DueDate != nil {
		next.DueDate = patch.DueDate
	}
	next.UpdatedAt = s.Store.Now()
	// Member ids are owned by the linker; only the edited fields are written.
	set := map[string]any{
		"title":       next.Title,
		"description": next.Description,
		"owner_id":    next.OwnerID,
		"status":      next.Status,
		"tags":        next.Tags,
		"updated_at":  next.UpdatedAt,
	}
	if next.DueDate != nil {
		set["due_date"] = next.DueDate
	}
	if err := s.Store.Update(ctx, Collection, id, store.Patch{Set: set}); err != nil {
		return domain.Objective{}, storeErr("update objective", err)
	}
	metrics.Mutation("objective", "updated")
	return s.Get(ctx, id)
}

// Archive is the only removal path for objectives.
func (s Service) Archive(ctx context.Context, id string) (domain.Objective, error) {
	status := domain.ObjectiveArchived
	return s.Update(ctx, id, domain.ObjectivePatch{Status: &status})
}
