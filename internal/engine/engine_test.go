package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/audit"
	"impactline/internal/domain"
	"impactline/internal/engine"
	"impactline/internal/ids"
	"impactline/internal/store"
	"impactline/internal/store/memory"
)

var errBoom = errors.New("boom")

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// tick returns a clock that advances one second per reading.
func tick(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// failing rejects writes to the named collections.
type failing struct {
	store.Store
	upserts map[string]bool
	updates map[string]bool
}

func (f failing) Upsert(ctx context.Context, collection, id string, doc any) error {
	if f.upserts[collection] {
		return errBoom
	}
	return f.Store.Upsert(ctx, collection, id, doc)
}

func (f failing) Update(ctx context.Context, collection, id string, p store.Patch) error {
	if f.updates[collection] {
		return errBoom
	}
	return f.Store.Update(ctx, collection, id, p)
}

type testEnv struct {
	Engine engine.Engine
	Store  *memory.Store
	Ctx    context.Context
	Actor  domain.Actor
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	mem := memory.New()
	mem.Clock = tick(epoch)
	return testEnv{
		Engine: engine.New(mem, &ids.Sequence{Prefix: "id"}, engine.DefaultOptions()),
		Store:  mem,
		Ctx:    context.Background(),
		Actor:  domain.Actor{ID: "alice", Metadata: domain.RequestMetadata{OriginAddress: "10.0.0.1", ClientID: "test"}},
	}
}

func request() domain.CreateWorkItemRequest {
	return domain.CreateWorkItemRequest{
		ObjectiveID: "obj-1",
		AssigneeID:  "bob",
		StartDate:   "2024-01-01",
		DueDate:     "2024-02-01",
		Deliverable: "Quarterly report",
		Evidence:    []string{"report.pdf"},
		Tags:        []string{"finance"},
	}
}

func (env testEnv) create(t *testing.T, req domain.CreateWorkItemRequest) domain.WorkItem {
	t.Helper()
	item, err := env.Engine.Create(env.Ctx, req, env.Actor)
	require.NoError(t, err)
	return item
}

func TestCreateStartsPendingAtVersionOne(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, request())

	assert.Equal(t, domain.StatusPending, item.Status)
	assert.Equal(t, 1, item.Version)
	assert.Equal(t, "alice", item.CreatedBy)
	assert.Equal(t, []string{"all"}, item.Visibility)
	assert.Empty(t, item.LinkedItemIDs)
	assert.NotNil(t, item.LinkedItemIDs)

	stored, err := env.Engine.Get(env.Ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Deliverable, stored.Deliverable)

	history := env.Engine.History(env.Ctx, item.ID)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ActionCreated, history[0].Action)
	assert.Equal(t, "alice", history[0].ActorID)
	assert.Equal(t, "10.0.0.1", history[0].Metadata.OriginAddress)
	assert.True(t, audit.IsNull(history[0].PreviousState))
	assert.False(t, audit.IsNull(history[0].NewState))
}

func TestCreateAutoCreatesObjective(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, request())

	obj, err := env.Engine.Objectives.Get(env.Ctx, "obj-1")
	require.NoError(t, err)
	assert.Equal(t, "obj-1", obj.Title)
	assert.Equal(t, []string{"project"}, obj.Tags)
	assert.Equal(t, domain.ObjectiveActive, obj.Status)
	assert.Equal(t, []string{item.ID}, obj.MemberIDs)
}

func TestCreateRejectsUnknownObjectiveWithoutAutoCreate(t *testing.T) {
	env := newTestEnv(t)
	opts := engine.DefaultOptions()
	opts.AutoCreateObjectives = false
	env.Engine = engine.New(env.Store, &ids.Sequence{Prefix: "id"}, opts)

	_, err := env.Engine.Create(env.Ctx, request(), env.Actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrReferenceNotFound))

	items, err := env.Engine.List(env.Ctx, domain.WorkItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateValidationWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	req := request()
	req.Deliverable = ""
	req.DueDate = "2023-12-01"

	_, err := env.Engine.Create(env.Ctx, req, env.Actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
	var verr domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.HasCode(domain.CodeRequiredField))
	assert.True(t, verr.HasCode(domain.CodeInvalidDateRange))

	items, err := env.Engine.List(env.Ctx, domain.WorkItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, env.Engine.Audit.Recent(env.Ctx, 0))
}

func TestUpdateClassifiesAction(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, request())

	active := domain.StatusActive
	item, err := env.Engine.Update(env.Ctx, item.ID, domain.WorkItemPatch{Status: &active}, "kickoff", env.Actor)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Version)
	assert.Equal(t, domain.StatusActive, item.Status)

	carol := "carol"
	item, err = env.Engine.Update(env.Ctx, item.ID, domain.WorkItemPatch{AssigneeID: &carol}, "", env.Actor)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Version)

	deliverable := "Annual report"
	item, err = env.Engine.Update(env.Ctx, item.ID, domain.WorkItemPatch{Deliverable: &deliverable}, "", env.Actor)
	require.NoError(t, err)
	assert.Equal(t, 4, item.Version)

	history := env.Engine.History(env.Ctx, item.ID)
	require.Len(t, history, 4)
	assert.Equal(t, domain.ActionUpdated, history[0].Action)
	assert.Equal(t, domain.ActionReassigned, history[1].Action)
	assert.Equal(t, domain.ActionStatusChanged, history[2].Action)
	assert.Equal(t, "kickoff", history[2].Reason)
	assert.Equal(t, domain.ActionCreated, history[3].Action)

	changes, err := audit.Diff(history[0].PreviousState, history[0].NewState)
	require.NoError(t, err)
	fields := map[string]bool{}
	for _, c := range changes {
		fields[c.Field] = true
	}
	assert.True(t, fields["deliverable"])
	assert.True(t, fields["version"])
	assert.False(t, fields["assignee_id"])
}

func TestDoneCanReopen(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, request())
	for _, s := range []domain.WorkItemStatus{domain.StatusDone, domain.StatusPending, domain.StatusActive} {
		status := s
		_, err := env.Engine.Update(env.Ctx, item.ID, domain.WorkItemPatch{Status: &status}, "", env.Actor)
		require.NoError(t, err, "to %s", s)
	}
}

func TestUpdateMissingItem(t *testing.T) {
	env := newTestEnv(t)
	d := "x"
	_, err := env.Engine.Update(env.Ctx, "nope", domain.WorkItemPatch{Deliverable: &d}, "", env.Actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))
}

func TestUpdateMovesObjectiveMembership(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, request())

	next := "obj-2"
	_, err := env.Engine.Update(env.Ctx, item.ID, domain.WorkItemPatch{ObjectiveID: &next}, "", env.Actor)
	require.NoError(t, err)

	old, err := env.Engine.Objectives.Get(env.Ctx, "obj-1")
	require.NoError(t, err)
	assert.Empty(t, old.MemberIDs)
	moved, err := env.Engine.Objectives.Get(env.Ctx, "obj-2")
	require.NoError(t, err)
	assert.Equal(t, []string{item.ID}, moved.MemberIDs)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, request())

	deleted, err := env.Engine.SoftDelete(env.Ctx, item.ID, "", env.Actor)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted())
	assert.Equal(t, "alice", deleted.DeletedBy)

	items, err := env.Engine.List(env.Ctx, domain.WorkItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	trash, err := env.Engine.Trash(env.Ctx)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, item.ID, trash[0].ID)

	_, err = env.Engine.SoftDelete(env.Ctx, item.ID, "again", env.Actor)
	require.NoError(t, err)

	restored, err := env.Engine.Restore(env.Ctx, item.ID, env.Actor)
	require.NoError(t, err)
	assert.False(t, restored.Deleted())
	assert.Equal(t, item.Deliverable, restored.Deliverable)

	items, err = env.Engine.List(env.Ctx, domain.WorkItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Deleted())

	history := env.Engine.History(env.Ctx, item.ID)
	require.Len(t, history, 3)
	assert.Equal(t, domain.ActionStatusChanged, history[0].Action)
	assert.Equal(t, "Task restored from trash", history[0].Reason)
	assert.Equal(t, domain.ActionDeleted, history[1].Action)
	assert.Equal(t, "Task moved to trash", history[1].Reason)
}

func TestPermanentDeleteKeepsHistory(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, request())

	require.NoError(t, env.Engine.PermanentDelete(env.Ctx, item.ID, env.Actor))

	_, err := env.Engine.Get(env.Ctx, item.ID)
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))
	trash, err := env.Engine.Trash(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, trash)

	history := env.Engine.History(env.Ctx, item.ID)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionDeleted, history[0].Action)
	assert.Equal(t, "Task permanently deleted", history[0].Reason)
	assert.True(t, audit.IsNull(history[0].NewState))

	obj, err := env.Engine.Objectives.Get(env.Ctx, "obj-1")
	require.NoError(t, err)
	assert.Empty(t, obj.MemberIDs)

	err = env.Engine.PermanentDelete(env.Ctx, item.ID, env.Actor)
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))
}

func TestLinkAndUnlink(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, request())
	b := env.create(t, request())

	linked, err := env.Engine.Link(env.Ctx, a.ID, b.ID, env.Actor)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, linked.LinkedItemIDs)

	_, err = env.Engine.Link(env.Ctx, a.ID, b.ID, env.Actor)
	require.NoError(t, err)
	assert.Len(t, env.Engine.History(env.Ctx, a.ID), 2)

	unlinked, err := env.Engine.Unlink(env.Ctx, a.ID, b.ID, env.Actor)
	require.NoError(t, err)
	assert.Empty(t, unlinked.LinkedItemIDs)

	history := env.Engine.History(env.Ctx, a.ID)
	require.Len(t, history, 3)
	assert.Equal(t, domain.ActionUnlinked, history[0].Action)
	assert.Equal(t, "Unlinked from task "+b.ID, history[0].Reason)
	assert.Equal(t, domain.ActionLinked, history[1].Action)
	assert.Equal(t, "Linked to task "+b.ID, history[1].Reason)

	_, err = env.Engine.Link(env.Ctx, a.ID, a.ID, env.Actor)
	assert.True(t, errors.Is(err, domain.ErrReferenceNotFound))
	_, err = env.Engine.Link(env.Ctx, a.ID, "ghost", env.Actor)
	assert.True(t, errors.Is(err, domain.ErrReferenceNotFound))
}

func TestAuditFailureAfterPrimaryWriteIsNotRolledBack(t *testing.T) {
	env := newTestEnv(t)
	flaky := failing{Store: env.Store, upserts: map[string]bool{audit.Collection: true}}
	env.Engine = engine.New(flaky, &ids.Sequence{Prefix: "id"}, engine.DefaultOptions())

	_, err := env.Engine.Create(env.Ctx, request(), env.Actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))

	items, err := env.Engine.List(env.Ctx, domain.WorkItemFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	report, err := engine.NewReconciler(env.Engine).Scan(env.Ctx)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, domain.FindingMissingCreated, report.Findings[0].Kind)
}

func TestSoftDeleteAuditFailureLeavesItemLive(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, request())
	flaky := failing{Store: env.Store, upserts: map[string]bool{audit.Collection: true}}
	env.Engine = engine.New(flaky, &ids.Sequence{Prefix: "x"}, engine.DefaultOptions())

	_, err := env.Engine.SoftDelete(env.Ctx, item.ID, "", env.Actor)
	require.Error(t, err)

	stored, err := env.Engine.Get(env.Ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, stored.Deleted())
}

func TestSoftDeleteMarkerFailureKeepsAuditEntry(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, request())
	flaky := failing{Store: env.Store, updates: map[string]bool{engine.Collection: true}}
	env.Engine = engine.New(flaky, &ids.Sequence{Prefix: "x"}, engine.DefaultOptions())

	_, err := env.Engine.SoftDelete(env.Ctx, item.ID, "", env.Actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))

	history := env.Engine.History(env.Ctx, item.ID)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionDeleted, history[0].Action)
}
