package objective_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/domain"
	"impactline/internal/ids"
	"impactline/internal/objective"
	"impactline/internal/ontology"
	"impactline/internal/store/memory"
)

func newService(t *testing.T) (objective.Service, context.Context) {
	t.Helper()
	mem := memory.New()
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mem.Clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	v := ontology.New(ontology.DefaultLimits(), ontology.Checks{})
	return objective.New(mem, &ids.Sequence{Prefix: "obj"}, v, nil), context.Background()
}

func TestEnsureExistsCreatesStubOnce(t *testing.T) {
	svc, ctx := newService(t)

	created, err := svc.EnsureExists(ctx, "q3-launch")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = svc.EnsureExists(ctx, "q3-launch")
	require.NoError(t, err)
	assert.False(t, created)

	o, err := svc.Get(ctx, "q3-launch")
	require.NoError(t, err)
	assert.Equal(t, "q3-launch", o.Title)
	assert.Equal(t, objective.StubDescription, o.Description)
	assert.Equal(t, objective.SystemActor, o.OwnerID)
	assert.Equal(t, objective.SystemActor, o.CreatedBy)
	assert.Equal(t, []string{"project"}, o.Tags)
	assert.Equal(t, domain.ObjectiveActive, o.Status)
	assert.NotNil(t, o.MemberIDs)
	assert.Empty(t, o.MemberIDs)
}

func TestLinkMemberIsSetLike(t *testing.T) {
	svc, ctx := newService(t)

	require.NoError(t, svc.LinkMember(ctx, "obj-a", "t1"))
	require.NoError(t, svc.LinkMember(ctx, "obj-a", "t1"))
	require.NoError(t, svc.LinkMember(ctx, "obj-a", "t2"))

	o, err := svc.Get(ctx, "obj-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, o.MemberIDs)

	require.NoError(t, svc.UnlinkMember(ctx, "obj-a", "t1"))
	require.NoError(t, svc.UnlinkMember(ctx, "obj-a", "t1"))
	o, err = svc.Get(ctx, "obj-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, o.MemberIDs)
}

func TestUnlinkFromMissingObjectiveIsNotAnError(t *testing.T) {
	svc, ctx := newService(t)
	assert.NoError(t, svc.UnlinkMember(ctx, "ghost", "t1"))
	ok, err := svc.Exists(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateUpdateArchive(t *testing.T) {
	svc, ctx := newService(t)

	_, err := svc.Create(ctx, domain.CreateObjectiveRequest{Title: "Grow"}, "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))

	o, err := svc.Create(ctx, domain.CreateObjectiveRequest{Title: "Grow", Description: "Grow revenue", OwnerID: "alice", Tags: []string{"sales"}}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "obj-1", o.ID)
	require.NoError(t, svc.LinkMember(ctx, o.ID, "t1"))

	title := "Grow faster"
	updated, err := svc.Update(ctx, o.ID, domain.ObjectivePatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Grow faster", updated.Title)
	assert.Equal(t, []string{"t1"}, updated.MemberIDs)

	archived, err := svc.Archive(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ObjectiveArchived, archived.Status)

	_, err = svc.Update(ctx, "missing", domain.ObjectivePatch{Title: &title})
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))
}

func TestCreateWithStubIDKeepsMembers(t *testing.T) {
	svc, ctx := newService(t)

	require.NoError(t, svc.LinkMember(ctx, "proj-x", "t1"))
	o, err := svc.Create(ctx, domain.CreateObjectiveRequest{ID: "proj-x", Title: "Project X", Description: "Ship X", OwnerID: "alice"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Project X", o.Title)
	assert.Equal(t, "alice", o.OwnerID)
	assert.Equal(t, []string{"t1"}, o.MemberIDs)
}

func TestCreateRefusesToReplaceRealObjective(t *testing.T) {
	svc, ctx := newService(t)

	req := domain.CreateObjectiveRequest{ID: "proj-y", Title: "Project Y", Description: "Ship Y", OwnerID: "alice"}
	_, err := svc.Create(ctx, req, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.LinkMember(ctx, "proj-y", "t1"))

	req.Title = "Hijacked"
	_, err = svc.Create(ctx, req, "mallory")
	assert.ErrorIs(t, err, domain.ErrConflict)
	var conflict domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "proj-y", conflict.ID)

	kept, err := svc.Get(ctx, "proj-y")
	require.NoError(t, err)
	assert.Equal(t, "Project Y", kept.Title)
	assert.Equal(t, "alice", kept.CreatedBy)
	assert.Equal(t, []string{"t1"}, kept.MemberIDs)
}

func TestList(t *testing.T) {
	svc, ctx := newService(t)
	_, err := svc.Create(ctx, domain.CreateObjectiveRequest{Title: "A", Description: "a", OwnerID: "alice", Tags: []string{"sales"}}, "alice")
	require.NoError(t, err)
	b, err := svc.Create(ctx, domain.CreateObjectiveRequest{Title: "B", Description: "b", OwnerID: "bob", Tags: []string{"ops"}}, "bob")
	require.NoError(t, err)

	all, err := svc.List(ctx, domain.ObjectiveFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)

	byOwner, err := svc.List(ctx, domain.ObjectiveFilter{OwnerID: "alice"})
	require.NoError(t, err)
	require.Len(t, byOwner, 1)

	byTag, err := svc.List(ctx, domain.ObjectiveFilter{Tags: []string{"ops"}})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, b.ID, byTag[0].ID)
}
