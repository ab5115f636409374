package knowledge_test

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
	"impactline/internal/knowledge"
	"impactline/internal/ontology"
	"impactline/internal/store/memory"
)

type testEnv struct {
	Svc   knowledge.Service
	Store *memory.Store
	Ctx   context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	mem := memory.New()
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mem.Clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	v := ontology.New(ontology.DefaultLimits(), ontology.Checks{})
	return testEnv{
		Svc:   knowledge.New(mem, &ids.Sequence{Prefix: "doc"}, v, knowledge.Options{}),
		Store: mem,
		Ctx:   context.Background(),
	}
}

func (env testEnv) create(t *testing.T, req domain.CreateDocumentRequest) domain.Document {
	t.Helper()
	d, err := env.Svc.Create(env.Ctx, req, "alice")
	require.NoError(t, err)
	return d
}

func onboarding() domain.CreateDocumentRequest {
	return domain.CreateDocumentRequest{
		Title:    "Onboarding Checklist",
		Category: domain.CategoryProcess,
		Content:  "Provision laptop and accounts before the first day",
		Tags:     []string{"HR"},
	}
}

func TestCreateDefaultsAndInitialVersion(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, onboarding())

	assert.Equal(t, 1, d.Version)
	assert.Equal(t, domain.DocumentDraft, d.Status)
	assert.Equal(t, []string{"all"}, d.Visibility)
	assert.Zero(t, d.ViewCount)
	assert.Equal(t, "alice", d.CreatedBy)
	assert.Contains(t, d.SearchKeywords, "onboarding")
	assert.Contains(t, d.SearchKeywords, "laptop")
	assert.Contains(t, d.SearchKeywords, "hr")
	assert.NotContains(t, d.SearchKeywords, "and")

	versions, err := env.Svc.Versions(env.Ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Number)
	assert.Equal(t, domain.ChangeCreated, versions[0].ChangeType)
	assert.Equal(t, "Initial creation", versions[0].Reason)
	assert.Nil(t, versions[0].PreviousVersion)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Svc.Create(env.Ctx, domain.CreateDocumentRequest{Category: "poetry"}, "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
	var verr domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.HasCode(domain.CodeInvalidCategory))

	docs, err := env.Svc.List(env.Ctx, domain.DocumentFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUpdateClassifiesAndSummarizes(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, onboarding())

	content := "Provision laptop, accounts, and badge"
	d, err := env.Svc.Update(env.Ctx, d.ID, domain.DocumentPatch{Content: &content}, "badge step", "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Version)
	assert.Equal(t, "bob", d.UpdatedBy)
	assert.Contains(t, d.SearchKeywords, "badge")

	tags := []string{"HR", "it"}
	_, err = env.Svc.Update(env.Ctx, d.ID, domain.DocumentPatch{Tags: &tags}, "", "bob")
	require.NoError(t, err)

	published := domain.DocumentPublished
	_, err = env.Svc.Update(env.Ctx, d.ID, domain.DocumentPatch{Status: &published}, "", "bob")
	require.NoError(t, err)

	versions, err := env.Svc.Versions(env.Ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, versions, 4)
	assert.Equal(t, domain.ChangeStatusChanged, versions[0].ChangeType)
	assert.Equal(t, []string{`Status changed from "draft" to "published"`}, versions[0].Changes)
	assert.Equal(t, domain.ChangeMetadataUpdated, versions[1].ChangeType)
	assert.Equal(t, []string{"Tags modified"}, versions[1].Changes)
	assert.Equal(t, domain.ChangeContentUpdated, versions[2].ChangeType)
	assert.Equal(t, []string{"Content updated"}, versions[2].Changes)
	assert.Equal(t, "badge step", versions[2].Reason)
	require.NotNil(t, versions[2].PreviousVersion)
	assert.Equal(t, 1, *versions[2].PreviousVersion)
}

func TestRestoreToVersionWritesForward(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, onboarding())
	title := "Offboarding"
	content := "Collect hardware"
	_, err := env.Svc.Update(env.Ctx, d.ID, domain.DocumentPatch{Title: &title, Content: &content}, "", "bob")
	require.NoError(t, err)

	restored, err := env.Svc.RestoreToVersion(env.Ctx, d.ID, 1, "carol")
	require.NoError(t, err)
	assert.Equal(t, 3, restored.Version)
	assert.Equal(t, "Onboarding Checklist", restored.Title)

	v1, err := env.Svc.Version(env.Ctx, d.ID, 1)
	require.NoError(t, err)
	v3, err := env.Svc.Version(env.Ctx, d.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, v1.Snapshot, v3.Snapshot)
	assert.Equal(t, "Restored to version 1", v3.Reason)

	_, err = env.Svc.RestoreToVersion(env.Ctx, d.ID, 9, "carol")
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))
}

func TestUpdateWithoutChangesWritesNoVersion(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, onboarding())

	same := d.Content
	tags := []string{"HR"}
	for _, patch := range []domain.DocumentPatch{{}, {Content: &same, Tags: &tags}} {
		out, err := env.Svc.Apply(env.Ctx, knowledge.UpdateIntent{ID: d.ID, Patch: patch}, "bob")
		require.NoError(t, err)
		assert.Nil(t, out.Version)
		assert.Equal(t, 1, out.Document.Version)
		assert.Equal(t, "alice", out.Document.UpdatedBy)
	}

	versions, err := env.Svc.Versions(env.Ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	restored, err := env.Svc.RestoreToVersion(env.Ctx, d.ID, 1, "carol")
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Version)
	versions, err = env.Svc.Versions(env.Ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "Restored to version 1", versions[0].Reason)
}

func TestDeleteArchives(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, onboarding())

	archived, err := env.Svc.Delete(env.Ctx, d.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentArchived, archived.Status)
	_, err = env.Svc.Delete(env.Ctx, d.ID, "alice")
	require.NoError(t, err)

	versions, err := env.Svc.Versions(env.Ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, domain.ChangeArchived, versions[0].ChangeType)
	assert.Equal(t, "Document archived", versions[0].Reason)

	live, err := env.Svc.List(env.Ctx, domain.DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)
	all, err := env.Svc.List(env.Ctx, domain.DocumentFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLinkTaskIsVersioned(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, onboarding())

	d, err := env.Svc.LinkTask(env.Ctx, d.ID, "task-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"task-1"}, d.RelatedItemIDs)
	d, err = env.Svc.LinkTask(env.Ctx, d.ID, "task-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Version)

	d, err = env.Svc.UnlinkTask(env.Ctx, d.ID, "task-1", "alice")
	require.NoError(t, err)
	assert.Empty(t, d.RelatedItemIDs)
	assert.Equal(t, 3, d.Version)

	versions, err := env.Svc.Versions(env.Ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unlinked from task task-1", versions[0].Reason)
	assert.Equal(t, []string{"Related tasks updated"}, versions[0].Changes)
}

func TestRecordView(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, onboarding())
	require.NoError(t, env.Svc.RecordView(env.Ctx, d.ID))
	require.NoError(t, env.Svc.RecordView(env.Ctx, d.ID))

	got, err := env.Svc.Get(env.Ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount)
	assert.NotNil(t, got.LastViewedAt)
	assert.Equal(t, 1, got.Version)

	assert.True(t, errors.Is(env.Svc.RecordView(env.Ctx, "missing"), domain.ErrEntityNotFound))
}

func TestListFilters(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, onboarding())
	b := env.create(t, domain.CreateDocumentRequest{Title: "Expense Policy", Category: domain.CategoryPolicy, Content: "Submit receipts monthly", Tags: []string{"finance"}})

	all, err := env.Svc.List(env.Ctx, domain.DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)

	policies, err := env.Svc.List(env.Ctx, domain.DocumentFilter{Category: domain.CategoryPolicy})
	require.NoError(t, err)
	require.Len(t, policies, 1)

	found, err := env.Svc.List(env.Ctx, domain.DocumentFilter{Query: "LAPTOP"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].ID)

	tagged, err := env.Svc.List(env.Ctx, domain.DocumentFilter{Tags: []string{"finance"}})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, b.ID, tagged[0].ID)
}

func TestCompareVersions(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, onboarding())
	title := "Day One"
	_, err := env.Svc.Update(env.Ctx, d.ID, domain.DocumentPatch{Title: &title}, "", "bob")
	require.NoError(t, err)

	diff, err := env.Svc.CompareVersions(env.Ctx, d.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, diff.Changes, 1)
	assert.Equal(t, "title", diff.Changes[0].Field)
	assert.Equal(t, "bob", diff.ChangedBy)
}

func TestCheckVersions(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, onboarding())

	findings, err := env.Svc.CheckVersions(env.Ctx, false)
	require.NoError(t, err)
	assert.Empty(t, findings)

	d.Version = 5
	require.NoError(t, env.Store.Upsert(env.Ctx, knowledge.Collection, d.ID, d))
	findings, err = env.Svc.CheckVersions(env.Ctx, true)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.FindingVersionMismatch, findings[0].Kind)
	assert.False(t, findings[0].Fixed)
}
