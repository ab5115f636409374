package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/domain"
	"impactline/internal/engine"
	"impactline/internal/objective"
	"impactline/internal/store"
)

func TestReconcilerFindsAndFixesMembership(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, request())

	// Drop the membership and add a dangling member.
	require.NoError(t, env.Store.Update(env.Ctx, objective.Collection, "obj-1", store.Patch{
		RemoveFromSet: map[string][]string{"member_ids": {item.ID}},
		AddToSet:      map[string][]string{"member_ids": {"ghost"}},
	}))

	r := engine.NewReconciler(env.Engine)
	report, err := r.Scan(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Items)
	assert.Equal(t, 1, report.Objectives)
	kinds := map[domain.FindingKind]domain.Finding{}
	for _, f := range report.Findings {
		kinds[f.Kind] = f
	}
	require.Len(t, kinds, 2)
	assert.Equal(t, item.ID, kinds[domain.FindingMissingMembership].EntityID)
	assert.Equal(t, "ghost", kinds[domain.FindingOrphanedMember].EntityID)
	assert.False(t, kinds[domain.FindingOrphanedMember].Fixed)

	report, err = r.Fix(env.Ctx)
	require.NoError(t, err)
	for _, f := range report.Findings {
		assert.True(t, f.Fixed, f.Kind)
	}
	obj, err := env.Engine.Objectives.Get(env.Ctx, "obj-1")
	require.NoError(t, err)
	assert.Equal(t, []string{item.ID}, obj.MemberIDs)

	report, err = r.Scan(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
}

func TestReconcilerRunsExtraChecks(t *testing.T) {
	env := newTestEnv(t)
	var gotFix bool
	check := func(_ context.Context, fix bool) ([]domain.Finding, error) {
		gotFix = fix
		return []domain.Finding{{Kind: domain.FindingVersionMismatch, EntityID: "doc-1"}}, nil
	}
	report, err := engine.NewReconciler(env.Engine, check).Fix(env.Ctx)
	require.NoError(t, err)
	assert.True(t, gotFix)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, domain.FindingVersionMismatch, report.Findings[0].Kind)
}
