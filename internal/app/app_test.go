package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/app"
	"impactline/internal/config"
	"impactline/internal/domain"
	"impactline/internal/logging"
)

func openApp(t *testing.T, driver string) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Driver = driver
	a, err := app.Open(context.Background(), t.TempDir(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestOpenEveryDriver(t *testing.T) {
	for _, driver := range []string{"sqlite", "badger", "memory"} {
		t.Run(driver, func(t *testing.T) {
			a := openApp(t, driver)
			ctx := context.Background()
			item, err := a.Engine.Create(ctx, domain.CreateWorkItemRequest{
				ObjectiveID: "proj-x",
				AssigneeID:  "alice",
				StartDate:   "2025-01-01",
				DueDate:     "2025-01-10",
				Deliverable: "draft proposal",
				Evidence:    []string{"doc-url"},
			}, domain.Actor{ID: "alice"})
			require.NoError(t, err)
			assert.Len(t, a.Audit().History(ctx, item.ID), 1)

			report, err := a.Reconciler.Scan(ctx)
			require.NoError(t, err)
			assert.Empty(t, report.Findings)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "mongo"
	_, err := app.Open(context.Background(), t.TempDir(), cfg, logging.Discard())
	assert.Error(t, err)
}
