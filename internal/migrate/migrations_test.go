package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/db"
	"impactline/internal/migrate"
)

func TestLoadIsOrdered(t *testing.T) {
	ms, err := migrate.Load()
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	for i := 1; i < len(ms); i++ {
		assert.Less(t, ms[i-1].Version, ms[i].Version)
	}
}

func TestVersionTracksMigrate(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	v, err := migrate.Version(ctx, conn)
	require.NoError(t, err)
	assert.Zero(t, v)

	applied, err := migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	ms, err := migrate.Load()
	require.NoError(t, err)
	assert.Equal(t, ms[len(ms)-1].Version, applied)

	v, err = migrate.Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, applied, v)

	var rows int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&rows))
	assert.Equal(t, 1, rows)
}
