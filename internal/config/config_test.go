package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/config"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.True(t, cfg.Store.Transactional)
	assert.Equal(t, 10, cfg.Ontology.MaxTags)
	assert.Equal(t, 20, cfg.Ontology.MaxLinkedItems)
	assert.Equal(t, 200, cfg.Limits().MaxTitleLength)
	assert.True(t, cfg.Ontology.AutoCreateObjectives)
	assert.Equal(t, 50, cfg.Audit.RecentLimit)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	require.NoError(t, cfg.Validate())
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte("store:\n  driver: badger\nlog:\n  format: json\n"))
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Store.Driver)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "uuid", cfg.IDs.Kind)
}

func TestValidateRejectsBadValues(t *testing.T) {
	_, err := config.FromYAML([]byte("store:\n  driver: mongo\nserver:\n  base_path: v0/\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.store.driver fails oneof")
	assert.Contains(t, err.Error(), "config.server.basepath fails basepath")

	_, err = config.FromYAML([]byte("store: [unclosed"))
	assert.ErrorContains(t, err, "invalid config yaml")
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("ids:\n  kind: ulid\n"), 0o644))
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "ulid", cfg.IDs.Kind)
}
