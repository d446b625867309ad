package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	dir := t.TempDir()
	snap, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1000, snap.Scheduler.ContentBatchSize)
	assert.Equal(t, 1<<20, snap.Scheduler.UsnChunkBytes)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	toml := `
[logging]
level = "debug"
format = "json"

[scheduler]
content_batch_size = 250
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644))

	snap, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "json", snap.Logging.Format)
	assert.Equal(t, 250, snap.Scheduler.ContentBatchSize)
}

func TestLoadRejectsInvalidFormat(t *testing.T) {
	dir := t.TempDir()
	toml := "[logging]\nformat = \"xml\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEffectiveTOMLRoundTripsScalarFields(t *testing.T) {
	dir := t.TempDir()
	snap, err := Load(dir)
	require.NoError(t, err)

	rendered, err := snap.EffectiveTOML()
	require.NoError(t, err)
	assert.True(t, strings.Contains(rendered, "content_batch_size = 1000"), "rendered TOML:\n%s", rendered)
}
