package scaffold

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/keyhunt/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")
	require.NoError(t, Initialize(dir))

	cfg, err := config.Load(filepath.Join(dir, ConfigFile))
	require.NoError(t, err)
	assert.Equal(t, "dynamic", cfg.Search.Strategy)
	assert.Equal(t, 4, cfg.Search.Participants)
	assert.Equal(t, uint64(100000), cfg.Search.UnitSize)
	ks, err := cfg.Search.Bounds()
	require.NoError(t, err)
	assert.Equal(t, uint64(99999999), ks.Upper)

	message, err := os.ReadFile(filepath.Join(dir, MessageFile))
	require.NoError(t, err)
	assert.Contains(t, string(message), "es una prueba de")
}

func TestInitialize_Overwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte("old content"), 0644))

	require.NoError(t, Initialize(dir))
	content, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "old content")
}

func TestCheckExisting(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckExisting(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte("x"), 0644))
	err := CheckExisting(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Found existing: keyhunt.yml")
	assert.Contains(t, err.Error(), "keyhunt init --force")

	require.NoError(t, os.WriteFile(filepath.Join(dir, MessageFile), []byte("x"), 0644))
	err = CheckExisting(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "  - keyhunt.yml\n  - message.txt\n")
}

func TestPrintSuccess(t *testing.T) {
	var buf bytes.Buffer
	PrintSuccess(&buf)
	assert.Contains(t, buf.String(), "✓ keyhunt.yml")
	assert.Contains(t, buf.String(), "✓ message.txt")
}
