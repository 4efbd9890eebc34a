package searchpreset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/metastore/internal/identity"
)

func TestLoad_EmptyInputYieldsEmptyRegistry(t *testing.T) {
	registry, err := Load("", "")
	require.NoError(t, err)
	_, err = registry.Get("anything")
	assert.Error(t, err)
}

func TestLoad_InlineJSONTakesPrecedenceOverPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"from-file","filter":{"field":"a","operator":"eq","value":1}}]`), 0o600))

	registry, err := Load(`[{"name":"from-inline","filter":{"field":"a","operator":"eq","value":1}}]`, path)
	require.NoError(t, err)

	_, err = registry.Get("from-inline")
	assert.NoError(t, err)
	_, err = registry.Get("from-file")
	assert.Error(t, err, "path is only consulted when inline JSON is empty")
}

func TestLoad_PathIsUsedWhenInlineEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"from-file","filter":{"field":"a","operator":"eq","value":1}}]`), 0o600))

	registry, err := Load("", path)
	require.NoError(t, err)

	preset, err := registry.Get("from-file")
	require.NoError(t, err)
	assert.Equal(t, "from-file", preset.Name)
}

func TestLoad_RequiredScopesAreParsed(t *testing.T) {
	registry, err := Load(`[{"name":"secret","filter":{"field":"a","operator":"eq","value":1},"requiredScopes":["metastore:admin"]}]`, "")
	require.NoError(t, err)

	preset, err := registry.Get("secret")
	require.NoError(t, err)
	assert.Equal(t, []identity.Scope{identity.ScopeAdmin}, preset.RequiredScopes)
}

func TestLoad_MissingNameIsRejected(t *testing.T) {
	_, err := Load(`[{"filter":{"field":"a","operator":"eq","value":1}}]`, "")
	assert.Error(t, err)
}

func TestLoad_InvalidFilterIsRejected(t *testing.T) {
	_, err := Load(`[{"name":"bad","filter":{"field":"a","operator":"not-a-real-operator","value":1}}]`, "")
	assert.Error(t, err)
}

func TestGet_NilRegistryReturnsNotFound(t *testing.T) {
	var registry *Registry
	_, err := registry.Get("anything")
	assert.Error(t, err)
}
