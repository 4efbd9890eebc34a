package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/metastore/internal/filter"
	"github.com/apphub/metastore/internal/identity"
	"github.com/apphub/metastore/internal/searchpreset"
)

func TestValidateNamespaceAndKey_RejectsEmpty(t *testing.T) {
	err := validateNamespaceAndKey("", "")
	assert.Error(t, err)
}

func TestValidateNamespaceAndKey_AcceptsWellFormed(t *testing.T) {
	err := validateNamespaceAndKey("blog", "post-1")
	assert.NoError(t, err)
}

func TestParsePatchInput_RequiresAtLeastOneField(t *testing.T) {
	_, _, err := parsePatchInput(map[string]any{})
	assert.Error(t, err)
}

func TestParsePatchInput_MetadataOnly(t *testing.T) {
	input, expectedVersion, err := parsePatchInput(map[string]any{
		"metadata": map[string]any{"title": "hello"},
	})
	require.NoError(t, err)
	assert.Nil(t, expectedVersion)
	assert.Equal(t, "hello", input.MetadataPatch["title"])
	assert.False(t, input.OwnerSet)
}

func TestParsePatchInput_OwnerExplicitlyClearedIsTracked(t *testing.T) {
	input, _, err := parsePatchInput(map[string]any{"owner": nil})
	require.NoError(t, err)
	assert.True(t, input.OwnerSet)
	assert.Nil(t, input.Owner)
}

func TestParsePatchInput_TagsSubObject(t *testing.T) {
	input, _, err := parsePatchInput(map[string]any{
		"tags": map[string]any{
			"add":    []any{"featured"},
			"remove": []any{"draft"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, input.Tags)
	assert.Equal(t, []string{"featured"}, input.Tags.Add)
	assert.Equal(t, []string{"draft"}, input.Tags.Remove)
}

func TestParsePatchInput_ExpectedVersionFromFloat(t *testing.T) {
	_, expectedVersion, err := parsePatchInput(map[string]any{
		"metadata":        map[string]any{"a": 1},
		"expectedVersion": float64(4),
	})
	require.NoError(t, err)
	require.NotNil(t, expectedVersion)
	assert.Equal(t, 4, *expectedVersion)
}

func TestParseSortFields_LeadingMinusIsDescending(t *testing.T) {
	fields, err := parseSortFields([]string{"-updatedAt", "key"})
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "updatedAt", fields[0].Field)
	assert.True(t, fields[0].Descending)
	assert.Equal(t, "key", fields[1].Field)
	assert.False(t, fields[1].Descending)
}

func TestParseSortFields_EmptyReturnsNil(t *testing.T) {
	fields, err := parseSortFields(nil)
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestClamp_FallsBackOnZeroOrNegative(t *testing.T) {
	assert.Equal(t, 50, clamp(0, 1, 200, 50))
	assert.Equal(t, 50, clamp(-5, 1, 200, 50))
}

func TestClamp_BoundsWithinRange(t *testing.T) {
	assert.Equal(t, 200, clamp(9999, 1, 200, 50))
	assert.Equal(t, 1, clamp(1, 1, 200, 50))
}

func TestProjectRecords_NoPathsReturnsWholeRecord(t *testing.T) {
	records := []Record{{Namespace: "blog", Key: "a", Metadata: map[string]any{"title": "x"}}}
	out := projectRecords(records, nil)
	require.Len(t, out, 1)
	assert.Equal(t, records[0], out[0])
}

func TestProjectRecords_PathsExtractSubsetOfMetadata(t *testing.T) {
	records := []Record{{Namespace: "blog", Key: "a", Metadata: map[string]any{"title": "x", "body": "y"}}}
	out := projectRecords(records, []string{"title"})
	require.Len(t, out, 1)
	projected, ok := out[0].(Record)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"title": "x"}, projected.Metadata)
}

func TestResolveExplicitFilter_PrefersStructuredFilterOverQuery(t *testing.T) {
	node, err := resolveExplicitFilter(searchPayload{
		Filter: map[string]any{"field": "tags", "operator": "array_contains", "value": "x"},
		Query:  "tags:ignored",
	})
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, filter.KindCondition, node.Kind)
	assert.Equal(t, "tags", node.Field)
}

func TestResolveExplicitFilter_NoneGivenReturnsNil(t *testing.T) {
	node, err := resolveExplicitFilter(searchPayload{})
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestToStringSlice_SkipsNonStrings(t *testing.T) {
	out := toStringSlice([]any{"a", 1, "b", nil})
	assert.Equal(t, []string{"a", "b"}, out)
}

func readOnlyClaims() *identity.Claims {
	return &identity.Claims{Subject: "svc", Scopes: map[identity.Scope]bool{identity.ScopeRead: true}}
}

func TestHandlers_ResolveSearchFilter_MergesPresetAndExplicitWithAnd(t *testing.T) {
	presets, err := searchpreset.Load(`[{"name":"live","filter":{"field":"deletedAt","operator":"exists","value":false}}]`, "")
	require.NoError(t, err)
	h := &Handlers{presets: presets}

	node, err := h.resolveSearchFilter(searchPayload{
		Preset: "live",
		Filter: map[string]any{"field": "tags", "operator": "array_contains", "value": "featured"},
	}, readOnlyClaims())
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, filter.KindGroup, node.Kind)
	assert.Equal(t, filter.GroupAnd, node.GroupOp)
	require.Len(t, node.Filters, 2)
}

func TestHandlers_ResolveSearchFilter_PresetAloneIsReturnedDirectly(t *testing.T) {
	presets, err := searchpreset.Load(`[{"name":"live","filter":{"field":"deletedAt","operator":"exists","value":false}}]`, "")
	require.NoError(t, err)
	h := &Handlers{presets: presets}

	node, err := h.resolveSearchFilter(searchPayload{Preset: "live"}, readOnlyClaims())
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, filter.KindCondition, node.Kind)
	assert.Equal(t, "deletedAt", node.Field)
}

func TestHandlers_ResolveSearchFilter_MissingRequiredScopeIsForbidden(t *testing.T) {
	presets, err := searchpreset.Load(`[{"name":"admin-only","filter":{"field":"owner","operator":"exists","value":true},"requiredScopes":["metastore:admin"]}]`, "")
	require.NoError(t, err)
	h := &Handlers{presets: presets}

	_, err = h.resolveSearchFilter(searchPayload{Preset: "admin-only"}, readOnlyClaims())
	assert.Error(t, err)
}

func TestHandlers_ResolveSearchFilter_UnknownPresetIsNotFound(t *testing.T) {
	presets, err := searchpreset.Load("", "")
	require.NoError(t, err)
	h := &Handlers{presets: presets}

	_, err = h.resolveSearchFilter(searchPayload{Preset: "missing"}, readOnlyClaims())
	assert.Error(t, err)
}
