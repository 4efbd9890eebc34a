package filter

import (
	"testing"

	"github.com/apphub/metastore/internal/platform/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructured_InfersConditionWhenTypeAbsent(t *testing.T) {
	node, err := ParseStructured(map[string]any{
		"field": "namespace", "operator": "eq", "value": "library",
	})

	require.NoError(t, err)
	assert.Equal(t, KindCondition, node.Kind)
	assert.Equal(t, "namespace", node.Field)
	assert.Equal(t, OpEq, node.Operator)
}

func TestParseStructured_Group(t *testing.T) {
	node, err := ParseStructured(map[string]any{
		"op": "and",
		"filters": []any{
			map[string]any{"field": "namespace", "operator": "eq", "value": "library"},
			map[string]any{"field": "owner", "operator": "exists"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, KindGroup, node.Kind)
	assert.Equal(t, GroupAnd, node.GroupOp)
	assert.Len(t, node.Filters, 2)
}

func TestParseStructured_EmptyGroupRejected(t *testing.T) {
	_, err := ParseStructured(map[string]any{"op": "and", "filters": []any{}})

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "bad_request", ae.Code)
}

func TestParseStructured_LegacyNotShorthand(t *testing.T) {
	node, err := ParseStructured(map[string]any{
		"not": map[string]any{"field": "owner", "operator": "exists"},
	})

	require.NoError(t, err)
	assert.Equal(t, KindNot, node.Kind)
	assert.Equal(t, "owner", node.Not.Field)
}

func TestParseStructured_UnknownOperatorRejected(t *testing.T) {
	_, err := ParseStructured(map[string]any{"field": "owner", "operator": "bogus"})

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "bad_request", ae.Code)
}

func TestParseStructured_DepthExceeded(t *testing.T) {
	var node any = map[string]any{"field": "owner", "operator": "exists"}
	for i := 0; i < MaxDepth+1; i++ {
		node = map[string]any{"op": "and", "filters": []any{node}}
	}

	_, err := ParseStructured(node)

	require.Error(t, err)
}

func TestParseStructured_BetweenRequiresTwoValues(t *testing.T) {
	_, err := ParseStructured(map[string]any{
		"field": "version", "operator": "between", "values": []any{float64(1)},
	})

	require.Error(t, err)
}
