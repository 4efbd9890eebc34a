package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSQL_NilNodeIsTrue(t *testing.T) {
	compiled, err := CompileSQL(nil, 1)

	require.NoError(t, err)
	assert.Equal(t, "TRUE", compiled.SQL)
	assert.Empty(t, compiled.Args)
}

func TestCompileSQL_ScalarEquality(t *testing.T) {
	node := &Node{Kind: KindCondition, Field: "namespace", Operator: OpEq, Value: "library"}

	compiled, err := CompileSQL(node, 1)

	require.NoError(t, err)
	assert.Equal(t, "namespace = $1", compiled.SQL)
	assert.Equal(t, []any{"library"}, compiled.Args)
}

func TestCompileSQL_ArgOffsetContinuesNumbering(t *testing.T) {
	node := &Node{Kind: KindCondition, Field: "owner", Operator: OpEq, Value: "ada"}

	compiled, err := CompileSQL(node, 3)

	require.NoError(t, err)
	assert.Equal(t, "owner = $3", compiled.SQL)
}

func TestCompileSQL_MetadataPath(t *testing.T) {
	node := &Node{Kind: KindCondition, Field: "metadata.author.name", Operator: OpEq, Value: "Ada"}

	compiled, err := CompileSQL(node, 1)

	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "metadata #> '{author,name}'")
}

func TestCompileSQL_InvalidMetadataSegmentRejected(t *testing.T) {
	node := &Node{Kind: KindCondition, Field: "metadata.bad segment", Operator: OpExists}

	_, err := CompileSQL(node, 1)

	require.Error(t, err)
}

func TestCompileSQL_Group(t *testing.T) {
	node := &Node{
		Kind:    KindGroup,
		GroupOp: GroupOr,
		Filters: []*Node{
			{Kind: KindCondition, Field: "namespace", Operator: OpEq, Value: "library"},
			{Kind: KindCondition, Field: "namespace", Operator: OpEq, Value: "archive"},
		},
	}

	compiled, err := CompileSQL(node, 1)

	require.NoError(t, err)
	assert.Equal(t, "(namespace = $1 OR namespace = $2)", compiled.SQL)
}

func TestCompileSQL_Not(t *testing.T) {
	node := &Node{Kind: KindNot, Not: &Node{Kind: KindCondition, Field: "owner", Operator: OpExists}}

	compiled, err := CompileSQL(node, 1)

	require.NoError(t, err)
	assert.Equal(t, "NOT (owner IS NOT NULL)", compiled.SQL)
}

func TestCompileSQL_ContainsOnNonTagsColumnRejected(t *testing.T) {
	node := &Node{Kind: KindCondition, Field: "namespace", Operator: OpContains, Value: "x"}

	_, err := CompileSQL(node, 1)

	require.Error(t, err)
}

func TestCompileSQL_HasKeyOnScalarRejected(t *testing.T) {
	node := &Node{Kind: KindCondition, Field: "namespace", Operator: OpHasKey}

	_, err := CompileSQL(node, 1)

	require.Error(t, err)
}

func TestCompileSQL_HasKeyOnMetadataPath(t *testing.T) {
	node := &Node{Kind: KindCondition, Field: "metadata.author", Operator: OpHasKey, Value: "name"}

	compiled, err := CompileSQL(node, 1)

	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "?")
}

func TestCompileSQL_Between(t *testing.T) {
	node := &Node{Kind: KindCondition, Field: "version", Operator: OpBetween, Values: []any{float64(1), float64(5)}}

	compiled, err := CompileSQL(node, 1)

	require.NoError(t, err)
	assert.Equal(t, "version BETWEEN $1 AND $2", compiled.SQL)
}

func TestValidateSortFields_RejectsTooMany(t *testing.T) {
	fields := make([]SortField, MaxSortFields+1)
	for i := range fields {
		fields[i] = SortField{Field: "version"}
	}

	err := ValidateSortFields(fields)

	require.Error(t, err)
}

func TestValidateSortFields_RejectsNonScalar(t *testing.T) {
	err := ValidateSortFields([]SortField{{Field: "metadata.author"}})

	require.Error(t, err)
}

func TestCompileSort_DefaultsWhenEmpty(t *testing.T) {
	assert.Equal(t, "updated_at DESC", CompileSort(nil))
}

func TestCompileSort_RendersDirection(t *testing.T) {
	assert.Equal(t, "version ASC, created_at DESC", CompileSort([]SortField{
		{Field: "version", Descending: false},
		{Field: "createdAt", Descending: true},
	}))
}
