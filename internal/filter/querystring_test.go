package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryString_Empty(t *testing.T) {
	node, err := ParseQueryString("")

	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestParseQueryString_SingleToken(t *testing.T) {
	node, err := ParseQueryString("namespace=library")

	require.NoError(t, err)
	assert.Equal(t, KindCondition, node.Kind)
	assert.Equal(t, "namespace", node.Field)
	assert.Equal(t, OpEq, node.Operator)
	assert.Equal(t, "library", node.Value)
}

func TestParseQueryString_UnrecognisedFieldPrefixedWithMetadata(t *testing.T) {
	node, err := ParseQueryString("author.name=Ada")

	require.NoError(t, err)
	assert.Equal(t, "metadata.author.name", node.Field)
}

func TestParseQueryString_LongestOperatorMatchWins(t *testing.T) {
	node, err := ParseQueryString("version>=5")

	require.NoError(t, err)
	assert.Equal(t, OpGte, node.Operator)
	assert.Equal(t, float64(5), node.Value)
}

func TestParseQueryString_MultipleTokensCombineWithAnd(t *testing.T) {
	node, err := ParseQueryString("namespace=library owner=ada")

	require.NoError(t, err)
	assert.Equal(t, KindGroup, node.Kind)
	assert.Equal(t, GroupAnd, node.GroupOp)
	assert.Len(t, node.Filters, 2)
}

func TestParseQueryString_QuotedValuePreservesSpaces(t *testing.T) {
	node, err := ParseQueryString(`title="The Great Book"`)

	require.NoError(t, err)
	assert.Equal(t, "The Great Book", node.Value)
}

func TestParseQueryString_BackslashEscape(t *testing.T) {
	node, err := ParseQueryString(`title="quote \" here"`)

	require.NoError(t, err)
	assert.Equal(t, `quote " here`, node.Value)
}

func TestParseQueryString_UnterminatedQuoteFails(t *testing.T) {
	_, err := ParseQueryString(`title="unterminated`)

	require.Error(t, err)
}

func TestParseQueryString_MissingOperatorFails(t *testing.T) {
	_, err := ParseQueryString("justafield")

	require.Error(t, err)
}

func TestParseQueryString_ValueCoercion(t *testing.T) {
	nullNode, err := ParseQueryString("owner=null")
	require.NoError(t, err)
	assert.Nil(t, nullNode.Value)

	boolNode, err := ParseQueryString("flag=true")
	require.NoError(t, err)
	assert.Equal(t, true, boolNode.Value)

	numNode, err := ParseQueryString("count=-3.5")
	require.NoError(t, err)
	assert.Equal(t, -3.5, numNode.Value)

	strNode, err := ParseQueryString("owner=ada")
	require.NoError(t, err)
	assert.Equal(t, "ada", strNode.Value)
}
