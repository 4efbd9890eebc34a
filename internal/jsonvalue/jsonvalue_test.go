package jsonvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge_ScalarOverwrite(t *testing.T) {
	base := map[string]any{"title": "old", "views": float64(1)}
	patch := map[string]any{"views": float64(2)}

	result := DeepMerge(base, patch)

	assert.Equal(t, "old", result["title"])
	assert.Equal(t, float64(2), result["views"])
}

func TestDeepMerge_NestedObjectsMergeRecursively(t *testing.T) {
	base := map[string]any{
		"author": map[string]any{"name": "Ada", "age": float64(30)},
	}
	patch := map[string]any{
		"author": map[string]any{"age": float64(31)},
	}

	result := DeepMerge(base, patch)

	author := result["author"].(map[string]any)
	assert.Equal(t, "Ada", author["name"])
	assert.Equal(t, float64(31), author["age"])
}

func TestDeepMerge_PatchReplacesObjectWithScalar(t *testing.T) {
	base := map[string]any{"tags": map[string]any{"a": float64(1)}}
	patch := map[string]any{"tags": "flat-now"}

	result := DeepMerge(base, patch)

	assert.Equal(t, "flat-now", result["tags"])
}

func TestDeepMerge_DoesNotMutateBase(t *testing.T) {
	base := map[string]any{"k": map[string]any{"x": float64(1)}}
	patch := map[string]any{"k": map[string]any{"y": float64(2)}}

	DeepMerge(base, patch)

	innerBase := base["k"].(map[string]any)
	_, hasY := innerBase["y"]
	assert.False(t, hasY, "base map must not be mutated by DeepMerge")
}

func TestDeepMerge_NilBase(t *testing.T) {
	result := DeepMerge(nil, map[string]any{"a": float64(1)})
	assert.Equal(t, map[string]any{"a": float64(1)}, result)
}

func TestDiffObjects_DetectsAddedRemovedChanged(t *testing.T) {
	previous := map[string]any{"title": "old", "dropped": true}
	next := map[string]any{"title": "new", "added": float64(1)}

	d := DiffObjects(previous, next)

	assert.Equal(t, []string{"added"}, d.Added)
	assert.Equal(t, []string{"dropped"}, d.Removed)
	assert.Equal(t, []string{"title"}, d.Changed)
}

func TestDiffObjects_NestedObjectDiff(t *testing.T) {
	previous := map[string]any{"author": map[string]any{"name": "Ada"}}
	next := map[string]any{"author": map[string]any{"name": "Grace"}}

	d := DiffObjects(previous, next)

	assert.Equal(t, []string{"author.name"}, d.Changed)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
}

func TestDiffObjects_ArrayIndexDiff(t *testing.T) {
	previous := map[string]any{"tags": []any{"a", "b"}}
	next := map[string]any{"tags": []any{"a", "c", "d"}}

	d := DiffObjects(previous, next)

	assert.Equal(t, []string{"tags[1]"}, d.Changed)
	assert.Equal(t, []string{"tags[2]"}, d.Added)
}

func TestUnset_RemovesLeaf(t *testing.T) {
	doc := map[string]any{"title": "x", "author": map[string]any{"name": "Ada", "age": float64(30)}}

	result := Unset(doc, []string{"author.age"})

	author := result["author"].(map[string]any)
	assert.Equal(t, "Ada", author["name"])
	_, hasAge := author["age"]
	assert.False(t, hasAge)
}

func TestUnset_PrunesEmptyIntermediateObjects(t *testing.T) {
	doc := map[string]any{"author": map[string]any{"name": "Ada"}}

	result := Unset(doc, []string{"author.name"})

	_, hasAuthor := result["author"]
	assert.False(t, hasAuthor, "emptied intermediate object must be pruned")
}

func TestUnset_NonexistentPathIsNoop(t *testing.T) {
	doc := map[string]any{"title": "x"}

	result := Unset(doc, []string{"missing.path"})

	assert.Equal(t, map[string]any{"title": "x"}, result)
}

func TestUnset_DoesNotMutateOriginal(t *testing.T) {
	doc := map[string]any{"author": map[string]any{"name": "Ada"}}

	Unset(doc, []string{"author.name"})

	author := doc["author"].(map[string]any)
	assert.Equal(t, "Ada", author["name"], "original document must be untouched")
}

func TestExtractPaths_ReconstructsNestedObject(t *testing.T) {
	doc := map[string]any{
		"title":  "x",
		"author": map[string]any{"name": "Ada", "age": float64(30)},
	}

	result := ExtractPaths(doc, []string{"author.name"})

	assert.Equal(t, map[string]any{"author": map[string]any{"name": "Ada"}}, result)
}

func TestExtractPaths_OmitsUnresolvedPaths(t *testing.T) {
	doc := map[string]any{"title": "x"}

	result := ExtractPaths(doc, []string{"missing.path"})

	assert.Empty(t, result)
}

func TestDiffObjects_NoChanges(t *testing.T) {
	doc := map[string]any{"a": float64(1), "b": map[string]any{"c": "x"}}

	d := DiffObjects(doc, doc)

	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
	assert.Empty(t, d.Changed)
}
