// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package jsonvalue implements deep merge and path-addressed operations over
arbitrary JSON documents.

Metadata is modeled as Go's native `map[string]any` rather than a hand-rolled
recursive sum type: `encoding/json` already decodes JSON objects, arrays,
strings, float64/json.Number, bools and nil into exactly that shape, so
treating it as the sum type null | bool | number | string | []any | map[string]any
keeps every operation here idiomatic `interface{}` type-switching instead of
a parallel representation that would need its own (un)marshalling.
*/
package jsonvalue

import (
	"sort"
	"strings"
)

// DeepMerge recursively merges patch onto base. For each key in patch:
//   - if both base[key] and patch[key] are JSON objects (map[string]any),
//     they are merged recursively;
//   - otherwise patch[key] replaces base[key] outright, including replacing
//     an object with a scalar/array or vice versa.
//
// base is not mutated; a new map is returned. A nil base is treated as empty.
func DeepMerge(base, patch map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		result[k] = v
	}
	for k, pv := range patch {
		bv, exists := result[k]
		if exists {
			bm, bIsMap := bv.(map[string]any)
			pm, pIsMap := pv.(map[string]any)
			if bIsMap && pIsMap {
				result[k] = DeepMerge(bm, pm)
				continue
			}
		}
		result[k] = pv
	}
	return result
}

// Unset removes each dotted path in paths from a copy of doc. A path splits
// on '.', descends into nested objects, and removes the leaf key. Any
// intermediate object left empty by the removal is itself removed, so
// unsetting the last key of a nested object prunes the whole branch. Paths
// through a non-object intermediate, or naming a key that does not exist,
// are no-ops.
func Unset(doc map[string]any, paths []string) map[string]any {
	result := DeepMerge(doc, nil)
	for _, path := range paths {
		segments := strings.Split(path, ".")
		unsetPath(result, segments)
	}
	return result
}

// unsetPath removes segments from obj in place, pruning empty intermediate
// objects. Returns true if obj is now empty and can be pruned by the caller.
func unsetPath(obj map[string]any, segments []string) bool {
	if len(segments) == 0 {
		return false
	}
	head := segments[0]
	if len(segments) == 1 {
		delete(obj, head)
		return len(obj) == 0
	}
	child, ok := obj[head].(map[string]any)
	if !ok {
		return false
	}
	if unsetPath(child, segments[1:]) {
		delete(obj, head)
	}
	return len(obj) == 0
}

// ExtractPaths returns a new object containing only the dotted paths named,
// reconstructing intermediate objects along each path. Paths that do not
// resolve within doc are silently omitted, matching the search endpoint's
// best-effort projection semantics.
func ExtractPaths(doc map[string]any, paths []string) map[string]any {
	result := map[string]any{}
	for _, path := range paths {
		segments := strings.Split(path, ".")
		value, ok := lookupPath(doc, segments)
		if !ok {
			continue
		}
		setPath(result, segments, value)
	}
	return result
}

func lookupPath(obj map[string]any, segments []string) (any, bool) {
	current := any(obj)
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setPath(obj map[string]any, segments []string, value any) {
	if len(segments) == 1 {
		obj[segments[0]] = value
		return
	}
	head := segments[0]
	child, ok := obj[head].(map[string]any)
	if !ok {
		child = map[string]any{}
		obj[head] = child
	}
	setPath(child, segments[1:], value)
}

// Diff describes the structural difference between two JSON objects as
// sorted, dotted-path lists, per spec.md §4.J's audit diff view.
type Diff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
}

// DiffObjects computes Diff between two maps. Paths use dotted notation for
// nested object keys and `[i]` for array indices, matching the audit diff
// endpoint's rendering.
func DiffObjects(previous, next map[string]any) Diff {
	d := Diff{}
	walkDiff("", previous, next, &d)
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}

func walkDiff(prefix string, prev, next map[string]any, d *Diff) {
	for k, nv := range next {
		path := joinPath(prefix, k)
		pv, existed := prev[k]
		if !existed {
			d.Added = append(d.Added, path)
			continue
		}
		compareValue(path, pv, nv, d)
	}
	for k := range prev {
		if _, stillPresent := next[k]; !stillPresent {
			d.Removed = append(d.Removed, joinPath(prefix, k))
		}
	}
}

func compareValue(path string, prev, next any, d *Diff) {
	prevMap, prevIsMap := prev.(map[string]any)
	nextMap, nextIsMap := next.(map[string]any)
	if prevIsMap && nextIsMap {
		walkDiff(path, prevMap, nextMap, d)
		return
	}

	prevSlice, prevIsSlice := prev.([]any)
	nextSlice, nextIsSlice := next.([]any)
	if prevIsSlice && nextIsSlice {
		compareSlice(path, prevSlice, nextSlice, d)
		return
	}

	if !valuesEqual(prev, next) {
		d.Changed = append(d.Changed, path)
	}
}

func compareSlice(path string, prev, next []any, d *Diff) {
	max := len(prev)
	if len(next) > max {
		max = len(next)
	}
	for i := 0; i < max; i++ {
		indexPath := path + "[" + itoa(i) + "]"
		switch {
		case i >= len(prev):
			d.Added = append(d.Added, indexPath)
		case i >= len(next):
			d.Removed = append(d.Removed, indexPath)
		default:
			compareValue(indexPath, prev[i], next[i], d)
		}
	}
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
