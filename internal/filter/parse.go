package filter

import (
	"fmt"

	"github.com/apphub/metastore/internal/platform/apperr"
)

// ParseStructured accepts a decoded JSON value (map[string]any, as produced
// by encoding/json) and yields the canonical Node tree, rejecting unknown
// operators, empty groups, and trees deeper than MaxDepth.
//
// A node whose "type" is absent is inferred as a condition, unless it
// carries an "op" key (inferred as a group). The legacy shorthand
// {"not": <filter>} (no "type" key, just a bare "not" field) coerces to the
// not variant.
func ParseStructured(raw any) (*Node, error) {
	return parseNode(raw, 1)
}

func parseNode(raw any, depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, errDepth()
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, apperr.BadRequest("filter node must be a JSON object")
	}

	kind, _ := obj["type"].(string)
	if kind == "" {
		if _, hasNot := obj["not"]; hasNot && len(obj) == 1 {
			kind = string(KindNot)
		} else if _, hasOp := obj["op"]; hasOp {
			kind = string(KindGroup)
		} else {
			kind = string(KindCondition)
		}
	}

	switch Kind(kind) {
	case KindCondition:
		return parseCondition(obj)
	case KindGroup:
		return parseGroup(obj, depth)
	case KindNot:
		return parseNot(obj, depth)
	default:
		return nil, apperr.BadRequest(fmt.Sprintf("unknown filter node type: %s", kind))
	}
}

func parseCondition(obj map[string]any) (*Node, error) {
	field, _ := obj["field"].(string)
	if field == "" {
		return nil, apperr.BadRequest("condition filter requires a field")
	}
	opRaw, _ := obj["operator"].(string)
	op := Operator(opRaw)
	if !validOperators[op] {
		return nil, errUnknownOperator(op)
	}

	node := &Node{Kind: KindCondition, Field: field, Operator: op}
	if v, ok := obj["value"]; ok {
		node.Value = v
	}
	if vs, ok := obj["values"].([]any); ok {
		node.Values = vs
	}
	if op == OpBetween && len(node.Values) != 2 {
		return nil, apperr.BadRequest("between operator requires exactly 2 values")
	}
	return node, nil
}

func parseGroup(obj map[string]any, depth int) (*Node, error) {
	opRaw, _ := obj["op"].(string)
	groupOp := GroupOperator(opRaw)
	if groupOp != GroupAnd && groupOp != GroupOr {
		return nil, apperr.BadRequest("group operator must be 'and' or 'or'")
	}
	rawFilters, _ := obj["filters"].([]any)
	if len(rawFilters) == 0 {
		return nil, errEmptyGroup()
	}
	children := make([]*Node, 0, len(rawFilters))
	for _, rf := range rawFilters {
		child, err := parseNode(rf, depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Node{Kind: KindGroup, GroupOp: groupOp, Filters: children}, nil
}

func parseNot(obj map[string]any, depth int) (*Node, error) {
	inner, ok := obj["not"]
	if !ok {
		return nil, apperr.BadRequest("not filter requires a 'not' field")
	}
	child, err := parseNode(inner, depth+1)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindNot, Not: child}, nil
}
