// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package filter models the structured filter tree used by record search, a
lightweight query-string grammar that compiles down to the same tree, and a
SQL emitter that turns the tree into a parameterised WHERE clause.
*/
package filter

import "github.com/apphub/metastore/internal/platform/apperr"

// Operator is a comparison operator usable inside a condition node.
type Operator string

const (
	OpEq            Operator = "eq"
	OpNeq           Operator = "neq"
	OpLt            Operator = "lt"
	OpLte           Operator = "lte"
	OpGt            Operator = "gt"
	OpGte           Operator = "gte"
	OpBetween       Operator = "between"
	OpContains      Operator = "contains"
	OpArrayContains Operator = "array_contains"
	OpHasKey        Operator = "has_key"
	OpExists        Operator = "exists"
)

var validOperators = map[Operator]bool{
	OpEq: true, OpNeq: true, OpLt: true, OpLte: true, OpGt: true, OpGte: true,
	OpBetween: true, OpContains: true, OpArrayContains: true, OpHasKey: true, OpExists: true,
}

// GroupOperator combines a non-empty list of filters.
type GroupOperator string

const (
	GroupAnd GroupOperator = "and"
	GroupOr  GroupOperator = "or"
)

// Kind tags which variant of the filter tree a Node holds.
type Kind string

const (
	KindCondition Kind = "condition"
	KindGroup     Kind = "group"
	KindNot       Kind = "not"
)

// MaxDepth is the deepest a filter tree may nest before the parser rejects it.
const MaxDepth = 8

// MaxSortFields caps the number of fields accepted in a sort specification.
const MaxSortFields = 5

// MaxProjectionPaths caps the number of projection paths accepted per search.
const MaxProjectionPaths = 32

// Node is the recursive tagged variant of the filter tree:
//
//	condition(field, operator, value?, values?)
//	group(operator in {and, or}, filters: non-empty list)
//	not(filter)
type Node struct {
	Kind Kind `json:"type"`

	// condition fields
	Field    string   `json:"field,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`
	Values   []any    `json:"values,omitempty"`

	// group fields
	GroupOp GroupOperator `json:"op,omitempty"`
	Filters []*Node       `json:"filters,omitempty"`

	// not field
	Not *Node `json:"not,omitempty"`
}

// SortField is one entry of an ORDER BY specification; only scalar columns
// are sortable.
type SortField struct {
	Field      string
	Descending bool
}

// DefaultSort is applied when a search request specifies no sort fields.
var DefaultSort = []SortField{{Field: "updatedAt", Descending: true}}

func errDepth() error {
	return apperr.BadRequest("filter tree exceeds maximum depth of 8")
}

func errUnknownOperator(op Operator) error {
	return apperr.BadRequest("unknown filter operator: " + string(op))
}

func errEmptyGroup() error {
	return apperr.BadRequest("filter group must have a non-empty filter list")
}
