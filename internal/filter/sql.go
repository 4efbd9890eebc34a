package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/apphub/metastore/internal/platform/apperr"
)

// scalarColumns maps a recognised field name to its underlying SQL column.
var scalarColumns = map[string]string{
	"namespace":  "namespace",
	"key":        "record_key",
	"owner":      "owner",
	"schemaHash": "schema_hash",
	"version":    "version",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"deletedAt":  "deleted_at",
	"createdBy":  "created_by",
	"updatedBy":  "updated_by",
	"tags":       "tags",
}

var pathSegmentRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Compiled is a parameterised SQL fragment ready to be appended after a
// WHERE keyword, plus its ordered argument vector.
type Compiled struct {
	SQL  string
	Args []any
}

// CompileSQL walks node and produces a parameterised boolean SQL expression.
// argOffset is the 1-based index of the first placeholder to emit (so
// callers can compile a WHERE clause after already binding earlier
// parameters, e.g. the namespace scope).
func CompileSQL(node *Node, argOffset int) (Compiled, error) {
	if node == nil {
		return Compiled{SQL: "TRUE", Args: nil}, nil
	}
	var builder strings.Builder
	var args []any
	nextArg := argOffset
	if err := compileNode(&builder, &args, &nextArg, node); err != nil {
		return Compiled{}, err
	}
	return Compiled{SQL: builder.String(), Args: args}, nil
}

func compileNode(builder *strings.Builder, args *[]any, nextArg *int, node *Node) error {
	switch node.Kind {
	case KindCondition:
		return compileCondition(builder, args, nextArg, node)
	case KindGroup:
		return compileGroup(builder, args, nextArg, node)
	case KindNot:
		builder.WriteString("NOT (")
		if err := compileNode(builder, args, nextArg, node.Not); err != nil {
			return err
		}
		builder.WriteString(")")
		return nil
	default:
		return apperr.BadRequest("unknown filter node kind")
	}
}

func compileGroup(builder *strings.Builder, args *[]any, nextArg *int, node *Node) error {
	joiner := " AND "
	if node.GroupOp == GroupOr {
		joiner = " OR "
	}
	builder.WriteString("(")
	for i, child := range node.Filters {
		if i > 0 {
			builder.WriteString(joiner)
		}
		if err := compileNode(builder, args, nextArg, child); err != nil {
			return err
		}
	}
	builder.WriteString(")")
	return nil
}

func bind(args *[]any, nextArg *int, value any) string {
	*args = append(*args, value)
	placeholder := fmt.Sprintf("$%d", *nextArg)
	*nextArg++
	return placeholder
}

func compileCondition(builder *strings.Builder, args *[]any, nextArg *int, node *Node) error {
	if column, ok := scalarColumns[node.Field]; ok {
		return compileScalarCondition(builder, args, nextArg, column, node)
	}
	if strings.HasPrefix(node.Field, "metadata.") {
		segments := strings.Split(strings.TrimPrefix(node.Field, "metadata."), ".")
		for _, seg := range segments {
			if !pathSegmentRegex.MatchString(seg) {
				return apperr.BadRequest("invalid metadata path segment: " + seg)
			}
		}
		return compileJSONCondition(builder, args, nextArg, segments, node)
	}
	return apperr.BadRequest("unrecognised filter field: " + node.Field)
}

func pathLiteral(segments []string) string {
	return "{" + strings.Join(segments, ",") + "}"
}

func compileScalarCondition(builder *strings.Builder, args *[]any, nextArg *int, column string, node *Node) error {
	switch node.Operator {
	case OpEq:
		builder.WriteString(fmt.Sprintf("%s = %s", column, bind(args, nextArg, node.Value)))
	case OpNeq:
		builder.WriteString(fmt.Sprintf("%s IS DISTINCT FROM %s", column, bind(args, nextArg, node.Value)))
	case OpLt:
		builder.WriteString(fmt.Sprintf("%s < %s", column, bind(args, nextArg, node.Value)))
	case OpLte:
		builder.WriteString(fmt.Sprintf("%s <= %s", column, bind(args, nextArg, node.Value)))
	case OpGt:
		builder.WriteString(fmt.Sprintf("%s > %s", column, bind(args, nextArg, node.Value)))
	case OpGte:
		builder.WriteString(fmt.Sprintf("%s >= %s", column, bind(args, nextArg, node.Value)))
	case OpBetween:
		lo := bind(args, nextArg, node.Values[0])
		hi := bind(args, nextArg, node.Values[1])
		builder.WriteString(fmt.Sprintf("%s BETWEEN %s AND %s", column, lo, hi))
	case OpContains:
		if column != "tags" {
			return apperr.BadRequest("contains is only valid against the tags column")
		}
		builder.WriteString(fmt.Sprintf("%s @> %s", column, bind(args, nextArg, toTextArray(node.Value))))
	case OpArrayContains:
		if column != "tags" {
			return apperr.BadRequest("array_contains is only valid against the tags column")
		}
		builder.WriteString(fmt.Sprintf("%s && %s", column, bind(args, nextArg, toTextArray(node.Values))))
	case OpHasKey:
		return apperr.BadRequest("has_key is not valid against scalar columns")
	case OpExists:
		builder.WriteString(fmt.Sprintf("%s IS NOT NULL", column))
	default:
		return errUnknownOperator(node.Operator)
	}
	return nil
}

func compileJSONCondition(builder *strings.Builder, args *[]any, nextArg *int, segments []string, node *Node) error {
	objectExtract := fmt.Sprintf("metadata #> '%s'", pathLiteral(segments))
	textExtract := fmt.Sprintf("metadata #>> '%s'", pathLiteral(segments))

	switch node.Operator {
	case OpEq:
		builder.WriteString(fmt.Sprintf("%s = %s::jsonb", objectExtract, bind(args, nextArg, node.Value)))
	case OpNeq:
		builder.WriteString(fmt.Sprintf("%s IS DISTINCT FROM %s::jsonb", objectExtract, bind(args, nextArg, node.Value)))
	case OpLt:
		builder.WriteString(fmt.Sprintf("%s < %s", textExtract, bind(args, nextArg, node.Value)))
	case OpLte:
		builder.WriteString(fmt.Sprintf("%s <= %s", textExtract, bind(args, nextArg, node.Value)))
	case OpGt:
		builder.WriteString(fmt.Sprintf("%s > %s", textExtract, bind(args, nextArg, node.Value)))
	case OpGte:
		builder.WriteString(fmt.Sprintf("%s >= %s", textExtract, bind(args, nextArg, node.Value)))
	case OpBetween:
		lo := bind(args, nextArg, node.Values[0])
		hi := bind(args, nextArg, node.Values[1])
		builder.WriteString(fmt.Sprintf("%s BETWEEN %s AND %s", textExtract, lo, hi))
	case OpContains:
		builder.WriteString(fmt.Sprintf("%s @> %s::jsonb", objectExtract, bind(args, nextArg, node.Value)))
	case OpArrayContains:
		builder.WriteString(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements(%s) elem WHERE elem @> %s::jsonb)",
			objectExtract, bind(args, nextArg, node.Value),
		))
	case OpHasKey:
		last := segments[len(segments)-1]
		parent := segments[:len(segments)-1]
		if len(parent) == 0 {
			builder.WriteString(fmt.Sprintf("metadata ? %s", bind(args, nextArg, last)))
		} else {
			builder.WriteString(fmt.Sprintf("(metadata #> '%s') ? %s", pathLiteral(parent), bind(args, nextArg, last)))
		}
	case OpExists:
		builder.WriteString(fmt.Sprintf("%s IS NOT NULL", objectExtract))
	default:
		return errUnknownOperator(node.Operator)
	}
	return nil
}

func toTextArray(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return []string{}
	}
}

// ValidateSortFields checks a sort specification: up to MaxSortFields
// entries, each naming a scalar column.
func ValidateSortFields(fields []SortField) error {
	if len(fields) > MaxSortFields {
		return apperr.BadRequest("sort accepts at most 5 fields")
	}
	for _, f := range fields {
		if _, ok := scalarColumns[f.Field]; !ok {
			return apperr.BadRequest("field is not sortable: " + f.Field)
		}
	}
	return nil
}

// CompileSort renders a validated sort specification as an ORDER BY clause
// body (without the ORDER BY keyword itself).
func CompileSort(fields []SortField) string {
	if len(fields) == 0 {
		fields = DefaultSort
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", scalarColumns[f.Field], dir))
	}
	return strings.Join(parts, ", ")
}
