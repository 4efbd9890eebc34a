package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/apphub/metastore/internal/platform/apperr"
)

// operator tokens in priority order; longest match wins so two-character
// operators must be tried before their single-character prefixes.
var dslOperators = []struct {
	token string
	op    Operator
}{
	{"!=", OpNeq},
	{">=", OpGte},
	{"<=", OpLte},
	{">", OpGt},
	{"<", OpLt},
	{":", OpContains},
	{"=", OpEq},
}

var fieldNameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var recognisedColumns = map[string]bool{
	"namespace": true, "key": true, "owner": true, "schemaHash": true,
	"version": true, "createdAt": true, "updatedAt": true, "deletedAt": true,
	"createdBy": true, "updatedBy": true, "tags": true,
}

// ParseQueryString tokenizes a whitespace-separated query-string, one
// comparison per token, and combines all tokens into an "and" group. Single-
// or double-quoted values preserve internal spaces and support backslash
// escapes. An empty query string yields a nil Node (no filtering).
func ParseQueryString(query string) (*Node, error) {
	tokens, err := tokenize(query)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	conditions := make([]*Node, 0, len(tokens))
	for _, tok := range tokens {
		node, err := parseToken(tok)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, node)
	}
	if len(conditions) == 1 {
		return conditions[0], nil
	}
	return &Node{Kind: KindGroup, GroupOp: GroupAnd, Filters: conditions}, nil
}

// tokenize splits a query string on unquoted whitespace, treating single-
// and double-quoted spans as atomic and honouring backslash escapes.
func tokenize(query string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inQuote := byte(0)
	escaped := false
	hasToken := false

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case escaped:
			current.WriteByte(c)
			escaped = false
		case c == '\\' && inQuote != 0:
			escaped = true
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			} else {
				current.WriteByte(c)
			}
		case c == '\'' || c == '"':
			inQuote = c
			hasToken = true
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if hasToken {
				tokens = append(tokens, current.String())
				current.Reset()
				hasToken = false
			}
		default:
			current.WriteByte(c)
			hasToken = true
		}
	}
	if inQuote != 0 {
		return nil, apperr.BadRequest("unterminated quote in query string")
	}
	if hasToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

func parseToken(token string) (*Node, error) {
	for _, candidate := range dslOperators {
		idx := strings.Index(token, candidate.token)
		if idx < 0 {
			continue
		}
		field := token[:idx]
		valueRaw := token[idx+len(candidate.token):]
		if field == "" {
			return nil, apperr.BadRequest("query token is missing a field name: " + token)
		}
		if !fieldNameRegex.MatchString(field) {
			return nil, apperr.BadRequest("invalid field name in query token: " + field)
		}
		if !recognisedColumns[field] && !strings.HasPrefix(field, "metadata.") {
			field = "metadata." + field
		}
		return &Node{Kind: KindCondition, Field: field, Operator: candidate.op, Value: coerceValue(valueRaw)}, nil
	}
	return nil, apperr.BadRequest("query token is missing a comparison operator: " + token)
}

var numberRegex = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)

func coerceValue(raw string) any {
	switch raw {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if numberRegex.MatchString(raw) {
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			return f
		}
	}
	return raw
}
