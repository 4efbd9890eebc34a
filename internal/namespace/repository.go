// Copyright (c) 2026 Apphub. All rights reserved.

package namespace

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apphub/metastore/internal/platform/database/schema"
	"github.com/apphub/metastore/internal/platform/dberr"
)

// Repository aggregates namespace summaries directly from the records table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed namespace repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List aggregates one page of namespace summaries. An empty, non-wildcard
// scope returns an empty result without issuing a query.
func (r *Repository) List(ctx context.Context, req ListRequest) (ListResult, error) {
	if !req.Scope.Wildcard && len(req.Scope.Namespaces) == 0 {
		return ListResult{}, nil
	}

	t := schema.Records
	var where strings.Builder
	args := []any{}
	where.WriteString("1 = 1")

	if !req.Scope.Wildcard {
		where.WriteString(fmt.Sprintf(" AND %s = ANY($%d)", t.Namespace, len(args)+1))
		args = append(args, req.Scope.Namespaces)
	}
	if req.Prefix != "" {
		where.WriteString(fmt.Sprintf(" AND %s LIKE $%d", t.Namespace, len(args)+1))
		args = append(args, req.Prefix+"%")
	}

	countQuery := fmt.Sprintf(
		`SELECT COUNT(DISTINCT %s) FROM %s WHERE %s`,
		t.Namespace, t.Table, where.String(),
	)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return ListResult{}, dberr.Wrap(err, "namespace")
	}
	if total == 0 {
		return ListResult{Total: 0}, nil
	}

	limitArg := len(args) + 1
	offsetArg := len(args) + 2
	listQuery := fmt.Sprintf(`
		SELECT %s,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE %s IS NOT NULL) AS deleted,
			MAX(%s) AS most_recent
		FROM %s
		WHERE %s
		GROUP BY %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		t.Namespace, t.DeletedAt, t.UpdatedAt, t.Table, where.String(), t.Namespace, t.Namespace,
		limitArg, offsetArg,
	)
	listArgs := append(append([]any{}, args...), req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return ListResult{}, dberr.Wrap(err, "namespace")
	}
	defer rows.Close()

	var summaries []Summary
	var namespaces []string
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Namespace, &s.Total, &s.Deleted, &s.MostRecentUpdate); err != nil {
			return ListResult{}, dberr.Wrap(err, "namespace")
		}
		summaries = append(summaries, s)
		namespaces = append(namespaces, s.Namespace)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, dberr.Wrap(err, "namespace")
	}

	owners, err := r.ownerCounts(ctx, namespaces)
	if err != nil {
		return ListResult{}, err
	}
	for i := range summaries {
		summaries[i].OwnerCounts = owners[summaries[i].Namespace]
	}

	return ListResult{Namespaces: summaries, Total: total}, nil
}

// ownerCounts returns, for each namespace in namespaces, a descending list
// of {owner, count} over live (non-deleted) records.
func (r *Repository) ownerCounts(ctx context.Context, namespaces []string) (map[string][]OwnerCount, error) {
	result := make(map[string][]OwnerCount)
	if len(namespaces) == 0 {
		return result, nil
	}

	t := schema.Records
	query := fmt.Sprintf(`
		SELECT %s, %s, COUNT(*) AS c
		FROM %s
		WHERE %s IS NULL AND %s IS NOT NULL AND %s = ANY($1)
		GROUP BY %s, %s
		ORDER BY %s, c DESC`,
		t.Namespace, t.Owner, t.Table, t.DeletedAt, t.Owner, t.Namespace, t.Namespace, t.Owner, t.Namespace,
	)
	rows, err := r.pool.Query(ctx, query, namespaces)
	if err != nil {
		return nil, dberr.Wrap(err, "namespace")
	}
	defer rows.Close()

	for rows.Next() {
		var ns, owner string
		var count int
		if err := rows.Scan(&ns, &owner, &count); err != nil {
			return nil, dberr.Wrap(err, "namespace")
		}
		result[ns] = append(result[ns], OwnerCount{Owner: owner, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "namespace")
	}
	return result, nil
}
