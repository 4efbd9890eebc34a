package record

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apphub/metastore/internal/jsonvalue"
	"github.com/apphub/metastore/internal/platform/apperr"
	"github.com/apphub/metastore/internal/platform/database/schema"
	"github.com/apphub/metastore/internal/platform/dberr"
)

// AuditReader reads the append-only audit trail.
type AuditReader struct {
	pool *pgxpool.Pool
}

// NewAuditReader constructs a PostgreSQL-backed audit reader.
func NewAuditReader(pool *pgxpool.Pool) *AuditReader {
	return &AuditReader{pool: pool}
}

func scanAudit(row pgx.Row) (*Audit, error) {
	var a Audit
	var metaRaw, prevMetaRaw []byte
	err := row.Scan(
		&a.ID, &a.RecordID, &a.Namespace, &a.Key, &a.Action, &a.Actor,
		&a.PreviousVersion, &a.Version, &metaRaw, &prevMetaRaw,
		&a.Tags, &a.PreviousTags, &a.Owner, &a.PreviousOwner, &a.SchemaHash, &a.PreviousSchemaHash, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metaRaw, &a.Metadata); err != nil {
		return nil, apperr.Internal(fmt.Errorf("audit: decode metadata: %w", err))
	}
	if err := json.Unmarshal(prevMetaRaw, &a.PreviousMetadata); err != nil {
		return nil, apperr.Internal(fmt.Errorf("audit: decode previous metadata: %w", err))
	}
	return &a, nil
}

// ListByRecord returns audit entries for (namespace, key) in
// (createdAt DESC, id DESC) order, plus the total count.
func (r *AuditReader) ListByRecord(ctx context.Context, namespace, key string, limit, offset int) ([]Audit, int, error) {
	t := schema.Audits
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) OVER() FROM %s WHERE %s = $1 AND %s = $2 ORDER BY %s DESC, %s DESC LIMIT $3 OFFSET $4`,
		strings.Join(t.Columns(), ", "), t.Table, t.Namespace, t.RecordKey, t.CreatedAt, t.ID,
	)
	rows, err := r.pool.Query(ctx, query, namespace, key, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "audit")
	}
	defer rows.Close()

	var entries []Audit
	total := 0
	for rows.Next() {
		var a Audit
		var metaRaw, prevMetaRaw []byte
		if err := rows.Scan(
			&a.ID, &a.RecordID, &a.Namespace, &a.Key, &a.Action, &a.Actor,
			&a.PreviousVersion, &a.Version, &metaRaw, &prevMetaRaw,
			&a.Tags, &a.PreviousTags, &a.Owner, &a.PreviousOwner, &a.SchemaHash, &a.PreviousSchemaHash, &a.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, dberr.Wrap(err, "audit")
		}
		if err := json.Unmarshal(metaRaw, &a.Metadata); err != nil {
			return nil, 0, apperr.Internal(err)
		}
		if err := json.Unmarshal(prevMetaRaw, &a.PreviousMetadata); err != nil {
			return nil, 0, apperr.Internal(err)
		}
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "audit")
	}
	return entries, total, nil
}

// GetByID returns a single audit entry by id, scoped to (namespace, key).
func (r *AuditReader) GetByID(ctx context.Context, namespace, key, id string) (Audit, error) {
	t := schema.Audits
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 AND %s = $2 AND %s = $3`,
		strings.Join(t.Columns(), ", "), t.Table, t.Namespace, t.RecordKey, t.ID,
	)
	row := r.pool.QueryRow(ctx, query, namespace, key, id)
	a, err := scanAudit(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Audit{}, apperr.NotFound("audit entry")
		}
		return Audit{}, dberr.Wrap(err, "audit")
	}
	return *a, nil
}

// GetByVersion returns the audit entry whose resulting Version matches.
func (r *AuditReader) GetByVersion(ctx context.Context, namespace, key string, version int) (Audit, error) {
	t := schema.Audits
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 AND %s = $2 AND %s = $3`,
		strings.Join(t.Columns(), ", "), t.Table, t.Namespace, t.RecordKey, t.Version,
	)
	row := r.pool.QueryRow(ctx, query, namespace, key, version)
	a, err := scanAudit(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Audit{}, apperr.NotFound("audit entry")
		}
		return Audit{}, dberr.Wrap(err, "audit")
	}
	return *a, nil
}

// TagsDiff is the sorted added/removed view of a tag-set change.
type TagsDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// ScalarDiff is the before/after view of a single scalar field.
type ScalarDiff struct {
	Changed  bool    `json:"changed"`
	Previous *string `json:"previous,omitempty"`
	Next     *string `json:"next,omitempty"`
}

// AuditDiff is the structured diff view computed out of band (not
// persistent state): metadata added/removed/changed paths, a nested tag
// added/removed view, and scalar owner/schemaHash diffs, alongside both
// full snapshots.
type AuditDiff struct {
	Metadata   jsonvalue.Diff `json:"metadata"`
	Tags       TagsDiff       `json:"tags"`
	Owner      ScalarDiff     `json:"owner"`
	SchemaHash ScalarDiff     `json:"schemaHash"`
	Previous   Snapshot       `json:"previous"`
	Next       Snapshot       `json:"next"`
}

// Diff computes the structured diff view for an audit entry.
func Diff(a Audit) AuditDiff {
	added, removed := diffTags(a.PreviousTags, a.Tags)
	return AuditDiff{
		Metadata:   jsonvalue.DiffObjects(a.PreviousMetadata, a.Metadata),
		Tags:       TagsDiff{Added: added, Removed: removed},
		Owner:      diffScalar(a.PreviousOwner, a.Owner),
		SchemaHash: diffScalar(a.PreviousSchemaHash, a.SchemaHash),
		Previous: Snapshot{
			Metadata: a.PreviousMetadata, Tags: a.PreviousTags, Owner: a.PreviousOwner, SchemaHash: a.PreviousSchemaHash,
		},
		Next: Snapshot{
			Metadata: a.Metadata, Tags: a.Tags, Owner: a.Owner, SchemaHash: a.SchemaHash,
		},
	}
}

func diffScalar(previous, next *string) ScalarDiff {
	return ScalarDiff{
		Changed:  !stringPtrEqual(previous, next),
		Previous: previous,
		Next:     next,
	}
}

func diffTags(previous, next []string) (added, removed []string) {
	prevSet := make(map[string]bool, len(previous))
	for _, t := range previous {
		prevSet[t] = true
	}
	nextSet := make(map[string]bool, len(next))
	for _, t := range next {
		nextSet[t] = true
	}
	for _, t := range next {
		if !prevSet[t] {
			added = append(added, t)
		}
	}
	for _, t := range previous {
		if !nextSet[t] {
			removed = append(removed, t)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
