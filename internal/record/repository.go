package record

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apphub/metastore/internal/filter"
	"github.com/apphub/metastore/internal/jsonvalue"
	"github.com/apphub/metastore/internal/platform/apperr"
	"github.com/apphub/metastore/internal/platform/database/schema"
	"github.com/apphub/metastore/internal/platform/dberr"
	"github.com/apphub/metastore/pkg/uuidv7"
)

// UpsertResult reports whether the row was freshly inserted.
type UpsertResult struct {
	Record  Record
	Created bool
}

// MutateResult reports whether a delete/restore actually changed the row.
type MutateResult struct {
	Record  Record
	Mutated bool
}

// SearchRequest is the resolved, validated parameters of a search call.
type SearchRequest struct {
	Namespace      string
	IncludeDeleted bool
	Filter         *filter.Node
	Sort           []filter.SortField
	Limit          int
	Offset         int
}

// Repository persists records and their audit trail in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed record repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a single transaction, rolling back on any error or
// panic and committing otherwise. Callers use this to wrap one mutating
// repository call, or several for bulk atomic mode.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperr.Internal(fmt.Errorf("record: begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal(fmt.Errorf("record: commit transaction: %w", err))
	}
	return nil
}

// lockRow selects the current row FOR UPDATE, including soft-deleted rows.
// Returns (nil, nil) if no row exists.
func (r *Repository) lockRow(ctx context.Context, tx pgx.Tx, namespace, key string) (*Record, error) {
	t := schema.Records
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 AND %s = $2 FOR UPDATE`,
		strings.Join(t.Columns(), ", "), t.Table, t.Namespace, t.RecordKey,
	)
	row := tx.QueryRow(ctx, query, namespace, key)
	rec, err := scanRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, dberr.Wrap(err, "record")
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var metadataRaw []byte
	err := row.Scan(
		&rec.ID, &rec.Namespace, &rec.Key, &metadataRaw, &rec.Tags, &rec.Owner, &rec.SchemaHash,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt, &rec.CreatedBy, &rec.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadataRaw, &rec.Metadata); err != nil {
		return nil, apperr.Internal(fmt.Errorf("record: decode metadata: %w", err))
	}
	return &rec, nil
}

// Create inserts a new record, doing nothing on a (namespace, key) conflict.
// If inserted, writes a create audit entry and returns Created=true. If a
// row already existed (live or soft-deleted), re-selects and returns
// Created=false; the caller decides what to do with an existing row.
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, snapshot Snapshot, namespace, key, actor string) (UpsertResult, error) {
	t := schema.Records
	id := uuidv7.New()
	metadataJSON, err := json.Marshal(snapshot.Metadata)
	if err != nil {
		return UpsertResult{}, apperr.BadRequest("invalid metadata payload")
	}
	tags := normalizeTags(snapshot.Tags)

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, NOW(), NOW(), $8, $8)
		ON CONFLICT (%s, %s) DO NOTHING
		RETURNING %s`,
		t.Table, t.ID, t.Namespace, t.RecordKey, t.Metadata, t.Tags, t.Owner, t.SchemaHash, t.Version,
		t.CreatedAt, t.UpdatedAt, t.CreatedBy, t.UpdatedBy,
		t.Namespace, t.RecordKey,
		strings.Join(t.Columns(), ", "),
	)
	row := tx.QueryRow(ctx, query, id, namespace, key, metadataJSON, tags, snapshot.Owner, snapshot.SchemaHash, actor)
	rec, err := scanRecord(row)
	if err == nil {
		if auditErr := r.writeAudit(ctx, tx, *rec, Record{}, ActionCreate, actor); auditErr != nil {
			return UpsertResult{}, auditErr
		}
		return UpsertResult{Record: *rec, Created: true}, nil
	}
	if err != pgx.ErrNoRows {
		return UpsertResult{}, dberr.Wrap(err, "record")
	}

	existing, err := r.lockRow(ctx, tx, namespace, key)
	if err != nil {
		return UpsertResult{}, err
	}
	if existing == nil {
		return UpsertResult{}, apperr.UpsertFailed(fmt.Errorf("record: insert produced no row and none found on re-select"))
	}
	return UpsertResult{Record: *existing, Created: false}, nil
}

// Upsert fully replaces metadata/tags/owner/schemaHash. Delegates to Create
// when no row exists.
func (r *Repository) Upsert(ctx context.Context, tx pgx.Tx, snapshot Snapshot, namespace, key, actor string, expectedVersion *int) (UpsertResult, error) {
	existing, err := r.lockRow(ctx, tx, namespace, key)
	if err != nil {
		return UpsertResult{}, err
	}
	if existing == nil {
		return r.Create(ctx, tx, snapshot, namespace, key, actor)
	}
	if expectedVersion != nil && *expectedVersion != existing.Version {
		return UpsertResult{}, apperr.VersionConflict("expected version does not match current version")
	}

	t := schema.Records
	metadataJSON, err := json.Marshal(snapshot.Metadata)
	if err != nil {
		return UpsertResult{}, apperr.BadRequest("invalid metadata payload")
	}
	tags := normalizeTags(snapshot.Tags)

	query := fmt.Sprintf(`
		UPDATE %s SET %s = $1, %s = $2, %s = $3, %s = $4, %s = NOW(), %s = $5, %s = %s + 1, %s = NULL
		WHERE %s = $6 AND %s = $7
		RETURNING %s`,
		t.Table, t.Metadata, t.Tags, t.Owner, t.SchemaHash, t.UpdatedAt, t.UpdatedBy, t.Version, t.Version, t.DeletedAt,
		t.Namespace, t.RecordKey,
		strings.Join(t.Columns(), ", "),
	)
	row := tx.QueryRow(ctx, query, metadataJSON, tags, snapshot.Owner, snapshot.SchemaHash, actor, namespace, key)
	updated, err := scanRecord(row)
	if err != nil {
		return UpsertResult{}, dberr.Wrap(err, "record")
	}

	action := ActionUpdate
	if existing.DeletedAt != nil {
		action = ActionRestore
	}
	if err := r.writeAudit(ctx, tx, *updated, *existing, action, actor); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Record: *updated, Created: false}, nil
}

// PatchInput carries the optional, independently-presence-tracked fields of
// a partial update.
type PatchInput struct {
	MetadataPatch  map[string]any
	MetadataUnset  []string
	Tags           *TagPatch
	OwnerSet       bool
	Owner          *string
	SchemaHashSet  bool
	SchemaHash     *string
}

// Patch performs a partial update, merging metadata, applying the tag-patch
// algebra, and overwriting owner/schemaHash only when present in the input.
func (r *Repository) Patch(ctx context.Context, tx pgx.Tx, namespace, key, actor string, input PatchInput, expectedVersion *int) (UpsertResult, error) {
	existing, err := r.lockRow(ctx, tx, namespace, key)
	if err != nil {
		return UpsertResult{}, err
	}
	if existing == nil {
		return UpsertResult{}, apperr.NotFound("record")
	}
	if existing.DeletedAt != nil {
		return UpsertResult{}, apperr.RecordDeleted("cannot patch a soft-deleted record")
	}
	if expectedVersion != nil && *expectedVersion != existing.Version {
		return UpsertResult{}, apperr.VersionConflict("expected version does not match current version")
	}

	metadata := existing.Metadata
	if input.MetadataPatch != nil {
		metadata = jsonvalue.DeepMerge(metadata, input.MetadataPatch)
	}
	if len(input.MetadataUnset) > 0 {
		metadata = jsonvalue.Unset(metadata, input.MetadataUnset)
	}

	tags := existing.Tags
	if input.Tags != nil {
		tags = input.Tags.Apply(existing.Tags)
	}

	owner := existing.Owner
	if input.OwnerSet {
		owner = input.Owner
	}
	schemaHash := existing.SchemaHash
	if input.SchemaHashSet {
		schemaHash = input.SchemaHash
	}

	t := schema.Records
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return UpsertResult{}, apperr.BadRequest("invalid metadata payload")
	}
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $1, %s = $2, %s = $3, %s = $4, %s = NOW(), %s = $5, %s = %s + 1
		WHERE %s = $6 AND %s = $7
		RETURNING %s`,
		t.Table, t.Metadata, t.Tags, t.Owner, t.SchemaHash, t.UpdatedAt, t.UpdatedBy, t.Version, t.Version,
		t.Namespace, t.RecordKey,
		strings.Join(t.Columns(), ", "),
	)
	row := tx.QueryRow(ctx, query, metadataJSON, tags, owner, schemaHash, actor, namespace, key)
	updated, err := scanRecord(row)
	if err != nil {
		return UpsertResult{}, dberr.Wrap(err, "record")
	}
	if err := r.writeAudit(ctx, tx, *updated, *existing, ActionUpdate, actor); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Record: *updated, Created: false}, nil
}

// SoftDelete marks the row deleted. Idempotent: a second call against an
// already soft-deleted row returns Mutated=false without writing an audit
// entry or changing version/deletedAt.
func (r *Repository) SoftDelete(ctx context.Context, tx pgx.Tx, namespace, key, actor string, expectedVersion *int) (MutateResult, error) {
	existing, err := r.lockRow(ctx, tx, namespace, key)
	if err != nil {
		return MutateResult{}, err
	}
	if existing == nil {
		return MutateResult{}, apperr.NotFound("record")
	}
	if existing.DeletedAt != nil {
		return MutateResult{Record: *existing, Mutated: false}, nil
	}
	if expectedVersion != nil && *expectedVersion != existing.Version {
		return MutateResult{}, apperr.VersionConflict("expected version does not match current version")
	}

	t := schema.Records
	query := fmt.Sprintf(`
		UPDATE %s SET %s = NOW(), %s = NOW(), %s = $1, %s = %s + 1
		WHERE %s = $2 AND %s = $3
		RETURNING %s`,
		t.Table, t.DeletedAt, t.UpdatedAt, t.UpdatedBy, t.Version, t.Version,
		t.Namespace, t.RecordKey,
		strings.Join(t.Columns(), ", "),
	)
	row := tx.QueryRow(ctx, query, actor, namespace, key)
	updated, err := scanRecord(row)
	if err != nil {
		return MutateResult{}, dberr.Wrap(err, "record")
	}
	if err := r.writeAudit(ctx, tx, *updated, *existing, ActionDelete, actor); err != nil {
		return MutateResult{}, err
	}
	return MutateResult{Record: *updated, Mutated: true}, nil
}

// HardDelete (purge) removes the record and all of its audit history.
// Returns the pre-deletion snapshot.
func (r *Repository) HardDelete(ctx context.Context, tx pgx.Tx, namespace, key string, expectedVersion *int) (Record, error) {
	existing, err := r.lockRow(ctx, tx, namespace, key)
	if err != nil {
		return Record{}, err
	}
	if existing == nil {
		return Record{}, apperr.NotFound("record")
	}
	if expectedVersion != nil && *expectedVersion != existing.Version {
		return Record{}, apperr.VersionConflict("expected version does not match current version")
	}

	at := schema.Audits
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2", at.Table, at.Namespace, at.RecordKey), namespace, key); err != nil {
		return Record{}, dberr.Wrap(err, "record")
	}

	rt := schema.Records
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2", rt.Table, rt.Namespace, rt.RecordKey), namespace, key); err != nil {
		return Record{}, dberr.Wrap(err, "record")
	}
	return *existing, nil
}

// RestoreFromAudit overwrites the current row with snapshot, clears
// deletedAt, increments version, and writes a restore audit entry.
func (r *Repository) RestoreFromAudit(ctx context.Context, tx pgx.Tx, namespace, key, actor string, snapshot Snapshot, expectedVersion *int) (Record, error) {
	existing, err := r.lockRow(ctx, tx, namespace, key)
	if err != nil {
		return Record{}, err
	}
	if existing == nil {
		return Record{}, apperr.NotFound("record")
	}
	if expectedVersion != nil && *expectedVersion != existing.Version {
		return Record{}, apperr.VersionConflict("expected version does not match current version")
	}

	t := schema.Records
	metadataJSON, err := json.Marshal(snapshot.Metadata)
	if err != nil {
		return Record{}, apperr.BadRequest("invalid metadata payload")
	}
	tags := normalizeTags(snapshot.Tags)
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $1, %s = $2, %s = $3, %s = $4, %s = NOW(), %s = $5, %s = %s + 1, %s = NULL
		WHERE %s = $6 AND %s = $7
		RETURNING %s`,
		t.Table, t.Metadata, t.Tags, t.Owner, t.SchemaHash, t.UpdatedAt, t.UpdatedBy, t.Version, t.Version, t.DeletedAt,
		t.Namespace, t.RecordKey,
		strings.Join(t.Columns(), ", "),
	)
	row := tx.QueryRow(ctx, query, metadataJSON, tags, snapshot.Owner, snapshot.SchemaHash, actor, namespace, key)
	updated, err := scanRecord(row)
	if err != nil {
		return Record{}, dberr.Wrap(err, "record")
	}
	if err := r.writeAudit(ctx, tx, *updated, *existing, ActionRestore, actor); err != nil {
		return Record{}, err
	}
	return *updated, nil
}

// Fetch performs a point lookup by (namespace, key); includeDeleted toggles
// whether a soft-deleted row is visible.
func (r *Repository) Fetch(ctx context.Context, namespace, key string, includeDeleted bool) (Record, error) {
	t := schema.Records
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = $2`, strings.Join(t.Columns(), ", "), t.Table, t.Namespace, t.RecordKey)
	if !includeDeleted {
		query += fmt.Sprintf(" AND %s IS NULL", t.DeletedAt)
	}
	row := r.pool.QueryRow(ctx, query, namespace, key)
	rec, err := scanRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Record{}, apperr.NotFound("record")
		}
		return Record{}, dberr.Wrap(err, "record")
	}
	return *rec, nil
}

// Search executes a filtered, sorted, paginated query, returning the
// matching records and the total row count obtained via a window function.
func (r *Repository) Search(ctx context.Context, req SearchRequest) ([]Record, int, error) {
	t := schema.Records
	var builder strings.Builder
	args := []any{req.Namespace}
	builder.WriteString(fmt.Sprintf(`SELECT %s, COUNT(*) OVER() AS total_count FROM %s WHERE %s = $1`,
		strings.Join(t.Columns(), ", "), t.Table, t.Namespace))
	if !req.IncludeDeleted {
		builder.WriteString(fmt.Sprintf(" AND %s IS NULL", t.DeletedAt))
	}

	nextArg := len(args) + 1
	compiled, err := filter.CompileSQL(req.Filter, nextArg)
	if err != nil {
		return nil, 0, err
	}
	builder.WriteString(" AND (")
	builder.WriteString(compiled.SQL)
	builder.WriteString(")")
	args = append(args, compiled.Args...)

	builder.WriteString(" ORDER BY ")
	builder.WriteString(filter.CompileSort(req.Sort))

	limitArg := len(args) + 1
	offsetArg := len(args) + 2
	builder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", limitArg, offsetArg))
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "record")
	}
	defer rows.Close()

	var records []Record
	total := 0
	for rows.Next() {
		var rec Record
		var metadataRaw []byte
		if err := rows.Scan(
			&rec.ID, &rec.Namespace, &rec.Key, &metadataRaw, &rec.Tags, &rec.Owner, &rec.SchemaHash,
			&rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt, &rec.CreatedBy, &rec.UpdatedBy, &total,
		); err != nil {
			return nil, 0, dberr.Wrap(err, "record")
		}
		if err := json.Unmarshal(metadataRaw, &rec.Metadata); err != nil {
			return nil, 0, apperr.Internal(fmt.Errorf("record: decode metadata: %w", err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "record")
	}
	return records, total, nil
}

// writeAudit inserts an audit row capturing both sides of a mutation.
func (r *Repository) writeAudit(ctx context.Context, tx pgx.Tx, next Record, previous Record, action Action, actor string) error {
	at := schema.Audits
	id := uuidv7.New()
	nextMetaJSON, err := json.Marshal(next.Metadata)
	if err != nil {
		return apperr.Internal(err)
	}
	var prevMetaJSON []byte
	if previous.Metadata != nil {
		prevMetaJSON, err = json.Marshal(previous.Metadata)
		if err != nil {
			return apperr.Internal(err)
		}
	} else {
		prevMetaJSON = []byte("{}")
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())`,
		at.Table,
		at.ID, at.RecordID, at.Namespace, at.RecordKey, at.Action, at.Actor,
		at.PreviousVersion, at.Version, at.Metadata, at.PreviousMetadata,
		at.Tags, at.PreviousTags, at.Owner, at.PreviousOwner, at.SchemaHash, at.PreviousSchemaHash, at.CreatedAt,
	)
	_, err = tx.Exec(ctx, query,
		id, next.ID, next.Namespace, next.Key, string(action), actor,
		previous.Version, next.Version, nextMetaJSON, prevMetaJSON,
		next.Tags, previous.Tags, next.Owner, previous.Owner, next.SchemaHash, previous.SchemaHash,
	)
	if err != nil {
		return dberr.Wrap(err, "audit")
	}
	return nil
}
