package schema

// RecordsTable represents the 'records' table.
type RecordsTable struct {
	Table      string
	ID         string
	Namespace  string
	RecordKey  string
	Metadata   string
	Tags       string
	Owner      string
	SchemaHash string
	Version    string
	CreatedAt  string
	UpdatedAt  string
	DeletedAt  string
	CreatedBy  string
	UpdatedBy  string
}

// Records is the schema definition for the records table.
var Records = RecordsTable{
	Table:      "records",
	ID:         "id",
	Namespace:  "namespace",
	RecordKey:  "record_key",
	Metadata:   "metadata",
	Tags:       "tags",
	Owner:      "owner",
	SchemaHash: "schema_hash",
	Version:    "version",
	CreatedAt:  "created_at",
	UpdatedAt:  "updated_at",
	DeletedAt:  "deleted_at",
	CreatedBy:  "created_by",
	UpdatedBy:  "updated_by",
}

func (t RecordsTable) Columns() []string {
	return []string{
		t.ID,
		t.Namespace,
		t.RecordKey,
		t.Metadata,
		t.Tags,
		t.Owner,
		t.SchemaHash,
		t.Version,
		t.CreatedAt,
		t.UpdatedAt,
		t.DeletedAt,
		t.CreatedBy,
		t.UpdatedBy,
	}
}
