package schema

// AuditsTable represents the 'audits' table.
type AuditsTable struct {
	Table              string
	ID                 string
	RecordID           string
	Namespace          string
	RecordKey          string
	Action             string
	Actor              string
	PreviousVersion    string
	Version            string
	Metadata           string
	PreviousMetadata   string
	Tags               string
	PreviousTags       string
	Owner              string
	PreviousOwner      string
	SchemaHash         string
	PreviousSchemaHash string
	CreatedAt          string
}

// Audits is the schema definition for the audits table.
var Audits = AuditsTable{
	Table:              "audits",
	ID:                 "id",
	RecordID:           "record_id",
	Namespace:          "namespace",
	RecordKey:          "record_key",
	Action:             "action",
	Actor:              "actor",
	PreviousVersion:    "previous_version",
	Version:            "version",
	Metadata:           "metadata",
	PreviousMetadata:   "previous_metadata",
	Tags:               "tags",
	PreviousTags:       "previous_tags",
	Owner:              "owner",
	PreviousOwner:      "previous_owner",
	SchemaHash:         "schema_hash",
	PreviousSchemaHash: "previous_schema_hash",
	CreatedAt:          "created_at",
}

func (t AuditsTable) Columns() []string {
	return []string{
		t.ID,
		t.RecordID,
		t.Namespace,
		t.RecordKey,
		t.Action,
		t.Actor,
		t.PreviousVersion,
		t.Version,
		t.Metadata,
		t.PreviousMetadata,
		t.Tags,
		t.PreviousTags,
		t.Owner,
		t.PreviousOwner,
		t.SchemaHash,
		t.PreviousSchemaHash,
		t.CreatedAt,
	}
}
