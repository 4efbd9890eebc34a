package schema

// SchemaDefinitionsTable represents the 'schema_definitions' registry table.
type SchemaDefinitionsTable struct {
	Table       string
	SchemaHash  string
	Name        string
	Description string
	Version     string
	Fields      string
	Metadata    string
	CreatedAt   string
	UpdatedAt   string
}

// SchemaDefinitions is the schema definition for the schema_definitions table.
var SchemaDefinitions = SchemaDefinitionsTable{
	Table:       "schema_definitions",
	SchemaHash:  "schema_hash",
	Name:        "name",
	Description: "description",
	Version:     "version",
	Fields:      "fields",
	Metadata:    "metadata",
	CreatedAt:   "created_at",
	UpdatedAt:   "updated_at",
}

func (t SchemaDefinitionsTable) Columns() []string {
	return []string{
		t.SchemaHash,
		t.Name,
		t.Description,
		t.Version,
		t.Fields,
		t.Metadata,
		t.CreatedAt,
		t.UpdatedAt,
	}
}
