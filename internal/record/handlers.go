package record

import (
	"net/http"

	"github.com/apphub/metastore/internal/filter"
	"github.com/apphub/metastore/internal/identity"
	"github.com/apphub/metastore/internal/jsonvalue"
	"github.com/apphub/metastore/internal/platform/apperr"
	requestutil "github.com/apphub/metastore/internal/platform/request"
	"github.com/apphub/metastore/internal/platform/respond"
	"github.com/apphub/metastore/internal/platform/validate"
	"github.com/apphub/metastore/internal/searchpreset"
	"github.com/apphub/metastore/pkg/convert"
)

// Handlers wires the HTTP surface for /records onto a Service.
type Handlers struct {
	service *Service
	presets *searchpreset.Registry
}

// NewHandlers constructs the record HTTP handler set. presets may be nil,
// in which case POST /records/search rejects any request naming a preset.
func NewHandlers(service *Service, presets *searchpreset.Registry) *Handlers {
	return &Handlers{service: service, presets: presets}
}

// # Wire payloads

type recordPayload struct {
	Namespace       string         `json:"namespace"`
	Key             string         `json:"key"`
	Metadata        map[string]any `json:"metadata"`
	Tags            []string       `json:"tags"`
	Owner           *string        `json:"owner"`
	SchemaHash      *string        `json:"schemaHash"`
	ExpectedVersion *int           `json:"expectedVersion"`
}

type tagPatchPayload struct {
	Set    []string `json:"set"`
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

type patchPayload struct {
	Metadata        map[string]any   `json:"metadata"`
	MetadataUnset   []string         `json:"metadataUnset"`
	Tags            *tagPatchPayload `json:"tags"`
	Owner           *string          `json:"owner"`
	OwnerSet        bool             `json:"-"`
	SchemaHash      *string          `json:"schemaHash"`
	SchemaHashSet   bool             `json:"-"`
	ExpectedVersion *int             `json:"expectedVersion"`
}

type restorePayload struct {
	AuditID         *string `json:"auditId"`
	Version         *int    `json:"version"`
	ExpectedVersion *int    `json:"expectedVersion"`
}

type searchPayload struct {
	Namespace      string   `json:"namespace"`
	IncludeDeleted bool     `json:"includeDeleted"`
	Preset         string   `json:"preset"`
	Filter         any      `json:"filter"`
	Query          string   `json:"query"`
	Sort           []string `json:"sort"`
	Limit          int      `json:"limit"`
	Offset         int      `json:"offset"`
	Projection     []string `json:"projection"`
	Summary        bool     `json:"summary"`
}

type bulkOperationPayload struct {
	Type            string         `json:"type"`
	Namespace       string         `json:"namespace"`
	Key             string         `json:"key"`
	Metadata        map[string]any `json:"metadata"`
	Tags            []string       `json:"tags"`
	Owner           *string        `json:"owner"`
	SchemaHash      *string        `json:"schemaHash"`
	ExpectedVersion *int           `json:"expectedVersion"`
}

type bulkPayload struct {
	Operations       []bulkOperationPayload `json:"operations"`
	ContinueOnError  bool                   `json:"continueOnError"`
}

func validateNamespaceAndKey(namespace, key string) error {
	v := validate.Validator{}
	v.Namespace("namespace", namespace)
	v.Key("key", key)
	if v.HasErrors() {
		return v.Err()
	}
	return nil
}

func toSnapshot(p recordPayload) Snapshot {
	return Snapshot{Metadata: p.Metadata, Tags: p.Tags, Owner: p.Owner, SchemaHash: p.SchemaHash}
}

// Create handles POST /records.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var payload recordPayload
	if err := requestutil.DecodeJSON(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := validateNamespaceAndKey(payload.Namespace, payload.Key); err != nil {
		respond.Error(w, r, err)
		return
	}
	claims, err := requestutil.RequireNamespaceAccess(r, identity.ScopeWrite, payload.Namespace)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	result, err := h.service.Create(r.Context(), payload.Namespace, payload.Key, claims.Subject, toSnapshot(payload))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respond.Record(w, status, result.Record, map[string]any{"created": result.Created})
}

// Fetch handles GET /records/{ns}/{key}.
func (h *Handlers) Fetch(w http.ResponseWriter, r *http.Request) {
	namespace := requestutil.Param(r, "ns")
	key := requestutil.Param(r, "key")
	if _, err := requestutil.RequireNamespaceAccess(r, identity.ScopeRead, namespace); err != nil {
		respond.Error(w, r, err)
		return
	}
	includeDeleted := r.URL.Query().Get("includeDeleted") == "true"

	rec, err := h.service.Fetch(r.Context(), namespace, key, includeDeleted)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Record(w, http.StatusOK, rec, nil)
}

// Upsert handles PUT /records/{ns}/{key}.
func (h *Handlers) Upsert(w http.ResponseWriter, r *http.Request) {
	namespace := requestutil.Param(r, "ns")
	key := requestutil.Param(r, "key")
	var payload recordPayload
	if err := requestutil.DecodeJSON(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	claims, err := requestutil.RequireNamespaceAccess(r, identity.ScopeWrite, namespace)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	result, err := h.service.Upsert(r.Context(), namespace, key, claims.Subject, toSnapshot(payload), payload.ExpectedVersion)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respond.Record(w, status, result.Record, map[string]any{"created": result.Created})
}

// Patch handles PATCH /records/{ns}/{key}.
func (h *Handlers) Patch(w http.ResponseWriter, r *http.Request) {
	namespace := requestutil.Param(r, "ns")
	key := requestutil.Param(r, "key")

	var raw map[string]any
	if err := requestutil.DecodeJSON(r, &raw); err != nil {
		respond.Error(w, r, err)
		return
	}
	input, expectedVersion, err := parsePatchInput(raw)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	claims, err := requestutil.RequireNamespaceAccess(r, identity.ScopeWrite, namespace)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	result, err := h.service.Patch(r.Context(), namespace, key, claims.Subject, input, expectedVersion)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Record(w, http.StatusOK, result.Record, nil)
}

func parsePatchInput(raw map[string]any) (PatchInput, *int, error) {
	input := PatchInput{}
	hasAny := false

	if metaPatch, ok := raw["metadata"].(map[string]any); ok {
		input.MetadataPatch = metaPatch
		hasAny = true
	}
	if unsetRaw, ok := raw["metadataUnset"].([]any); ok {
		for _, p := range unsetRaw {
			if s, ok := p.(string); ok {
				input.MetadataUnset = append(input.MetadataUnset, s)
			}
		}
		if len(input.MetadataUnset) > 0 {
			hasAny = true
		}
	}
	if tagsRaw, ok := raw["tags"].(map[string]any); ok {
		tp := &TagPatch{}
		if setRaw, ok := tagsRaw["set"].([]any); ok {
			tp.Set = toStringSlice(setRaw)
		}
		if addRaw, ok := tagsRaw["add"].([]any); ok {
			tp.Add = toStringSlice(addRaw)
		}
		if removeRaw, ok := tagsRaw["remove"].([]any); ok {
			tp.Remove = toStringSlice(removeRaw)
		}
		input.Tags = tp
		hasAny = true
	}
	if _, ok := raw["owner"]; ok {
		input.OwnerSet = true
		hasAny = true
		if s, ok := raw["owner"].(string); ok {
			input.Owner = &s
		}
	}
	if _, ok := raw["schemaHash"]; ok {
		input.SchemaHashSet = true
		hasAny = true
		if s, ok := raw["schemaHash"].(string); ok {
			input.SchemaHash = &s
		}
	}
	if !hasAny {
		return PatchInput{}, nil, apperr.BadRequest("patch requires at least one of metadata, metadataUnset, tags, owner, schemaHash")
	}

	var expectedVersion *int
	if v, ok := raw["expectedVersion"]; ok {
		if f, ok := v.(float64); ok {
			iv := int(f)
			expectedVersion = &iv
		}
	}
	return input, expectedVersion, nil
}

func toStringSlice(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SoftDelete handles DELETE /records/{ns}/{key}.
func (h *Handlers) SoftDelete(w http.ResponseWriter, r *http.Request) {
	namespace := requestutil.Param(r, "ns")
	key := requestutil.Param(r, "key")
	claims, err := requestutil.RequireNamespaceAccess(r, identity.ScopeDelete, namespace)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	expectedVersion := parseExpectedVersionQuery(r)

	result, err := h.service.SoftDelete(r.Context(), namespace, key, claims.Subject, expectedVersion)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Record(w, http.StatusOK, result.Record, map[string]any{"deleted": true, "idempotent": !result.Mutated})
}

// Purge handles DELETE /records/{ns}/{key}/purge.
func (h *Handlers) Purge(w http.ResponseWriter, r *http.Request) {
	namespace := requestutil.Param(r, "ns")
	key := requestutil.Param(r, "key")
	if _, err := requestutil.RequireNamespaceAccess(r, identity.ScopeAdmin, namespace); err != nil {
		respond.Error(w, r, err)
		return
	}
	expectedVersion := parseExpectedVersionQuery(r)

	rec, err := h.service.HardDelete(r.Context(), namespace, key, expectedVersion)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Record(w, http.StatusOK, rec, map[string]any{"purged": true})
}

// Restore handles POST /records/{ns}/{key}/restore.
func (h *Handlers) Restore(w http.ResponseWriter, r *http.Request) {
	namespace := requestutil.Param(r, "ns")
	key := requestutil.Param(r, "key")
	var payload restorePayload
	if err := requestutil.DecodeJSON(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	claims, err := requestutil.RequireNamespaceAccess(r, identity.ScopeWrite, namespace)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	rec, err := h.service.Restore(r.Context(), namespace, key, claims.Subject, RestoreInput{AuditID: payload.AuditID, Version: payload.Version}, payload.ExpectedVersion)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Record(w, http.StatusOK, rec, map[string]any{"restored": true})
}

// ListAudit handles GET /records/{ns}/{key}/audit.
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	namespace := requestutil.Param(r, "ns")
	key := requestutil.Param(r, "key")
	if _, err := requestutil.RequireNamespaceAccess(r, identity.ScopeRead, namespace); err != nil {
		respond.Error(w, r, err)
		return
	}
	limit, offset := parsePagination(r)

	entries, total, err := h.service.ListAudit(r.Context(), namespace, key, limit, offset)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Search(w, entries, total, limit, offset)
}

// DiffAudit handles GET /records/{ns}/{key}/audit/{id}/diff.
func (h *Handlers) DiffAudit(w http.ResponseWriter, r *http.Request) {
	namespace := requestutil.Param(r, "ns")
	key := requestutil.Param(r, "key")
	id := requestutil.Param(r, "id")
	if _, err := requestutil.RequireNamespaceAccess(r, identity.ScopeRead, namespace); err != nil {
		respond.Error(w, r, err)
		return
	}

	diff, err := h.service.AuditDiff(r.Context(), namespace, key, id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, diff)
}

// Search handles POST /records/search.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var payload searchPayload
	if err := requestutil.DecodeJSON(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	if payload.Namespace != "" {
		v := validate.Validator{}
		v.Namespace("namespace", payload.Namespace)
		if v.HasErrors() {
			respond.Error(w, r, v.Err())
			return
		}
	}
	claims, err := requestutil.RequireNamespaceAccess(r, identity.ScopeRead, payload.Namespace)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	node, err := h.resolveSearchFilter(payload, claims)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	sortFields, err := parseSortFields(payload.Sort)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	limit := clamp(payload.Limit, 1, 200, 50)
	offset := payload.Offset
	if offset < 0 {
		offset = 0
	}

	records, total, err := h.service.Search(r.Context(), SearchRequest{
		Namespace: payload.Namespace, IncludeDeleted: payload.IncludeDeleted,
		Filter: node, Sort: sortFields, Limit: limit, Offset: offset,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	projected, err := filter.ResolveProjection(payload.Projection, payload.Summary)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Search(w, projectRecords(records, projected), total, limit, offset)
}

// resolveSearchFilter combines an optional named preset with an explicit
// structured filter or query-string, AND-ing them together when both are
// present. A preset additionally requires its own configured scopes beyond
// the read scope record search already checked.
func (h *Handlers) resolveSearchFilter(payload searchPayload, claims *identity.Claims) (*filter.Node, error) {
	explicit, err := resolveExplicitFilter(payload)
	if err != nil {
		return nil, err
	}

	if payload.Preset == "" {
		return explicit, nil
	}
	preset, err := h.presets.Get(payload.Preset)
	if err != nil {
		return nil, err
	}
	for _, scope := range preset.RequiredScopes {
		if !claims.HasScope(scope) {
			return nil, apperr.Forbidden("missing required scope for preset " + payload.Preset + ": " + string(scope))
		}
	}
	if explicit == nil {
		return preset.Node, nil
	}
	return &filter.Node{Kind: filter.KindGroup, GroupOp: filter.GroupAnd, Filters: []*filter.Node{preset.Node, explicit}}, nil
}

func resolveExplicitFilter(payload searchPayload) (*filter.Node, error) {
	if payload.Filter != nil {
		return filter.ParseStructured(payload.Filter)
	}
	if payload.Query != "" {
		return filter.ParseQueryString(payload.Query)
	}
	return nil, nil
}

func parseSortFields(raw []string) ([]filter.SortField, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	fields := make([]filter.SortField, 0, len(raw))
	for _, s := range raw {
		descending := false
		field := s
		if len(field) > 0 && field[0] == '-' {
			descending = true
			field = field[1:]
		}
		fields = append(fields, filter.SortField{Field: field, Descending: descending})
	}
	if err := filter.ValidateSortFields(fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func projectRecords(records []Record, paths []string) []any {
	out := make([]any, len(records))
	for i, rec := range records {
		if len(paths) == 0 {
			out[i] = rec
			continue
		}
		projected := rec
		projected.Metadata = jsonvalue.ExtractPaths(rec.Metadata, paths)
		out[i] = projected
	}
	return out
}

// Bulk handles POST /records/bulk.
func (h *Handlers) Bulk(w http.ResponseWriter, r *http.Request) {
	var payload bulkPayload
	if err := requestutil.DecodeJSON(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	claims, err := requestutil.RequireScope(r, identity.ScopeWrite)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	operations := make([]BulkOperation, 0, len(payload.Operations))
	for _, opPayload := range payload.Operations {
		opType, err := NormalizeBulkOpType(opPayload.Type)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if !claims.CanAccessNamespace(opPayload.Namespace) {
			respond.Error(w, r, apperr.Forbidden("namespace not permitted for this token"))
			return
		}
		if opType == BulkDelete && !claims.HasScope(identity.ScopeDelete) {
			respond.Error(w, r, apperr.Forbidden("missing required scope: "+string(identity.ScopeDelete)))
			return
		}
		operations = append(operations, BulkOperation{
			Type: opType, Namespace: opPayload.Namespace, Key: opPayload.Key,
			Snapshot:        Snapshot{Metadata: opPayload.Metadata, Tags: opPayload.Tags, Owner: opPayload.Owner, SchemaHash: opPayload.SchemaHash},
			ExpectedVersion: opPayload.ExpectedVersion,
		})
	}

	outcomes := h.service.Bulk(r.Context(), claims.Subject, operations, payload.ContinueOnError)
	respond.Operations(w, outcomes)
}

func parseExpectedVersionQuery(r *http.Request) *int {
	raw := r.URL.Query().Get("expectedVersion")
	if raw == "" {
		return nil
	}
	v := convert.ToIntD(raw, 0)
	return &v
}

func parsePagination(r *http.Request) (int, int) {
	limit := clamp(convert.ToIntD(r.URL.Query().Get("limit"), 50), 1, 200, 50)
	offset := convert.ToIntD(r.URL.Query().Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func clamp(value, min, max, fallback int) int {
	if value <= 0 {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
