// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package filestore reconciles an external filestore's node lifecycle into a
dedicated namespace. A singleton consumer either subscribes to an external
Redis Pub/Sub channel or accepts events injected in-process (inline/test
mode), processing them strictly sequentially through a single serial queue
so a failure on one event never causes another to be skipped.
*/
package filestore

import "time"

// EventKind is the external filestore event's discriminator.
type EventKind string

const (
	EventNodeCreated    EventKind = "node.created"
	EventNodeUpdated    EventKind = "node.updated"
	EventNodeReconciled EventKind = "node.reconciled"
	EventNodeMissing    EventKind = "node.missing"
	EventNodeDeleted    EventKind = "node.deleted"
)

// Event is the wire shape of one inbound filestore lifecycle event, as
// published by the external filestore onto the shared Pub/Sub channel.
type Event struct {
	Event                string         `json:"event"`
	NodeID               string         `json:"nodeId"`
	BackendMountID       string         `json:"backendMountId"`
	Path                 string         `json:"path"`
	Kind                 string         `json:"kind"`
	State                string         `json:"state"`
	ParentID             string         `json:"parentId"`
	Version              int            `json:"version"`
	SizeBytes            int64          `json:"sizeBytes"`
	Checksum             string         `json:"checksum"`
	ContentHash          string         `json:"contentHash"`
	NodeMetadata         map[string]any `json:"nodeMetadata"`
	ObservedAt           time.Time      `json:"observedAt"`
	JournalID            string         `json:"journalId"`
	Command              string         `json:"command"`
	IdempotencyKey       string         `json:"idempotencyKey"`
	Principal            string         `json:"principal"`
	ConsistencyState     string         `json:"consistencyState"`
	ReconciliationReason string         `json:"reconciliationReason"`
}

// consistencyStateFor resolves the effective consistencyState metadata
// field. It defaults from the event's State; for node.reconciled events an
// explicit ConsistencyState overrides that default.
func consistencyStateFor(e Event) string {
	if e.Event == string(EventNodeReconciled) && e.ConsistencyState != "" {
		return e.ConsistencyState
	}
	return e.State
}

// filestoreEnvelope builds the `filestore` metadata sub-object merged onto
// the record's existing metadata on upsert.
func filestoreEnvelope(e Event, previousState string) map[string]any {
	now := time.Now()
	return map[string]any{
		"backendMountId":       e.BackendMountID,
		"path":                 e.Path,
		"kind":                 e.Kind,
		"state":                e.State,
		"parentId":             e.ParentID,
		"version":              e.Version,
		"sizeBytes":            e.SizeBytes,
		"checksum":             e.Checksum,
		"contentHash":          e.ContentHash,
		"nodeMetadata":         e.NodeMetadata,
		"observedAt":           e.ObservedAt,
		"journalId":            e.JournalID,
		"command":              e.Command,
		"idempotencyKey":       e.IdempotencyKey,
		"principal":            e.Principal,
		"consistencyState":     consistencyStateFor(e),
		"consistencyCheckedAt": now,
		"lastReconciledAt":     now,
		"reconciliationReason": e.ReconciliationReason,
		"previousState":        previousState,
	}
}
