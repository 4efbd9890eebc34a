package filestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConsistencyStateFor_DefaultsFromState(t *testing.T) {
	e := Event{Event: string(EventNodeCreated), State: "active"}
	assert.Equal(t, "active", consistencyStateFor(e))
}

func TestConsistencyStateFor_ReconciledOverrideWins(t *testing.T) {
	e := Event{Event: string(EventNodeReconciled), State: "active", ConsistencyState: "inconsistent"}
	assert.Equal(t, "inconsistent", consistencyStateFor(e))
}

func TestConsistencyStateFor_NonReconciledIgnoresExplicitOverride(t *testing.T) {
	e := Event{Event: string(EventNodeUpdated), State: "active", ConsistencyState: "inconsistent"}
	assert.Equal(t, "active", consistencyStateFor(e))
}

func TestFilestoreEnvelope_CarriesAllFields(t *testing.T) {
	observed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Event{
		Event: string(EventNodeCreated), NodeID: "n1", BackendMountID: "mount-1", Path: "/a/b",
		Kind: "file", State: "active", ParentID: "p1", Version: 3, SizeBytes: 1024,
		Checksum: "sha", ContentHash: "hash", ObservedAt: observed, JournalID: "j1",
		Command: "create", IdempotencyKey: "idem", Principal: "svc",
	}
	envelope := filestoreEnvelope(e, "previous")

	assert.Equal(t, "mount-1", envelope["backendMountId"])
	assert.Equal(t, "/a/b", envelope["path"])
	assert.Equal(t, "active", envelope["consistencyState"])
	assert.Equal(t, "previous", envelope["previousState"])
	assert.Equal(t, observed, envelope["observedAt"])
}
