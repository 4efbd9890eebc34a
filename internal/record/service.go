package record

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/apphub/metastore/internal/platform/apperr"
)

// StreamEvent is the lifecycle event shape fanned out to the stream hub.
type StreamEvent struct {
	Action     Action     `json:"action"`
	Namespace  string     `json:"namespace"`
	Key        string     `json:"key"`
	Version    int        `json:"version"`
	OccurredAt time.Time  `json:"occurredAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	Actor      string     `json:"actor"`
	Mode       string     `json:"mode,omitempty"`
}

// BusPayload is the external-event-bus shape published best-effort.
type BusPayload struct {
	Namespace    string   `json:"namespace"`
	Key          string   `json:"key"`
	Actor        string   `json:"actor"`
	Record       Record   `json:"record"`
	Mode         string   `json:"mode,omitempty"`
	RestoredFrom string   `json:"restoredFrom,omitempty"`
}

// StreamPublisher fans out lifecycle events to in-process subscribers.
type StreamPublisher interface {
	Publish(event StreamEvent)
}

// BusPublisher fans lifecycle events out to an external event bus,
// best-effort; failures must be logged by the implementation, never
// returned to the caller.
type BusPublisher interface {
	Publish(ctx context.Context, payload BusPayload)
}

// Service sits between HTTP and the repository: it shapes transactions,
// reports idempotency, and emits stream/bus events only after commit.
type Service struct {
	repo   *Repository
	audits *AuditReader
	stream StreamPublisher
	bus    BusPublisher
	logger *slog.Logger
}

// NewService constructs a record service.
func NewService(repo *Repository, audits *AuditReader, stream StreamPublisher, bus BusPublisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, audits: audits, stream: stream, bus: bus, logger: logger}
}

// pendingEvent couples a stream event with its bus payload so both fire
// together, only once the owning transaction has committed.
type pendingEvent struct {
	stream StreamEvent
	bus    BusPayload
}

func (s *Service) emit(ctx context.Context, events []pendingEvent) {
	for _, e := range events {
		if s.stream != nil {
			s.stream.Publish(e.stream)
		}
		if s.bus != nil {
			s.bus.Publish(ctx, e.bus)
		}
	}
}

func mutationEvent(rec Record, action Action, mode string) pendingEvent {
	return pendingEvent{
		stream: StreamEvent{
			Action: action, Namespace: rec.Namespace, Key: rec.Key, Version: rec.Version,
			OccurredAt: rec.UpdatedAt, UpdatedAt: rec.UpdatedAt, DeletedAt: rec.DeletedAt,
			Actor: rec.UpdatedBy, Mode: mode,
		},
		bus: BusPayload{Namespace: rec.Namespace, Key: rec.Key, Actor: rec.UpdatedBy, Record: rec, Mode: mode},
	}
}

// Create creates a record, reporting {created} per spec.md's deliberately
// preserved live-conflict silence: an existing live row yields
// {created:false} without error; an existing soft-deleted row is likewise
// returned as-is for the caller to restore or upsert explicitly.
func (s *Service) Create(ctx context.Context, namespace, key, actor string, snapshot Snapshot) (UpsertResult, error) {
	var result UpsertResult
	var events []pendingEvent
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		r, err := s.repo.Create(ctx, tx, snapshot, namespace, key, actor)
		if err != nil {
			return err
		}
		result = r
		if r.Created {
			events = append(events, mutationEvent(r.Record, ActionCreate, ""))
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	s.emit(ctx, events)
	return result, nil
}

// Upsert fully replaces a record, delegating to Create when absent.
func (s *Service) Upsert(ctx context.Context, namespace, key, actor string, snapshot Snapshot, expectedVersion *int) (UpsertResult, error) {
	var result UpsertResult
	var events []pendingEvent
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		r, err := s.repo.Upsert(ctx, tx, snapshot, namespace, key, actor, expectedVersion)
		if err != nil {
			return err
		}
		result = r
		action := ActionUpdate
		if r.Created {
			action = ActionCreate
		}
		events = append(events, mutationEvent(r.Record, action, ""))
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	s.emit(ctx, events)
	return result, nil
}

// Patch partially updates a record.
func (s *Service) Patch(ctx context.Context, namespace, key, actor string, input PatchInput, expectedVersion *int) (UpsertResult, error) {
	var result UpsertResult
	var events []pendingEvent
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		r, err := s.repo.Patch(ctx, tx, namespace, key, actor, input, expectedVersion)
		if err != nil {
			return err
		}
		result = r
		events = append(events, mutationEvent(r.Record, ActionUpdate, ""))
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	s.emit(ctx, events)
	return result, nil
}

// SoftDelete deletes a record, idempotently.
func (s *Service) SoftDelete(ctx context.Context, namespace, key, actor string, expectedVersion *int) (MutateResult, error) {
	var result MutateResult
	var events []pendingEvent
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		r, err := s.repo.SoftDelete(ctx, tx, namespace, key, actor, expectedVersion)
		if err != nil {
			return err
		}
		result = r
		if r.Mutated {
			events = append(events, mutationEvent(r.Record, ActionDelete, ""))
		}
		return nil
	})
	if err != nil {
		return MutateResult{}, err
	}
	s.emit(ctx, events)
	return result, nil
}

// HardDelete purges a record and its audit trail.
func (s *Service) HardDelete(ctx context.Context, namespace, key string, expectedVersion *int) (Record, error) {
	var result Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		r, err := s.repo.HardDelete(ctx, tx, namespace, key, expectedVersion)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// RestoreInput identifies the audit snapshot to restore from: exactly one
// of AuditID or Version must be set.
type RestoreInput struct {
	AuditID *string
	Version *int
}

// Restore loads the audit snapshot named by input outside the write
// transaction, then overwrites the current row inside it.
func (s *Service) Restore(ctx context.Context, namespace, key, actor string, input RestoreInput, expectedVersion *int) (Record, error) {
	if (input.AuditID == nil) == (input.Version == nil) {
		return Record{}, apperr.BadRequest("restore requires exactly one of auditId or version")
	}

	var entry Audit
	var err error
	if input.AuditID != nil {
		entry, err = s.audits.GetByID(ctx, namespace, key, *input.AuditID)
	} else {
		entry, err = s.audits.GetByVersion(ctx, namespace, key, *input.Version)
	}
	if err != nil {
		return Record{}, err
	}

	snapshot := Snapshot{
		Metadata: entry.PreviousMetadata, Tags: entry.PreviousTags, Owner: entry.PreviousOwner, SchemaHash: entry.PreviousSchemaHash,
	}
	if entry.Action == ActionRestore || entry.Action == ActionCreate {
		snapshot = Snapshot{Metadata: entry.Metadata, Tags: entry.Tags, Owner: entry.Owner, SchemaHash: entry.SchemaHash}
	}

	var result Record
	var events []pendingEvent
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		r, err := s.repo.RestoreFromAudit(ctx, tx, namespace, key, actor, snapshot, expectedVersion)
		if err != nil {
			return err
		}
		result = r
		events = append(events, mutationEvent(r, ActionRestore, ""))
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.emit(ctx, events)
	return result, nil
}

// Fetch performs a point lookup.
func (s *Service) Fetch(ctx context.Context, namespace, key string, includeDeleted bool) (Record, error) {
	return s.repo.Fetch(ctx, namespace, key, includeDeleted)
}

// Search delegates to the repository.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]Record, int, error) {
	return s.repo.Search(ctx, req)
}

// ListAudit delegates to the audit reader.
func (s *Service) ListAudit(ctx context.Context, namespace, key string, limit, offset int) ([]Audit, int, error) {
	return s.audits.ListByRecord(ctx, namespace, key, limit, offset)
}

// AuditDiff loads an audit entry and computes its structured diff view.
func (s *Service) AuditDiff(ctx context.Context, namespace, key, id string) (AuditDiff, error) {
	entry, err := s.audits.GetByID(ctx, namespace, key, id)
	if err != nil {
		return AuditDiff{}, err
	}
	return Diff(entry), nil
}
