package record

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/apphub/metastore/internal/platform/apperr"
)

// BulkOpType is the closed set of operation kinds a bulk request accepts.
// upsert, put, and create all normalise to BulkUpsert.
type BulkOpType string

const (
	BulkUpsert BulkOpType = "upsert"
	BulkDelete BulkOpType = "delete"
)

// NormalizeBulkOpType maps the spec's accepted type aliases onto the two
// supported kinds, defaulting an absent type to upsert.
func NormalizeBulkOpType(raw string) (BulkOpType, error) {
	switch raw {
	case "", "upsert", "put", "create":
		return BulkUpsert, nil
	case "delete":
		return BulkDelete, nil
	default:
		return "", apperr.BadRequest("unknown bulk operation type: " + raw)
	}
}

// BulkOperation is one normalised entry of a bulk request.
type BulkOperation struct {
	Type            BulkOpType
	Namespace       string
	Key             string
	Snapshot        Snapshot
	ExpectedVersion *int
}

// BulkOutcome is one entry of the bulk response's operations list.
type BulkOutcome struct {
	Status    string `json:"status"`
	Type      BulkOpType `json:"type"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Record    *Record `json:"record,omitempty"`
	Created   *bool   `json:"created,omitempty"`
	Error     *BulkError `json:"error,omitempty"`
}

// BulkError is the failure shape surfaced for a single failed bulk entry.
type BulkError struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Bulk executes operations either in one atomic transaction (continueOnError
// = false) or each in its own transaction (continueOnError = true),
// returning one outcome per operation in input order. Atomic mode's events
// all emit after the single commit; continueOnError mode emits after each
// successful sub-transaction.
func (s *Service) Bulk(ctx context.Context, actor string, operations []BulkOperation, continueOnError bool) []BulkOutcome {
	if continueOnError {
		return s.bulkContinueOnError(ctx, actor, operations)
	}
	return s.bulkAtomic(ctx, actor, operations)
}

func (s *Service) bulkAtomic(ctx context.Context, actor string, operations []BulkOperation) []BulkOutcome {
	outcomes := make([]BulkOutcome, len(operations))
	var events []pendingEvent

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for i, op := range operations {
			outcome, event, err := s.applyBulkOp(ctx, tx, actor, op)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			if event != nil {
				events = append(events, *event)
			}
		}
		return nil
	})
	if err != nil {
		failed := classifyBulkError(err)
		for i, op := range operations {
			outcomes[i] = BulkOutcome{Status: "error", Namespace: op.Namespace, Key: op.Key, Error: &failed}
		}
		return outcomes
	}
	s.emit(ctx, events)
	return outcomes
}

func (s *Service) bulkContinueOnError(ctx context.Context, actor string, operations []BulkOperation) []BulkOutcome {
	outcomes := make([]BulkOutcome, len(operations))
	for i, op := range operations {
		var outcome BulkOutcome
		var event *pendingEvent
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			o, e, err := s.applyBulkOp(ctx, tx, actor, op)
			if err != nil {
				return err
			}
			outcome, event = o, e
			return nil
		})
		if err != nil {
			failed := classifyBulkError(err)
			outcomes[i] = BulkOutcome{Status: "error", Namespace: op.Namespace, Key: op.Key, Error: &failed}
			continue
		}
		outcomes[i] = outcome
		if event != nil {
			s.emit(ctx, []pendingEvent{*event})
		}
	}
	return outcomes
}

func (s *Service) applyBulkOp(ctx context.Context, tx pgx.Tx, actor string, op BulkOperation) (BulkOutcome, *pendingEvent, error) {
	switch op.Type {
	case BulkUpsert:
		result, err := s.repo.Upsert(ctx, tx, op.Snapshot, op.Namespace, op.Key, actor, op.ExpectedVersion)
		if err != nil {
			return BulkOutcome{}, nil, err
		}
		created := result.Created
		action := ActionUpdate
		if created {
			action = ActionCreate
		}
		event := mutationEvent(result.Record, action, "bulk")
		return BulkOutcome{
			Status: "ok", Type: BulkUpsert, Namespace: op.Namespace, Key: op.Key, Record: &result.Record, Created: &created,
		}, &event, nil
	case BulkDelete:
		result, err := s.repo.SoftDelete(ctx, tx, op.Namespace, op.Key, actor, op.ExpectedVersion)
		if err != nil {
			return BulkOutcome{}, nil, err
		}
		outcome := BulkOutcome{Status: "ok", Type: BulkDelete, Namespace: op.Namespace, Key: op.Key, Record: &result.Record}
		if !result.Mutated {
			return outcome, nil, nil
		}
		event := mutationEvent(result.Record, ActionDelete, "bulk")
		return outcome, &event, nil
	default:
		return BulkOutcome{}, nil, apperr.BadRequest("unknown bulk operation type")
	}
}

func classifyBulkError(err error) BulkError {
	if ae := apperr.As(err); ae != nil {
		return BulkError{StatusCode: ae.HTTPStatus, Code: ae.Code, Message: ae.Message}
	}
	return BulkError{StatusCode: 500, Code: "internal_error", Message: "internal error"}
}
