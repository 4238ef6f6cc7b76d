package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"handoff-service/internal/broker"
	"handoff-service/internal/models"
	"handoff-service/internal/util"

	"go.uber.org/zap"
)

// Consumer is the message source the worker drains.
type Consumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// AuditRecorder stores audit entries idempotently by event id.
type AuditRecorder interface {
	RecordAuditEvent(ctx context.Context, entry *models.AuditEntry) error
}

// AuditWorker projects handoff events into the audit log.
type AuditWorker struct {
	consumer     Consumer
	eventHandler *broker.EventHandler
	recorder     AuditRecorder
	backoff      broker.Backoff
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer Consumer, recorder AuditRecorder) *AuditWorker {
	w := &AuditWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		recorder:     recorder,
		backoff:      broker.DefaultBackoff,
		logger:       util.GetLogger(),
	}

	w.eventHandler.On(models.EventTypeTransferIssued, w.onTransferIssued)
	w.eventHandler.On(models.EventTypeTransferConfirmed, w.onTransferConfirmed)
	w.eventHandler.On(models.EventTypeTransferCancelled, w.onTransferCancelled)
	w.eventHandler.On(models.EventTypeJoinCodeIssued, w.onJoinCodeIssued)
	w.eventHandler.On(models.EventTypeJoinCodeConsumed, w.onJoinCodeConsumed)

	return w
}

// Start consumes until ctx is cancelled. A failed audit write is retried on
// the same message so no event is skipped.
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, broker.Retry(w.eventHandler.HandleMessage, w.backoff))
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}

func (w *AuditWorker) onTransferIssued(ctx context.Context, body []byte) error {
	var event models.TransferIssuedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: TransferIssued event: %v", broker.ErrMalformed, err)
	}
	return w.record(ctx, event.BaseEvent, nil, transferSubject(event.TransferID), body)
}

func (w *AuditWorker) onTransferConfirmed(ctx context.Context, body []byte) error {
	var event models.TransferConfirmedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: TransferConfirmed event: %v", broker.ErrMalformed, err)
	}
	return w.record(ctx, event.BaseEvent, &event.StaffID, transferSubject(event.TransferID), body)
}

func (w *AuditWorker) onTransferCancelled(ctx context.Context, body []byte) error {
	var event models.TransferCancelledEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: TransferCancelled event: %v", broker.ErrMalformed, err)
	}
	return w.record(ctx, event.BaseEvent, &event.StaffID, transferSubject(event.TransferID), body)
}

func (w *AuditWorker) onJoinCodeIssued(ctx context.Context, body []byte) error {
	var event models.JoinCodeIssuedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: JoinCodeIssued event: %v", broker.ErrMalformed, err)
	}
	return w.record(ctx, event.BaseEvent, &event.CreatedBy, joinCodeSubject(event.JoinCodeID), body)
}

func (w *AuditWorker) onJoinCodeConsumed(ctx context.Context, body []byte) error {
	var event models.JoinCodeConsumedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: JoinCodeConsumed event: %v", broker.ErrMalformed, err)
	}
	return w.record(ctx, event.BaseEvent, &event.UserID, joinCodeSubject(event.JoinCodeID), body)
}

func (w *AuditWorker) record(ctx context.Context, base models.BaseEvent, actorID *int64, subject string, body []byte) error {
	if base.EventID == "" {
		w.logger.Warn("Dropping event without id", zap.String("event_type", base.EventType))
		return nil
	}

	entry := &models.AuditEntry{
		EventID:   base.EventID,
		EventType: base.EventType,
		StoreID:   base.StoreID,
		ActorID:   actorID,
		Subject:   subject,
		Payload:   json.RawMessage(body),
	}
	if err := w.recorder.RecordAuditEvent(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	w.logger.Debug("Audit entry recorded",
		zap.String("event_id", base.EventID),
		zap.String("event_type", base.EventType),
		zap.String("subject", subject))
	return nil
}

func transferSubject(id int64) string {
	return fmt.Sprintf("transfer:%d", id)
}

func joinCodeSubject(id int64) string {
	return fmt.Sprintf("join_code:%d", id)
}
