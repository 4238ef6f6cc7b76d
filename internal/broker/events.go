package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"handoff-service/internal/models"
	"handoff-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the transport EventPublisher writes to.
type Publisher interface {
	PublishEvent(ctx context.Context, key, eventType string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func storeKey(storeID int64) string {
	return "store-" + strconv.FormatInt(storeID, 10)
}

func (ep *EventPublisher) PublishTransferIssued(ctx context.Context, event *models.TransferIssuedEvent) error {
	return ep.producer.PublishEvent(ctx, storeKey(event.StoreID), event.EventType, event)
}

func (ep *EventPublisher) PublishTransferConfirmed(ctx context.Context, event *models.TransferConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, storeKey(event.StoreID), event.EventType, event)
}

func (ep *EventPublisher) PublishTransferCancelled(ctx context.Context, event *models.TransferCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, storeKey(event.StoreID), event.EventType, event)
}

func (ep *EventPublisher) PublishJoinCodeIssued(ctx context.Context, event *models.JoinCodeIssuedEvent) error {
	return ep.producer.PublishEvent(ctx, storeKey(event.StoreID), event.EventType, event)
}

func (ep *EventPublisher) PublishJoinCodeConsumed(ctx context.Context, event *models.JoinCodeConsumedEvent) error {
	return ep.producer.PublishEvent(ctx, storeKey(event.StoreID), event.EventType, event)
}

// EventHandler routes incoming events by type. Unregistered types are
// acknowledged and skipped.
type EventHandler struct {
	handlers map[string]func(context.Context, []byte) error
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]func(context.Context, []byte) error),
		logger:   util.GetLogger(),
	}
}

// On registers fn for eventType, replacing any previous handler.
func (eh *EventHandler) On(eventType string, fn func(context.Context, []byte) error) {
	eh.handlers[eventType] = fn
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	eventType := headerValue(msg, HeaderEventType)
	if eventType == "" {
		var base models.BaseEvent
		if err := json.Unmarshal(msg.Value, &base); err != nil {
			return fmt.Errorf("%w: base event: %v", ErrMalformed, err)
		}
		eventType = base.EventType
	}

	fn, ok := eh.handlers[eventType]
	if !ok {
		eh.logger.Debug("Unhandled event type", zap.String("event_type", eventType))
		return nil
	}
	return fn(ctx, msg.Value)
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
