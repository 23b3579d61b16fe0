package out_amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
	"pawfect/internal/shared/mq"
)

// EventPublisher writes dispatch events to the order topic exchange. The
// routing key doubles as the queue name on the consumer side.
type EventPublisher struct {
	mq  *mq.RabbitMQ
	log *logger.Logger
}

func NewEventPublisher(rabbit *mq.RabbitMQ, log *logger.Logger) out.EventPublisher {
	return &EventPublisher{mq: rabbit, log: log}
}

func (p *EventPublisher) PublishDispatchEvent(ctx context.Context, event domain.DispatchEvent) error {
	routingKey, ok := routingKeyFor(event.EventType)
	if !ok {
		return fmt.Errorf("publish dispatch event: unknown event type %q", event.EventType)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("publish dispatch event: marshal: %w", err)
	}
	if err := p.mq.Publish(ctx, mq.OrderExchange, routingKey, body); err != nil {
		return fmt.Errorf("publish dispatch event: %w", err)
	}

	p.log.Debug(logger.Entry{
		Action:     "event_published",
		Message:    "dispatch event published",
		OrderID:    event.OrderID,
		Additional: map[string]any{"event_type": event.EventType, "routing_key": routingKey},
	})
	return nil
}

func routingKeyFor(eventType string) (string, bool) {
	switch eventType {
	case domain.EventTypeOrderReady:
		return mq.QueueOrderReady, true
	case domain.EventTypeOrderAssigned:
		return mq.QueueOrderAssigned, true
	case domain.EventTypeOrderDelivered:
		return mq.QueueOrderDelivered, true
	case domain.EventTypeOrderCancelled:
		return mq.QueueOrderCancelled, true
	}
	return "", false
}
