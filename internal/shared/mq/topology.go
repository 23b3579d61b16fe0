package mq

import (
	"fmt"

	"pawfect/internal/shared/logger"
)

// Exchange and queue names shared between the dispatch service and the
// order-management collaborator.
const (
	OrderExchange = "order_topic"

	QueueOrderReady     = "order.ready"
	QueueOrderAssigned  = "order.assigned"
	QueueOrderDelivered = "order.delivered"
	QueueOrderCancelled = "order.cancelled"
)

// SetupTopology declares all exchanges, queues and bindings. Declarations are
// idempotent, so every service instance runs this on startup.
func SetupTopology(mq *RabbitMQ, log *logger.Logger) error {
	ch := mq.Channel()
	if ch == nil {
		return fmt.Errorf("rabbitmq channel not available")
	}

	if err := ch.ExchangeDeclare(
		OrderExchange, // name
		"topic",       // type
		true,          // durable
		false,         // auto-deleted
		false,         // internal
		false,         // no-wait
		nil,           // args
	); err != nil {
		return fmt.Errorf("declare %s: %w", OrderExchange, err)
	}

	orderQueues := []string{
		QueueOrderReady,
		QueueOrderAssigned,
		QueueOrderDelivered,
		QueueOrderCancelled,
	}
	for _, q := range orderQueues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		// routing key matches the queue name: order.ready, order.assigned, ...
		if err := ch.QueueBind(q, q, OrderExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}

	log.Info(logger.Entry{
		Action:  "topology_setup_complete",
		Message: "all exchanges and queues created",
	})

	return nil
}
