package in_amqp

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
	"pawfect/internal/shared/mq"
)

const consumeTimeout = 15 * time.Second

// OrderReadyConsumer drains the order.ready queue: checkout publishes there
// when an order becomes eligible for delivery, we fan the opportunity out.
type OrderReadyConsumer struct {
	mq          *mq.RabbitMQ
	notifyReady in.NotifyOrderReadyUseCase
	log         *logger.Logger
}

func NewOrderReadyConsumer(rabbit *mq.RabbitMQ, notifyReady in.NotifyOrderReadyUseCase, log *logger.Logger) *OrderReadyConsumer {
	return &OrderReadyConsumer{mq: rabbit, notifyReady: notifyReady, log: log}
}

func (c *OrderReadyConsumer) Start(ctx context.Context) error {
	return c.mq.Consume(ctx, mq.QueueOrderReady, "dispatch-order-ready", c.handle)
}

func (c *OrderReadyConsumer) handle(msg amqp.Delivery) {
	var event domain.DispatchEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.log.Error(logger.Entry{
			Action:  "consume_failed",
			Message: "malformed order.ready message",
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		// Malformed payloads never become parseable; drop them.
		_ = msg.Nack(false, false)
		return
	}
	if event.OrderID == "" {
		c.log.Warn(logger.Entry{
			Action:  "consume_skipped",
			Message: "order.ready message without order_id",
		})
		_ = msg.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumeTimeout)
	defer cancel()

	if _, err := c.notifyReady.Execute(ctx, in.NotifyOrderReadyInput{OrderID: event.OrderID}); err != nil {
		c.log.Error(logger.Entry{
			Action:  "notify_ready_failed",
			Message: "opportunity fanout failed, requeueing",
			OrderID: event.OrderID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
