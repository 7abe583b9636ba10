package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/internal/service"
	"github.com/stefans1510/fitness-shop/pkg/kafka"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"go.uber.org/zap"
)

// Consumer subscribes to payment events and resolves the matching orders.
// The webhook handler publishes confirmations here instead of processing them
// inline, so a crashed handler never loses a confirmation.
type Consumer struct {
	payments service.PaymentService
	groupID  string
	topics   []string
	logger   *zap.Logger
}

func NewConsumer(payments service.PaymentService, groupID string, topics []string, logger *zap.Logger) *Consumer {
	return &Consumer{
		payments: payments,
		groupID:  groupID,
		topics:   topics,
		logger:   logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string) {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		c.groupID,
		c.topics,
		c.processMessage,
		c.logger,
	)

	consumerGroup.Run(ctx)
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	mylogger.Info(
		ctx,
		c.logger,
		"Processing message",
		zap.String("topic", msg.Topic),
	)

	type EventWrapper struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}

	var wrapper EventWrapper
	if err := json.Unmarshal(msg.Value, &wrapper); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling wrapper", zap.Error(err))
		return err
	}

	switch wrapper.Event {
	case "PaymentConfirmed":
		var event domain.PaymentConfirmedEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to unmarshal payload", zap.Error(err))
			return err
		}

		if err := c.payments.HandlePaymentConfirmation(ctx, event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to handle payment confirmation", zap.Error(err))
			return err
		}
	default:
		mylogger.Warn(ctx, c.logger, "Ignored event type", zap.String("event_type", wrapper.Event))
	}

	return nil
}
