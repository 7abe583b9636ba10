package handler

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/internal/payment"
	"github.com/stefans1510/fitness-shop/internal/repository"
	"github.com/stefans1510/fitness-shop/internal/service"
	"github.com/stefans1510/fitness-shop/pkg/kafka"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"github.com/stefans1510/fitness-shop/pkg/outbox"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	payments      service.PaymentService
	producer      kafka.Producer
	webhookSecret string
	paymentTopic  string
	logger        *zap.Logger
}

func NewPaymentHandler(
	payments service.PaymentService,
	producer kafka.Producer,
	webhookSecret string,
	paymentTopic string,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		payments:      payments,
		producer:      producer,
		webhookSecret: webhookSecret,
		paymentTopic:  paymentTopic,
		logger:        logger,
	}
}

func (h *PaymentHandler) CreateOrUpdateIntent(c *fiber.Ctx) error {
	cartID := c.Params("cartId")
	if cartID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "cart id is required",
		})
	}

	cart, err := h.payments.CreateOrUpdatePaymentIntent(c.UserContext(), cartID)
	if err != nil {
		if errors.Is(err, service.ErrCartNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "cart not found",
			})
		}

		mylogger.Error(
			c.UserContext(),
			h.logger,
			"create payment intent failed",
			zap.String("cart_id", cartID),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(cart)
}

// stripeEvent is the subset of the provider's webhook body we act on.
type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID     string `json:"id"`
			Amount int64  `json:"amount"`
			Status string `json:"status"`
		} `json:"object"`
	} `json:"data"`
}

// Webhook verifies the provider signature and republishes the confirmation on
// the payment topic. The consumer resolves the order from there, so a failure
// after this point is retried from Kafka instead of relying on the provider
// to redeliver.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("Stripe-Signature")

	if err := payment.VerifyWebhookSignature(body, signature, h.webhookSecret, time.Now()); err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"webhook signature rejected",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid signature",
		})
	}

	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if event.Type != "payment_intent.succeeded" {
		mylogger.Info(
			c.UserContext(),
			h.logger,
			"Ignored webhook event type",
			zap.String("event_type", event.Type),
		)

		return c.SendStatus(fiber.StatusOK)
	}

	confirmed := domain.PaymentConfirmedEvent{
		PaymentIntentID: event.Data.Object.ID,
		Status:          event.Data.Object.Status,
		Amount:          event.Data.Object.Amount,
	}

	payload, err := json.Marshal(confirmed)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	envelope := outbox.Envelope{
		Event:   "PaymentConfirmed",
		Payload: payload,
	}

	if err := h.producer.ProduceMessage(c.UserContext(), h.paymentTopic, envelope); err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"Failed to publish payment confirmation",
			zap.String("payment_intent_id", confirmed.PaymentIntentID),
			zap.Error(err),
		)

		// Non-2xx makes the provider redeliver the webhook later.
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"Payment confirmation accepted",
		zap.String("payment_intent_id", confirmed.PaymentIntentID),
	)

	return c.SendStatus(fiber.StatusOK)
}

func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	if err := h.payments.RefundPayment(c.UserContext(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "order not found",
			})
		case errors.Is(err, service.ErrOrderNotRefundable):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		mylogger.Error(
			c.UserContext(),
			h.logger,
			"refund failed",
			zap.Int64("order_id", id),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"order_id": id,
		"status":   "refunded",
	})
}
