package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stefans1510/fitness-shop/internal/repository"
	"github.com/stefans1510/fitness-shop/internal/service"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"github.com/stefans1510/fitness-shop/pkg/utils"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders   service.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		validate: validator.New(),
		logger:   logger,
	}
}

type CreateOrderInput struct {
	CartID           string `json:"cart_id" validate:"required"`
	BuyerEmail       string `json:"buyer_email" validate:"required,email"`
	DeliveryMethodID int64  `json:"delivery_method_id" validate:"required,gt=0"`
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	input := new(CreateOrderInput)

	if err := c.BodyParser(input); err != nil {
		h.logger.Warn(
			"failed to parse body in create order",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": utils.FormatValidationError(err),
		})
	}

	order, err := h.orders.CreateOrder(c.UserContext(), service.CreateOrderInput{
		CartID:           input.CartID,
		BuyerEmail:       input.BuyerEmail,
		DeliveryMethodID: input.DeliveryMethodID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientStock),
			errors.Is(err, repository.ErrOrderAlreadyExists):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, service.ErrCartNotFound),
			errors.Is(err, service.ErrNoPaymentIntent),
			errors.Is(err, service.ErrInvalidCart),
			errors.Is(err, repository.ErrDeliveryMethodUnknown):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		mylogger.Error(
			c.UserContext(),
			h.logger,
			"create order failed",
			zap.String("cart_id", input.CartID),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"create order succeeded",
		zap.Int64("order_id", order.ID),
	)

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) FindByID(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	order, err := h.orders.GetOrder(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "order not found",
			})
		}

		mylogger.Error(
			c.UserContext(),
			h.logger,
			"get order failed",
			zap.Int64("order_id", id),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(order)
}

func (h *OrderHandler) ListForBuyer(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "email is required",
		})
	}

	orders, err := h.orders.GetOrdersForBuyer(c.UserContext(), email)
	if err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"list orders failed",
			zap.String("buyer_email", email),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"orders": orders,
	})
}
