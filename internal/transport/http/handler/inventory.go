package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/stefans1510/fitness-shop/internal/repository"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"go.uber.org/zap"
)

// InventoryHandler exposes raw reservation rows for operator inspection, for
// example when a commit was refused because on-hand stock dropped below a
// granted hold.
type InventoryHandler struct {
	reservations repository.StockReservationRepository
	logger       *zap.Logger
}

func NewInventoryHandler(reservations repository.StockReservationRepository, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		reservations: reservations,
		logger:       logger,
	}
}

func (h *InventoryHandler) FindByReservationID(c *fiber.Ctx) error {
	reservationID := c.Params("reservationId")

	reservations, err := h.reservations.FindByReservationID(c.UserContext(), reservationID)
	if err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"list reservations failed",
			zap.String("reservation_id", reservationID),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"reservations": reservations,
	})
}

func (h *InventoryHandler) FindByProduct(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	reservations, err := h.reservations.FindByProduct(c.UserContext(), id)
	if err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"list product reservations failed",
			zap.Int64("product_id", id),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"reservations": reservations,
	})
}
