package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/stefans1510/fitness-shop/internal/repository"
	"github.com/stefans1510/fitness-shop/internal/service"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"go.uber.org/zap"
)

type ProductHandler struct {
	products  repository.ProductRepository
	inventory service.InventoryService
	logger    *zap.Logger
}

func NewProductHandler(
	products repository.ProductRepository,
	inventory service.InventoryService,
	logger *zap.Logger,
) *ProductHandler {
	return &ProductHandler{
		products:  products,
		inventory: inventory,
		logger:    logger,
	}
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	products, err := h.products.List(c.UserContext(), limit, offset)
	if err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"list products failed",
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"products": products,
	})
}

// FindByID returns the product with its currently purchasable quantity, which
// is the on-hand count minus live reservations rather than the raw stock.
func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	product, err := h.products.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "product not found",
			})
		}

		mylogger.Error(
			c.UserContext(),
			h.logger,
			"get product failed",
			zap.Int64("product_id", id),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	available, err := h.inventory.GetAvailableStock(c.UserContext(), id)
	if err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"get available stock failed",
			zap.Int64("product_id", id),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"product":         product,
		"available_stock": available,
	})
}

func (h *ProductHandler) Availability(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	quantity := c.QueryInt("quantity", 1)
	if quantity < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "quantity must be positive",
		})
	}

	available, err := h.inventory.CheckStockAvailability(c.UserContext(), id, int32(quantity))
	if err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"check availability failed",
			zap.Int64("product_id", id),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"product_id": id,
		"quantity":   quantity,
		"available":  available,
	})
}

func (h *ProductHandler) ListDeliveryMethods(c *fiber.Ctx) error {
	methods, err := h.products.ListDeliveryMethods(c.UserContext())
	if err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"list delivery methods failed",
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"delivery_methods": methods,
	})
}
