package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/internal/service"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"github.com/stefans1510/fitness-shop/pkg/utils"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts    service.CartService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		validate: validator.New(),
		logger:   logger,
	}
}

type CartItemInput struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	ProductName string `json:"product_name" validate:"required"`
	Price       int64  `json:"price" validate:"required,gt=0"`
	Quantity    int32  `json:"quantity" validate:"required,gt=0"`
	PictureURL  string `json:"picture_url" validate:"omitempty,url"`
}

type SetCartInput struct {
	ID               string          `json:"id" validate:"required"`
	Items            []CartItemInput `json:"items" validate:"required,min=1,dive"`
	DeliveryMethodID *int64          `json:"delivery_method_id" validate:"omitempty,gt=0"`
	CouponCode       string          `json:"coupon_code"`
}

func (h *CartHandler) Get(c *fiber.Ctx) error {
	cart, err := h.carts.GetCart(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrCartNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "cart not found",
			})
		}

		mylogger.Error(
			c.UserContext(),
			h.logger,
			"get cart failed",
			zap.String("cart_id", c.Params("id")),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(cart)
}

func (h *CartHandler) Set(c *fiber.Ctx) error {
	input := new(SetCartInput)

	if err := c.BodyParser(input); err != nil {
		h.logger.Warn(
			"failed to parse body in set cart",
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

	// Re-setting the cart keeps the payment intent attached to it so edits
	// after entering checkout update the same intent.
	existing, err := h.carts.GetCart(c.UserContext(), input.ID)
	if err != nil && !errors.Is(err, service.ErrCartNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	cart := &domain.ShoppingCart{
		ID:               input.ID,
		Items:            make([]domain.CartItem, 0, len(input.Items)),
		DeliveryMethodID: input.DeliveryMethodID,
		CouponCode:       input.CouponCode,
	}
	if existing != nil {
		cart.PaymentIntentID = existing.PaymentIntentID
		cart.ClientSecret = existing.ClientSecret
	}

	for _, item := range input.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			PictureURL:  item.PictureURL,
		})
	}

	saved, err := h.carts.SetCart(c.UserContext(), cart)
	if err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"set cart failed",
			zap.String("cart_id", input.ID),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(saved)
}

func (h *CartHandler) Delete(c *fiber.Ctx) error {
	if err := h.carts.DeleteCart(c.UserContext(), c.Params("id")); err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"delete cart failed",
			zap.String("cart_id", c.Params("id")),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
