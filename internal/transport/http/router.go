package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/stefans1510/fitness-shop/internal/transport/http/handler"
)

type Handlers struct {
	Product   *handler.ProductHandler
	Cart      *handler.CartHandler
	Order     *handler.OrderHandler
	Payment   *handler.PaymentHandler
	Inventory *handler.InventoryHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/webhooks/stripe", h.Payment.Webhook)

	api := app.Group("/api")

	product := api.Group("/products")
	product.Get("", h.Product.List)
	product.Get("/:id", h.Product.FindByID)
	product.Get("/:id/availability", h.Product.Availability)

	api.Get("/delivery-methods", h.Product.ListDeliveryMethods)

	cart := api.Group("/cart")
	cart.Get("/:id", h.Cart.Get)
	cart.Post("", h.Cart.Set)
	cart.Delete("/:id", h.Cart.Delete)

	api.Post("/payments/:cartId", h.Payment.CreateOrUpdateIntent)

	order := api.Group("/orders")
	order.Post("", h.Order.Create)
	order.Get("", h.Order.ListForBuyer)
	order.Get("/:id", h.Order.FindByID)

	admin := api.Group("/admin")
	admin.Post("/orders/:id/refund", h.Payment.Refund)
	admin.Get("/reservations/:reservationId", h.Inventory.FindByReservationID)
	admin.Get("/products/:id/reservations", h.Inventory.FindByProduct)
}
