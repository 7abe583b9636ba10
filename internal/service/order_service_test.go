package service

import (
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/internal/repository"
)

func (s *IntegrationTestSuite) orderStatus(orderID int64) string {
	var status string
	err := s.DbPool.QueryRow(
		s.Ctx,
		`SELECT status FROM orders WHERE id = $1`,
		orderID,
	).Scan(&status)
	s.Require().NoError(err)

	return status
}

func (s *IntegrationTestSuite) outboxEventCount(eventType string) int {
	var count int
	err := s.DbPool.QueryRow(
		s.Ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type = $1`,
		eventType,
	).Scan(&count)
	s.Require().NoError(err)

	return count
}

// checkoutCart runs a cart through the payment intent step so it carries an
// intent id, the way a real checkout enters CreateOrder.
func (s *IntegrationTestSuite) checkoutCart(cartID string, deliveryMethodID int64, items ...domain.CartItem) *domain.ShoppingCart {
	cart := s.cartWithItems(cartID, items...)
	cart.DeliveryMethodID = &deliveryMethodID

	_, err := s.CartService.SetCart(s.Ctx, cart)
	s.Require().NoError(err)

	cart, err = s.PaymentService.CreateOrUpdatePaymentIntent(s.Ctx, cartID)
	s.Require().NoError(err)
	s.Require().NotEmpty(cart.PaymentIntentID)

	return cart
}

func (s *IntegrationTestSuite) TestCreateOrder_Success() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)
	s.seedDeliveryMethod(1, 500)

	cart := s.checkoutCart("cart-1", 1, domain.CartItem{
		ProductID: 1, ProductName: "Kettlebell 16kg", Price: 4500, Quantity: 2,
	})

	order, err := s.OrderService.CreateOrder(s.Ctx, CreateOrderInput{
		CartID:           "cart-1",
		BuyerEmail:       "buyer@example.com",
		DeliveryMethodID: 1,
	})
	s.Require().NoError(err)
	s.Require().NotZero(order.ID)

	s.Require().Equal(domain.OrderStatusPending, order.Status)
	s.Require().EqualValues(9000, order.Subtotal)
	s.Require().EqualValues(500, order.ShippingPrice)
	s.Require().EqualValues(9500, order.Total())

	// The order holds the stock under its payment intent id.
	s.Require().Equal(1, s.reservationRowCount(cart.PaymentIntentID))

	available, err := s.InventoryService.GetAvailableStock(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().EqualValues(8, available)

	s.Require().Equal(1, s.outboxEventCount("OrderCreated"))
}

func (s *IntegrationTestSuite) TestCreateOrder_WithCoupon() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)
	s.seedDeliveryMethod(1, 500)
	s.seedCoupon("SUMMER10", 1000)

	cart := s.cartWithItems("cart-2", domain.CartItem{
		ProductID: 1, ProductName: "Kettlebell 16kg", Price: 4500, Quantity: 2,
	})

	deliveryMethodID := int64(1)
	cart.DeliveryMethodID = &deliveryMethodID
	cart.CouponCode = "SUMMER10"

	_, err := s.CartService.SetCart(s.Ctx, cart)
	s.Require().NoError(err)

	_, err = s.PaymentService.CreateOrUpdatePaymentIntent(s.Ctx, "cart-2")
	s.Require().NoError(err)

	order, err := s.OrderService.CreateOrder(s.Ctx, CreateOrderInput{
		CartID:           "cart-2",
		BuyerEmail:       "buyer@example.com",
		DeliveryMethodID: 1,
	})
	s.Require().NoError(err)

	s.Require().EqualValues(1000, order.Discount)
	s.Require().EqualValues(9000+500-1000, order.Total())
}

func (s *IntegrationTestSuite) TestCreateOrder_NoPaymentIntent() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	s.cartWithItems("cart-3", domain.CartItem{
		ProductID: 1, ProductName: "Kettlebell 16kg", Price: 4500, Quantity: 1,
	})

	_, err := s.OrderService.CreateOrder(s.Ctx, CreateOrderInput{
		CartID:           "cart-3",
		BuyerEmail:       "buyer@example.com",
		DeliveryMethodID: 1,
	})
	s.Require().ErrorIs(err, ErrNoPaymentIntent)
}

func (s *IntegrationTestSuite) TestCreateOrder_CartMissing() {
	_, err := s.OrderService.CreateOrder(s.Ctx, CreateOrderInput{
		CartID:           "cart-does-not-exist",
		BuyerEmail:       "buyer@example.com",
		DeliveryMethodID: 1,
	})
	s.Require().ErrorIs(err, ErrCartNotFound)
}

func (s *IntegrationTestSuite) TestCreateOrder_InsufficientStock() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 1)
	s.seedDeliveryMethod(1, 500)

	cart := s.checkoutCart("cart-4", 1, domain.CartItem{
		ProductID: 1, ProductName: "Kettlebell 16kg", Price: 4500, Quantity: 2,
	})

	_, err := s.OrderService.CreateOrder(s.Ctx, CreateOrderInput{
		CartID:           "cart-4",
		BuyerEmail:       "buyer@example.com",
		DeliveryMethodID: 1,
	})
	s.Require().ErrorIs(err, ErrInsufficientStock)

	s.Require().Equal(0, s.reservationRowCount(cart.PaymentIntentID))
	s.Require().Equal(0, s.outboxEventCount("OrderCreated"))
}

func (s *IntegrationTestSuite) TestCreateOrder_UnknownDeliveryMethod_ReleasesHold() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)
	s.seedDeliveryMethod(1, 500)

	cart := s.checkoutCart("cart-5", 1, domain.CartItem{
		ProductID: 1, ProductName: "Kettlebell 16kg", Price: 4500, Quantity: 2,
	})

	_, err := s.OrderService.CreateOrder(s.Ctx, CreateOrderInput{
		CartID:           "cart-5",
		BuyerEmail:       "buyer@example.com",
		DeliveryMethodID: 99,
	})
	s.Require().Error(err)

	// The failed attempt must not keep blocking the stock.
	s.Require().Equal(0, s.reservationRowCount(cart.PaymentIntentID))
}

func (s *IntegrationTestSuite) TestCreateOrder_DuplicateIntent() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)
	s.seedDeliveryMethod(1, 500)

	cart := s.checkoutCart("cart-7", 1, domain.CartItem{
		ProductID: 1, ProductName: "Kettlebell 16kg", Price: 4500, Quantity: 2,
	})

	input := CreateOrderInput{
		CartID:           "cart-7",
		BuyerEmail:       "buyer@example.com",
		DeliveryMethodID: 1,
	}

	_, err := s.OrderService.CreateOrder(s.Ctx, input)
	s.Require().NoError(err)

	// The cart still carries the same intent id, so a replayed submit hits the
	// unique constraint instead of creating a second order.
	_, err = s.OrderService.CreateOrder(s.Ctx, input)
	s.Require().ErrorIs(err, repository.ErrOrderAlreadyExists)

	// The first order keeps its hold.
	s.Require().Equal(1, s.reservationRowCount(cart.PaymentIntentID))
	s.Require().Equal(1, s.outboxEventCount("OrderCreated"))
}

func (s *IntegrationTestSuite) TestGetOrdersForBuyer() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)
	s.seedDeliveryMethod(1, 500)

	s.checkoutCart("cart-6", 1, domain.CartItem{
		ProductID: 1, ProductName: "Kettlebell 16kg", Price: 4500, Quantity: 1,
	})

	created, err := s.OrderService.CreateOrder(s.Ctx, CreateOrderInput{
		CartID:           "cart-6",
		BuyerEmail:       "buyer@example.com",
		DeliveryMethodID: 1,
	})
	s.Require().NoError(err)

	orders, err := s.OrderService.GetOrdersForBuyer(s.Ctx, "buyer@example.com")
	s.Require().NoError(err)
	s.Require().Len(orders, 1)
	s.Require().Equal(created.ID, orders[0].ID)
	s.Require().Len(orders[0].Items, 1)

	orders, err = s.OrderService.GetOrdersForBuyer(s.Ctx, "nobody@example.com")
	s.Require().NoError(err)
	s.Require().Empty(orders)
}
