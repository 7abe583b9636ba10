package service

import (
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/internal/repository"
)

// pendingOrder drives a full checkout up to the point where the shop waits
// for the payment provider: stock 10, two units held, order pending.
func (s *IntegrationTestSuite) pendingOrder(cartID string) *domain.Order {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)
	s.seedDeliveryMethod(1, 500)

	s.checkoutCart(cartID, 1, domain.CartItem{
		ProductID: 1, ProductName: "Kettlebell 16kg", Price: 4500, Quantity: 2,
	})

	order, err := s.OrderService.CreateOrder(s.Ctx, CreateOrderInput{
		CartID:           cartID,
		BuyerEmail:       "buyer@example.com",
		DeliveryMethodID: 1,
	})
	s.Require().NoError(err)

	return order
}

func (s *IntegrationTestSuite) TestHandlePaymentConfirmation_Success() {
	order := s.pendingOrder("cart-pay-1")

	err := s.PaymentService.HandlePaymentConfirmation(s.Ctx, domain.PaymentConfirmedEvent{
		PaymentIntentID: order.PaymentIntentID,
		Status:          domain.PaymentStatusSucceeded,
		Amount:          order.Total(),
	})
	s.Require().NoError(err)

	s.Require().Equal(string(domain.OrderStatusPaymentReceived), s.orderStatus(order.ID))

	// The hold became a permanent deduction.
	s.Require().EqualValues(8, s.onHandStock(1))

	available, err := s.InventoryService.GetAvailableStock(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().EqualValues(8, available)

	s.Require().Equal(1, s.outboxEventCount("OrderPaid"))
}

func (s *IntegrationTestSuite) TestHandlePaymentConfirmation_Duplicate() {
	order := s.pendingOrder("cart-pay-2")

	event := domain.PaymentConfirmedEvent{
		PaymentIntentID: order.PaymentIntentID,
		Status:          domain.PaymentStatusSucceeded,
		Amount:          order.Total(),
	}

	s.Require().NoError(s.PaymentService.HandlePaymentConfirmation(s.Ctx, event))

	// The webhook and the payment topic can both deliver the confirmation;
	// the second delivery must not deduct stock again.
	s.Require().NoError(s.PaymentService.HandlePaymentConfirmation(s.Ctx, event))

	s.Require().EqualValues(8, s.onHandStock(1))
	s.Require().Equal(1, s.outboxEventCount("OrderPaid"))
	s.Require().Equal(string(domain.OrderStatusPaymentReceived), s.orderStatus(order.ID))
}

func (s *IntegrationTestSuite) TestHandlePaymentConfirmation_AmountMismatch() {
	order := s.pendingOrder("cart-pay-3")

	err := s.PaymentService.HandlePaymentConfirmation(s.Ctx, domain.PaymentConfirmedEvent{
		PaymentIntentID: order.PaymentIntentID,
		Status:          domain.PaymentStatusSucceeded,
		Amount:          order.Total() + 1,
	})
	s.Require().NoError(err)

	s.Require().Equal(string(domain.OrderStatusPaymentMismatch), s.orderStatus(order.ID))

	// Mismatched payment never deducts stock; the hold is released.
	s.Require().EqualValues(10, s.onHandStock(1))
	s.Require().Equal(0, s.reservationRowCount(order.PaymentIntentID))
	s.Require().Equal(1, s.outboxEventCount("OrderPaymentMismatch"))
	s.Require().Equal(0, s.outboxEventCount("OrderPaid"))
}

func (s *IntegrationTestSuite) TestHandlePaymentConfirmation_UnknownOrder() {
	err := s.PaymentService.HandlePaymentConfirmation(s.Ctx, domain.PaymentConfirmedEvent{
		PaymentIntentID: "pi_no_order_yet",
		Status:          domain.PaymentStatusSucceeded,
		Amount:          100,
	})

	// The confirmation can arrive before the order row exists; the error makes
	// the consumer retry instead of dropping the payment.
	s.Require().ErrorIs(err, repository.ErrOrderNotFound)
}

func (s *IntegrationTestSuite) TestHandlePaymentConfirmation_NonSucceededIgnored() {
	order := s.pendingOrder("cart-pay-4")

	err := s.PaymentService.HandlePaymentConfirmation(s.Ctx, domain.PaymentConfirmedEvent{
		PaymentIntentID: order.PaymentIntentID,
		Status:          "requires_payment_method",
		Amount:          order.Total(),
	})
	s.Require().NoError(err)

	s.Require().Equal(string(domain.OrderStatusPending), s.orderStatus(order.ID))
	s.Require().EqualValues(10, s.onHandStock(1))
}

func (s *IntegrationTestSuite) TestCreateOrUpdatePaymentIntent_SnapsStalePrices() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	// Cart carries a price from before a catalog update.
	s.cartWithItems("cart-pay-5", domain.CartItem{
		ProductID: 1, ProductName: "Kettlebell 16kg", Price: 3000, Quantity: 2,
	})

	cart, err := s.PaymentService.CreateOrUpdatePaymentIntent(s.Ctx, "cart-pay-5")
	s.Require().NoError(err)

	s.Require().EqualValues(4500, cart.Items[0].Price)
	s.Require().NotEmpty(cart.PaymentIntentID)
	s.Require().NotEmpty(cart.ClientSecret)

	// A second call amends the existing intent instead of creating a new one.
	again, err := s.PaymentService.CreateOrUpdatePaymentIntent(s.Ctx, "cart-pay-5")
	s.Require().NoError(err)
	s.Require().Equal(cart.PaymentIntentID, again.PaymentIntentID)
	s.Require().Equal(1, s.Provider.created)
	s.Require().Equal(1, s.Provider.updated)
}

func (s *IntegrationTestSuite) TestCreateOrUpdatePaymentIntent_DefaultShipping() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	// No delivery method picked yet.
	s.cartWithItems("cart-pay-8", domain.CartItem{
		ProductID: 1, ProductName: "Kettlebell 16kg", Price: 4500, Quantity: 2,
	})

	cart, err := s.PaymentService.CreateOrUpdatePaymentIntent(s.Ctx, "cart-pay-8")
	s.Require().NoError(err)
	s.Require().NotEmpty(cart.PaymentIntentID)

	// The intent quotes subtotal plus the configured default shipping price
	// until the buyer picks a method.
	s.Require().EqualValues(9000+500, s.Provider.lastAmount)

	s.seedDeliveryMethod(2, 900)
	deliveryMethodID := int64(2)
	cart.DeliveryMethodID = &deliveryMethodID

	_, err = s.CartService.SetCart(s.Ctx, cart)
	s.Require().NoError(err)

	_, err = s.PaymentService.CreateOrUpdatePaymentIntent(s.Ctx, "cart-pay-8")
	s.Require().NoError(err)
	s.Require().EqualValues(9000+900, s.Provider.lastAmount)
}

func (s *IntegrationTestSuite) TestRefundPayment() {
	order := s.pendingOrder("cart-pay-6")

	s.Require().NoError(s.PaymentService.HandlePaymentConfirmation(s.Ctx, domain.PaymentConfirmedEvent{
		PaymentIntentID: order.PaymentIntentID,
		Status:          domain.PaymentStatusSucceeded,
		Amount:          order.Total(),
	}))

	s.Require().NoError(s.PaymentService.RefundPayment(s.Ctx, order.ID))

	s.Require().Equal(string(domain.OrderStatusRefunded), s.orderStatus(order.ID))
	s.Require().Equal([]string{order.PaymentIntentID}, s.Provider.refunded)

	// Only paid orders can be refunded.
	s.Require().ErrorIs(s.PaymentService.RefundPayment(s.Ctx, order.ID), ErrOrderNotRefundable)
}

func (s *IntegrationTestSuite) TestRefundPayment_PendingOrder() {
	order := s.pendingOrder("cart-pay-7")

	s.Require().ErrorIs(s.PaymentService.RefundPayment(s.Ctx, order.ID), ErrOrderNotRefundable)
	s.Require().Empty(s.Provider.refunded)
}
