package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/internal/notification"
	"github.com/stefans1510/fitness-shop/internal/payment"
	"github.com/stefans1510/fitness-shop/internal/repository"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"github.com/stefans1510/fitness-shop/pkg/outbox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Stripe rejects charges below 50 cents; discounts never push the total
// under that floor.
const minChargeAmount = 50

var ErrOrderNotRefundable = errors.New("order is not in a refundable state")

// PaymentService owns the payment intent lifecycle and the asynchronous
// confirmation path. HandlePaymentConfirmation is reached from two directions
// (the provider webhook and the payment events topic) and may see the same
// confirmation more than once; committing the reservation and flipping the
// order status both tolerate duplicates.
type PaymentService interface {
	CreateOrUpdatePaymentIntent(ctx context.Context, cartID string) (*domain.ShoppingCart, error)
	HandlePaymentConfirmation(ctx context.Context, event domain.PaymentConfirmedEvent) error
	RefundPayment(ctx context.Context, orderID int64) error
}

type paymentService struct {
	pool            *pgxpool.Pool
	orderRepo       repository.OrderRepository
	productRepo     repository.ProductRepository
	outboxRepo      outbox.Repository
	cartSvc         CartService
	couponSvc       CouponService
	inventory       InventoryService
	provider        payment.Provider
	notifier        notification.Notifier
	orderTopic      string
	defaultShipping int64
	logger          *zap.Logger
	tracer          trace.Tracer
}

func NewPaymentService(
	pool *pgxpool.Pool,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	outboxRepo outbox.Repository,
	cartSvc CartService,
	couponSvc CouponService,
	inventory InventoryService,
	provider payment.Provider,
	notifier notification.Notifier,
	orderTopic string,
	defaultShipping int64,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		pool:            pool,
		orderRepo:       orderRepo,
		productRepo:     productRepo,
		outboxRepo:      outboxRepo,
		cartSvc:         cartSvc,
		couponSvc:       couponSvc,
		inventory:       inventory,
		provider:        provider,
		notifier:        notifier,
		orderTopic:      orderTopic,
		defaultShipping: defaultShipping,
		logger:          logger,
		tracer:          otel.Tracer("service/payment_service"),
	}
}

// CreateOrUpdatePaymentIntent revalidates cart prices against the catalog,
// computes the chargeable total (subtotal + shipping - coupon discount) and
// creates or amends the intent at the provider. The resulting intent id is
// the reservation id for the rest of the checkout.
func (s *paymentService) CreateOrUpdatePaymentIntent(ctx context.Context, cartID string) (*domain.ShoppingCart, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.CreateOrUpdatePaymentIntent")
	defer span.End()

	span.SetAttributes(
		attribute.String("cart_id", cartID),
	)

	cart, err := s.cartSvc.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if err := s.validateCartPrices(ctx, cart); err != nil {
		return nil, err
	}

	// Before the buyer picks a delivery method the intent still quotes the
	// configured default shipping price; a later update corrects the amount.
	shippingPrice := s.defaultShipping
	if cart.DeliveryMethodID != nil {
		deliveryMethod, err := s.productRepo.GetDeliveryMethod(ctx, *cart.DeliveryMethodID)
		if err != nil {
			return nil, err
		}
		shippingPrice = deliveryMethod.Price
	}

	subtotal := cart.Subtotal()

	if cart.CouponCode != "" {
		discount, err := s.couponSvc.CalculateDiscount(ctx, cart.CouponCode, subtotal)
		if err != nil {
			return nil, err
		}

		subtotal -= discount
		if subtotal < minChargeAmount {
			subtotal = minChargeAmount
		}
	}

	total := subtotal + shippingPrice

	if cart.PaymentIntentID == "" {
		intent, err := s.provider.CreateIntent(ctx, total)
		if err != nil {
			mylogger.Error(ctx, s.logger, "Failed to create payment intent", zap.Error(err))

			return nil, fmt.Errorf("failed to create payment intent: %w", err)
		}

		cart.PaymentIntentID = intent.ID
		cart.ClientSecret = intent.ClientSecret
	} else {
		if _, err := s.provider.UpdateIntent(ctx, cart.PaymentIntentID, total); err != nil {
			mylogger.Error(
				ctx,
				s.logger,
				"Failed to update payment intent",
				zap.String("payment_intent_id", cart.PaymentIntentID),
				zap.Error(err),
			)

			return nil, fmt.Errorf("failed to update payment intent: %w", err)
		}
	}

	return s.cartSvc.SetCart(ctx, cart)
}

// HandlePaymentConfirmation resolves a pending order once the provider
// confirms payment. A confirmed amount that disagrees with the order total
// releases the hold and flags the order; a matching amount commits the hold,
// permanently deducting stock. Duplicate deliveries find the order already
// resolved and do nothing.
func (s *paymentService) HandlePaymentConfirmation(ctx context.Context, event domain.PaymentConfirmedEvent) error {
	ctx, span := s.tracer.Start(ctx, "PaymentService.HandlePaymentConfirmation")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_intent_id", event.PaymentIntentID),
		attribute.String("status", event.Status),
	)

	if event.Status != domain.PaymentStatusSucceeded {
		mylogger.Info(
			ctx,
			s.logger,
			"Ignoring non-success payment event",
			zap.String("payment_intent_id", event.PaymentIntentID),
			zap.String("status", event.Status),
		)

		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(shutdownCtx, s.logger, "Failed to rollback transaction", zap.Error(err))
		}
	}()

	// Row lock on the order serializes duplicate confirmations; the loser of
	// the race sees a resolved order below and backs off.
	order, err := s.orderRepo.GetByPaymentIntentForUpdate(ctx, tx, event.PaymentIntentID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			// The confirmation can outrun order creation; let the caller's
			// retry find the order once it exists.
			mylogger.Warn(
				ctx,
				s.logger,
				"Payment confirmed for unknown order",
				zap.String("payment_intent_id", event.PaymentIntentID),
			)
		}

		return err
	}

	if order.Status != domain.OrderStatusPending {
		mylogger.Info(
			ctx,
			s.logger,
			"Order already resolved, skipping confirmation",
			zap.Int64("order_id", order.ID),
			zap.String("status", string(order.Status)),
		)

		return nil
	}

	if order.Total() != event.Amount {
		return s.handleAmountMismatch(ctx, tx, order, event)
	}

	committed, err := s.inventory.CommitReservedStock(ctx, event.PaymentIntentID)
	if err != nil {
		return err
	}
	if !committed {
		// Either the stock dropped below the hold (operator problem) or a
		// previous attempt already deducted it; the engine cannot tell the
		// two apart. Leave the order pending and recoverable.
		mylogger.Error(
			ctx,
			s.logger,
			"Could not commit reserved stock for confirmed payment",
			zap.Int64("order_id", order.ID),
			zap.String("payment_intent_id", event.PaymentIntentID),
		)

		return nil
	}

	if err := s.orderRepo.ChangeOrderStatus(ctx, tx, order.ID, domain.OrderStatusPaymentReceived); err != nil {
		return err
	}

	outboxEvent, err := outbox.NewEvent(
		"Order",
		strconv.FormatInt(order.ID, 10),
		"OrderPaid",
		s.orderTopic,
		domain.OrderPaidEvent{
			OrderID:         order.ID,
			BuyerEmail:      order.BuyerEmail,
			PaymentIntentID: order.PaymentIntentID,
			Amount:          event.Amount,
			PaidAt:          order.UpdatedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to build outbox event: %w", err)
	}

	if err := s.outboxRepo.Save(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order payment received",
		zap.Int64("order_id", order.ID),
		zap.String("payment_intent_id", order.PaymentIntentID),
	)

	if err := s.notifier.Send(ctx, order.BuyerEmail, "OrderCompleteNotification", order); err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Failed to push order notification",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
	}

	return nil
}

func (s *paymentService) handleAmountMismatch(ctx context.Context, tx pgx.Tx, order *domain.Order, event domain.PaymentConfirmedEvent) error {
	mylogger.Error(
		ctx,
		s.logger,
		"Confirmed amount does not match order total",
		zap.Int64("order_id", order.ID),
		zap.Int64("expected", order.Total()),
		zap.Int64("confirmed", event.Amount),
	)

	if err := s.orderRepo.ChangeOrderStatus(ctx, tx, order.ID, domain.OrderStatusPaymentMismatch); err != nil {
		return err
	}

	outboxEvent, err := outbox.NewEvent(
		"Order",
		strconv.FormatInt(order.ID, 10),
		"OrderPaymentMismatch",
		s.orderTopic,
		domain.OrderPaymentMismatchEvent{
			OrderID:         order.ID,
			PaymentIntentID: order.PaymentIntentID,
			ExpectedAmount:  order.Total(),
			ConfirmedAmount: event.Amount,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to build outbox event: %w", err)
	}

	if err := s.outboxRepo.Save(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// The hold is released outside the order transaction; release is
	// idempotent and unreleased holds expire on their own anyway.
	if err := s.inventory.ReleaseReservedStock(ctx, event.PaymentIntentID); err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Failed to release reservation after mismatch",
			zap.String("payment_intent_id", event.PaymentIntentID),
			zap.Error(err),
		)
	}

	return nil
}

func (s *paymentService) RefundPayment(ctx context.Context, orderID int64) error {
	ctx, span := s.tracer.Start(ctx, "PaymentService.RefundPayment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status != domain.OrderStatusPaymentReceived {
		return ErrOrderNotRefundable
	}

	status, err := s.provider.Refund(ctx, order.PaymentIntentID)
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Refund failed at provider",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return fmt.Errorf("refund failed: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Refund issued",
		zap.Int64("order_id", orderID),
		zap.String("provider_status", status),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(shutdownCtx, s.logger, "Failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := s.orderRepo.ChangeOrderStatus(ctx, tx, order.ID, domain.OrderStatusRefunded); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// validateCartPrices snaps stale cart prices back to the catalog price so the
// intent amount always reflects what the shop would actually charge.
func (s *paymentService) validateCartPrices(ctx context.Context, cart *domain.ShoppingCart) error {
	for i := range cart.Items {
		item := &cart.Items[i]

		product, err := s.productRepo.GetByID(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("problem getting product %d in cart: %w", item.ProductID, err)
		}

		if item.Price != product.Price {
			mylogger.Warn(
				ctx,
				s.logger,
				"Cart price out of date, correcting",
				zap.Int64("product_id", item.ProductID),
				zap.Int64("cart_price", item.Price),
				zap.Int64("catalog_price", product.Price),
			)

			item.Price = product.Price
		}
	}

	return nil
}
