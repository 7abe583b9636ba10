package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/internal/repository"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"github.com/stefans1510/fitness-shop/pkg/outbox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	// ErrInsufficientStock is the checkout-blocking outcome; handlers surface
	// it to the buyer distinctly from generic failures.
	ErrInsufficientStock = errors.New("insufficient stock for one or more items in your cart")
	ErrNoPaymentIntent   = errors.New("no payment intent for this order")
	ErrInvalidCart       = errors.New("problem with the order")
)

type CreateOrderInput struct {
	CartID           string
	BuyerEmail       string
	DeliveryMethodID int64
}

// OrderService sequences a checkout attempt: validate the cart, hold stock
// under the payment intent id, then record the order in a pending state.
// Payment confirmation resolves the hold later (see PaymentService).
type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	GetOrdersForBuyer(ctx context.Context, buyerEmail string) ([]domain.Order, error)
}

type orderService struct {
	pool        *pgxpool.Pool
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	outboxRepo  outbox.Repository
	cartSvc     CartService
	couponSvc   CouponService
	inventory   InventoryService
	orderTopic  string
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewOrderService(
	pool *pgxpool.Pool,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	outboxRepo outbox.Repository,
	cartSvc CartService,
	couponSvc CouponService,
	inventory InventoryService,
	orderTopic string,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		pool:        pool,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		cartSvc:     cartSvc,
		couponSvc:   couponSvc,
		inventory:   inventory,
		orderTopic:  orderTopic,
		logger:      logger,
		tracer:      otel.Tracer("service/order_service"),
	}
}

func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("cart_id", input.CartID),
	)

	cart, err := s.cartSvc.GetCart(ctx, input.CartID)
	if err != nil {
		return nil, err
	}

	if cart.PaymentIntentID == "" {
		return nil, ErrNoPaymentIntent
	}

	// The payment intent id doubles as the reservation id, so a retried
	// checkout for the same intent holds the same stock, not twice the stock.
	reserved, err := s.inventory.ReserveStock(ctx, cart.Items, cart.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, ErrInsufficientStock
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, cartItem := range cart.Items {
		product, err := s.productRepo.GetByID(ctx, cartItem.ProductID)
		if err != nil {
			// The hold is useless without an order; undo it instead of
			// letting it block the product for 30 minutes.
			s.releaseQuietly(ctx, cart.PaymentIntentID)

			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, ErrInvalidCart
			}

			return nil, err
		}

		items = append(items, domain.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			PictureURL:  product.PictureURL,
			Price:       product.Price,
			Quantity:    cartItem.Quantity,
		})
	}

	deliveryMethod, err := s.productRepo.GetDeliveryMethod(ctx, input.DeliveryMethodID)
	if err != nil {
		s.releaseQuietly(ctx, cart.PaymentIntentID)

		return nil, err
	}

	order := &domain.Order{
		BuyerEmail:      input.BuyerEmail,
		PaymentIntentID: cart.PaymentIntentID,
		Status:          domain.OrderStatusPending,
		Items:           items,
		ShippingPrice:   deliveryMethod.Price,
	}
	order.CalculateSubtotal()

	if cart.CouponCode != "" {
		discount, err := s.couponSvc.CalculateDiscount(ctx, cart.CouponCode, order.Subtotal)
		if err != nil {
			s.releaseQuietly(ctx, cart.PaymentIntentID)

			return nil, err
		}
		order.Discount = discount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(shutdownCtx, s.logger, "Failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		if errors.Is(err, repository.ErrOrderAlreadyExists) {
			// A retried checkout for the same intent. The existing order owns
			// the hold, so there is nothing to release here.
			return nil, err
		}

		mylogger.Error(
			ctx,
			s.logger,
			"Failed to create order",
			zap.String("payment_intent_id", cart.PaymentIntentID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	event, err := outbox.NewEvent(
		"Order",
		strconv.FormatInt(order.ID, 10),
		"OrderCreated",
		s.orderTopic,
		domain.OrderCreatedEvent{
			OrderID:         order.ID,
			BuyerEmail:      order.BuyerEmail,
			PaymentIntentID: order.PaymentIntentID,
			Total:           order.Total(),
			CreatedAt:       order.CreatedAt,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox event: %w", err)
	}

	if err := s.outboxRepo.Save(ctx, tx, event); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to save outbox event", zap.Error(err))

		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))

		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.Int64("order_id", order.ID),
		zap.String("payment_intent_id", order.PaymentIntentID),
	)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

func (s *orderService) GetOrdersForBuyer(ctx context.Context, buyerEmail string) ([]domain.Order, error) {
	return s.orderRepo.ListByBuyer(ctx, buyerEmail)
}

func (s *orderService) releaseQuietly(ctx context.Context, reservationID string) {
	if err := s.inventory.ReleaseReservedStock(ctx, reservationID); err != nil {
		// The hold expires on its own after the TTL; failing to release
		// early is not fatal.
		mylogger.Warn(
			ctx,
			s.logger,
			"Failed to release reservation",
			zap.String("reservation_id", reservationID),
			zap.Error(err),
		)
	}
}
