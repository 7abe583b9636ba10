package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// GetByPaymentIntentForUpdate locks the order row inside tx so duplicate
	// payment confirmations for the same intent serialize on it.
	GetByPaymentIntentForUpdate(ctx context.Context, tx pgx.Tx, paymentIntentID string) (*domain.Order, error)
	ChangeOrderStatus(ctx context.Context, tx pgx.Tx, orderID int64, status domain.OrderStatus) error
	ListByBuyer(ctx context.Context, buyerEmail string) ([]domain.Order, error)
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/order_repo"),
	}
}

func (r *orderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_intent_id", order.PaymentIntentID),
		attribute.Int("items_count", len(order.Items)),
	)

	queryOrder := `
		INSERT INTO orders
			(buyer_email, payment_intent_id, status, subtotal, shipping_price, discount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at;
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.BuyerEmail,
		order.PaymentIntentID,
		string(order.Status),
		order.Subtotal,
		order.ShippingPrice,
		order.Discount,
	).Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		var pgError *pgconn.PgError
		if errors.As(err, &pgError) {
			if pgError.Code == "23505" {
				mylogger.Warn(
					ctx,
					r.logger,
					"Order already exists for payment intent",
					zap.String("payment_intent_id", order.PaymentIntentID),
				)

				return ErrOrderAlreadyExists
			}
		}

		mylogger.Warn(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (order_id, product_id, product_name, picture_url, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6);
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		if _, err := tx.Exec(
			ctx,
			queryItem,
			order.ID,
			item.ProductID,
			item.ProductName,
			item.PictureURL,
			item.Price,
			item.Quantity,
		); err != nil {
			span.RecordError(err)

			mylogger.Error(
				ctx,
				r.logger,
				"Failed to insert order item",
				zap.Error(err),
			)

			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
	)

	query := `
		SELECT id, buyer_email, payment_intent_id, status, subtotal, shipping_price, discount, created_at, updated_at
		FROM orders
		WHERE id = $1;
	`

	var order domain.Order
	if err := r.pool.QueryRow(ctx, query, id).
		Scan(&order.ID, &order.BuyerEmail, &order.PaymentIntentID, &order.Status,
			&order.Subtotal, &order.ShippingPrice, &order.Discount,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("error getting order: %w", err)
	}

	items, err := r.loadItems(ctx, r.pool, order.ID)
	if err != nil {
		span.RecordError(err)

		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (r *orderRepo) GetByPaymentIntentForUpdate(ctx context.Context, tx pgx.Tx, paymentIntentID string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByPaymentIntentForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_intent_id", paymentIntentID),
	)

	query := `
		SELECT id, buyer_email, payment_intent_id, status, subtotal, shipping_price, discount, created_at, updated_at
		FROM orders
		WHERE payment_intent_id = $1
		FOR UPDATE;
	`

	var order domain.Order
	if err := tx.QueryRow(ctx, query, paymentIntentID).
		Scan(&order.ID, &order.BuyerEmail, &order.PaymentIntentID, &order.Status,
			&order.Subtotal, &order.ShippingPrice, &order.Discount,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to lock order by payment intent",
			zap.String("payment_intent_id", paymentIntentID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error locking order: %w", err)
	}

	items, err := r.loadItems(ctx, tx, order.ID)
	if err != nil {
		span.RecordError(err)

		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (r *orderRepo) ChangeOrderStatus(ctx context.Context, tx pgx.Tx, orderID int64, status domain.OrderStatus) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ChangeOrderStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.String("status", string(status)),
	)

	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2;
	`

	commandTag, err := tx.Exec(ctx, query, string(status), orderID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update order status",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to update order status: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		mylogger.Warn(
			ctx,
			r.logger,
			"Order not found",
			zap.Int64("order_id", orderID),
		)

		return ErrOrderNotFound
	}

	return nil
}

func (r *orderRepo) ListByBuyer(ctx context.Context, buyerEmail string) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListByBuyer")
	defer span.End()

	query := `
		SELECT id, buyer_email, payment_intent_id, status, subtotal, shipping_price, discount, created_at, updated_at
		FROM orders
		WHERE buyer_email = $1
		ORDER BY created_at DESC;
	`

	rows, err := r.pool.Query(ctx, query, buyerEmail)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error listing orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.BuyerEmail, &order.PaymentIntentID, &order.Status,
			&order.Subtotal, &order.ShippingPrice, &order.Discount,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning order: %w", err)
		}

		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, r.pool, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *orderRepo) loadItems(ctx context.Context, q Queryer, orderID int64) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, picture_url, price, quantity
		FROM order_items
		WHERE order_id = $1;
	`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("error querying order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.PictureURL,
			&item.Price,
			&item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("error scanning order item: %w", err)
		}

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}
