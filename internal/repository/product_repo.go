package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, limit, offset int) ([]domain.Product, error)
	ListDeliveryMethods(ctx context.Context) ([]domain.DeliveryMethod, error)
	// LockByIDs takes row locks on the given products inside tx, ordered by id
	// so concurrent multi-product reservations cannot deadlock. Returns the
	// locked rows keyed by product id.
	LockByIDs(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*domain.Product, error)
	DecrementStock(ctx context.Context, tx pgx.Tx, id int64, quantity int32) error
	GetDeliveryMethod(ctx context.Context, id int64) (*domain.DeliveryMethod, error)
}

type productRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/product_repo"),
	}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
	)

	query := `
		SELECT id, name, description, price, quantity_in_stock,
		picture_url, brand, type, created_at, updated_at
		FROM products
		WHERE id = $1;
	`

	var res domain.Product
	if err := r.pool.QueryRow(ctx, query, id).
		Scan(&res.ID, &res.Name, &res.Description, &res.Price,
			&res.QuantityInStock, &res.PictureURL, &res.Brand,
			&res.Type, &res.CreatedAt, &res.UpdatedAt,
		); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error get product by id",
			zap.Int64("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return &res, nil
}

func (r *productRepo) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	query := `
		SELECT id, name, description, price, quantity_in_stock,
		picture_url, brand, type, created_at, updated_at
		FROM products
		ORDER BY id
		LIMIT $1 OFFSET $2;
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error listing products",
			zap.Error(err),
		)

		return nil, fmt.Errorf("error listing products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price,
			&p.QuantityInStock, &p.PictureURL, &p.Brand,
			&p.Type, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning product row: %w", err)
		}

		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return products, nil
}

func (r *productRepo) ListDeliveryMethods(ctx context.Context) ([]domain.DeliveryMethod, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.ListDeliveryMethods")
	defer span.End()

	query := `
		SELECT id, short_name, delivery_time, price
		FROM delivery_methods
		ORDER BY price;
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error listing delivery methods: %w", err)
	}
	defer rows.Close()

	var methods []domain.DeliveryMethod
	for rows.Next() {
		var dm domain.DeliveryMethod
		if err := rows.Scan(&dm.ID, &dm.ShortName, &dm.DeliveryTime, &dm.Price); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning delivery method row: %w", err)
		}

		methods = append(methods, dm)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return methods, nil
}

func (r *productRepo) LockByIDs(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.LockByIDs")
	defer span.End()

	span.SetAttributes(
		attribute.Int("ids_count", len(ids)),
	)

	query := `
		SELECT id, name, price, quantity_in_stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE;
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to lock product rows",
			zap.Error(err),
		)

		return nil, fmt.Errorf("error locking products: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]*domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.QuantityInStock); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning product row: %w", err)
		}

		result[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

func (r *productRepo) DecrementStock(ctx context.Context, tx pgx.Tx, id int64, quantity int32) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DecrementStock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
		attribute.Int("quantity", int(quantity)),
	)

	query := `
		UPDATE products
		SET quantity_in_stock = quantity_in_stock - $2, updated_at = NOW()
		WHERE id = $1
			AND quantity_in_stock >= $2;
	`

	commandTag, err := tx.Exec(ctx, query, id, quantity)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error decrementing stock",
			zap.Int64("id", id),
			zap.Int32("quantity", quantity),
			zap.Error(err),
		)

		return fmt.Errorf("error decrementing stock for product %d: %w", id, err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}

	return nil
}

func (r *productRepo) GetDeliveryMethod(ctx context.Context, id int64) (*domain.DeliveryMethod, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetDeliveryMethod")
	defer span.End()

	query := `
		SELECT id, short_name, delivery_time, price
		FROM delivery_methods
		WHERE id = $1;
	`

	var dm domain.DeliveryMethod
	if err := r.pool.QueryRow(ctx, query, id).
		Scan(&dm.ID, &dm.ShortName, &dm.DeliveryTime, &dm.Price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliveryMethodUnknown
		}

		span.RecordError(err)

		return nil, fmt.Errorf("error getting delivery method: %w", err)
	}

	return &dm, nil
}
