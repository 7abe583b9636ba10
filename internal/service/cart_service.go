package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrCartNotFound = errors.New("cart not found")

// Carts live in Redis under their cart id, expiring after a month of
// inactivity like any abandoned basket.
const cartTTL = 30 * 24 * time.Hour

type CartService interface {
	GetCart(ctx context.Context, cartID string) (*domain.ShoppingCart, error)
	SetCart(ctx context.Context, cart *domain.ShoppingCart) (*domain.ShoppingCart, error)
	DeleteCart(ctx context.Context, cartID string) error
}

type cartService struct {
	rdb    *redis.Client
	logger *zap.Logger
	tracer trace.Tracer
}

func NewCartService(rdb *redis.Client, logger *zap.Logger) CartService {
	return &cartService{
		rdb:    rdb,
		logger: logger,
		tracer: otel.Tracer("service/cart_service"),
	}
}

func cartKey(cartID string) string {
	return "cart:" + cartID
}

func (s *cartService) GetCart(ctx context.Context, cartID string) (*domain.ShoppingCart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.GetCart")
	defer span.End()

	span.SetAttributes(
		attribute.String("cart_id", cartID),
	)

	data, err := s.rdb.Get(ctx, cartKey(cartID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCartNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			s.logger,
			"Failed to get cart from redis",
			zap.String("cart_id", cartID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	var cart domain.ShoppingCart
	if err := json.Unmarshal(data, &cart); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}

	return &cart, nil
}

func (s *cartService) SetCart(ctx context.Context, cart *domain.ShoppingCart) (*domain.ShoppingCart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.SetCart")
	defer span.End()

	span.SetAttributes(
		attribute.String("cart_id", cart.ID),
		attribute.Int("items_count", len(cart.Items)),
	)

	data, err := json.Marshal(cart)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to marshal cart: %w", err)
	}

	if err := s.rdb.Set(ctx, cartKey(cart.ID), data, cartTTL).Err(); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			s.logger,
			"Failed to save cart to redis",
			zap.String("cart_id", cart.ID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	return cart, nil
}

func (s *cartService) DeleteCart(ctx context.Context, cartID string) error {
	ctx, span := s.tracer.Start(ctx, "CartService.DeleteCart")
	defer span.End()

	span.SetAttributes(
		attribute.String("cart_id", cartID),
	)

	if err := s.rdb.Del(ctx, cartKey(cartID)).Err(); err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to delete cart: %w", err)
	}

	return nil
}
