package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stefans1510/fitness-shop/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

type couponRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewCouponRepository(pool *pgxpool.Pool, logger *zap.Logger) CouponRepository {
	return &couponRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/coupon_repo"),
	}
}

func (r *couponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	ctx, span := r.tracer.Start(ctx, "CouponRepository.GetByCode")
	defer span.End()

	span.SetAttributes(
		attribute.String("code", code),
	)

	query := `
		SELECT id, name, code, amount_off, percent_off
		FROM coupons
		WHERE code = $1;
	`

	var coupon domain.Coupon
	if err := r.pool.QueryRow(ctx, query, strings.ToUpper(code)).
		Scan(&coupon.ID, &coupon.Name, &coupon.Code, &coupon.AmountOff, &coupon.PercentOff); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("error getting coupon: %w", err)
	}

	return &coupon, nil
}
