package service

import (
	"context"
	"errors"

	"github.com/stefans1510/fitness-shop/internal/repository"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CouponService interface {
	// CalculateDiscount returns the discount in cents for the given amount.
	// An unknown code yields zero discount rather than an error.
	CalculateDiscount(ctx context.Context, code string, amount int64) (int64, error)
}

type couponService struct {
	couponRepo repository.CouponRepository
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewCouponService(couponRepo repository.CouponRepository, logger *zap.Logger) CouponService {
	return &couponService{
		couponRepo: couponRepo,
		logger:     logger,
		tracer:     otel.Tracer("service/coupon_service"),
	}
}

func (s *couponService) CalculateDiscount(ctx context.Context, code string, amount int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "CouponService.CalculateDiscount")
	defer span.End()

	span.SetAttributes(
		attribute.String("code", code),
		attribute.Int64("amount", amount),
	)

	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			mylogger.Warn(
				ctx,
				s.logger,
				"Unknown coupon code",
				zap.String("code", code),
			)

			return 0, nil
		}

		return 0, err
	}

	discount := coupon.Discount(amount)

	span.SetAttributes(
		attribute.Int64("discount", discount),
	)

	return discount, nil
}
