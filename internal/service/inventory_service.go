package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stefans1510/fitness-shop/internal/domain"
	"github.com/stefans1510/fitness-shop/internal/repository"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InventoryService guards product stock against overselling across the
// asynchronous checkout flow. A reservation is a time-boxed hold that counts
// against availability without touching quantity_in_stock; committing a
// reservation converts the hold into a permanent decrement.
//
// Business outcomes are reported as booleans (insufficient stock, nothing to
// commit); errors are reserved for storage failures, which callers must treat
// as retryable-but-unconfirmed.
type InventoryService interface {
	CheckStockAvailability(ctx context.Context, productID int64, requestedQuantity int32) (bool, error)
	GetAvailableStock(ctx context.Context, productID int64) (int32, error)
	ReserveStock(ctx context.Context, items []domain.CartItem, reservationID string) (bool, error)
	CommitReservedStock(ctx context.Context, reservationID string) (bool, error)
	ReleaseReservedStock(ctx context.Context, reservationID string) error
}

type inventoryService struct {
	pool            *pgxpool.Pool
	productRepo     repository.ProductRepository
	reservationRepo repository.StockReservationRepository
	logger          *zap.Logger
	tracer          trace.Tracer
}

func NewInventoryService(
	pool *pgxpool.Pool,
	productRepo repository.ProductRepository,
	reservationRepo repository.StockReservationRepository,
	logger *zap.Logger,
) InventoryService {
	return &inventoryService{
		pool:            pool,
		productRepo:     productRepo,
		reservationRepo: reservationRepo,
		logger:          logger,
		tracer:          otel.Tracer("service/inventory_service"),
	}
}

func (s *inventoryService) CheckStockAvailability(ctx context.Context, productID int64, requestedQuantity int32) (bool, error) {
	available, err := s.GetAvailableStock(ctx, productID)
	if err != nil {
		return false, err
	}

	return available >= requestedQuantity, nil
}

// GetAvailableStock returns quantity_in_stock minus the sum of live holds,
// clamped at zero. The expires_at filter in the sum query is the source of
// truth for "live": expired-but-unswept rows never count here.
func (s *inventoryService) GetAvailableStock(ctx context.Context, productID int64) (int32, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.GetAvailableStock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
	)

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return 0, nil
		}

		return 0, err
	}

	reserved, err := s.reservationRepo.SumLiveReserved(ctx, s.pool, productID)
	if err != nil {
		return 0, err
	}

	return availableStock(product.QuantityInStock, reserved), nil
}

func availableStock(onHand, reserved int32) int32 {
	if available := onHand - reserved; available > 0 {
		return available
	}

	return 0
}

// ReserveStock places one hold per cart line under reservationID, all or
// nothing. Expired holds are swept first, then per-product row locks make the
// availability check and the insert atomic against concurrent reservations.
// A repeated call for an existing reservationID reports success without
// inserting anything.
func (s *inventoryService) ReserveStock(ctx context.Context, items []domain.CartItem, reservationID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.ReserveStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.Int("items_count", len(items)),
	)

	if len(items) == 0 {
		return false, fmt.Errorf("cannot reserve stock for an empty item list")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to begin transaction",
			zap.Error(err),
		)

		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	// Garbage-collect expired holds. Not required for correctness (the
	// availability query filters on expires_at anyway), but it keeps the
	// live-row set small.
	if swept, err := s.reservationRepo.DeleteExpired(ctx, tx); err != nil {
		return false, err
	} else if swept > 0 {
		mylogger.Info(
			ctx,
			s.logger,
			"Cleaned up expired reservations",
			zap.Int64("count", swept),
		)
	}

	// Lock the product rows so concurrent reservations for the same products
	// serialize here; without the locks two transactions could both observe
	// enough availability and together overcommit the stock.
	productIDs := make([]int64, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.productRepo.LockByIDs(ctx, tx, productIDs)
	if err != nil {
		return false, err
	}

	// The idempotency check sits behind the row locks: holds of one
	// reservation id always target the same products, so a concurrent retry
	// blocks above and then observes the rows the winner inserted.
	exists, err := s.reservationRepo.ExistsByReservationID(ctx, tx, reservationID)
	if err != nil {
		return false, err
	}
	if exists {
		mylogger.Warn(
			ctx,
			s.logger,
			"Reservation already exists",
			zap.String("reservation_id", reservationID),
		)

		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}

		return true, nil
	}

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			mylogger.Warn(
				ctx,
				s.logger,
				"Product not found during reservation",
				zap.Int64("product_id", item.ProductID),
			)

			return false, nil
		}

		reserved, err := s.reservationRepo.SumLiveReserved(ctx, tx, item.ProductID)
		if err != nil {
			return false, err
		}

		if available := availableStock(product.QuantityInStock, reserved); available < item.Quantity {
			mylogger.Warn(
				ctx,
				s.logger,
				"Insufficient stock for product",
				zap.Int64("product_id", item.ProductID),
				zap.Int32("available", available),
				zap.Int32("requested", item.Quantity),
			)

			return false, nil
		}
	}

	reservations := domain.NewReservations(items, reservationID, time.Now().UTC())
	if err := s.reservationRepo.InsertMany(ctx, tx, reservations); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))

		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Successfully reserved stock",
		zap.String("reservation_id", reservationID),
		zap.Int("items_count", len(items)),
	)

	return true, nil
}

// CommitReservedStock converts every uncommitted hold of reservationID into a
// permanent stock decrement, atomically. Calling it again finds no uncommitted
// rows and reports false; callers that cannot distinguish first-success from
// already-committed must treat that as non-fatal.
func (s *inventoryService) CommitReservedStock(ctx context.Context, reservationID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.CommitReservedStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to begin transaction",
			zap.Error(err),
		)

		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	reservations, err := s.reservationRepo.FindUncommittedForUpdate(ctx, tx, reservationID)
	if err != nil {
		return false, err
	}

	if len(reservations) == 0 {
		mylogger.Warn(
			ctx,
			s.logger,
			"No uncommitted reservations found",
			zap.String("reservation_id", reservationID),
		)

		return false, nil
	}

	productIDs := make([]int64, 0, len(reservations))
	for _, res := range reservations {
		productIDs = append(productIDs, res.ProductID)
	}

	products, err := s.productRepo.LockByIDs(ctx, tx, productIDs)
	if err != nil {
		return false, err
	}

	// On-hand stock dropping below an already-granted hold means the
	// reservation invariant was violated somewhere; surface it for the
	// operator and leave the order recoverable rather than oversell.
	for _, res := range reservations {
		product, ok := products[res.ProductID]
		if !ok || product.QuantityInStock < res.ReservedQuantity {
			mylogger.Error(
				ctx,
				s.logger,
				"Insufficient actual stock for reserved product",
				zap.Int64("product_id", res.ProductID),
				zap.String("reservation_id", reservationID),
				zap.Int32("reserved_quantity", res.ReservedQuantity),
			)

			return false, nil
		}
	}

	reservationIDs := make([]int64, 0, len(reservations))
	for _, res := range reservations {
		if err := s.productRepo.DecrementStock(ctx, tx, res.ProductID, res.ReservedQuantity); err != nil {
			return false, err
		}

		reservationIDs = append(reservationIDs, res.ID)
	}

	if err := s.reservationRepo.MarkCommitted(ctx, tx, reservationIDs); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))

		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Successfully committed reserved stock",
		zap.String("reservation_id", reservationID),
		zap.Int("lines", len(reservations)),
	)

	return true, nil
}

// ReleaseReservedStock drops all uncommitted holds of reservationID. Releasing
// an unknown or already-resolved reservation is a no-op, not an error.
func (s *inventoryService) ReleaseReservedStock(ctx context.Context, reservationID string) error {
	ctx, span := s.tracer.Start(ctx, "InventoryService.ReleaseReservedStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to begin transaction",
			zap.Error(err),
		)

		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	released, err := s.reservationRepo.DeleteUncommitted(ctx, tx, reservationID)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))

		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if released > 0 {
		mylogger.Info(
			ctx,
			s.logger,
			"Released stock reservations",
			zap.String("reservation_id", reservationID),
			zap.Int64("count", released),
		)
	}

	return nil
}

func (s *inventoryService) rollback(ctx context.Context, tx pgx.Tx) {
	shutdownCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		mylogger.Warn(
			shutdownCtx,
			s.logger,
			"Failed to rollback transaction",
			zap.Error(err),
		)
	}
}
