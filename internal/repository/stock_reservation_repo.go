package repository

import (
	"context"
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

// Queryer is satisfied by both *pgxpool.Pool and pgx.Tx, so the live-hold sum
// can run on the pool for the display path and inside the reservation
// transaction for the gate.
// Queryer is the read surface shared by *pgxpool.Pool and pgx.Tx, so the same
// query can serve both the display path and a transaction.
type Queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type StockReservationRepository interface {
	FindByReservationID(ctx context.Context, reservationID string) ([]domain.StockReservation, error)
	FindByProduct(ctx context.Context, productID int64) ([]domain.StockReservation, error)
	ExistsByReservationID(ctx context.Context, tx pgx.Tx, reservationID string) (bool, error)
	// FindUncommittedForUpdate loads and row-locks all uncommitted holds of a
	// reservation so a concurrent commit or release for the same id serializes.
	FindUncommittedForUpdate(ctx context.Context, tx pgx.Tx, reservationID string) ([]domain.StockReservation, error)
	InsertMany(ctx context.Context, tx pgx.Tx, reservations []domain.StockReservation) error
	MarkCommitted(ctx context.Context, tx pgx.Tx, ids []int64) error
	DeleteUncommitted(ctx context.Context, tx pgx.Tx, reservationID string) (int64, error)
	DeleteExpired(ctx context.Context, tx pgx.Tx) (int64, error)
	// SumLiveReserved totals reserved_quantity over live holds of a product,
	// where live means uncommitted and not yet expired.
	SumLiveReserved(ctx context.Context, q Queryer, productID int64) (int32, error)
}

type stockReservationRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewStockReservationRepository(pool *pgxpool.Pool, logger *zap.Logger) StockReservationRepository {
	return &stockReservationRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/stock_reservation_repo"),
	}
}

const reservationColumns = `id, reservation_id, product_id, reserved_quantity, reserved_at, expires_at, is_committed`

func scanReservations(rows pgx.Rows) ([]domain.StockReservation, error) {
	defer rows.Close()

	var result []domain.StockReservation
	for rows.Next() {
		var res domain.StockReservation
		if err := rows.Scan(
			&res.ID,
			&res.ReservationID,
			&res.ProductID,
			&res.ReservedQuantity,
			&res.ReservedAt,
			&res.ExpiresAt,
			&res.IsCommitted,
		); err != nil {
			return nil, fmt.Errorf("error scanning reservation: %w", err)
		}

		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

func (r *stockReservationRepo) FindByReservationID(ctx context.Context, reservationID string) ([]domain.StockReservation, error) {
	ctx, span := r.tracer.Start(ctx, "StockReservationRepository.FindByReservationID")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
	)

	query := `
		SELECT ` + reservationColumns + `
		FROM stock_reservations
		WHERE reservation_id = $1;
	`

	rows, err := r.pool.Query(ctx, query, reservationID)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error querying reservations: %w", err)
	}

	return scanReservations(rows)
}

func (r *stockReservationRepo) FindByProduct(ctx context.Context, productID int64) ([]domain.StockReservation, error) {
	ctx, span := r.tracer.Start(ctx, "StockReservationRepository.FindByProduct")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
	)

	query := `
		SELECT ` + reservationColumns + `
		FROM stock_reservations
		WHERE product_id = $1;
	`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error querying reservations: %w", err)
	}

	return scanReservations(rows)
}

func (r *stockReservationRepo) ExistsByReservationID(ctx context.Context, tx pgx.Tx, reservationID string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "StockReservationRepository.ExistsByReservationID")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
	)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM stock_reservations WHERE reservation_id = $1
		);
	`

	var exists bool
	if err := tx.QueryRow(ctx, query, reservationID).Scan(&exists); err != nil {
		span.RecordError(err)

		return false, fmt.Errorf("error checking reservation existence: %w", err)
	}

	return exists, nil
}

func (r *stockReservationRepo) FindUncommittedForUpdate(ctx context.Context, tx pgx.Tx, reservationID string) ([]domain.StockReservation, error) {
	ctx, span := r.tracer.Start(ctx, "StockReservationRepository.FindUncommittedForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
	)

	query := `
		SELECT ` + reservationColumns + `
		FROM stock_reservations
		WHERE reservation_id = $1 AND is_committed = FALSE
		ORDER BY product_id
		FOR UPDATE;
	`

	rows, err := tx.Query(ctx, query, reservationID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to lock reservations",
			zap.String("reservation_id", reservationID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error locking reservations: %w", err)
	}

	return scanReservations(rows)
}

func (r *stockReservationRepo) InsertMany(ctx context.Context, tx pgx.Tx, reservations []domain.StockReservation) error {
	ctx, span := r.tracer.Start(ctx, "StockReservationRepository.InsertMany")
	defer span.End()

	span.SetAttributes(
		attribute.Int("count", len(reservations)),
	)

	query := `
		INSERT INTO stock_reservations
			(reservation_id, product_id, reserved_quantity, reserved_at, expires_at, is_committed)
		VALUES ($1, $2, $3, $4, $5, $6);
	`

	batch := &pgx.Batch{}
	for _, res := range reservations {
		batch.Queue(
			query,
			res.ReservationID,
			res.ProductID,
			res.ReservedQuantity,
			res.ReservedAt,
			res.ExpiresAt,
			res.IsCommitted,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert reservations",
			zap.Error(err),
		)

		return fmt.Errorf("error inserting reservations: %w", err)
	}

	return nil
}

func (r *stockReservationRepo) MarkCommitted(ctx context.Context, tx pgx.Tx, ids []int64) error {
	ctx, span := r.tracer.Start(ctx, "StockReservationRepository.MarkCommitted")
	defer span.End()

	span.SetAttributes(
		attribute.Int("count", len(ids)),
	)

	query := `
		UPDATE stock_reservations
		SET is_committed = TRUE
		WHERE id = ANY($1);
	`

	if _, err := tx.Exec(ctx, query, ids); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to mark reservations committed",
			zap.Error(err),
		)

		return fmt.Errorf("error marking reservations committed: %w", err)
	}

	return nil
}

func (r *stockReservationRepo) DeleteUncommitted(ctx context.Context, tx pgx.Tx, reservationID string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "StockReservationRepository.DeleteUncommitted")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
	)

	query := `
		DELETE FROM stock_reservations
		WHERE reservation_id = $1 AND is_committed = FALSE;
	`

	commandTag, err := tx.Exec(ctx, query, reservationID)
	if err != nil {
		span.RecordError(err)

		return 0, fmt.Errorf("error deleting reservations: %w", err)
	}

	return commandTag.RowsAffected(), nil
}

func (r *stockReservationRepo) DeleteExpired(ctx context.Context, tx pgx.Tx) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "StockReservationRepository.DeleteExpired")
	defer span.End()

	query := `
		DELETE FROM stock_reservations
		WHERE is_committed = FALSE AND expires_at <= NOW();
	`

	commandTag, err := tx.Exec(ctx, query)
	if err != nil {
		span.RecordError(err)

		return 0, fmt.Errorf("error deleting expired reservations: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("deleted_count", commandTag.RowsAffected()),
	)

	return commandTag.RowsAffected(), nil
}

func (r *stockReservationRepo) SumLiveReserved(ctx context.Context, q Queryer, productID int64) (int32, error) {
	ctx, span := r.tracer.Start(ctx, "StockReservationRepository.SumLiveReserved")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
	)

	query := `
		SELECT COALESCE(SUM(reserved_quantity), 0)
		FROM stock_reservations
		WHERE product_id = $1
			AND is_committed = FALSE
			AND expires_at > NOW();
	`

	var total int32
	if err := q.QueryRow(ctx, query, productID).Scan(&total); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to sum live reservations",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)

		return 0, fmt.Errorf("error summing live reservations: %w", err)
	}

	return total, nil
}
