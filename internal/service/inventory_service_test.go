package service

import (
	"sync"
	"time"

	"github.com/stefans1510/fitness-shop/internal/domain"
)

func (s *IntegrationTestSuite) TestReserveStock_Success() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	reserved, err := s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 6},
	}, "pi_reserve_ok")
	s.Require().NoError(err)
	s.Require().True(reserved)

	available, err := s.InventoryService.GetAvailableStock(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().EqualValues(4, available)

	// Holding stock must not touch the on-hand count.
	s.Require().EqualValues(10, s.onHandStock(1))
}

func (s *IntegrationTestSuite) TestReserveStock_InsufficientAvailability() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	reserved, err := s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 6},
	}, "pi_first")
	s.Require().NoError(err)
	s.Require().True(reserved)

	// 4 available left, 6 requested.
	reserved, err = s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 6},
	}, "pi_second")
	s.Require().NoError(err)
	s.Require().False(reserved)

	s.Require().Equal(0, s.reservationRowCount("pi_second"))
	s.Require().EqualValues(10, s.onHandStock(1))
}

func (s *IntegrationTestSuite) TestReserveStock_Idempotent() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	items := []domain.CartItem{{ProductID: 1, Quantity: 6}}

	reserved, err := s.InventoryService.ReserveStock(s.Ctx, items, "pi_retry")
	s.Require().NoError(err)
	s.Require().True(reserved)

	// A retried checkout with the same intent id succeeds without doubling
	// the hold, even though 12 units would not fit in stock.
	reserved, err = s.InventoryService.ReserveStock(s.Ctx, items, "pi_retry")
	s.Require().NoError(err)
	s.Require().True(reserved)

	s.Require().Equal(1, s.reservationRowCount("pi_retry"))

	available, err := s.InventoryService.GetAvailableStock(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().EqualValues(4, available)
}

func (s *IntegrationTestSuite) TestReserveStock_MultiItem_AllOrNothing() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)
	s.seedProduct(2, "Yoga Mat", 2000, 1)

	reserved, err := s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 5},
	}, "pi_partial")
	s.Require().NoError(err)
	s.Require().False(reserved)

	// The first item fit but must not be held when the second one did not.
	s.Require().Equal(0, s.reservationRowCount("pi_partial"))
}

func (s *IntegrationTestSuite) TestReserveStock_Concurrent() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	ids := []string{"pi_race_a", "pi_race_b"}
	results := make([]bool, len(ids))
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			results[n], errs[n] = s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
				{ProductID: 1, Quantity: 6},
			}, ids[n])
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		s.Require().NoError(err)
	}

	succeeded := 0
	for _, ok := range results {
		if ok {
			succeeded++
		}
	}

	// Two holds of 6 against 10 units: exactly one may win.
	s.Require().Equal(1, succeeded)
}

func (s *IntegrationTestSuite) TestReserveStock_ConcurrentSameReservation() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	results := make([]bool, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			results[n], errs[n] = s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
				{ProductID: 1, Quantity: 6},
			}, "pi_same_intent")
		}(i)
	}

	wg.Wait()

	// Retries of the same checkout serialize on the product row locks; the
	// loser observes the winner's rows instead of doubling the hold.
	for i := range results {
		s.Require().NoError(errs[i])
		s.Require().True(results[i])
	}

	s.Require().Equal(1, s.reservationRowCount("pi_same_intent"))

	available, err := s.InventoryService.GetAvailableStock(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().EqualValues(4, available)
}

func (s *IntegrationTestSuite) TestCommitReservedStock() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	reserved, err := s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 6},
	}, "pi_commit")
	s.Require().NoError(err)
	s.Require().True(reserved)

	committed, err := s.InventoryService.CommitReservedStock(s.Ctx, "pi_commit")
	s.Require().NoError(err)
	s.Require().True(committed)

	s.Require().EqualValues(4, s.onHandStock(1))

	// Committed rows no longer count against availability.
	available, err := s.InventoryService.GetAvailableStock(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().EqualValues(4, available)

	// A duplicate commit finds no uncommitted rows and must not deduct again.
	committed, err = s.InventoryService.CommitReservedStock(s.Ctx, "pi_commit")
	s.Require().NoError(err)
	s.Require().False(committed)

	s.Require().EqualValues(4, s.onHandStock(1))
}

func (s *IntegrationTestSuite) TestCommitReservedStock_StockShrunk() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)
	s.seedProduct(2, "Yoga Mat", 2000, 10)

	reserved, err := s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 6},
	}, "pi_shrunk")
	s.Require().NoError(err)
	s.Require().True(reserved)

	// On-hand stock drops below the granted hold, e.g. a manual correction.
	_, err = s.DbPool.Exec(s.Ctx, `UPDATE products SET quantity_in_stock = 4 WHERE id = 2`)
	s.Require().NoError(err)

	committed, err := s.InventoryService.CommitReservedStock(s.Ctx, "pi_shrunk")
	s.Require().NoError(err)
	s.Require().False(committed)

	// The refusal covers the whole reservation: the first line had enough
	// stock but must not be deducted when the second one did not.
	s.Require().EqualValues(10, s.onHandStock(1))
	s.Require().EqualValues(4, s.onHandStock(2))

	var committedRows int
	err = s.DbPool.QueryRow(
		s.Ctx,
		`SELECT COUNT(*) FROM stock_reservations WHERE reservation_id = $1 AND is_committed`,
		"pi_shrunk",
	).Scan(&committedRows)
	s.Require().NoError(err)
	s.Require().Zero(committedRows)
}

func (s *IntegrationTestSuite) TestCommitReservedStock_UnknownReservation() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	committed, err := s.InventoryService.CommitReservedStock(s.Ctx, "pi_nothing")
	s.Require().NoError(err)
	s.Require().False(committed)
}

func (s *IntegrationTestSuite) TestReleaseReservedStock() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	reserved, err := s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 6},
	}, "pi_release")
	s.Require().NoError(err)
	s.Require().True(reserved)

	s.Require().NoError(s.InventoryService.ReleaseReservedStock(s.Ctx, "pi_release"))

	available, err := s.InventoryService.GetAvailableStock(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().EqualValues(10, available)

	s.Require().Equal(0, s.reservationRowCount("pi_release"))

	// Releasing a reservation that never existed is a quiet no-op.
	s.Require().NoError(s.InventoryService.ReleaseReservedStock(s.Ctx, "pi_never_was"))
}

func (s *IntegrationTestSuite) TestRelease_DoesNotTouchCommittedRows() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	reserved, err := s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 6},
	}, "pi_paid")
	s.Require().NoError(err)
	s.Require().True(reserved)

	committed, err := s.InventoryService.CommitReservedStock(s.Ctx, "pi_paid")
	s.Require().NoError(err)
	s.Require().True(committed)

	s.Require().NoError(s.InventoryService.ReleaseReservedStock(s.Ctx, "pi_paid"))

	// The committed row is the audit trail of the sale; release must keep it.
	s.Require().Equal(1, s.reservationRowCount("pi_paid"))
	s.Require().EqualValues(4, s.onHandStock(1))
}

func (s *IntegrationTestSuite) TestExpiredReservations_IgnoredAndSwept() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	expiredAt := time.Now().Add(-time.Minute)
	_, err := s.DbPool.Exec(
		s.Ctx,
		`INSERT INTO stock_reservations
			(reservation_id, product_id, reserved_quantity, reserved_at, expires_at, is_committed)
		VALUES ($1, 1, 6, $2, $3, FALSE)`,
		"pi_expired", expiredAt.Add(-domain.ReservationTTL), expiredAt,
	)
	s.Require().NoError(err)

	// The expired hold no longer counts against availability.
	available, err := s.InventoryService.GetAvailableStock(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().EqualValues(10, available)

	// The next reservation attempt sweeps the expired row physically.
	reserved, err := s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 8},
	}, "pi_after_expiry")
	s.Require().NoError(err)
	s.Require().True(reserved)

	s.Require().Equal(0, s.reservationRowCount("pi_expired"))
	s.Require().Equal(1, s.reservationRowCount("pi_after_expiry"))
}

func (s *IntegrationTestSuite) TestCheckStockAvailability() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	ok, err := s.InventoryService.CheckStockAvailability(s.Ctx, 1, 10)
	s.Require().NoError(err)
	s.Require().True(ok)

	ok, err = s.InventoryService.CheckStockAvailability(s.Ctx, 1, 11)
	s.Require().NoError(err)
	s.Require().False(ok)
}

func (s *IntegrationTestSuite) TestGetAvailableStock_UnknownProduct() {
	available, err := s.InventoryService.GetAvailableStock(s.Ctx, 404)
	s.Require().NoError(err)
	s.Require().EqualValues(0, available)
}

func (s *IntegrationTestSuite) TestReserveStock_EmptyItems() {
	_, err := s.InventoryService.ReserveStock(s.Ctx, nil, "pi_empty")
	s.Require().Error(err)
}

// Walks one hold through its whole life against a second competing checkout.
func (s *IntegrationTestSuite) TestReservationLifecycle() {
	s.seedProduct(1, "Kettlebell 16kg", 4500, 10)

	reserved, err := s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 4},
	}, "pi_1")
	s.Require().NoError(err)
	s.Require().True(reserved)

	available, err := s.InventoryService.GetAvailableStock(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().EqualValues(6, available)

	// A second checkout wanting 7 has to be refused while the hold is live.
	reserved, err = s.InventoryService.ReserveStock(s.Ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 7},
	}, "pi_2")
	s.Require().NoError(err)
	s.Require().False(reserved)
	s.Require().Equal(0, s.reservationRowCount("pi_2"))

	committed, err := s.InventoryService.CommitReservedStock(s.Ctx, "pi_1")
	s.Require().NoError(err)
	s.Require().True(committed)

	s.Require().EqualValues(6, s.onHandStock(1))

	available, err = s.InventoryService.GetAvailableStock(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().EqualValues(6, available)

	// After the commit, release has nothing uncommitted left to delete.
	s.Require().NoError(s.InventoryService.ReleaseReservedStock(s.Ctx, "pi_1"))
	s.Require().Equal(1, s.reservationRowCount("pi_1"))

	committed, err = s.InventoryService.CommitReservedStock(s.Ctx, "pi_1")
	s.Require().NoError(err)
	s.Require().False(committed)
	s.Require().EqualValues(6, s.onHandStock(1))
}
