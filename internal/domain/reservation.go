package domain

import "time"

// ReservationTTL is how long an uncommitted stock hold stays live. Holds older
// than this stop counting toward availability and get swept on the next reserve.
const ReservationTTL = 30 * time.Minute

// StockReservation is a provisional hold against a product's sellable stock.
// All holds of one checkout attempt share the ReservationID (the payment
// intent id), one row per cart line. ReservedQuantity is fixed at creation;
// the only mutation ever applied to a row is the flip of
// IsCommitted when the hold is converted into a stock decrement.
type StockReservation struct {
	ID               int64     `db:"id" json:"id"`
	ReservationID    string    `db:"reservation_id" json:"reservation_id"` // payment intent id
	ProductID        int64     `db:"product_id" json:"product_id"`
	ReservedQuantity int32     `db:"reserved_quantity" json:"reserved_quantity"`
	ReservedAt       time.Time `db:"reserved_at" json:"reserved_at"`
	ExpiresAt        time.Time `db:"expires_at" json:"expires_at"`
	IsCommitted      bool      `db:"is_committed" json:"is_committed"`
}

func (r StockReservation) IsLive(now time.Time) bool {
	return !r.IsCommitted && r.ExpiresAt.After(now)
}

// NewReservations builds one hold per cart line, all stamped with the same
// creation time and TTL.
func NewReservations(items []CartItem, reservationID string, now time.Time) []StockReservation {
	reservations := make([]StockReservation, 0, len(items))
	for _, item := range items {
		reservations = append(reservations, StockReservation{
			ReservationID:    reservationID,
			ProductID:        item.ProductID,
			ReservedQuantity: item.Quantity,
			ReservedAt:       now,
			ExpiresAt:        now.Add(ReservationTTL),
			IsCommitted:      false,
		})
	}

	return reservations
}
