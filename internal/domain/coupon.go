package domain

type Coupon struct {
	ID         int64    `db:"id"`
	Name       string   `db:"name"`
	Code       string   `db:"code"`
	AmountOff  *int64   `db:"amount_off"`  // cents
	PercentOff *float64 `db:"percent_off"` // 0..100
}

// Discount computes the coupon's discount in cents for the given amount.
// A coupon carries either a fixed amount or a percentage, never both.
func (c *Coupon) Discount(amount int64) int64 {
	if c.AmountOff != nil {
		if *c.AmountOff > amount {
			return amount
		}
		return *c.AmountOff
	}

	if c.PercentOff != nil {
		return int64(float64(amount) * *c.PercentOff / 100)
	}

	return 0
}
