package domain

import "time"

// PaymentConfirmedEvent is what the payment provider delivers, either through
// the synchronous webhook or replayed over the payment_events topic. Delivery
// is at-least-once; handlers must tolerate duplicates.
type PaymentConfirmedEvent struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"` // cents
}

const PaymentStatusSucceeded = "succeeded"

type OrderCreatedEvent struct {
	OrderID         int64     `json:"order_id"`
	BuyerEmail      string    `json:"buyer_email"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Total           int64     `json:"total"`
	CreatedAt       time.Time `json:"created_at"`
}

type OrderPaidEvent struct {
	OrderID         int64     `json:"order_id"`
	BuyerEmail      string    `json:"buyer_email"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Amount          int64     `json:"amount"`
	PaidAt          time.Time `json:"paid_at"`
}

type OrderPaymentMismatchEvent struct {
	OrderID         int64  `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	ExpectedAmount  int64  `json:"expected_amount"`
	ConfirmedAmount int64  `json:"confirmed_amount"`
}
