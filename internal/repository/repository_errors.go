package repository

import "errors"

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderAlreadyExists    = errors.New("order already exists for this payment intent")
	ErrCouponNotFound        = errors.New("coupon not found")
	ErrDeliveryMethodUnknown = errors.New("delivery method not found")
)
