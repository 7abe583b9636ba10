package domain

type ShoppingCart struct {
	ID               string     `json:"id"`
	Items            []CartItem `json:"items"`
	DeliveryMethodID *int64     `json:"delivery_method_id,omitempty"`
	CouponCode       string     `json:"coupon_code,omitempty"`
	PaymentIntentID  string     `json:"payment_intent_id,omitempty"`
	ClientSecret     string     `json:"client_secret,omitempty"`
}

type CartItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"` // cents
	Quantity    int32  `json:"quantity"`
	PictureURL  string `json:"picture_url"`
}

// Subtotal is the cart total in cents before shipping and discount.
func (c *ShoppingCart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}

	return total
}
