package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPaymentReceived OrderStatus = "payment_received"
	OrderStatusPaymentMismatch OrderStatus = "payment_mismatch"
	OrderStatusRefunded        OrderStatus = "refunded"
)

type Order struct {
	ID              int64       `db:"id" json:"id"`
	BuyerEmail      string      `db:"buyer_email" json:"buyer_email"`
	PaymentIntentID string      `db:"payment_intent_id" json:"payment_intent_id"`
	Status          OrderStatus `db:"status" json:"status"`
	Items           []OrderItem `db:"items" json:"items"`
	Subtotal        int64       `db:"subtotal" json:"subtotal"`             // cents
	ShippingPrice   int64       `db:"shipping_price" json:"shipping_price"` // cents
	Discount        int64       `db:"discount" json:"discount"`             // cents

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	PictureURL  string `db:"picture_url" json:"picture_url"`
	Price       int64  `db:"price" json:"price"` // cents
	Quantity    int32  `db:"quantity" json:"quantity"`
}

func (o *Order) CalculateSubtotal() {
	var total int64
	for _, item := range o.Items {
		total += item.Price * int64(item.Quantity)
	}
	o.Subtotal = total
}

// Total is the amount the payment provider is expected to confirm, in cents.
func (o *Order) Total() int64 {
	return o.Subtotal + o.ShippingPrice - o.Discount
}

func (o *Order) CartItems() []CartItem {
	items := make([]CartItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, CartItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			PictureURL:  item.PictureURL,
		})
	}

	return items
}
