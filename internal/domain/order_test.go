package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_Total(t *testing.T) {
	order := &Order{
		Items: []OrderItem{
			{Price: 4500, Quantity: 2},
			{Price: 2000, Quantity: 1},
		},
		ShippingPrice: 500,
		Discount:      1000,
	}

	order.CalculateSubtotal()

	assert.EqualValues(t, 11000, order.Subtotal)
	assert.EqualValues(t, 10500, order.Total())
}

func TestOrder_CartItems(t *testing.T) {
	order := &Order{
		Items: []OrderItem{
			{ProductID: 3, ProductName: "Yoga Mat", Price: 2000, Quantity: 2},
		},
	}

	items := order.CartItems()

	assert.Len(t, items, 1)
	assert.EqualValues(t, 3, items[0].ProductID)
	assert.EqualValues(t, 2, items[0].Quantity)
}
