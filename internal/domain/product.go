package domain

import "time"

type Product struct {
	ID              int64  `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	Description     string `db:"description" json:"description"`
	Price           int64  `db:"price" json:"price"` // cents
	QuantityInStock int32  `db:"quantity_in_stock" json:"quantity_in_stock"`
	PictureURL      string `db:"picture_url" json:"picture_url"`
	Brand           string `db:"brand" json:"brand"`
	Type            string `db:"type" json:"type"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type DeliveryMethod struct {
	ID           int64  `db:"id" json:"id"`
	ShortName    string `db:"short_name" json:"short_name"`
	DeliveryTime string `db:"delivery_time" json:"delivery_time"`
	Price        int64  `db:"price" json:"price"` // cents
}
