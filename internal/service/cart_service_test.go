package service

import (
	"github.com/stefans1510/fitness-shop/internal/domain"
)

func (s *IntegrationTestSuite) TestCartLifecycle() {
	cart := s.cartWithItems("cart-life", domain.CartItem{
		ProductID: 1, ProductName: "Yoga Mat", Price: 2000, Quantity: 3,
	})
	s.Require().EqualValues(6000, cart.Subtotal())

	loaded, err := s.CartService.GetCart(s.Ctx, "cart-life")
	s.Require().NoError(err)
	s.Require().Equal(cart.Items, loaded.Items)

	s.Require().NoError(s.CartService.DeleteCart(s.Ctx, "cart-life"))

	_, err = s.CartService.GetCart(s.Ctx, "cart-life")
	s.Require().ErrorIs(err, ErrCartNotFound)
}

func (s *IntegrationTestSuite) TestGetCart_Missing() {
	_, err := s.CartService.GetCart(s.Ctx, "never-existed")
	s.Require().ErrorIs(err, ErrCartNotFound)
}

func (s *IntegrationTestSuite) TestSetCart_Overwrites() {
	s.cartWithItems("cart-ow", domain.CartItem{
		ProductID: 1, ProductName: "Yoga Mat", Price: 2000, Quantity: 1,
	})

	updated := s.cartWithItems("cart-ow", domain.CartItem{
		ProductID: 2, ProductName: "Foam Roller", Price: 1500, Quantity: 2,
	})

	loaded, err := s.CartService.GetCart(s.Ctx, "cart-ow")
	s.Require().NoError(err)
	s.Require().Equal(updated.Items, loaded.Items)
}

func (s *IntegrationTestSuite) TestCouponService() {
	s.seedCoupon("TENOFF", 1000)

	discount, err := s.CouponService.CalculateDiscount(s.Ctx, "TENOFF", 5000)
	s.Require().NoError(err)
	s.Require().EqualValues(1000, discount)

	// Codes are matched case-insensitively.
	discount, err = s.CouponService.CalculateDiscount(s.Ctx, "tenoff", 5000)
	s.Require().NoError(err)
	s.Require().EqualValues(1000, discount)

	// An unknown code means no discount, not a failed checkout.
	discount, err = s.CouponService.CalculateDiscount(s.Ctx, "BOGUS", 5000)
	s.Require().NoError(err)
	s.Require().Zero(discount)
}
