package order

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/velora/storefront/internal/models"
	"github.com/velora/storefront/internal/pricing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.User{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{},
	))
	return NewService(db, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedUser(t *testing.T, db *gorm.DB, withAddress bool) models.User {
	t.Helper()
	u := models.User{Email: "shopper@example.com", Name: "Shopper", Role: "user"}
	if withAddress {
		u.StreetAddress = "1 Main St"
		u.City = "Springfield"
		u.PostalCode = "12345"
		u.Country = "US"
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedCart(t *testing.T, db *gorm.DB, userID uint, items []models.CartItem) models.Cart {
	t.Helper()
	agg, err := pricing.Compute(items)
	require.NoError(t, err)
	c := models.Cart{
		UserID:        &userID,
		Items:         items,
		ItemsPrice:    agg.ItemsPrice,
		ShippingPrice: agg.ShippingPrice,
		TaxPrice:      agg.TaxPrice,
		TotalPrice:    agg.TotalPrice,
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func seedProduct(t *testing.T, db *gorm.DB, id uint, price string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Product{
		ID: id, Name: "Product", Slug: fmt.Sprintf("product-%d", id), Description: "d", Price: price,
	}).Error)
}

func TestCreateRequiresSignIn(t *testing.T) {
	svc := newTestService(t)

	res := svc.Create(context.Background(), 0, "sess-1")
	require.False(t, res.Success)
	require.Equal(t, ErrNotSignedIn.Error(), res.Message)
}

func TestCreateRequiresAddress(t *testing.T) {
	svc := newTestService(t)
	u := seedUser(t, svc.DB, false)
	seedProduct(t, svc.DB, 1, "10.00")
	seedCart(t, svc.DB, u.ID, []models.CartItem{
		{ProductID: 1, Name: "Product", Slug: "product", Price: "10.00", Quantity: 1},
	})

	res := svc.Create(context.Background(), u.ID, "")
	require.False(t, res.Success)
	require.Equal(t, ErrNoAddress.Error(), res.Message)
	require.NotEqual(t, ErrEmptyCart.Error(), res.Message,
		"missing address and empty cart must be distinguishable")
}

func TestCreateRequiresNonEmptyCart(t *testing.T) {
	svc := newTestService(t)
	u := seedUser(t, svc.DB, true)

	res := svc.Create(context.Background(), u.ID, "")
	require.False(t, res.Success)
	require.Equal(t, ErrEmptyCart.Error(), res.Message)
}

func TestCreateSnapshotsCartIntoOrder(t *testing.T) {
	svc := newTestService(t)
	u := seedUser(t, svc.DB, true)
	seedProduct(t, svc.DB, 1, "120.00")
	cart := seedCart(t, svc.DB, u.ID, []models.CartItem{
		{ProductID: 1, Name: "Product", Slug: "product", Price: "120.00", Quantity: 1},
	})

	res := svc.Create(context.Background(), u.ID, "")
	require.True(t, res.Success, res.Message)
	require.NotZero(t, res.OrderID)

	var o models.Order
	require.NoError(t, svc.DB.Preload("Items").First(&o, res.OrderID).Error)

	require.Equal(t, models.OrderStatusPending, o.Status)
	require.False(t, o.IsPaid)
	require.Equal(t, cart.ItemsPrice, o.ItemsPrice)
	require.Equal(t, cart.ShippingPrice, o.ShippingPrice)
	require.Equal(t, cart.TaxPrice, o.TaxPrice)
	require.Equal(t, cart.TotalPrice, o.TotalPrice)
	require.Equal(t, "1 Main St", o.ShippingAddress.StreetAddress)
	require.Len(t, o.Items, 1)
	require.Equal(t, "120.00", o.Items[0].Price)

	// Checkout consumes the cart.
	var cartCount int64
	require.NoError(t, svc.DB.Model(&models.Cart{}).Count(&cartCount).Error)
	require.Zero(t, cartCount)
}

func TestCreatedOrderAggregatesAuditAgainstItsLines(t *testing.T) {
	svc := newTestService(t)
	u := seedUser(t, svc.DB, true)
	seedProduct(t, svc.DB, 1, "19.99")
	seedProduct(t, svc.DB, 2, "33.33")
	seedCart(t, svc.DB, u.ID, []models.CartItem{
		{ProductID: 1, Name: "A", Slug: "a", Price: "19.99", Quantity: 3},
		{ProductID: 2, Name: "B", Slug: "b", Price: "33.33", Quantity: 2},
	})

	res := svc.Create(context.Background(), u.ID, "")
	require.True(t, res.Success, res.Message)

	var o models.Order
	require.NoError(t, svc.DB.Preload("Items").First(&o, res.OrderID).Error)

	recomputed, err := pricing.ComputeOrder(o.Items)
	require.NoError(t, err)
	require.Equal(t, o.ItemsPrice, recomputed.ItemsPrice)
	require.Equal(t, o.ShippingPrice, recomputed.ShippingPrice)
	require.Equal(t, o.TaxPrice, recomputed.TaxPrice)
	require.Equal(t, o.TotalPrice, recomputed.TotalPrice)
}

func TestCreateSkipsLinesWhoseProductLeftCatalog(t *testing.T) {
	svc := newTestService(t)
	u := seedUser(t, svc.DB, true)
	seedProduct(t, svc.DB, 1, "10.00")
	// Product 2 was never created: it left the catalog after cart-add.
	cart := seedCart(t, svc.DB, u.ID, []models.CartItem{
		{ProductID: 1, Name: "A", Slug: "a", Price: "10.00", Quantity: 1},
		{ProductID: 2, Name: "B", Slug: "b", Price: "99.00", Quantity: 1},
	})

	res := svc.Create(context.Background(), u.ID, "")
	require.True(t, res.Success, res.Message)

	var o models.Order
	require.NoError(t, svc.DB.Preload("Items").First(&o, res.OrderID).Error)
	require.Len(t, o.Items, 1)
	require.Equal(t, uint(1), o.Items[0].ProductID)
	// Aggregates stay as the shopper saw them priced at checkout.
	require.Equal(t, cart.TotalPrice, o.TotalPrice)
}

func TestCreatePrefersUserCartOverSessionCart(t *testing.T) {
	svc := newTestService(t)
	u := seedUser(t, svc.DB, true)
	seedProduct(t, svc.DB, 1, "50.00")
	seedProduct(t, svc.DB, 2, "99.00")
	userCart := seedCart(t, svc.DB, u.ID, []models.CartItem{
		{ProductID: 1, Name: "A", Slug: "a", Price: "50.00", Quantity: 1},
	})
	sessionCart := models.Cart{
		SessionCartID: "sess-1",
		Items: []models.CartItem{
			{ProductID: 2, Name: "B", Slug: "b", Price: "99.00", Quantity: 1},
		},
		ItemsPrice: "99.00", ShippingPrice: "10.00", TaxPrice: "14.85", TotalPrice: "123.85",
	}
	require.NoError(t, svc.DB.Create(&sessionCart).Error)

	// An unmerged session cart still exists; checkout must snapshot the
	// user cart, not whichever row the database returns first.
	res := svc.Create(context.Background(), u.ID, "sess-1")
	require.True(t, res.Success, res.Message)

	var o models.Order
	require.NoError(t, svc.DB.Preload("Items").First(&o, res.OrderID).Error)
	require.Equal(t, userCart.TotalPrice, o.TotalPrice)
	require.Len(t, o.Items, 1)
	require.Equal(t, uint(1), o.Items[0].ProductID)

	// The session cart was not the snapshot source and survives.
	var remaining models.Cart
	require.NoError(t, svc.DB.Where("session_cart_id = ?", "sess-1").First(&remaining).Error)
}

func TestUpdateStatusDelivered(t *testing.T) {
	svc := newTestService(t)
	u := seedUser(t, svc.DB, true)
	o := models.Order{UserID: u.ID, Status: models.OrderStatusShipped,
		ItemsPrice: "10.00", ShippingPrice: "10.00", TaxPrice: "1.50", TotalPrice: "21.50"}
	require.NoError(t, svc.DB.Create(&o).Error)

	res := svc.UpdateStatus(context.Background(), o.ID, models.OrderStatusDelivered)
	require.True(t, res.Success, res.Message)

	var got models.Order
	require.NoError(t, svc.DB.First(&got, o.ID).Error)
	require.Equal(t, models.OrderStatusDelivered, got.Status)
	require.True(t, got.IsDelivered)
	require.NotNil(t, got.DeliveredAt)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(t)

	res := svc.UpdateStatus(context.Background(), 1, models.OrderStatus("LOST"))
	require.False(t, res.Success)
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	svc := newTestService(t)

	res := svc.UpdateStatus(context.Background(), 999, models.OrderStatusShipped)
	require.False(t, res.Success)
	require.Equal(t, ErrNotFound.Error(), res.Message)
}

func TestListForUserScopesToOwner(t *testing.T) {
	svc := newTestService(t)
	u := seedUser(t, svc.DB, true)
	mine := models.Order{UserID: u.ID, Status: models.OrderStatusPending,
		ItemsPrice: "10.00", ShippingPrice: "10.00", TaxPrice: "1.50", TotalPrice: "21.50"}
	theirs := models.Order{UserID: u.ID + 1, Status: models.OrderStatusPending,
		ItemsPrice: "10.00", ShippingPrice: "10.00", TaxPrice: "1.50", TotalPrice: "21.50"}
	require.NoError(t, svc.DB.Create(&mine).Error)
	require.NoError(t, svc.DB.Create(&theirs).Error)

	orders, err := svc.ListForUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, mine.ID, orders[0].ID)

	_, err = svc.GetForUser(context.Background(), theirs.ID, u.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
