package cart

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/velora/storefront/internal/models"
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

func testItem(productID uint, price string, qty uint) NewItem {
	return NewItem{
		ProductID: productID,
		Name:      "Test Product",
		Slug:      "test-product",
		Price:     price,
		Quantity:  qty,
		Image:     "/img/test.jpg",
	}
}

func TestAddItemCreatesCart(t *testing.T) {
	svc := newTestService(t)
	owner := Owner{SessionID: "sess-1"}

	res := svc.AddItem(context.Background(), owner, testItem(1, "50.00", 1))
	require.True(t, res.Success, res.Message)

	c, err := svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, "50.00", c.ItemsPrice)
	require.Equal(t, "10.00", c.ShippingPrice)
	require.Equal(t, "7.50", c.TaxPrice)
	require.Equal(t, "67.50", c.TotalPrice)
}

func TestAddItemQuantitiesAreAdditive(t *testing.T) {
	svc := newTestService(t)
	owner := Owner{SessionID: "sess-1"}

	require.True(t, svc.AddItem(context.Background(), owner, testItem(1, "20.00", 2)).Success)
	require.True(t, svc.AddItem(context.Background(), owner, testItem(1, "20.00", 3)).Success)

	c, err := svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, c.Items, 1, "re-adding a product must not create a second line")
	require.Equal(t, uint(5), c.Items[0].Quantity)
	require.Equal(t, "100.00", c.ItemsPrice)
}

func TestAddItemRecomputesAggregatesAcrossThreshold(t *testing.T) {
	svc := newTestService(t)
	owner := Owner{SessionID: "sess-1"}

	require.True(t, svc.AddItem(context.Background(), owner, testItem(1, "120.00", 1)).Success)
	c, err := svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, "120.00", c.ItemsPrice)
	require.Equal(t, "0.00", c.ShippingPrice)
	require.Equal(t, "18.00", c.TaxPrice)
	require.Equal(t, "138.00", c.TotalPrice)

	second := testItem(2, "30.00", 2)
	second.Slug = "second-product"
	require.True(t, svc.AddItem(context.Background(), owner, second).Success)

	c, err = svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, "180.00", c.ItemsPrice)
	require.Equal(t, "0.00", c.ShippingPrice)
	require.Equal(t, "27.00", c.TaxPrice)
	require.Equal(t, "207.00", c.TotalPrice)
}

func TestAddItemWithoutOwnerFails(t *testing.T) {
	svc := newTestService(t)

	res := svc.AddItem(context.Background(), Owner{}, testItem(1, "10.00", 1))
	require.False(t, res.Success)
	require.Equal(t, ErrNoSession.Error(), res.Message)
}

func TestAddItemRejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	owner := Owner{SessionID: "sess-1"}

	res := svc.AddItem(context.Background(), owner, testItem(1, "10.00", 0))
	require.False(t, res.Success)

	res = svc.AddItem(context.Background(), owner, testItem(1, "ten dollars", 1))
	require.False(t, res.Success)
}

func TestUpdateQuantityRejectsBelowOne(t *testing.T) {
	svc := newTestService(t)
	owner := Owner{SessionID: "sess-1"}
	require.True(t, svc.AddItem(context.Background(), owner, testItem(1, "10.00", 2)).Success)

	res := svc.UpdateQuantity(context.Background(), owner, 1, 0)
	require.False(t, res.Success)
	require.Equal(t, ErrBadQuantity.Error(), res.Message)
}

func TestUpdateQuantitySetsExactValue(t *testing.T) {
	svc := newTestService(t)
	owner := Owner{SessionID: "sess-1"}
	require.True(t, svc.AddItem(context.Background(), owner, testItem(1, "10.00", 2)).Success)

	res := svc.UpdateQuantity(context.Background(), owner, 1, 7)
	require.True(t, res.Success, res.Message)

	c, err := svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, uint(7), c.Items[0].Quantity)
	require.Equal(t, "70.00", c.ItemsPrice)
}

func TestRemoveItemDecrementsQuantity(t *testing.T) {
	svc := newTestService(t)
	owner := Owner{SessionID: "sess-1"}
	require.True(t, svc.AddItem(context.Background(), owner, testItem(1, "10.00", 3)).Success)

	res := svc.RemoveItem(context.Background(), owner, 1)
	require.True(t, res.Success, res.Message)

	c, err := svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, uint(2), c.Items[0].Quantity)
	require.Equal(t, "20.00", c.ItemsPrice)
}

func TestRemoveLastItemDeletesCart(t *testing.T) {
	svc := newTestService(t)
	owner := Owner{SessionID: "sess-1"}
	require.True(t, svc.AddItem(context.Background(), owner, testItem(1, "10.00", 1)).Success)

	res := svc.RemoveItem(context.Background(), owner, 1)
	require.True(t, res.Success, res.Message)

	_, err := svc.Get(context.Background(), owner)
	require.ErrorIs(t, err, ErrCartNotFound, "empty carts must not persist")

	var count int64
	require.NoError(t, svc.DB.Model(&models.Cart{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRemoveMissingItemFails(t *testing.T) {
	svc := newTestService(t)
	owner := Owner{SessionID: "sess-1"}
	require.True(t, svc.AddItem(context.Background(), owner, testItem(1, "10.00", 1)).Success)

	res := svc.RemoveItem(context.Background(), owner, 99)
	require.False(t, res.Success)
	require.Equal(t, ErrItemNotFound.Error(), res.Message)
}

func TestMergeReownsSessionCartWhenUserHasNone(t *testing.T) {
	svc := newTestService(t)
	require.True(t, svc.AddItem(context.Background(), Owner{SessionID: "sess-1"}, testItem(1, "10.00", 2)).Success)

	require.NoError(t, svc.MergeOnSignIn(context.Background(), "sess-1", 42))

	c, err := svc.Get(context.Background(), Owner{UserID: 42})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, uint(2), c.Items[0].Quantity)

	// Only one cart row total: the session cart was re-owned, not copied.
	var count int64
	require.NoError(t, svc.DB.Model(&models.Cart{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestMergeCombinesQuantities(t *testing.T) {
	svc := newTestService(t)
	require.True(t, svc.AddItem(context.Background(), Owner{UserID: 42}, testItem(1, "10.00", 1)).Success)
	require.True(t, svc.AddItem(context.Background(), Owner{SessionID: "sess-1"}, testItem(1, "10.00", 2)).Success)
	other := testItem(2, "5.00", 1)
	other.Slug = "other-product"
	require.True(t, svc.AddItem(context.Background(), Owner{SessionID: "sess-1"}, other).Success)

	require.NoError(t, svc.MergeOnSignIn(context.Background(), "sess-1", 42))

	c, err := svc.Get(context.Background(), Owner{UserID: 42})
	require.NoError(t, err)
	require.Len(t, c.Items, 2)

	byProduct := map[uint]uint{}
	for _, it := range c.Items {
		byProduct[it.ProductID] = it.Quantity
	}
	require.Equal(t, uint(3), byProduct[1])
	require.Equal(t, uint(1), byProduct[2])
	require.Equal(t, "35.00", c.ItemsPrice)

	// The session cart is gone.
	_, err = svc.Get(context.Background(), Owner{SessionID: "sess-1"})
	require.ErrorIs(t, err, ErrCartNotFound)
}

func TestMergeIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	require.True(t, svc.AddItem(context.Background(), Owner{UserID: 42}, testItem(1, "10.00", 1)).Success)
	require.True(t, svc.AddItem(context.Background(), Owner{SessionID: "sess-1"}, testItem(1, "10.00", 2)).Success)

	require.NoError(t, svc.MergeOnSignIn(context.Background(), "sess-1", 42))
	require.NoError(t, svc.MergeOnSignIn(context.Background(), "sess-1", 42))

	c, err := svc.Get(context.Background(), Owner{UserID: 42})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, uint(3), c.Items[0].Quantity, "retried merge must not double quantities")
}

func TestMergeWithNoSessionCartIsNoop(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.MergeOnSignIn(context.Background(), "sess-none", 42))

	_, err := svc.Get(context.Background(), Owner{UserID: 42})
	require.ErrorIs(t, err, ErrCartNotFound)
}

func TestSignedInCallerPrefersUserCart(t *testing.T) {
	svc := newTestService(t)
	require.True(t, svc.AddItem(context.Background(), Owner{UserID: 42}, testItem(1, "10.00", 1)).Success)
	require.True(t, svc.AddItem(context.Background(), Owner{SessionID: "sess-1"}, testItem(2, "5.00", 1)).Success)

	// A signed-in caller still carrying the session cookie lands on the
	// user cart.
	both := Owner{SessionID: "sess-1", UserID: 42}
	require.True(t, svc.AddItem(context.Background(), both, testItem(1, "10.00", 1)).Success)

	c, err := svc.Get(context.Background(), Owner{UserID: 42})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, uint(2), c.Items[0].Quantity)
}
