package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/velora/storefront/internal/models"
)

func item(price string, qty uint) models.CartItem {
	return models.CartItem{ProductID: 1, Name: "test", Slug: "test", Price: price, Quantity: qty}
}

func TestComputeScenarios(t *testing.T) {
	cases := []struct {
		name     string
		items    []models.CartItem
		expected Aggregates
	}{
		{
			name:  "free shipping over threshold",
			items: []models.CartItem{item("120.00", 1)},
			expected: Aggregates{
				ItemsPrice: "120.00", ShippingPrice: "0.00",
				TaxPrice: "18.00", TotalPrice: "138.00",
			},
		},
		{
			name: "two lines over threshold",
			items: []models.CartItem{
				item("120.00", 1),
				{ProductID: 2, Name: "second", Slug: "second", Price: "30.00", Quantity: 2},
			},
			expected: Aggregates{
				ItemsPrice: "180.00", ShippingPrice: "0.00",
				TaxPrice: "27.00", TotalPrice: "207.00",
			},
		},
		{
			name:  "flat shipping under threshold",
			items: []models.CartItem{item("50.00", 1)},
			expected: Aggregates{
				ItemsPrice: "50.00", ShippingPrice: "10.00",
				TaxPrice: "7.50", TotalPrice: "67.50",
			},
		},
		{
			name:  "exactly at threshold still pays shipping",
			items: []models.CartItem{item("100.00", 1)},
			expected: Aggregates{
				ItemsPrice: "100.00", ShippingPrice: "10.00",
				TaxPrice: "15.00", TotalPrice: "125.00",
			},
		},
		{
			name:  "empty cart",
			items: nil,
			expected: Aggregates{
				ItemsPrice: "0.00", ShippingPrice: "10.00",
				TaxPrice: "0.00", TotalPrice: "10.00",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg, err := Compute(tc.items)
			require.NoError(t, err)
			require.Equal(t, tc.expected, agg)
		})
	}
}

func TestComputeTotalIsSumOfParts(t *testing.T) {
	carts := [][]models.CartItem{
		{item("19.99", 3)},
		{item("0.01", 1)},
		{item("33.33", 3)},
		{item("99.99", 1), {ProductID: 2, Name: "b", Slug: "b", Price: "0.02", Quantity: 1}},
		{item("7.77", 13)},
	}

	for _, items := range carts {
		agg, err := Compute(items)
		require.NoError(t, err)

		itemsP := decimal.RequireFromString(agg.ItemsPrice)
		shipP := decimal.RequireFromString(agg.ShippingPrice)
		taxP := decimal.RequireFromString(agg.TaxPrice)
		totalP := decimal.RequireFromString(agg.TotalPrice)
		require.True(t, itemsP.Add(shipP).Add(taxP).Equal(totalP),
			"total %s != %s + %s + %s", agg.TotalPrice, agg.ItemsPrice, agg.ShippingPrice, agg.TaxPrice)
	}
}

func TestComputeDeterministic(t *testing.T) {
	items := []models.CartItem{item("19.99", 3)}
	first, err := Compute(items)
	require.NoError(t, err)
	second, err := Compute(items)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRoundTo2HalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"1.004":  "1.00",
		"-1.005": "-1.01",
		"2.675":  "2.68",
		"0":      "0.00",
	}
	for in, want := range cases {
		got := RoundTo2(decimal.RequireFromString(in))
		require.Equal(t, want, got.StringFixed(2), "rounding %s", in)
	}
}

func TestParsePriceRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "abc", "-5.00", "1,00"} {
		_, err := ParsePrice(bad)
		require.Error(t, err, "price %q", bad)
	}
}

func TestComputeRejectsBadLinePrice(t *testing.T) {
	_, err := Compute([]models.CartItem{item("not-a-price", 1)})
	require.Error(t, err)
}
