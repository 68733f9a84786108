// Package pricing is the single place monetary arithmetic happens. Prices
// are carried as 2dp decimal strings everywhere else; this package parses
// them into fixed-point decimals, computes, rounds, and formats back.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/velora/storefront/internal/models"
)

const (
	taxRate               = "0.15"
	flatShipping          = "10"
	freeShippingThreshold = "100"
)

// Aggregates holds the four derived cart/order price fields as 2dp strings.
type Aggregates struct {
	ItemsPrice    string `json:"items_price"`
	ShippingPrice string `json:"shipping_price"`
	TaxPrice      string `json:"tax_price"`
	TotalPrice    string `json:"total_price"`
}

// RoundTo2 rounds half away from zero to two decimal places.
func RoundTo2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ParsePrice validates a price string as a non-negative decimal amount.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid price %q: negative", s)
	}
	return d, nil
}

type line struct {
	price string
	qty   uint
}

func compute(lines []line) (Aggregates, error) {
	items := decimal.Zero
	for _, l := range lines {
		price, err := ParsePrice(l.price)
		if err != nil {
			return Aggregates{}, err
		}
		items = items.Add(price.Mul(decimal.NewFromInt(int64(l.qty))))
	}
	items = RoundTo2(items)

	shipping := decimal.Zero
	if items.LessThanOrEqual(decimal.RequireFromString(freeShippingThreshold)) {
		shipping = decimal.RequireFromString(flatShipping)
	}
	tax := RoundTo2(items.Mul(decimal.RequireFromString(taxRate)))
	total := RoundTo2(items.Add(shipping).Add(tax))

	return Aggregates{
		ItemsPrice:    items.StringFixed(2),
		ShippingPrice: shipping.StringFixed(2),
		TaxPrice:      tax.StringFixed(2),
		TotalPrice:    total.StringFixed(2),
	}, nil
}

// Compute derives the four aggregate prices from cart line items. Pure:
// same items in, same aggregates out.
func Compute(items []models.CartItem) (Aggregates, error) {
	lines := make([]line, 0, len(items))
	for _, it := range items {
		lines = append(lines, line{price: it.Price, qty: it.Quantity})
	}
	return compute(lines)
}

// ComputeOrder re-derives aggregates from frozen order lines. Used by the
// audit check: an order's stored aggregates must match a recompute from its
// own line items.
func ComputeOrder(items []models.OrderItem) (Aggregates, error) {
	lines := make([]line, 0, len(items))
	for _, it := range items {
		lines = append(lines, line{price: it.Price, qty: it.Quantity})
	}
	return compute(lines)
}
