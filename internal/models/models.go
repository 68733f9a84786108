package models

import (
	"time"
)

type Product struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name        string `gorm:"not null"                  json:"name"`
	Slug        string `gorm:"uniqueIndex;not null"      json:"slug"`
	Description string `gorm:"not null"                  json:"description"`
	Price       string `gorm:"not null"                  json:"price"`
	Image       string `json:"image"`
	Stock       uint   `json:"stock"`
}

type User struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email         string `gorm:"unique;not null"          json:"email"`
	Name          string `gorm:"not null"                 json:"name"`
	Role          string `gorm:"not null;default:user"    json:"role"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

// HasAddress reports whether the user saved a shipping address. Checkout
// requires one before an order can be placed.
func (u *User) HasAddress() bool {
	return u.StreetAddress != "" && u.City != "" && u.Country != ""
}

// Cart is owned by exactly one of SessionCartID (anonymous shopper) or
// UserID (signed-in shopper). The four price fields are derived; the cart
// service recomputes them on every mutation, they are never set directly.
type Cart struct {
	ID            uint       `gorm:"primaryKey"              json:"id"`
	SessionCartID string     `gorm:"index"                   json:"session_cart_id"`
	UserID        *uint      `gorm:"index"                   json:"user_id"`
	Items         []CartItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	ItemsPrice    string     `gorm:"not null"                json:"items_price"`
	ShippingPrice string     `gorm:"not null"                json:"shipping_price"`
	TaxPrice      string     `gorm:"not null"                json:"tax_price"`
	TotalPrice    string     `gorm:"not null"                json:"total_price"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type CartItem struct {
	ID        uint   `gorm:"primaryKey"                            json:"id"`
	CartID    uint   `gorm:"uniqueIndex:idx_cart_product;not null" json:"cart_id"`
	ProductID uint   `gorm:"uniqueIndex:idx_cart_product;not null" json:"product_id"`
	Name      string `gorm:"not null"                              json:"name"`
	Slug      string `gorm:"not null"                              json:"slug"`
	Price     string `gorm:"not null"                              json:"price"`
	Quantity  uint   `gorm:"default:1;check:quantity>0"            json:"quantity"`
	Image     string `json:"image"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Address is frozen onto the order at checkout time.
type Address struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

// PaymentResult is the summary stored when the processor reports payment,
// extended in place when a refund arrives.
type PaymentResult struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	PaidAt         time.Time  `json:"paid_at"`
	Refunded       bool       `json:"refunded,omitempty"`
	RefundedAt     *time.Time `json:"refunded_at,omitempty"`
	RefundedAmount int64      `json:"refunded_amount,omitempty"`
}

// Order is an immutable snapshot of a cart taken at checkout. Line items and
// the four price fields are copied, never recomputed, so later catalog
// changes cannot affect a placed order. The processor correlation ids start
// null and are filled in as webhook events arrive; the unique indexes on
// them back the reconciler's idempotency guards.
type Order struct {
	ID              uint        `gorm:"primaryKey"                    json:"id"`
	UserID          uint        `gorm:"index;not null"                json:"user_id"`
	ShippingAddress Address     `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	Items           []OrderItem `gorm:"constraint:OnDelete:CASCADE"   json:"items"`
	ItemsPrice      string      `gorm:"not null"                      json:"items_price"`
	ShippingPrice   string      `gorm:"not null"                      json:"shipping_price"`
	TaxPrice        string      `gorm:"not null"                      json:"tax_price"`
	TotalPrice      string      `gorm:"not null"                      json:"total_price"`
	Status          OrderStatus `gorm:"not null;default:PENDING"      json:"status"`

	IsPaid      bool       `gorm:"not null;default:false" json:"is_paid"`
	PaidAt      *time.Time `json:"paid_at"`
	IsDelivered bool       `gorm:"not null;default:false" json:"is_delivered"`
	DeliveredAt *time.Time `json:"delivered_at"`

	WebhookProcessed    bool           `gorm:"not null;default:false" json:"webhook_processed"`
	CheckoutSessionID   *string        `gorm:"uniqueIndex"            json:"checkout_session_id"`
	ProcessorOrderID    *string        `gorm:"uniqueIndex"            json:"processor_order_id"`
	ProcessorCustomerID *string        `json:"processor_customer_id"`
	PaymentResult       *PaymentResult `gorm:"serializer:json"        json:"payment_result"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderItem struct {
	ID        uint   `gorm:"primaryKey"     json:"id"`
	OrderID   uint   `gorm:"index;not null" json:"order_id"`
	ProductID uint   `gorm:"not null"       json:"product_id"`
	Name      string `gorm:"not null"       json:"name"`
	Slug      string `gorm:"not null"       json:"slug"`
	Price     string `gorm:"not null"       json:"price"`
	Quantity  uint   `gorm:"default:1;check:quantity>0" json:"quantity"`
	Image     string `json:"image"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}
