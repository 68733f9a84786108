// Package order creates immutable order snapshots from carts and serves
// order queries and admin fulfillment updates. Payment-driven mutations
// live in the payment package.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/velora/storefront/internal/events"
	"github.com/velora/storefront/internal/models"
	"github.com/velora/storefront/internal/result"
)

var (
	ErrNotSignedIn = errors.New("please sign in to place an order")
	ErrNoAddress   = errors.New("please add a shipping address")
	ErrEmptyCart   = errors.New("your cart is empty")
	ErrNotFound    = errors.New("order not found")
	ErrBadStatus   = errors.New("invalid order status")
)

type Service struct {
	DB     *gorm.DB
	Events *events.Producer
	Log    *slog.Logger
}

func NewService(db *gorm.DB, prod *events.Producer, log *slog.Logger) *Service {
	return &Service{DB: db, Events: prod, Log: log}
}

// Create snapshots the caller's cart into a PENDING order and deletes the
// cart. Checkout consumes the cart; it cannot be reused. The three
// precondition failures (not signed in, no address, empty cart) come back
// with distinct messages so the UI can point at the right fix.
func (s *Service) Create(ctx context.Context, userID uint, sessionCartID string) result.Result {
	orderID, err := s.create(ctx, userID, sessionCartID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotSignedIn), errors.Is(err, ErrNoAddress), errors.Is(err, ErrEmptyCart):
			return result.Fail(err.Error())
		}
		s.Log.ErrorContext(ctx, "create order failed", "user_id", userID, "error", err)
		return result.Fail("Error creating order")
	}

	if err := s.Events.Publish(ctx, events.TopicOrder, fmt.Sprint(userID), map[string]any{
		"type":     "order_created",
		"user_id":  userID,
		"order_id": orderID,
	}); err != nil {
		s.Log.ErrorContext(ctx, "kafka publish failed", "topic", events.TopicOrder, "error", err)
	}

	res := result.Ok("Order placed successfully")
	res.OrderID = orderID
	return res
}

func (s *Service) create(ctx context.Context, userID uint, sessionCartID string) (uint, error) {
	if userID == 0 {
		return 0, ErrNotSignedIn
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotSignedIn
		}
		return 0, err
	}
	if !user.HasAddress() {
		return 0, ErrNoAddress
	}

	var orderID uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Same preference as the cart service: the user cart wins when an
		// unmerged session cart still exists alongside it.
		var c models.Cart
		err := tx.Preload("Items").Where("user_id = ?", userID).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) && sessionCartID != "" {
			err = tx.Preload("Items").
				Where("session_cart_id = ? AND user_id IS NULL", sessionCartID).
				First(&c).Error
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if len(c.Items) == 0 {
			return ErrEmptyCart
		}

		o := models.Order{
			UserID: userID,
			ShippingAddress: models.Address{
				StreetAddress: user.StreetAddress,
				City:          user.City,
				PostalCode:    user.PostalCode,
				Country:       user.Country,
			},
			// Aggregates are copied verbatim from the cart, not recomputed.
			ItemsPrice:    c.ItemsPrice,
			ShippingPrice: c.ShippingPrice,
			TaxPrice:      c.TaxPrice,
			TotalPrice:    c.TotalPrice,
			Status:        models.OrderStatusPending,
		}
		if err := tx.Create(&o).Error; err != nil {
			return err
		}

		for _, line := range c.Items {
			// Lines whose product left the catalog since the cart add are
			// skipped. The copied aggregates are deliberately left alone,
			// matching checkout behavior shoppers already saw priced.
			var exists int64
			if err := tx.Model(&models.Product{}).Where("id = ?", line.ProductID).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				s.Log.WarnContext(ctx, "skipping order line, product gone from catalog",
					"order_id", o.ID, "product_id", line.ProductID)
				continue
			}
			oi := models.OrderItem{
				OrderID:   o.ID,
				ProductID: line.ProductID,
				Name:      line.Name,
				Slug:      line.Slug,
				Price:     line.Price,
				Quantity:  line.Quantity,
				Image:     line.Image,
				Color:     line.Color,
				Size:      line.Size,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("cart_id = ?", c.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Cart{}, c.ID).Error; err != nil {
			return err
		}

		orderID = o.ID
		return nil
	})
	return orderID, err
}

// ListForUser returns the user's orders, newest first, lines included.
func (s *Service) ListForUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// GetForUser returns one order scoped to its owner.
func (s *Service) GetForUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	var o models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatus is the admin fulfillment path (shipped/delivered/cancelled).
// DELIVERED also flips the delivery flag and stamps the time.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, status models.OrderStatus) result.Result {
	if !status.Valid() {
		return result.Fail(ErrBadStatus.Error())
	}

	updates := map[string]any{"status": status}
	if status == models.OrderStatusDelivered {
		now := time.Now().UTC()
		updates["is_delivered"] = true
		updates["delivered_at"] = now
	}

	tx := s.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(updates)
	if tx.Error != nil {
		s.Log.ErrorContext(ctx, "update order status failed", "order_id", orderID, "error", tx.Error)
		return result.Fail("Error updating order status")
	}
	if tx.RowsAffected == 0 {
		return result.Fail(ErrNotFound.Error())
	}

	if err := s.Events.Publish(ctx, events.TopicOrder, fmt.Sprint(orderID), map[string]any{
		"type":     "order_status_updated",
		"order_id": orderID,
		"status":   status,
	}); err != nil {
		s.Log.ErrorContext(ctx, "kafka publish failed", "topic", events.TopicOrder, "error", err)
	}
	return result.Ok("Order status updated")
}

