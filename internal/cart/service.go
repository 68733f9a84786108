// Package cart implements the cart store: one mutable cart per owner key,
// quantity-additive line items, derived prices recomputed on every write,
// and the sign-in merge of an anonymous session cart into a user cart.
//
// Carts assume a single writer (one shopper tapping one UI). Concurrent
// mutations of the same cart are last-write-wins at the row level; there is
// no optimistic locking.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/velora/storefront/internal/events"
	"github.com/velora/storefront/internal/models"
	"github.com/velora/storefront/internal/pricing"
	"github.com/velora/storefront/internal/result"
)

var (
	ErrNoSession    = errors.New("cart session not found")
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
	ErrBadQuantity  = errors.New("quantity must be at least 1")
)

// Owner is the explicit owner key of a cart: the anonymous session id, the
// signed-in user id, or both during the window between sign-in and merge.
type Owner struct {
	SessionID string
	UserID    uint
}

func (o Owner) empty() bool { return o.SessionID == "" && o.UserID == 0 }

func (o Owner) key() string {
	if o.UserID != 0 {
		return fmt.Sprintf("user:%d", o.UserID)
	}
	return "session:" + o.SessionID
}

// NewItem is the validated input for AddItem.
type NewItem struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Price     string `json:"price"`
	Quantity  uint   `json:"quantity"`
	Image     string `json:"image"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type Service struct {
	DB     *gorm.DB
	Events *events.Producer
	Log    *slog.Logger
}

func NewService(db *gorm.DB, prod *events.Producer, log *slog.Logger) *Service {
	return &Service{DB: db, Events: prod, Log: log}
}

// find returns the owner's cart, preferring a user-owned cart when the
// caller is signed in. Both can transiently exist between sign-in and merge.
func find(db *gorm.DB, owner Owner) (*models.Cart, error) {
	if owner.UserID != 0 {
		var c models.Cart
		err := db.Preload("Items").
			Where("user_id = ?", owner.UserID).First(&c).Error
		if err == nil {
			return &c, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if owner.SessionID != "" {
		var c models.Cart
		err := db.Preload("Items").
			Where("session_cart_id = ? AND user_id IS NULL", owner.SessionID).First(&c).Error
		if err == nil {
			return &c, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrCartNotFound
}

// Get returns the owner's cart, or ErrCartNotFound.
func (s *Service) Get(ctx context.Context, owner Owner) (*models.Cart, error) {
	if owner.empty() {
		return nil, ErrNoSession
	}
	return find(s.DB.WithContext(ctx), owner)
}

// AddItem puts item into the owner's cart, creating the cart on first add.
// Re-adding a product already in the cart adds the quantities together
// instead of inserting a second line.
func (s *Service) AddItem(ctx context.Context, owner Owner, item NewItem) result.Result {
	if err := s.addItem(ctx, owner, item); err != nil {
		return s.fail(ctx, "add item to cart", err)
	}
	s.publish(ctx, owner, map[string]any{
		"type":       "item_added",
		"owner":      owner.key(),
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
	})
	return result.Ok("Item added to cart successfully")
}

func (s *Service) addItem(ctx context.Context, owner Owner, item NewItem) error {
	if owner.empty() {
		return ErrNoSession
	}
	if item.ProductID == 0 {
		return errors.New("product id required")
	}
	if item.Quantity < 1 {
		return ErrBadQuantity
	}
	if _, err := pricing.ParsePrice(item.Price); err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := find(tx, owner)
		if errors.Is(err, ErrCartNotFound) {
			return s.createCart(tx, owner, item)
		}
		if err != nil {
			return err
		}

		merged := false
		for i := range c.Items {
			if c.Items[i].ProductID == item.ProductID {
				c.Items[i].Quantity += item.Quantity
				if err := tx.Save(&c.Items[i]).Error; err != nil {
					return err
				}
				merged = true
				break
			}
		}
		if !merged {
			newLine := lineFromItem(c.ID, item)
			if err := tx.Create(&newLine).Error; err != nil {
				return err
			}
			c.Items = append(c.Items, newLine)
		}
		return s.saveAggregates(tx, c)
	})
}

func (s *Service) createCart(tx *gorm.DB, owner Owner, item NewItem) error {
	c := models.Cart{SessionCartID: owner.SessionID}
	if owner.UserID != 0 {
		uid := owner.UserID
		c.UserID = &uid
	}
	c.Items = []models.CartItem{lineFromItem(0, item)}
	agg, err := pricing.Compute(c.Items)
	if err != nil {
		return err
	}
	applyAggregates(&c, agg)
	return tx.Create(&c).Error
}

// UpdateQuantity sets a line to an exact quantity. Quantities below 1 are
// rejected; RemoveItem is the way lines leave the cart.
func (s *Service) UpdateQuantity(ctx context.Context, owner Owner, productID uint, qty uint) result.Result {
	if err := s.updateQuantity(ctx, owner, productID, qty); err != nil {
		return s.fail(ctx, "update cart quantity", err)
	}
	s.publish(ctx, owner, map[string]any{
		"type":       "quantity_updated",
		"owner":      owner.key(),
		"product_id": productID,
		"quantity":   qty,
	})
	return result.Ok("Cart updated successfully")
}

func (s *Service) updateQuantity(ctx context.Context, owner Owner, productID uint, qty uint) error {
	if owner.empty() {
		return ErrNoSession
	}
	if qty < 1 {
		return ErrBadQuantity
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := find(tx, owner)
		if err != nil {
			return err
		}
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity = qty
				if err := tx.Save(&c.Items[i]).Error; err != nil {
					return err
				}
				return s.saveAggregates(tx, c)
			}
		}
		return ErrItemNotFound
	})
}

// RemoveItem takes one unit off a line, dropping the line at zero. When the
// last line goes, the cart row itself is deleted; empty carts never persist.
func (s *Service) RemoveItem(ctx context.Context, owner Owner, productID uint) result.Result {
	if err := s.removeItem(ctx, owner, productID); err != nil {
		return s.fail(ctx, "remove item from cart", err)
	}
	s.publish(ctx, owner, map[string]any{
		"type":       "item_removed",
		"owner":      owner.key(),
		"product_id": productID,
	})
	return result.Ok("Item removed from cart successfully")
}

func (s *Service) removeItem(ctx context.Context, owner Owner, productID uint) error {
	if owner.empty() {
		return ErrNoSession
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := find(tx, owner)
		if err != nil {
			return err
		}
		idx := -1
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrItemNotFound
		}

		if c.Items[idx].Quantity > 1 {
			c.Items[idx].Quantity--
			if err := tx.Save(&c.Items[idx]).Error; err != nil {
				return err
			}
			return s.saveAggregates(tx, c)
		}

		if err := tx.Delete(&c.Items[idx]).Error; err != nil {
			return err
		}
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		if len(c.Items) == 0 {
			return tx.Delete(&models.Cart{}, c.ID).Error
		}
		return s.saveAggregates(tx, c)
	})
}

// MergeOnSignIn folds the anonymous session cart into the signed-in user's
// cart. Quantities of matching products add together; unmatched lines are
// appended. When the user has no cart yet the session cart is re-owned in
// place. Deleting or re-owning the session cart is always the terminal
// step, so a retried merge finds nothing to do.
func (s *Service) MergeOnSignIn(ctx context.Context, sessionID string, userID uint) error {
	if sessionID == "" || userID == 0 {
		return nil
	}

	var sessionCart models.Cart
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("session_cart_id = ? AND user_id IS NULL", sessionID).First(&sessionCart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("merge cart: %w", err)
	}

	var userCart models.Cart
	err = s.DB.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).First(&userCart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No user cart: re-own the session cart instead of copying rows.
		return s.DB.WithContext(ctx).Model(&sessionCart).
			Updates(map[string]any{"user_id": userID, "session_cart_id": ""}).Error
	}
	if err != nil {
		return fmt.Errorf("merge cart: %w", err)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range sessionCart.Items {
			merged := false
			for i := range userCart.Items {
				if userCart.Items[i].ProductID == line.ProductID {
					userCart.Items[i].Quantity += line.Quantity
					if err := tx.Save(&userCart.Items[i]).Error; err != nil {
						return err
					}
					merged = true
					break
				}
			}
			if !merged {
				newLine := line
				newLine.ID = 0
				newLine.CartID = userCart.ID
				if err := tx.Create(&newLine).Error; err != nil {
					return err
				}
				userCart.Items = append(userCart.Items, newLine)
			}
		}
		if err := s.saveAggregates(tx, &userCart); err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", sessionCart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Cart{}, sessionCart.ID).Error
	})
}

func (s *Service) saveAggregates(tx *gorm.DB, c *models.Cart) error {
	agg, err := pricing.Compute(c.Items)
	if err != nil {
		return err
	}
	return tx.Model(&models.Cart{}).Where("id = ?", c.ID).Updates(map[string]any{
		"items_price":    agg.ItemsPrice,
		"shipping_price": agg.ShippingPrice,
		"tax_price":      agg.TaxPrice,
		"total_price":    agg.TotalPrice,
	}).Error
}

func applyAggregates(c *models.Cart, agg pricing.Aggregates) {
	c.ItemsPrice = agg.ItemsPrice
	c.ShippingPrice = agg.ShippingPrice
	c.TaxPrice = agg.TaxPrice
	c.TotalPrice = agg.TotalPrice
}

func lineFromItem(cartID uint, item NewItem) models.CartItem {
	return models.CartItem{
		CartID:    cartID,
		ProductID: item.ProductID,
		Name:      item.Name,
		Slug:      item.Slug,
		Price:     item.Price,
		Quantity:  item.Quantity,
		Image:     item.Image,
		Color:     item.Color,
		Size:      item.Size,
	}
}

func (s *Service) fail(ctx context.Context, op string, err error) result.Result {
	switch {
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrCartNotFound),
		errors.Is(err, ErrItemNotFound), errors.Is(err, ErrBadQuantity):
		return result.Fail(err.Error())
	}
	s.Log.ErrorContext(ctx, op+" failed", "error", err)
	return result.Fail("Error updating cart")
}

func (s *Service) publish(ctx context.Context, owner Owner, event map[string]any) {
	if err := s.Events.Publish(ctx, events.TopicCart, owner.key(), event); err != nil {
		s.Log.ErrorContext(ctx, "kafka publish failed", "topic", events.TopicCart, "error", err)
	}
}
