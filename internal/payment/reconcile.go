// Package payment holds the payment-processor boundary: the outbound
// checkout client, the normalized webhook event type, and the reconciler
// that advances orders as events arrive.
//
// Delivery is at-least-once and unordered, so every transition carries its
// own idempotency guard and no handler waits on another event. The unique
// indexes on the checkout-session and processor-order columns are the
// data-layer backstop for the same guarantees.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/velora/storefront/internal/models"
)

// ErrRetryable marks failures the webhook endpoint should answer 5xx to,
// so the processor redelivers. Used for order.created persistence errors,
// whose effect has no later guard to make a skipped delivery safe.
var ErrRetryable = errors.New("retryable webhook failure")

type Reconciler struct {
	DB  *gorm.DB
	Log *slog.Logger
	Now func() time.Time
}

func NewReconciler(db *gorm.DB, log *slog.Logger) *Reconciler {
	return &Reconciler{DB: db, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// Apply runs one event through the state machine. Unknown kinds and events
// that match no order are logged and dropped; failing them would only make
// the processor redeliver something we can never place.
func (r *Reconciler) Apply(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case CheckoutCreated:
		return r.checkoutCreated(ctx, ev)
	case CheckoutUpdated:
		return r.checkoutUpdated(ctx, ev)
	case OrderCreated:
		return r.orderCreated(ctx, ev)
	case OrderPaid:
		return r.orderPaid(ctx, ev)
	case OrderRefunded:
		return r.orderRefunded(ctx, ev)
	default:
		r.Log.InfoContext(ctx, "dropping unknown payment event", "kind", ev.Kind)
		return nil
	}
}

// checkoutCreated ties the processor's checkout session to the order named
// in the event metadata and records the processor customer id.
func (r *Reconciler) checkoutCreated(ctx context.Context, ev Event) error {
	ref, err := strconv.ParseUint(ev.OrderRef(), 10, 32)
	if err != nil || ref == 0 {
		r.Log.WarnContext(ctx, "checkout.created without usable order reference",
			"checkout_id", ev.CheckoutID, "order_ref", ev.OrderRef())
		return nil
	}

	var o models.Order
	if err := r.DB.WithContext(ctx).First(&o, uint(ref)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.drop(ctx, ev, "no order for metadata reference")
			return nil
		}
		return err
	}
	if o.CheckoutSessionID != nil && *o.CheckoutSessionID == ev.CheckoutID {
		// Redelivery; the session is already recorded.
		return nil
	}

	o.CheckoutSessionID = &ev.CheckoutID
	if ev.CustomerID != "" {
		o.ProcessorCustomerID = &ev.CustomerID
	}
	return r.DB.WithContext(ctx).Save(&o).Error
}

// checkoutUpdated refreshes the customer id. Safe to repeat, no guard.
func (r *Reconciler) checkoutUpdated(ctx context.Context, ev Event) error {
	if ev.CustomerID == "" {
		return nil
	}
	var o models.Order
	err := r.DB.WithContext(ctx).Where("checkout_session_id = ?", ev.CheckoutID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.drop(ctx, ev, "no order for checkout session")
		return nil
	}
	if err != nil {
		return err
	}
	o.ProcessorCustomerID = &ev.CustomerID
	return r.DB.WithContext(ctx).Save(&o).Error
}

// orderCreated records the processor-side order id against the order found
// by checkout session. A persistence failure here is surfaced as retryable:
// unlike order.paid there is no processed flag yet to make a skipped
// delivery harmless.
func (r *Reconciler) orderCreated(ctx context.Context, ev Event) error {
	var o models.Order
	err := r.DB.WithContext(ctx).Where("checkout_session_id = ?", ev.CheckoutID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.drop(ctx, ev, "no order for checkout session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRetryable, err)
	}
	if o.ProcessorOrderID != nil && *o.ProcessorOrderID == ev.EntityID {
		// Already processed.
		return nil
	}

	o.ProcessorOrderID = &ev.EntityID
	if ev.CustomerID != "" {
		o.ProcessorCustomerID = &ev.CustomerID
	}
	if err := r.DB.WithContext(ctx).Save(&o).Error; err != nil {
		return fmt.Errorf("%w: %w", ErrRetryable, err)
	}
	return nil
}

// orderPaid marks the order paid and moves it to PROCESSING. Lookup tries
// the processor order id first and falls back to the checkout session,
// because order.paid can outrun order.created; the fallback path backfills
// the processor ids so later events resolve directly. WebhookProcessed is
// the double-delivery defense; CANCELLED is terminal, so a paid event that
// arrives after the refund leaves the order alone.
func (r *Reconciler) orderPaid(ctx context.Context, ev Event) error {
	o, backfill, err := r.findByProcessorOrder(ctx, ev)
	if err != nil {
		return err
	}
	if o == nil {
		r.drop(ctx, ev, "no order for paid event")
		return nil
	}
	if o.WebhookProcessed {
		return nil
	}
	if o.Status == models.OrderStatusCancelled {
		// A late paid delivery must not resurrect a refunded order or
		// overwrite its refund marker. Only the correlation ids may still
		// be backfilled.
		if !backfill {
			return nil
		}
		o.ProcessorOrderID = &ev.EntityID
		if ev.CustomerID != "" {
			o.ProcessorCustomerID = &ev.CustomerID
		}
		return r.DB.WithContext(ctx).Save(o).Error
	}

	now := r.Now()
	o.IsPaid = true
	o.PaidAt = &now
	o.Status = models.OrderStatusProcessing
	o.WebhookProcessed = true
	o.PaymentResult = &models.PaymentResult{
		ID:       ev.EntityID,
		Status:   "paid",
		Amount:   ev.Amount,
		Currency: ev.Currency,
		PaidAt:   now,
	}
	if backfill {
		o.ProcessorOrderID = &ev.EntityID
		if ev.CustomerID != "" {
			o.ProcessorCustomerID = &ev.CustomerID
		}
	}
	return r.DB.WithContext(ctx).Save(o).Error
}

// orderRefunded cancels the order and folds a refund marker into the stored
// payment result, keeping the original payment fields. Re-applying the same
// refund is a harmless overwrite.
func (r *Reconciler) orderRefunded(ctx context.Context, ev Event) error {
	var o models.Order
	err := r.DB.WithContext(ctx).Where("processor_order_id = ?", ev.EntityID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.drop(ctx, ev, "no order for refund event")
		return nil
	}
	if err != nil {
		return err
	}

	now := r.Now()
	if o.PaymentResult == nil {
		o.PaymentResult = &models.PaymentResult{ID: ev.EntityID, Currency: ev.Currency}
	}
	o.PaymentResult.Refunded = true
	o.PaymentResult.RefundedAt = &now
	o.PaymentResult.RefundedAmount = ev.Amount
	o.PaymentResult.Status = "refunded"
	o.Status = models.OrderStatusCancelled

	return r.DB.WithContext(ctx).Save(&o).Error
}

// findByProcessorOrder resolves the order for an order.* event, falling
// back to the checkout session id. The second return reports whether the
// processor order id still needs backfilling.
func (r *Reconciler) findByProcessorOrder(ctx context.Context, ev Event) (*models.Order, bool, error) {
	var o models.Order
	err := r.DB.WithContext(ctx).Where("processor_order_id = ?", ev.EntityID).First(&o).Error
	if err == nil {
		return &o, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	if ev.CheckoutID == "" {
		return nil, false, nil
	}
	err = r.DB.WithContext(ctx).Where("checkout_session_id = ?", ev.CheckoutID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &o, true, nil
}

func (r *Reconciler) drop(ctx context.Context, ev Event, reason string) {
	r.Log.WarnContext(ctx, "dropping unmatched payment event",
		"kind", ev.Kind, "entity_id", ev.EntityID, "checkout_id", ev.CheckoutID, "reason", reason)
}
