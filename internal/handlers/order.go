package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velora/storefront/internal/models"
	"github.com/velora/storefront/internal/order"
	"github.com/velora/storefront/internal/payment"
	"github.com/velora/storefront/internal/result"
	"github.com/velora/storefront/internal/session"
)

type OrderHandler struct {
	DB        *gorm.DB
	Orders    *order.Service
	Payments  *payment.Client
	JWTSecret []byte
	Log       *slog.Logger
}

// Checkout snapshots the cart into an order, then asks the processor for a
// hosted checkout session and hands the redirect URL back to the UI. The
// order id travels in the session metadata so webhook events can find it.
func (h *OrderHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := session.UserID(c, h.JWTSecret)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, result.Fail(order.ErrNotSignedIn.Error()))
	}

	res := h.Orders.Create(ctx, userID, session.CartID(c))
	if !res.Success {
		return c.JSON(http.StatusBadRequest, res)
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		h.Log.ErrorContext(ctx, "load user for checkout failed", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, result.Fail("Error creating payment session"))
	}

	cs, err := h.Payments.CreateCheckout(ctx, payment.CheckoutRequest{
		OrderID:       res.OrderID,
		CustomerEmail: user.Email,
		CustomerName:  user.Name,
	})
	if err != nil {
		// The order exists; only the payment session failed. Report a
		// generic failure the caller may retry, keeping the order id.
		h.Log.ErrorContext(ctx, "create checkout session failed", "order_id", res.OrderID, "error", err)
		fail := result.Fail("Error creating payment session")
		fail.OrderID = res.OrderID
		return c.JSON(http.StatusBadGateway, fail)
	}

	res.RedirectURL = cs.URL
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := session.UserID(c, h.JWTSecret)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, result.Fail("please sign in first"))
	}

	orders, err := h.Orders.ListForUser(c.Request().Context(), userID)
	if err != nil {
		h.Log.ErrorContext(c.Request().Context(), "list orders failed", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, result.Fail("Error loading orders"))
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := session.UserID(c, h.JWTSecret)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, result.Fail("please sign in first"))
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid order id"))
	}

	o, err := h.Orders.GetForUser(c.Request().Context(), uint(orderID), userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, result.Fail(order.ErrNotFound.Error()))
	}
	return c.JSON(http.StatusOK, o)
}

// UpdateStatus is the admin fulfillment endpoint (shipped, delivered, ...).
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	userID, err := session.UserID(c, h.JWTSecret)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, result.Fail("please sign in first"))
	}

	var user models.User
	if err := h.DB.WithContext(c.Request().Context()).First(&user, userID).Error; err != nil || user.Role != "admin" {
		return c.JSON(http.StatusForbidden, result.Fail("admin access required"))
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid order id"))
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid request body"))
	}

	res := h.Orders.UpdateStatus(c.Request().Context(), uint(orderID), req.Status)
	if !res.Success {
		return c.JSON(http.StatusBadRequest, res)
	}
	return c.JSON(http.StatusOK, res)
}
