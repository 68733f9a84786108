package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/velora/storefront/internal/cart"
	"github.com/velora/storefront/internal/result"
	"github.com/velora/storefront/internal/session"
)

type CartHandler struct {
	Carts     *cart.Service
	JWTSecret []byte
}

// owner builds the explicit cart owner key from the request. Anonymous
// callers get a session id only; signed-in callers carry both until merge.
func (h *CartHandler) owner(c echo.Context) cart.Owner {
	userID, _ := session.UserID(c, h.JWTSecret)
	return cart.Owner{SessionID: session.CartID(c), UserID: userID}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	crt, err := h.Carts.Get(c.Request().Context(), h.owner(c))
	if err != nil {
		return c.JSON(http.StatusNotFound, result.Fail(err.Error()))
	}
	return c.JSON(http.StatusOK, crt)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	var item cart.NewItem
	if err := c.Bind(&item); err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid request body"))
	}

	res := h.Carts.AddItem(c.Request().Context(), h.owner(c), item)
	if !res.Success {
		return c.JSON(http.StatusBadRequest, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CartHandler) UpdateQuantity(c echo.Context) error {
	productID, err := strconv.ParseUint(c.Param("productId"), 10, 32)
	if err != nil || productID == 0 {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid product id"))
	}

	var req struct {
		Quantity uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid request body"))
	}

	res := h.Carts.UpdateQuantity(c.Request().Context(), h.owner(c), uint(productID), req.Quantity)
	if !res.Success {
		return c.JSON(http.StatusBadRequest, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	productID, err := strconv.ParseUint(c.Param("productId"), 10, 32)
	if err != nil || productID == 0 {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid product id"))
	}

	res := h.Carts.RemoveItem(c.Request().Context(), h.owner(c), uint(productID))
	if !res.Success {
		return c.JSON(http.StatusBadRequest, res)
	}
	return c.JSON(http.StatusOK, res)
}

// MergeCart is called by the auth flow right after sign-in to fold the
// anonymous session cart into the user's cart.
func (h *CartHandler) MergeCart(c echo.Context) error {
	userID, err := session.UserID(c, h.JWTSecret)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, result.Fail("please sign in first"))
	}

	if err := h.Carts.MergeOnSignIn(c.Request().Context(), session.CartID(c), userID); err != nil {
		return c.JSON(http.StatusInternalServerError, result.Fail("Error merging cart"))
	}
	return c.JSON(http.StatusOK, result.Ok("Cart merged successfully"))
}
