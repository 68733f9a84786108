package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velora/storefront/internal/models"
	"github.com/velora/storefront/internal/result"
	"github.com/velora/storefront/internal/session"
)

type UserHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
	Log       *slog.Logger
}

type addressRequest struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

// UpdateAddress saves the signed-in user's shipping address. Checkout
// refuses to place an order until one is on file.
func (h *UserHandler) UpdateAddress(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := session.UserID(c, h.JWTSecret)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, result.Fail("please sign in first"))
	}

	var req addressRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid request body"))
	}
	if req.StreetAddress == "" || req.City == "" || req.Country == "" {
		return c.JSON(http.StatusBadRequest, result.Fail("street address, city and country are required"))
	}

	tx := h.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{
			"street_address": req.StreetAddress,
			"city":           req.City,
			"postal_code":    req.PostalCode,
			"country":        req.Country,
		})
	if tx.Error != nil {
		h.Log.ErrorContext(ctx, "update address failed", "user_id", userID, "error", tx.Error)
		return c.JSON(http.StatusInternalServerError, result.Fail("Error updating address"))
	}
	if tx.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, result.Fail("user not found"))
	}
	return c.JSON(http.StatusOK, result.Ok("Address updated successfully"))
}
