package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velora/storefront/internal/events"
	"github.com/velora/storefront/internal/models"
	"github.com/velora/storefront/internal/pricing"
	"github.com/velora/storefront/internal/result"
	"github.com/velora/storefront/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.Publish(ctx, events.TopicProduct, fmt.Sprint(event["product_id"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid product id"))
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, result.Fail("product not found"))
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 10)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Product{}).Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, result.Fail("Error loading products"))
	}

	var items []models.Product
	if err := h.DB.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, result.Fail("Error loading products"))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

type productRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Image       string `json:"image"`
	Stock       uint   `json:"stock"`
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid request body"))
	}
	if _, err := pricing.ParsePrice(req.Price); err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail(err.Error()))
	}

	prod := models.Product{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Stock:       req.Stock,
	}
	if err := h.DB.Create(&prod).Error; err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("Error creating product"))
	}

	h.publish(c, map[string]any{
		"type":       "product_created",
		"product_id": prod.ID,
		"name":       prod.Name,
	})
	return c.JSON(http.StatusCreated, prod)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid product id"))
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid request body"))
	}
	if _, err := pricing.ParsePrice(req.Price); err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail(err.Error()))
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, result.Fail("product not found"))
	}

	prod.Name = req.Name
	prod.Slug = req.Slug
	prod.Description = req.Description
	prod.Price = req.Price
	prod.Image = req.Image
	prod.Stock = req.Stock

	if err := h.DB.Save(&prod).Error; err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("Error updating product"))
	}

	h.publish(c, map[string]any{
		"type":       "product_updated",
		"product_id": prod.ID,
		"name":       prod.Name,
	})
	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, result.Fail("invalid product id"))
	}
	if err := h.DB.Delete(&models.Product{}, id).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, result.Fail("Error deleting product"))
	}

	h.publish(c, map[string]any{
		"type":       "product_deleted",
		"product_id": id,
	})
	return c.NoContent(http.StatusNoContent)
}
