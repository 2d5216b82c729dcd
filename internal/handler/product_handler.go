package handler

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "nutritrack/internal/errors"
	"nutritrack/internal/service"
)

// ProductHandler serves the product catalog.
type ProductHandler struct {
	svc service.ProductService
}

// NewProductHandler creates a product handler.
func NewProductHandler(svc service.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// CreateProductRequest is the body of POST /products.
type CreateProductRequest struct {
	Name  string   `json:"name" validate:"required"`
	Kcal  *float64 `json:"kcal" validate:"required,gte=0"`
	Carbs *float64 `json:"carbs" validate:"required,gte=0"`
	Prots *float64 `json:"prots" validate:"required,gte=0"`
	Fats  *float64 `json:"fats" validate:"required,gte=0"`
}

// productID parses the :id path parameter. A malformed id names no product.
func productID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: product", apperrors.ErrNotFound)
	}
	return id, nil
}

// Search godoc
// @Summary Search products by name
// @Tags products
// @Produce json
// @Param name query string true "Case-insensitive substring, at least 3 characters"
// @Success 200 {array} model.Product
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /products [get]
func (h *ProductHandler) Search(c echo.Context) error {
	products, err := h.svc.Search(c.Request().Context(), c.QueryParam("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}

// Get godoc
// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} model.Product
// @Failure 404 {object} errors.ErrorResponse
// @Router /products/{id} [get]
func (h *ProductHandler) Get(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	product, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}

// Create godoc
// @Summary Create product
// @Description Admin only. Nutrient values are per 100 units.
// @Tags products
// @Accept json
// @Produce json
// @Param request body CreateProductRequest true "Product"
// @Success 200 {object} model.Product
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /products [post]
func (h *ProductHandler) Create(c echo.Context) error {
	var req CreateProductRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	product, err := h.svc.Create(c.Request().Context(), service.ProductInput{
		Name:  req.Name,
		Kcal:  req.Kcal,
		Carbs: req.Carbs,
		Prots: req.Prots,
		Fats:  req.Fats,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}

// Update godoc
// @Summary Update product
// @Description Admin only. Omitted fields are kept.
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param request body service.ProductPatch true "Fields to change"
// @Success 200 {object} model.Product
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /products/{id} [patch]
func (h *ProductHandler) Update(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	var patch service.ProductPatch
	if err := (&echo.DefaultBinder{}).BindBody(c, &patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	product, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}

// Delete godoc
// @Summary Delete product
// @Description Admin only. Also deletes every consumption entry of the product.
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} model.Product
// @Failure 404 {object} errors.ErrorResponse
// @Router /products/{id} [delete]
func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	product, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}
