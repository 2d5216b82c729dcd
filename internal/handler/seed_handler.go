package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"nutritrack/internal/service"
)

// SeedHandler bulk-loads the product catalog.
type SeedHandler struct {
	productService service.ProductService
}

// NewSeedHandler creates a new seed handler.
func NewSeedHandler(productService service.ProductService) *SeedHandler {
	return &SeedHandler{productService: productService}
}

// SeedResponse represents the seed response.
type SeedResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// SeedProducts godoc
// @Summary Bulk-create products
// @Description Admin only. Products are created in order; the first invalid one stops the run.
// @Tags seed
// @Accept json
// @Produce json
// @Param request body []service.ProductInput true "Products"
// @Success 200 {object} SeedResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /products/seed [post]
func (h *SeedHandler) SeedProducts(c echo.Context) error {
	var inputs []service.ProductInput
	if err := c.Bind(&inputs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	count, err := h.productService.Seed(c.Request().Context(), inputs)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, SeedResponse{
		Message: "Products seeded successfully",
		Count:   count,
	})
}
