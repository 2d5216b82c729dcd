package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"nutritrack/internal/model"
	"nutritrack/internal/service"
)

// ConsumptionHandler serves the dashboard and the consumption log.
type ConsumptionHandler struct {
	svc service.ConsumptionService
}

// NewConsumptionHandler creates a consumption handler.
func NewConsumptionHandler(svc service.ConsumptionService) *ConsumptionHandler {
	return &ConsumptionHandler{svc: svc}
}

// LogRequest is the body of POST /.
type LogRequest struct {
	ProductID string         `json:"productId"`
	Quantity  float64        `json:"quantity"`
	Date      *time.Time     `json:"date"`
	Type      model.MealType `json:"type"`
}

// UpdateRequest is the body of PATCH /:id.
type UpdateRequest struct {
	Quantity *float64        `json:"quantity"`
	Date     *time.Time      `json:"date"`
	Type     *model.MealType `json:"type"`
}

// Day godoc
// @Summary Daily dashboard
// @Description Entries of one calendar day with scaled nutrients and their sum. group=meal adds per-meal subtotals.
// @Tags dashboard
// @Produce json
// @Param date path string true "YYYY-MM-DD or RFC3339 timestamp"
// @Param group query string false "meal"
// @Success 200 {object} service.DayView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /{date} [get]
func (h *ConsumptionHandler) Day(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	view, err := h.svc.Day(c.Request().Context(), userID, c.Param("date"), c.QueryParam("group") == "meal")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Log godoc
// @Summary Log consumption
// @Tags dashboard
// @Accept json
// @Produce json
// @Param request body LogRequest true "Consumption entry"
// @Success 200 {object} nutrition.Entry
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router / [post]
func (h *ConsumptionHandler) Log(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req LogRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	entry, err := h.svc.Log(c.Request().Context(), userID, service.LogInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Date:      req.Date,
		Type:      req.Type,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

// Update godoc
// @Summary Update consumption entry
// @Tags dashboard
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param request body UpdateRequest true "Changes; quantity is required"
// @Success 200 {object} nutrition.Entry
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /{id} [patch]
func (h *ConsumptionHandler) Update(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	entry, err := h.svc.Update(c.Request().Context(), userID, c.Param("id"), service.UpdateInput{
		Quantity: req.Quantity,
		Date:     req.Date,
		Type:     req.Type,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

// Delete godoc
// @Summary Delete consumption entry
// @Tags dashboard
// @Param id path string true "Entry ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Router /{id} [delete]
func (h *ConsumptionHandler) Delete(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
