package handler

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "nutritrack/internal/errors"
	"nutritrack/internal/middleware"
)

// MessageResponse is the body of operations that only confirm success.
type MessageResponse struct {
	Message string `json:"message"`
}

// bind decodes the body and runs struct validation, reporting both as invalid input.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, err.Error())
	}
	return nil
}

// currentUserID reads the authenticated user from the access gate's claims.
func currentUserID(c echo.Context) (uuid.UUID, error) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing access token", apperrors.ErrUnauthorized)
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", apperrors.ErrForbidden)
	}
	return id, nil
}
