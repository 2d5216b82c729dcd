package auth

import (
	"fmt"

	apperrors "nutritrack/internal/errors"
	"nutritrack/internal/model"
)

// RequireRole fails with ErrForbidden unless claims carry the given role.
func RequireRole(claims *Claims, role model.Role) error {
	if claims == nil || claims.Role != role {
		return fmt.Errorf("%w: %s role required", apperrors.ErrForbidden, role)
	}
	return nil
}
