// Package middleware holds the echo middleware around the handlers: the
// access and role gates, error rendering, request logging, metrics and the
// login rate limiter.
package middleware

import (
	"fmt"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"nutritrack/internal/auth"
	apperrors "nutritrack/internal/errors"
	"nutritrack/internal/model"
)

const (
	// AccessCookie carries the access token.
	AccessCookie = "JWT"
	// ClaimsKey is the echo context key holding *auth.Claims once the access gate passes.
	ClaimsKey = "claims"
)

// TokenVerifier checks an access token.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// AccessGate admits requests whose JWT cookie holds a valid access token.
// A missing cookie is 401; a cookie that fails verification is 403.
func AccessGate(verifier TokenVerifier) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "cookie:" + AccessCookie,
		ContextKey:  ClaimsKey,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return verifier.VerifyAccessToken(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			cookie, cerr := c.Cookie(AccessCookie)
			if cerr != nil || cookie.Value == "" {
				return fmt.Errorf("%w: missing access token", apperrors.ErrUnauthorized)
			}
			return fmt.Errorf("%w: invalid access token", apperrors.ErrForbidden)
		},
	})
}

// RequireRole admits requests whose claims carry role. It must run after AccessGate.
func RequireRole(role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return fmt.Errorf("%w: missing access token", apperrors.ErrUnauthorized)
			}
			if err := auth.RequireRole(claims, role); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by AccessGate.
func ClaimsFrom(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(ClaimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}
