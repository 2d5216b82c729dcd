package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	echoSwagger "github.com/swaggo/echo-swagger"

	"nutritrack/internal/config"
	"nutritrack/internal/handler"
	"nutritrack/internal/logger"
	"nutritrack/internal/middleware"
	"nutritrack/internal/model"
)

// Register wires routes and middleware. rdb may be nil, which disables the
// login rate limiter.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log *logger.Logger,
	verifier middleware.TokenVerifier,
	rdb *redis.Client,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	productHandler *handler.ProductHandler,
	seedHandler *handler.SeedHandler,
	consumptionHandler *handler.ConsumptionHandler,
) {
	e.HTTPErrorHandler = middleware.ErrorHandler(log)
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(echomw.RequestID())
	e.Use(middleware.Metrics())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	gate := middleware.AccessGate(verifier)
	admin := middleware.RequireRole(model.RoleAdmin)

	// Public auth routes
	users := e.Group("/users")
	users.POST("/register", authHandler.Register)
	users.POST("/login", authHandler.Login, middleware.RateLimit(cfg.RateLimit, rdb, log))
	users.POST("/refresh", authHandler.Refresh)
	users.DELETE("/logout", authHandler.Logout)
	users.GET("/me", userHandler.Me, gate)

	// Catalog: reads for any user, writes for admins
	products := e.Group("/products", gate)
	products.GET("", productHandler.Search)
	products.GET("/:id", productHandler.Get)
	products.POST("", productHandler.Create, admin)
	products.POST("/seed", seedHandler.SeedProducts, admin)
	products.PATCH("/:id", productHandler.Update, admin)
	products.DELETE("/:id", productHandler.Delete, admin)

	// Dashboard and consumption log at the root
	e.GET("/:date", consumptionHandler.Day, gate)
	e.POST("/", consumptionHandler.Log, gate)
	e.PATCH("/:id", consumptionHandler.Update, gate)
	e.DELETE("/:id", consumptionHandler.Delete, gate)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
